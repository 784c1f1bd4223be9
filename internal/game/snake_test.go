package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnake_StartPosition(t *testing.T) {
	s := NewSnake(20, 15, false, NewRand(1))
	assert.Equal(t, []Point{{10, 7}, {9, 7}, {8, 7}}, s.Body())
	assert.Equal(t, 3, s.Len())
	assert.NotContains(t, s.Body(), s.Food())
}

func TestSnake_StepAndReversalIgnored(t *testing.T) {
	s := NewSnake(20, 15, false, NewRand(1))
	s.food = Point{0, 0}

	s.Turn(Left) // reversal onto the body
	require.NoError(t, s.Step())
	assert.Equal(t, Point{11, 7}, s.Head())

	s.Turn(Up)
	s.Turn(Left) // opposite of the current heading (right), still ignored
	require.NoError(t, s.Step())
	assert.Equal(t, Point{11, 6}, s.Head())
	assert.Equal(t, 3, s.Len())
}

func TestSnake_EatGrowsAndScores(t *testing.T) {
	s := NewSnake(20, 15, false, NewRand(1))
	s.food = Point{11, 7}
	require.NoError(t, s.Step())
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, FoodPoints, s.Score())
	assert.NotContains(t, s.Body(), s.Food())
}

func TestSnake_WallEndsGame(t *testing.T) {
	s := NewSnake(5, 5, false, NewRand(1))
	s.food = Point{0, 4}
	// Head starts at (2,2); two steps reach x=4, the third leaves the grid.
	for i := 0; i < 2; i++ {
		require.NoError(t, s.Step())
		assert.False(t, s.Over())
	}
	require.NoError(t, s.Step())
	assert.True(t, s.Over())
	assert.ErrorIs(t, s.Step(), ErrGameOver)
}

func TestSnake_WrapAround(t *testing.T) {
	s := NewSnake(5, 5, true, NewRand(1))
	s.food = Point{0, 4}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Step())
	}
	assert.False(t, s.Over())
	assert.Equal(t, Point{0, 2}, s.Head())
}

func TestSnake_SelfCollision(t *testing.T) {
	s := NewSnake(10, 10, false, NewRand(1))
	s.body = []Point{{5, 5}, {4, 5}, {4, 4}, {5, 4}, {6, 4}}
	s.heading, s.next = Right, Right
	s.food = Point{0, 0}

	s.Turn(Up)
	require.NoError(t, s.Step())
	assert.True(t, s.Over())
}

func TestSnake_MovingIntoTailCellIsAllowed(t *testing.T) {
	s := NewSnake(10, 10, false, NewRand(1))
	// A 2x2 loop: the head moves into the cell the tail vacates.
	s.body = []Point{{5, 5}, {5, 4}, {4, 4}, {4, 5}}
	s.heading, s.next = Down, Down
	s.food = Point{0, 0}

	s.Turn(Left)
	require.NoError(t, s.Step())
	assert.False(t, s.Over())
	assert.Equal(t, Point{4, 5}, s.Head())
}

func TestSnake_FullBoardWins(t *testing.T) {
	s := NewSnake(5, 5, false, NewRand(1))
	var body []Point
	// Fill every cell except (4,0), snaking so the head sits at (3,0).
	for y := 4; y >= 0; y-- {
		for x := 0; x < 5; x++ {
			if y == 0 && x == 4 {
				continue
			}
			body = append([]Point{{x, y}}, body...)
		}
	}
	s.body = body
	s.heading, s.next = Right, Right
	s.food = Point{4, 0}

	require.NoError(t, s.Step())
	assert.True(t, s.Won())
	assert.True(t, s.Over())
	assert.Equal(t, 25, s.Len())
}

func TestSnake_ApplySteps(t *testing.T) {
	s := NewSnake(20, 15, false, NewRand(1))
	s.food = Point{0, 0}
	require.NoError(t, s.Apply("step", "3"))
	assert.Equal(t, Point{13, 7}, s.Head())
	require.NoError(t, s.Apply("turn", "down"))
	require.NoError(t, s.Apply("step", ""))
	assert.Equal(t, Point{13, 8}, s.Head())
	assert.Error(t, s.Apply("step", "0"))
	assert.ErrorIs(t, s.Apply("move", "up"), ErrUnsupportedAction)
}
