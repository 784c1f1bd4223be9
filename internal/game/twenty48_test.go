package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLine(t *testing.T) {
	cases := []struct {
		in     []int
		want   []int
		gained int
	}{
		{[]int{2, 2, 2, 2}, []int{4, 4, 0, 0}, 8},
		{[]int{4, 4, 8, 0}, []int{8, 8, 0, 0}, 8},
		{[]int{2, 0, 2, 4}, []int{4, 4, 0, 0}, 4},
		{[]int{0, 0, 0, 2}, []int{2, 0, 0, 0}, 0},
		{[]int{2, 4, 8, 16}, []int{2, 4, 8, 16}, 0},
		{[]int{8, 8, 8, 0}, []int{16, 8, 0, 0}, 16},
		{[]int{0, 0, 0, 0}, []int{0, 0, 0, 0}, 0},
	}
	for _, tc := range cases {
		got, gained := mergeLine(tc.in)
		assert.Equal(t, tc.want, got, "line %v", tc.in)
		assert.Equal(t, tc.gained, gained, "line %v", tc.in)
	}
}

func TestBoard_MoveLeftMergesOnce(t *testing.T) {
	b, err := NewBoardFromCells([][]int{
		{2, 2, 4, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, NewRand(1))
	require.NoError(t, err)

	changed, err := b.Move(Left)
	require.NoError(t, err)
	assert.True(t, changed)
	// 2+2 makes 4 but must not merge again with the existing 4.
	assert.Equal(t, []int{4, 4, 0, 0}, b.Cells()[0])
	assert.Equal(t, 4, b.Score())
	assert.Equal(t, 1, countTiles(b)-2, "exactly one tile spawned")
}

func TestBoard_AllDirections(t *testing.T) {
	start := [][]int{
		{2, 0, 0, 2},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{2, 0, 0, 0},
	}
	cases := map[Direction]func(c [][]int) int{
		Right: func(c [][]int) int { return c[0][3] },
		Left:  func(c [][]int) int { return c[0][0] },
		Up:    func(c [][]int) int { return c[0][0] },
		Down:  func(c [][]int) int { return c[3][0] },
	}
	for d, probe := range cases {
		b, err := NewBoardFromCells(start, NewRand(7))
		require.NoError(t, err)
		_, err = b.Move(d)
		require.NoError(t, err)
		assert.Equal(t, 4, probe(b.Cells()), "direction %s", d)
		assert.Equal(t, 4, b.Score(), "direction %s", d)
	}
}

func TestBoard_NoSpawnWhenUnchanged(t *testing.T) {
	b, err := NewBoardFromCells([][]int{
		{2, 4, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}, NewRand(3))
	require.NoError(t, err)

	changed, err := b.Move(Left)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, countTiles(b))
	assert.Equal(t, 0, b.State().(BoardState).Moves)
}

func TestBoard_WonAndOver(t *testing.T) {
	b, err := NewBoardFromCells([][]int{
		{1024, 1024},
		{2, 4},
	}, NewRand(1))
	require.NoError(t, err)
	_, err = b.Move(Left)
	require.NoError(t, err)
	assert.True(t, b.Won())

	over, err := NewBoardFromCells([][]int{
		{2, 4},
		{4, 2},
	}, NewRand(1))
	require.NoError(t, err)
	assert.True(t, over.Over())
	_, err = over.Move(Up)
	assert.ErrorIs(t, err, ErrGameOver)
}

func TestBoard_NewHasTwoTiles(t *testing.T) {
	b := NewBoard(4, NewRand(42))
	assert.Equal(t, 2, countTiles(b))
	for _, row := range b.Cells() {
		for _, v := range row {
			assert.Contains(t, []int{0, 2, 4}, v)
		}
	}
}

func TestBoard_SpawnDistribution(t *testing.T) {
	rng := NewRand(99)
	fours := 0
	const n = 2000
	for i := 0; i < n; i++ {
		b := &Board{size: 4, rng: rng, cells: [][]int{make([]int, 4), make([]int, 4), make([]int, 4), make([]int, 4)}}
		b.spawn()
		if b.bestTile() == 4 {
			fours++
		}
	}
	assert.InDelta(t, 0.1, float64(fours)/n, 0.03)
}

func TestBoard_Apply(t *testing.T) {
	b, err := NewBoardFromCells([][]int{{2, 2}, {0, 0}}, NewRand(1))
	require.NoError(t, err)
	require.NoError(t, b.Apply("move", "left"))
	assert.Equal(t, 4, b.Score())
	assert.ErrorIs(t, b.Apply("jump", ""), ErrUnsupportedAction)
	assert.Error(t, b.Apply("move", "sideways"))
}

func countTiles(b *Board) int {
	n := 0
	for _, row := range b.Cells() {
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
	}
	return n
}
