package game

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// FoodPoints is the score for each piece of food eaten.
const FoodPoints = 10

// Point is a grid cell; X grows right and Y grows down.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (p Point) step(d Direction) Point {
	switch d {
	case Up:
		p.Y--
	case Down:
		p.Y++
	case Left:
		p.X--
	case Right:
		p.X++
	}
	return p
}

// Snake is a WxH snake game. The body is stored head first.
type Snake struct {
	width, height int
	wrap          bool
	body          []Point
	heading       Direction
	next          Direction
	food          Point
	score         int
	ticks         int
	over, won     bool
	rng           *rand.Rand
}

// SnakeState is the serialisable view of a Snake.
type SnakeState struct {
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	Body    []Point `json:"body"`
	Food    *Point  `json:"food,omitempty"`
	Heading string  `json:"heading"`
	Score   int     `json:"score"`
	Ticks   int     `json:"ticks"`
	Over    bool    `json:"over"`
	Won     bool    `json:"won"`
}

// NewSnake starts a length-3 snake at the centre heading right.
func NewSnake(width, height int, wrap bool, rng *rand.Rand) *Snake {
	width = max(width, 5)
	height = max(height, 5)
	cx, cy := width/2, height/2
	s := &Snake{
		width:   width,
		height:  height,
		wrap:    wrap,
		body:    []Point{{cx, cy}, {cx - 1, cy}, {cx - 2, cy}},
		heading: Right,
		next:    Right,
		rng:     rng,
	}
	s.placeFood()
	return s
}

func (s *Snake) Kind() Kind  { return KindSnake }
func (s *Snake) Score() int  { return s.score }
func (s *Snake) Over() bool  { return s.over }
func (s *Snake) Won() bool   { return s.won }
func (s *Snake) Head() Point { return s.body[0] }
func (s *Snake) Len() int    { return len(s.body) }
func (s *Snake) Food() Point { return s.food }

// Body returns a copy of the body, head first.
func (s *Snake) Body() []Point { return append([]Point(nil), s.body...) }

// Turn queues a heading change for the next step. Reversing onto the body is
// ignored.
func (s *Snake) Turn(d Direction) {
	if d == s.heading.Opposite() {
		return
	}
	s.next = d
}

// Step advances the snake one cell.
func (s *Snake) Step() error {
	if s.over {
		return ErrGameOver
	}
	s.ticks++
	s.heading = s.next
	head := s.body[0].step(s.heading)

	if head.X < 0 || head.Y < 0 || head.X >= s.width || head.Y >= s.height {
		if !s.wrap {
			s.over = true
			return nil
		}
		head.X = (head.X + s.width) % s.width
		head.Y = (head.Y + s.height) % s.height
	}

	eating := head == s.food
	// The tail cell frees up this tick unless the snake grows.
	occupied := s.body
	if !eating {
		occupied = s.body[:len(s.body)-1]
	}
	for _, p := range occupied {
		if p == head {
			s.over = true
			return nil
		}
	}

	s.body = append([]Point{head}, s.body...)
	if !eating {
		s.body = s.body[:len(s.body)-1]
		return nil
	}
	s.score += FoodPoints
	if len(s.body) == s.width*s.height {
		s.won = true
		s.over = true
		return nil
	}
	s.placeFood()
	return nil
}

func (s *Snake) placeFood() {
	taken := make(map[Point]bool, len(s.body))
	for _, p := range s.body {
		taken[p] = true
	}
	free := make([]Point, 0, s.width*s.height-len(s.body))
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			if p := (Point{x, y}); !taken[p] {
				free = append(free, p)
			}
		}
	}
	if len(free) == 0 {
		return
	}
	s.food = free[s.rng.IntN(len(free))]
}

func (s *Snake) State() any {
	st := SnakeState{
		Width:   s.width,
		Height:  s.height,
		Body:    s.Body(),
		Heading: s.heading.String(),
		Score:   s.score,
		Ticks:   s.ticks,
		Over:    s.over,
		Won:     s.won,
	}
	if !s.over {
		f := s.food
		st.Food = &f
	}
	return st
}

func (s *Snake) Apply(action, arg string) error {
	switch action {
	case "turn":
		d, err := ParseDirection(arg)
		if err != nil {
			return err
		}
		s.Turn(d)
		return nil
	case "step":
		if s.over {
			return ErrGameOver
		}
		n := 1
		if arg != "" {
			if _, err := fmt.Sscanf(arg, "%d", &n); err != nil || n < 1 || n > 1000 {
				return fmt.Errorf("step count must be 1..1000, got %q", arg)
			}
		}
		for i := 0; i < n && !s.over; i++ {
			if err := s.Step(); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w %q for snake (use turn or step)", ErrUnsupportedAction, action)
}

// String renders the grid: '@' head, 'o' body, '*' food.
func (s *Snake) String() string {
	grid := make([][]byte, s.height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(".", s.width))
	}
	if !s.over {
		grid[s.food.Y][s.food.X] = '*'
	}
	for i, p := range s.body {
		c := byte('o')
		if i == 0 {
			c = '@'
		}
		grid[p.Y][p.X] = c
	}
	var sb strings.Builder
	for _, row := range grid {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	return sb.String()
}
