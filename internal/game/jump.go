package game

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Physics for the runner, in cells and ticks.
const (
	RunnerX        = 4
	RunnerWidth    = 1
	RunnerHeight   = 2
	Gravity        = 0.18
	JumpVelocity   = 1.6
	BaseSpeed      = 0.5
	SpeedPerLevel  = 0.05
	PointsPerLevel = 5
	MaxSpeed       = 1.5
	minSpawnGap    = 18
	spawnGapRange  = 22
)

// Obstacle is a block resting on the ground.
type Obstacle struct {
	X      float64 `json:"x"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	passed bool
}

// Jump is a side-scrolling runner. The runner stays at RunnerX while
// obstacles scroll left; Y is the runner's height above the ground.
type Jump struct {
	width, height int
	y, vy         float64
	obstacles     []Obstacle
	score         int
	ticks         int
	nextSpawn     int
	over          bool
	rng           *rand.Rand
}

// JumpState is the serialisable view of a Jump game.
type JumpState struct {
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	RunnerY   float64    `json:"runnerY"`
	Grounded  bool       `json:"grounded"`
	Obstacles []Obstacle `json:"obstacles"`
	Speed     float64    `json:"speed"`
	Score     int        `json:"score"`
	Ticks     int        `json:"ticks"`
	Over      bool       `json:"over"`
}

// NewJump creates a runner on a width x height field.
func NewJump(width, height int, rng *rand.Rand) *Jump {
	return &Jump{
		width:     max(width, 20),
		height:    max(height, 5),
		nextSpawn: minSpawnGap,
		rng:       rng,
	}
}

func (j *Jump) Kind() Kind       { return KindJump }
func (j *Jump) Score() int       { return j.score }
func (j *Jump) Over() bool       { return j.over }
func (j *Jump) Grounded() bool   { return j.y == 0 && j.vy == 0 }
func (j *Jump) RunnerY() float64 { return j.y }

// Speed is the scroll speed in cells per tick; it grows with the score.
func (j *Jump) Speed() float64 {
	return math.Min(MaxSpeed, BaseSpeed+float64(j.score/PointsPerLevel)*SpeedPerLevel)
}

// Jump launches the runner. It only succeeds when grounded.
func (j *Jump) Jump() (bool, error) {
	if j.over {
		return false, ErrGameOver
	}
	if !j.Grounded() {
		return false, nil
	}
	j.vy = JumpVelocity
	return true, nil
}

// Step advances one fixed timestep: gravity, scrolling, scoring, spawning
// and collision.
func (j *Jump) Step() error {
	if j.over {
		return ErrGameOver
	}
	j.ticks++

	if j.y > 0 || j.vy > 0 {
		j.vy -= Gravity
		j.y += j.vy
		if j.y <= 0 {
			j.y, j.vy = 0, 0
		}
	}

	speed := j.Speed()
	kept := j.obstacles[:0]
	for _, o := range j.obstacles {
		o.X -= speed
		if !o.passed && o.X+float64(o.Width) <= RunnerX {
			o.passed = true
			j.score++
		}
		if o.X+float64(o.Width) >= 0 {
			kept = append(kept, o)
		}
	}
	j.obstacles = kept

	j.nextSpawn--
	if j.nextSpawn <= 0 {
		j.obstacles = append(j.obstacles, Obstacle{
			X:      float64(j.width),
			Width:  1 + j.rng.IntN(2),
			Height: 1 + j.rng.IntN(min(3, j.height-RunnerHeight)),
		})
		j.nextSpawn = minSpawnGap + j.rng.IntN(spawnGapRange)
	}

	for _, o := range j.obstacles {
		if j.collides(o) {
			j.over = true
			break
		}
	}
	return nil
}

// collides is an axis-aligned box test between the runner and o.
func (j *Jump) collides(o Obstacle) bool {
	return RunnerX < o.X+float64(o.Width) &&
		o.X < RunnerX+RunnerWidth &&
		j.y < float64(o.Height)
}

func (j *Jump) Obstacles() []Obstacle { return append([]Obstacle(nil), j.obstacles...) }

func (j *Jump) State() any {
	return JumpState{
		Width:     j.width,
		Height:    j.height,
		RunnerY:   math.Round(j.y*100) / 100,
		Grounded:  j.Grounded(),
		Obstacles: j.Obstacles(),
		Speed:     j.Speed(),
		Score:     j.score,
		Ticks:     j.ticks,
		Over:      j.over,
	}
}

func (j *Jump) Apply(action, arg string) error {
	switch action {
	case "jump":
		_, err := j.Jump()
		return err
	case "step":
		if j.over {
			return ErrGameOver
		}
		n := 1
		if arg != "" {
			if _, err := fmt.Sscanf(arg, "%d", &n); err != nil || n < 1 || n > 1000 {
				return fmt.Errorf("step count must be 1..1000, got %q", arg)
			}
		}
		for i := 0; i < n && !j.over; i++ {
			if err := j.Step(); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("%w %q for jump (use jump or step)", ErrUnsupportedAction, action)
}

// String renders the field: 'R' runner, '#' obstacle, '=' ground.
func (j *Jump) String() string {
	grid := make([][]byte, j.height)
	for y := range grid {
		grid[y] = []byte(strings.Repeat(" ", j.width))
	}
	put := func(x, h int, c byte) {
		row := j.height - 1 - h
		if x >= 0 && x < j.width && row >= 0 && row < j.height {
			grid[row][x] = c
		}
	}
	for _, o := range j.obstacles {
		x0 := int(math.Round(o.X))
		for dx := 0; dx < o.Width; dx++ {
			for h := 0; h < o.Height; h++ {
				put(x0+dx, h, '#')
			}
		}
	}
	base := int(math.Round(j.y))
	for h := 0; h < RunnerHeight; h++ {
		put(RunnerX, base+h, 'R')
	}
	var sb strings.Builder
	for _, row := range grid {
		sb.Write(row)
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Repeat("=", j.width))
	sb.WriteByte('\n')
	return sb.String()
}
