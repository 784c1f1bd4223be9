package game

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// WinningTile is the tile value that marks a 2048 win.
const WinningTile = 2048

// Board is an NxN 2048 grid.
type Board struct {
	size  int
	cells [][]int
	score int
	moves int
	won   bool
	rng   *rand.Rand
}

// BoardState is the serialisable view of a Board.
type BoardState struct {
	Cells [][]int `json:"cells"`
	Score int     `json:"score"`
	Moves int     `json:"moves"`
	Best  int     `json:"bestTile"`
	Won   bool    `json:"won"`
	Over  bool    `json:"over"`
}

// NewBoard creates a size x size board with two starting tiles.
func NewBoard(size int, rng *rand.Rand) *Board {
	if size < 2 {
		size = 4
	}
	b := &Board{size: size, rng: rng, cells: make([][]int, size)}
	for i := range b.cells {
		b.cells[i] = make([]int, size)
	}
	b.spawn()
	b.spawn()
	return b
}

// NewBoardFromCells builds a board with a fixed layout and no spawned tiles.
func NewBoardFromCells(cells [][]int, rng *rand.Rand) (*Board, error) {
	n := len(cells)
	if n < 2 {
		return nil, fmt.Errorf("board must be at least 2x2")
	}
	b := &Board{size: n, rng: rng, cells: make([][]int, n)}
	for i, row := range cells {
		if len(row) != n {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), n)
		}
		b.cells[i] = append([]int(nil), row...)
		for _, v := range row {
			if v >= WinningTile {
				b.won = true
			}
		}
	}
	return b, nil
}

func (b *Board) Kind() Kind { return Kind2048 }
func (b *Board) Score() int { return b.score }
func (b *Board) Won() bool  { return b.won }
func (b *Board) Size() int  { return b.size }

// Cells returns a copy of the grid, row-major.
func (b *Board) Cells() [][]int {
	out := make([][]int, b.size)
	for i, row := range b.cells {
		out[i] = append([]int(nil), row...)
	}
	return out
}

// Over reports whether no move can change the board.
func (b *Board) Over() bool {
	for y := 0; y < b.size; y++ {
		for x := 0; x < b.size; x++ {
			v := b.cells[y][x]
			if v == 0 {
				return false
			}
			if x+1 < b.size && b.cells[y][x+1] == v {
				return false
			}
			if y+1 < b.size && b.cells[y+1][x] == v {
				return false
			}
		}
	}
	return true
}

// Move slides every line towards d, merging each equal pair at most once.
// A tile spawns only when the board changed.
func (b *Board) Move(d Direction) (bool, error) {
	if b.Over() {
		return false, ErrGameOver
	}
	changed := false
	for i := 0; i < b.size; i++ {
		line := b.line(d, i)
		merged, gained := mergeLine(line)
		for j := range line {
			if line[j] != merged[j] {
				changed = true
			}
		}
		b.setLine(d, i, merged)
		b.score += gained
	}
	if !changed {
		return false, nil
	}
	b.moves++
	for _, row := range b.cells {
		for _, v := range row {
			if v >= WinningTile {
				b.won = true
			}
		}
	}
	b.spawn()
	return true, nil
}

// line reads row or column i ordered so that index 0 is the edge tiles move
// towards.
func (b *Board) line(d Direction, i int) []int {
	out := make([]int, b.size)
	for j := 0; j < b.size; j++ {
		x, y := b.coord(d, i, j)
		out[j] = b.cells[y][x]
	}
	return out
}

func (b *Board) setLine(d Direction, i int, vals []int) {
	for j, v := range vals {
		x, y := b.coord(d, i, j)
		b.cells[y][x] = v
	}
}

func (b *Board) coord(d Direction, i, j int) (x, y int) {
	last := b.size - 1
	switch d {
	case Left:
		return j, i
	case Right:
		return last - j, i
	case Up:
		return i, j
	default:
		return i, last - j
	}
}

// mergeLine compacts a line towards index 0 and merges equal neighbours once.
func mergeLine(line []int) ([]int, int) {
	out := make([]int, 0, len(line))
	gained := 0
	for i := 0; i < len(line); i++ {
		if line[i] == 0 {
			continue
		}
		v := line[i]
		j := i + 1
		for j < len(line) && line[j] == 0 {
			j++
		}
		if j < len(line) && line[j] == v {
			v *= 2
			gained += v
			i = j
		}
		out = append(out, v)
	}
	for len(out) < len(line) {
		out = append(out, 0)
	}
	return out, gained
}

// spawn places a 2 (90%) or 4 (10%) on a random empty cell.
func (b *Board) spawn() {
	var empty [][2]int
	for y, row := range b.cells {
		for x, v := range row {
			if v == 0 {
				empty = append(empty, [2]int{x, y})
			}
		}
	}
	if len(empty) == 0 {
		return
	}
	pos := empty[b.rng.IntN(len(empty))]
	v := 2
	if b.rng.Float64() < 0.1 {
		v = 4
	}
	b.cells[pos[1]][pos[0]] = v
}

func (b *Board) bestTile() int {
	best := 0
	for _, row := range b.cells {
		for _, v := range row {
			best = max(best, v)
		}
	}
	return best
}

func (b *Board) State() any {
	return BoardState{
		Cells: b.Cells(),
		Score: b.score,
		Moves: b.moves,
		Best:  b.bestTile(),
		Won:   b.won,
		Over:  b.Over(),
	}
}

func (b *Board) Apply(action, arg string) error {
	switch action {
	case "move":
		d, err := ParseDirection(arg)
		if err != nil {
			return err
		}
		_, err = b.Move(d)
		return err
	case "up", "down", "left", "right":
		d, _ := ParseDirection(action)
		_, err := b.Move(d)
		return err
	}
	return fmt.Errorf("%w %q for 2048 (use move)", ErrUnsupportedAction, action)
}

// String renders the grid as fixed-width text.
func (b *Board) String() string {
	var sb strings.Builder
	for _, row := range b.cells {
		for x, v := range row {
			if x > 0 {
				sb.WriteByte(' ')
			}
			if v == 0 {
				sb.WriteString("    .")
			} else {
				fmt.Fprintf(&sb, "%5d", v)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
