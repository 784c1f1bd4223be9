// Package game implements the tick-driven game engines: a 2048 sliding-tile
// board, Snake and a side-scrolling Jump runner. Engines are single-threaded;
// the session Manager serialises access when they are shared.
package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

var (
	// ErrGameOver is returned by moves on a finished game.
	ErrGameOver = errors.New("game over")
	// ErrSessionNotFound is returned for unknown session IDs.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrUnsupportedAction is returned when a game does not know an action.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// Direction is a move or heading on the grid.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Opposite returns the reverse heading.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

// ParseDirection accepts up/down/left/right, their initials, and WASD.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u", "w", "north":
		return Up, nil
	case "down", "d", "s", "south":
		return Down, nil
	case "left", "l", "a", "west":
		return Left, nil
	case "right", "r", "east":
		return Right, nil
	}
	return 0, fmt.Errorf("invalid direction %q (use up, down, left or right)", s)
}

// Kind names a game type.
type Kind string

const (
	Kind2048  Kind = "2048"
	KindSnake Kind = "snake"
	KindJump  Kind = "jump"
)

// ParseKind maps user input to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "2048", "twenty48", "game_2048":
		return Kind2048, nil
	case "snake", "game_snake":
		return KindSnake, nil
	case "jump", "runner", "game_jump":
		return KindJump, nil
	}
	return "", fmt.Errorf("unknown game %q (use 2048, snake or jump)", s)
}

// Game is the common surface of every engine.
type Game interface {
	Kind() Kind
	Score() int
	Over() bool
	// State returns a JSON-serialisable snapshot.
	State() any
	// Apply performs a named action such as "move", "turn", "step" or "jump".
	Apply(action, arg string) error
}

// NewRand returns a deterministic PCG-backed generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
