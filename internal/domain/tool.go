package domain

import "context"

// Tool is one self-contained utility reachable from every channel: an
// encoder, a formatter, a game and so on. Parameters returns a JSON Schema
// object describing the args Execute accepts.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) (string, error)
}
