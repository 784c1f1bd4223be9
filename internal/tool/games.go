package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/game"
)

// GameTool drives one kind of game through the shared session manager. When
// a score store is set, a game that ends during an action records its score.
type GameTool struct {
	kind    game.Kind
	manager *game.Manager
	scores  domain.ScoreStore
	logger  *slog.Logger
}

func NewGameTool(kind game.Kind, manager *game.Manager, scores domain.ScoreStore, logger *slog.Logger) *GameTool {
	return &GameTool{kind: kind, manager: manager, scores: scores, logger: logger}
}

func (t *GameTool) Name() string { return "game_" + string(t.kind) }

func (t *GameTool) Description() string {
	switch t.kind {
	case game.Kind2048:
		return "Play 2048: start with action=new, then action=move direction=up|down|left|right."
	case game.KindSnake:
		return "Play Snake: action=new, action=turn direction=..., action=step count=N."
	default:
		return "Play the Jump runner: action=new, action=jump, action=step count=N."
	}
}

func (t *GameTool) Parameters() map[string]any {
	actions := []string{"new", "state", "delete"}
	switch t.kind {
	case game.Kind2048:
		actions = append(actions, "move")
	case game.KindSnake:
		actions = append(actions, "turn", "step")
	case game.KindJump:
		actions = append(actions, "jump", "step")
	}
	return ToolParameters(
		map[string]Param{
			"action":    {Type: "string", Description: "Game action", Enum: actions},
			"session":   {Type: "string", Description: "Session ID returned by action=new"},
			"direction": {Type: "string", Description: "Direction for move/turn", Enum: []string{"up", "down", "left", "right"}},
			"count":     {Type: "integer", Description: "Ticks to advance for step (default 1)"},
			"player":    {Type: "string", Description: "Name recorded with the final score"},
		},
		[]string{"action"},
	)
}

func (t *GameTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	action := ArgsString(args, "action")
	id := ArgsString(args, "session")

	switch action {
	case "new", "":
		v, err := t.manager.Create(t.kind)
		if err != nil {
			return "", err
		}
		return resultJSON(v)
	case "delete":
		if id == "" {
			return "", fmt.Errorf("delete requires session")
		}
		t.manager.Delete(id)
		return "deleted " + id, nil
	}

	if id == "" {
		return "", fmt.Errorf("%s requires session (start one with action=new)", action)
	}
	current, err := t.manager.Get(id)
	if err != nil {
		return "", err
	}
	if current.Kind != t.kind {
		return "", fmt.Errorf("session %s is a %s game, not %s", id, current.Kind, t.kind)
	}

	arg := ArgsString(args, "direction")
	if action == "step" {
		arg = strconv.Itoa(ArgsInt(args, "count", 1))
	}
	v, ended, err := t.manager.Apply(id, action, arg)
	if err != nil && !errors.Is(err, game.ErrGameOver) {
		return "", err
	}
	if ended {
		t.recordScore(ctx, v, ArgsString(args, "player"))
	}
	return resultJSON(v)
}

func (t *GameTool) recordScore(ctx context.Context, v game.SessionView, player string) {
	if t.scores == nil || v.Score == 0 {
		return
	}
	if player == "" {
		player = "anonymous"
	}
	if _, err := t.scores.SubmitScore(ctx, domain.Score{Game: string(v.Kind), Player: player, Value: v.Score}); err != nil {
		t.logger.Warn("failed to record score", "game", v.Kind, "err", err)
	}
}
