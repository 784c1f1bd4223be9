// Package ui runs the games as full-screen terminal programs.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/chenjy16/webtools-sub001/internal/domain"
	"github.com/chenjy16/webtools-sub001/internal/game"
)

// tickMsg advances a timed game. gen ties it to one game instance so a
// restart does not leave two tick loops running.
type tickMsg struct{ gen int }

type scoreSavedMsg struct {
	best int
	err  error
}

type Config struct {
	Kind    game.Kind
	Manager *game.Manager
	Scores  domain.ScoreStore // optional
	Player  string
	Tick    time.Duration // snake and jump
}

// Model is the bubbletea model shared by all three games.
type Model struct {
	ctx     context.Context
	kind    game.Kind
	manager *game.Manager
	scores  domain.ScoreStore
	player  string
	tick    time.Duration

	g      game.Game
	gen    int
	best   int
	saved  bool
	paused bool
	status string
}

func NewModel(ctx context.Context, cfg Config) (*Model, error) {
	if cfg.Player == "" {
		cfg.Player = "anonymous"
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	m := &Model{
		ctx:     ctx,
		kind:    cfg.Kind,
		manager: cfg.Manager,
		scores:  cfg.Scores,
		player:  cfg.Player,
		tick:    cfg.Tick,
	}
	if err := m.reset(); err != nil {
		return nil, err
	}
	if m.scores != nil {
		best, err := m.scores.BestScore(ctx, string(cfg.Kind))
		if err != nil {
			return nil, fmt.Errorf("load best score: %w", err)
		}
		m.best = best
	}
	return m, nil
}

// Run plays one game until the user quits.
func Run(ctx context.Context, cfg Config) error {
	m, err := NewModel(ctx, cfg)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) reset() error {
	g, err := m.manager.NewGame(m.kind)
	if err != nil {
		return err
	}
	m.g = g
	m.gen++
	m.saved = false
	m.paused = false
	m.status = ""
	return nil
}

func (m *Model) timed() bool { return m.kind != game.Kind2048 }

func (m *Model) tickCmd() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.tick, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

func (m *Model) Init() tea.Cmd {
	if m.timed() {
		return m.tickCmd()
	}
	return nil
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg.String())

	case tickMsg:
		if msg.gen != m.gen || m.g.Over() {
			return m, nil
		}
		if m.paused {
			return m, m.tickCmd()
		}
		m.apply("step", "")
		if m.g.Over() {
			return m, m.finish()
		}
		return m, m.tickCmd()

	case scoreSavedMsg:
		if msg.err != nil {
			m.status = "could not save score: " + msg.err.Error()
		} else if msg.best > m.best {
			m.best = msg.best
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) handleKey(key string) tea.Cmd {
	switch key {
	case "q", "esc", "ctrl+c":
		return tea.Quit
	case "r":
		if err := m.reset(); err != nil {
			m.status = err.Error()
			return nil
		}
		if m.timed() {
			return m.tickCmd()
		}
		return nil
	case "p":
		if m.timed() && !m.g.Over() {
			m.paused = !m.paused
		}
		return nil
	}

	if m.g.Over() || m.paused {
		return nil
	}

	switch m.kind {
	case game.Kind2048:
		if dir := direction(key); dir != "" {
			m.apply("move", dir)
		}
	case game.KindSnake:
		if dir := direction(key); dir != "" {
			m.apply("turn", dir)
		}
	case game.KindJump:
		switch key {
		case " ", "up", "w", "k":
			m.apply("jump", "")
		}
	}
	if m.g.Over() {
		return m.finish()
	}
	return nil
}

func direction(key string) string {
	switch key {
	case "up", "w", "k":
		return "up"
	case "down", "s", "j":
		return "down"
	case "left", "a", "h":
		return "left"
	case "right", "d", "l":
		return "right"
	}
	return ""
}

func (m *Model) apply(action, arg string) {
	if err := m.g.Apply(action, arg); err != nil && !errors.Is(err, game.ErrGameOver) {
		m.status = err.Error()
	}
}

// finish submits the final score once per game.
func (m *Model) finish() tea.Cmd {
	if m.saved {
		return nil
	}
	m.saved = true
	score := m.g.Score()
	if m.scores == nil || score == 0 {
		return nil
	}
	ctx, scores, kind, player, best := m.ctx, m.scores, m.kind, m.player, m.best
	return func() tea.Msg {
		s := domain.Score{Game: string(kind), Player: player, Value: score}
		if _, err := scores.SubmitScore(ctx, s); err != nil {
			return scoreSavedMsg{best: best, err: err}
		}
		newBest, err := scores.BestScore(ctx, string(kind))
		return scoreSavedMsg{best: newBest, err: err}
	}
}

func (m *Model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(strings.ToUpper(string(m.kind))))
	sb.WriteString("  ")
	sb.WriteString(scoreStyle.Render(fmt.Sprintf("score %d", m.g.Score())))
	sb.WriteString("  ")
	sb.WriteString(bestStyle.Render(fmt.Sprintf("best %d", max(m.best, m.g.Score()))))
	sb.WriteString("\n\n")

	if b, ok := m.g.(*game.Board); ok {
		sb.WriteString(renderBoard(b))
	} else {
		sb.WriteString(frameStyle.Render(strings.TrimRight(fmt.Sprint(m.g), "\n")))
	}
	sb.WriteString("\n")

	switch {
	case m.g.Over():
		sb.WriteString(overStyle.Render("game over"))
		sb.WriteString(" ")
	case m.paused:
		sb.WriteString(overStyle.Render("paused"))
		sb.WriteString(" ")
	}
	if m.status != "" {
		sb.WriteString(statusStyle.Render(m.status))
	}
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render(m.help()))
	return sb.String()
}

func (m *Model) help() string {
	switch m.kind {
	case game.Kind2048:
		return "arrows/wasd move • r restart • q quit"
	case game.KindSnake:
		return "arrows/wasd turn • p pause • r restart • q quit"
	}
	return "space/up jump • p pause • r restart • q quit"
}
