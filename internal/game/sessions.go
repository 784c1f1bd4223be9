package game

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chenjy16/webtools-sub001/internal/metrics"
)

// ManagerConfig sizes new games and caps the number of live sessions.
type ManagerConfig struct {
	Twenty48Size int
	SnakeWidth   int
	SnakeHeight  int
	SnakeWrap    bool
	JumpWidth    int
	JumpHeight   int
	MaxSessions  int
	// Seed fixes the RNG for reproducible games; 0 seeds from the clock.
	Seed   uint64
	Logger *slog.Logger
}

// Session is a live game addressed by ID.
type Session struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"game"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	game      Game
}

// SessionView is the serialisable session with its game state.
type SessionView struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"game"`
	Score     int       `json:"score"`
	Over      bool      `json:"over"`
	State     any       `json:"state"`
	Render    string    `json:"render,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Manager owns game sessions. Every operation on a session runs under the
// manager's lock, so engines themselves need no synchronisation.
type Manager struct {
	cfg      ManagerConfig
	logger   *slog.Logger
	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
	seq      uint64
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 256
	}
	if cfg.Twenty48Size == 0 {
		cfg.Twenty48Size = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		logger:   cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// NewGame builds an engine of kind without registering a session.
func (m *Manager) NewGame(kind Kind) (Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newGameLocked(kind)
}

func (m *Manager) newGameLocked(kind Kind) (Game, error) {
	m.seq++
	seed := m.cfg.Seed + m.seq
	if m.cfg.Seed == 0 {
		seed = uint64(time.Now().UnixNano()) + m.seq
	}
	rng := NewRand(seed)
	switch kind {
	case Kind2048:
		return NewBoard(m.cfg.Twenty48Size, rng), nil
	case KindSnake:
		return NewSnake(m.cfg.SnakeWidth, m.cfg.SnakeHeight, m.cfg.SnakeWrap, rng), nil
	case KindJump:
		return NewJump(m.cfg.JumpWidth, m.cfg.JumpHeight, rng), nil
	}
	return nil, fmt.Errorf("unknown game %q", kind)
}

// Create starts a new session, evicting the oldest when at capacity.
func (m *Manager) Create(kind Kind) (SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, err := m.newGameLocked(kind)
	if err != nil {
		return SessionView{}, err
	}
	for len(m.order) >= m.cfg.MaxSessions {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.sessions, oldest)
		m.logger.Debug("evicted game session", "id", oldest)
	}

	now := time.Now()
	s := &Session{ID: uuid.NewString(), Kind: kind, CreatedAt: now, UpdatedAt: now, game: g}
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	metrics.ActiveGames.Set(int64(len(m.sessions)))
	m.logger.Debug("created game session", "id", s.ID, "game", kind)
	return view(s), nil
}

// Get returns the session's current view.
func (m *Manager) Get(id string) (SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return SessionView{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return view(s), nil
}

// Apply runs an action on the session's game and returns the new view.
// ended is true only for the call that moved the game to over, so exactly
// one caller sees the transition however many race on the last move.
// Actions on a finished game return ErrGameOver with the final view.
func (m *Manager) Apply(id, action, arg string) (v SessionView, ended bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return SessionView{}, false, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if action == "state" {
		return view(s), false, nil
	}
	wasOver := s.game.Over()
	err = s.game.Apply(action, arg)
	s.UpdatedAt = time.Now()
	v = view(s)
	return v, v.Over && !wasOver, err
}

// Delete removes a session. Unknown IDs are not an error.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return
	}
	delete(m.sessions, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	metrics.ActiveGames.Set(int64(len(m.sessions)))
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func view(s *Session) SessionView {
	var render string
	if str, ok := s.game.(fmt.Stringer); ok {
		render = str.String()
	}
	return SessionView{
		ID:        s.ID,
		Kind:      s.Kind,
		Score:     s.game.Score(),
		Over:      s.game.Over(),
		State:     s.game.State(),
		Render:    render,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}
