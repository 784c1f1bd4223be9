package dispatch

import "sync"

// SessionTable maps a chat ("channel:chatID") to its active analysis
// conversation. Conversations themselves live in the store.
type SessionTable struct {
	mu     sync.RWMutex
	active map[string]string
}

func NewSessionTable() *SessionTable {
	return &SessionTable{active: make(map[string]string)}
}

func (t *SessionTable) Get(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.active[key]
	return id, ok
}

func (t *SessionTable) Set(key, convID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active[key] = convID
}

// Clear reports whether a session was open.
func (t *SessionTable) Clear(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.active[key]
	delete(t.active, key)
	return ok
}

func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.active)
}
