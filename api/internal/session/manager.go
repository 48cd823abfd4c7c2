package session

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Manager hands out one Session per chat.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewManager(deps Deps) *Manager {
	deps.defaults()
	return &Manager{deps: deps, sessions: make(map[int64]*Session)}
}

// Get returns the chat's session, creating it (and restoring saved drafts) on first use.
func (m *Manager) Get(ctx context.Context, chatID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[chatID]; ok {
		return s
	}
	s := New(chatID, m.deps)
	if m.deps.Drafts != nil {
		drafts, err := m.deps.Drafts.LoadDrafts(ctx, chatID)
		if err != nil {
			m.deps.Logger.Warn("load drafts failed", zap.Int64("chat_id", chatID), zap.Error(err))
		} else {
			s.restore(drafts)
		}
	}
	m.sessions[chatID] = s
	return s
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
