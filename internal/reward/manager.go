package reward

import (
	"context"
	"sync"
)

// PresenterFactory builds the presenter for a newly opened session.
type PresenterFactory func(userID string) Presenter

// Manager keeps one live Session per user in this process, so every device
// of a user shares the same serialized operation queue.
type Manager struct {
	l          *Ledger
	presenters PresenterFactory

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(l *Ledger, presenters PresenterFactory) *Manager {
	if presenters == nil {
		presenters = func(string) Presenter { return NopPresenter{} }
	}
	m := &Manager{l: l, presenters: presenters, sessions: make(map[string]*Session)}
	l.OnLogout(func(userID, _ string) { m.forget(userID) })
	return m
}

func (m *Manager) Ledger() *Ledger { return m.l }

// Get returns the user's live session, opening one if needed.
func (m *Manager) Get(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok && !s.Closed() {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s, err := m.l.Open(ctx, userID, m.presenters(userID))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[userID]; ok && !cur.Closed() {
		// lost the race to another opener
		s.Close()
		return cur, nil
	}
	m.sessions[userID] = s
	return s, nil
}

// Logout ends and forgets the user's session, if any.
func (m *Manager) Logout(userID string) {
	m.mu.Lock()
	s := m.sessions[userID]
	m.mu.Unlock()
	if s != nil {
		s.Logout()
	}
	m.forget(userID)
}

// Release detaches the user's session without notifying its presenter. The
// next Get opens a fresh one.
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	s := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (m *Manager) forget(userID string) {
	m.mu.Lock()
	if s, ok := m.sessions[userID]; ok && s.Closed() {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll detaches every session, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
