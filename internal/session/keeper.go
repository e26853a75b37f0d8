// Package session tracks issued login sessions so tokens can be revoked
// before they expire.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

// Keeper maps session ids to user ids.
type Keeper interface {
	Create(ctx context.Context, userID string) (sid string, err error)
	Lookup(ctx context.Context, sid string) (userID string, err error)
	Revoke(ctx context.Context, sid string) error
	// RevokeUser drops every session of userID.
	RevokeUser(ctx context.Context, userID string) error
}

type memEntry struct {
	userID  string
	expires time.Time
}

// Memory is a process-local Keeper.
type Memory struct {
	ttl   time.Duration
	clock clock.Clock

	mu     sync.Mutex
	bySID  map[string]memEntry
	byUser map[string]map[string]struct{}
}

func NewMemory(ttl time.Duration, clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Memory{
		ttl:    ttl,
		clock:  clk,
		bySID:  make(map[string]memEntry),
		byUser: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Create(_ context.Context, userID string) (string, error) {
	sid := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bySID[sid] = memEntry{userID: userID, expires: m.clock.Now().Add(m.ttl)}
	set := m.byUser[userID]
	if set == nil {
		set = make(map[string]struct{})
		m.byUser[userID] = set
	}
	set[sid] = struct{}{}
	return sid, nil
}

func (m *Memory) Lookup(_ context.Context, sid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.bySID[sid]
	if !ok {
		return "", ErrNotFound
	}
	if !m.clock.Now().Before(e.expires) {
		m.drop(sid)
		return "", ErrNotFound
	}
	return e.userID, nil
}

func (m *Memory) Revoke(_ context.Context, sid string) error {
	m.mu.Lock()
	m.drop(sid)
	m.mu.Unlock()
	return nil
}

func (m *Memory) RevokeUser(_ context.Context, userID string) error {
	m.mu.Lock()
	for sid := range m.byUser[userID] {
		delete(m.bySID, sid)
	}
	delete(m.byUser, userID)
	m.mu.Unlock()
	return nil
}

// drop must be called with mu held.
func (m *Memory) drop(sid string) {
	e, ok := m.bySID[sid]
	if !ok {
		return
	}
	delete(m.bySID, sid)
	if set := m.byUser[e.userID]; set != nil {
		delete(set, sid)
		if len(set) == 0 {
			delete(m.byUser, e.userID)
		}
	}
}
