package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// Memory is an in-process Store. Notifications are delivered synchronously
// after the write is applied.
type Memory struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
	subs    *fanout

	// failWrites makes every Set/Update fail, for outage tests.
	failWrites error
}

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]json.RawMessage),
		subs:    newFanout(),
	}
}

// FailWrites makes subsequent writes return err until called with nil.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	m.failWrites = err
	m.mu.Unlock()
}

func (m *Memory) Get(_ context.Context, path string) (json.RawMessage, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.records[p]
	if !ok {
		return nil, ErrNotFound
	}
	return append(json.RawMessage(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, path string, value any) error {
	p, err := Clean(path)
	if err != nil {
		return err
	}

	raw, err := toRecord(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.failWrites != nil {
		err := m.failWrites
		m.mu.Unlock()
		return err
	}
	m.apply(p, raw)
	m.mu.Unlock()

	m.subs.publish(Event{Path: p, Value: raw})
	return nil
}

// apply must be called with mu held.
func (m *Memory) apply(p string, raw json.RawMessage) {
	if raw == nil {
		delete(m.records, p)
		prefix := p + "/"
		for k := range m.records {
			if strings.HasPrefix(k, prefix) {
				delete(m.records, k)
			}
		}
		return
	}
	m.records[p] = append(json.RawMessage(nil), raw...)
}

func (m *Memory) Update(_ context.Context, path string, fn UpdateFunc) (json.RawMessage, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.failWrites != nil {
		err := m.failWrites
		m.mu.Unlock()
		return nil, err
	}
	var current json.RawMessage
	if v, ok := m.records[p]; ok {
		current = append(json.RawMessage(nil), v...)
	}
	next, err := fn(current)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	raw, err := toRecord(next)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.apply(p, raw)
	m.mu.Unlock()

	m.subs.publish(Event{Path: p, Value: raw})
	return raw, nil
}

func (m *Memory) List(_ context.Context, collection string) (map[string]json.RawMessage, error) {
	c, err := Clean(collection)
	if err != nil {
		return nil, err
	}
	prefix := c + "/"

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage)
	for k, v := range m.records {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if strings.Contains(rest, "/") {
			continue
		}
		out[rest] = append(json.RawMessage(nil), v...)
	}
	return out, nil
}

func (m *Memory) Subscribe(_ context.Context, path string, fn Handler) (func(), error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, errors.New("store: nil handler")
	}
	return m.subs.add(p, fn), nil
}

func (m *Memory) Close() error { return nil }
