package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("store: not found")
	ErrInvalidPath = errors.New("store: invalid path")
	ErrConflict    = errors.New("store: concurrent update conflict")
)

// Top-level collections.
const (
	Users                 = "users"
	Settings              = "settings"
	Withdrawals           = "withdrawals"
	AdRotation            = "adRotation"
	AdMobIDs              = "adMobIds"
	PasswordResetRequests = "passwordResetRequests"
	Announcements         = "announcements"
	SupportMessages       = "supportMessages"
	AuditLogs             = "auditLogs"

	EmailIndex        = "index/emails"
	ReferralCodeIndex = "index/referralCodes"
)

// Event describes a write. Value is nil when Path was deleted.
type Event struct {
	Path  string
	Value json.RawMessage
}

func (e Event) Deleted() bool { return e.Value == nil }

type Handler func(Event)

// Store is a path-keyed record store without multi-path transactions.
type Store interface {
	// Get returns the record at path or ErrNotFound.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Set writes value as JSON at path. A nil value deletes path and everything below it.
	Set(ctx context.Context, path string, value any) error
	// List returns the direct children of collection keyed by their last path segment.
	List(ctx context.Context, collection string) (map[string]json.RawMessage, error)
	// Subscribe calls fn for every write at, below, or above path.
	Subscribe(ctx context.Context, path string, fn Handler) (func(), error)
	Close() error
}

// UpdateFunc receives the current value (nil if absent) and returns the
// replacement. Returning an error aborts the update.
type UpdateFunc func(current json.RawMessage) (any, error)

// Updater is implemented by stores that can apply a read-modify-write to a
// single path atomically.
type Updater interface {
	Update(ctx context.Context, path string, fn UpdateFunc) (json.RawMessage, error)
}

// Join builds a clean path from segments.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "/")
}

// Clean normalizes a path and rejects empty or dotted segments.
func Clean(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return path, nil
}

// Parent returns everything before the last segment ("" for top level).
func Parent(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[:i]
	}
	return ""
}

// Base returns the last path segment.
func Base(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Affects reports whether a write at written is visible to a subscriber of sub.
func Affects(sub, written string) bool {
	return written == sub ||
		strings.HasPrefix(written, sub+"/") ||
		strings.HasPrefix(sub, written+"/")
}

// Decode reads path into v.
func Decode(ctx context.Context, s Store, path string, v any) error {
	raw, err := s.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func encode(value any) (json.RawMessage, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if !json.Valid(raw) {
			return nil, errors.New("store: invalid raw json")
		}
		return raw, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// toRecord encodes value; a nil result means delete.
func toRecord(value any) (json.RawMessage, error) {
	if isNil(value) {
		return nil, nil
	}
	raw, err := encode(value)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}
	return raw, nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	if raw, ok := value.(json.RawMessage); ok && raw == nil {
		return true
	}
	return false
}
