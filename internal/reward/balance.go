package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Mutation applies an operation's non-balance field changes to the record
// being written. Returning an error aborts the write.
type Mutation func(u *domain.User) error

// BalanceStore applies a balance delta plus a Mutation as one write and
// returns the record as persisted. snapshot is the caller's view of the user.
type BalanceStore interface {
	Credit(ctx context.Context, snapshot *domain.User, delta int64, m Mutation) (*domain.User, error)
	Debit(ctx context.Context, snapshot *domain.User, delta int64, m Mutation) (*domain.User, error)
	// Update writes m without touching coins.
	Update(ctx context.Context, snapshot *domain.User, m Mutation) (*domain.User, error)
}

// apply is shared by every implementation: mutation first, then the delta.
func apply(u *domain.User, delta int64, m Mutation) error {
	if m != nil {
		if err := m(u); err != nil {
			return err
		}
	}
	if u.Coins+delta < 0 {
		return ErrInsufficientFunds
	}
	u.Coins += delta
	return nil
}

func checkDelta(delta int64) error {
	if delta <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// UserWriter is the persistence SnapshotBalances and SerialBalances need.
type UserWriter interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Save(ctx context.Context, u *domain.User) error
}

// SnapshotBalances computes the new balance from the caller's snapshot and
// overwrites the record. Two writers racing on one user lose a delta.
type SnapshotBalances struct {
	users UserWriter
}

func NewSnapshotBalances(users UserWriter) *SnapshotBalances {
	return &SnapshotBalances{users: users}
}

func (b *SnapshotBalances) write(ctx context.Context, snapshot *domain.User, delta int64, m Mutation) (*domain.User, error) {
	u := snapshot.Clone()
	if err := apply(u, delta, m); err != nil {
		return nil, err
	}
	if err := b.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (b *SnapshotBalances) Credit(ctx context.Context, s *domain.User, delta int64, m Mutation) (*domain.User, error) {
	if err := checkDelta(delta); err != nil {
		return nil, err
	}
	return b.write(ctx, s, delta, m)
}

func (b *SnapshotBalances) Debit(ctx context.Context, s *domain.User, delta int64, m Mutation) (*domain.User, error) {
	if err := checkDelta(delta); err != nil {
		return nil, err
	}
	return b.write(ctx, s, -delta, m)
}

func (b *SnapshotBalances) Update(ctx context.Context, s *domain.User, m Mutation) (*domain.User, error) {
	return b.write(ctx, s, 0, m)
}

const lockStripes = 64

// SerialBalances re-reads the user under a per-user lock, so writers in this
// process never overwrite each other's deltas.
type SerialBalances struct {
	users UserWriter
	locks [lockStripes]sync.Mutex
}

func NewSerialBalances(users UserWriter) *SerialBalances {
	return &SerialBalances{users: users}
}

func (b *SerialBalances) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &b.locks[h.Sum32()%lockStripes]
}

func (b *SerialBalances) write(ctx context.Context, snapshot *domain.User, delta int64, m Mutation) (*domain.User, error) {
	l := b.lock(snapshot.ID)
	l.Lock()
	defer l.Unlock()

	u, err := b.users.GetByID(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	if err := apply(u, delta, m); err != nil {
		return nil, err
	}
	if err := b.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (b *SerialBalances) Credit(ctx context.Context, s *domain.User, delta int64, m Mutation) (*domain.User, error) {
	if err := checkDelta(delta); err != nil {
		return nil, err
	}
	return b.write(ctx, s, delta, m)
}

func (b *SerialBalances) Debit(ctx context.Context, s *domain.User, delta int64, m Mutation) (*domain.User, error) {
	if err := checkDelta(delta); err != nil {
		return nil, err
	}
	return b.write(ctx, s, -delta, m)
}

func (b *SerialBalances) Update(ctx context.Context, s *domain.User, m Mutation) (*domain.User, error) {
	return b.write(ctx, s, 0, m)
}

// AtomicBalances delegates the read-modify-write to the store: a row lock
// on Postgres, WATCH/MULTI on Redis, the store mutex in memory.
type AtomicBalances struct {
	st store.Updater
}

func NewAtomicBalances(st store.Updater) *AtomicBalances {
	return &AtomicBalances{st: st}
}

func (b *AtomicBalances) write(ctx context.Context, snapshot *domain.User, delta int64, m Mutation) (*domain.User, error) {
	var out domain.User
	_, err := b.st.Update(ctx, repository.UserPath(snapshot.ID), func(cur json.RawMessage) (any, error) {
		if cur == nil {
			return nil, repository.ErrUserNotFound
		}
		out = domain.User{}
		if err := json.Unmarshal(cur, &out); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		if err := apply(&out, delta, m); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *AtomicBalances) Credit(ctx context.Context, s *domain.User, delta int64, m Mutation) (*domain.User, error) {
	if err := checkDelta(delta); err != nil {
		return nil, err
	}
	return b.write(ctx, s, delta, m)
}

func (b *AtomicBalances) Debit(ctx context.Context, s *domain.User, delta int64, m Mutation) (*domain.User, error) {
	if err := checkDelta(delta); err != nil {
		return nil, err
	}
	return b.write(ctx, s, -delta, m)
}

func (b *AtomicBalances) Update(ctx context.Context, s *domain.User, m Mutation) (*domain.User, error) {
	return b.write(ctx, s, 0, m)
}
