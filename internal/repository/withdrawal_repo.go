package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"

	"github.com/google/uuid"
)

var (
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWithdrawalNotPending = errors.New("withdrawal already resolved")
)

type WithdrawalRepository struct {
	st store.Store
}

func NewWithdrawalRepository(st store.Store) *WithdrawalRepository {
	return &WithdrawalRepository{st: st}
}

func withdrawalPath(id string) string { return store.Join(store.Withdrawals, id) }

// Create stores a new request; ID is assigned when empty.
func (r *WithdrawalRepository) Create(ctx context.Context, w *domain.WithdrawalRequest) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = domain.WithdrawalStatusPending
	}
	if err := r.st.Set(ctx, withdrawalPath(w.ID), w); err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

// GetByID retrieves withdrawal by ID
func (r *WithdrawalRepository) GetByID(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	if err := get(ctx, r.st, withdrawalPath(id), &w, ErrWithdrawalNotFound); err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateStatus moves a PENDING request to a terminal status. It fails with
// ErrWithdrawalNotPending when the request was already resolved, atomically
// when the store supports it.
func (r *WithdrawalRepository) UpdateStatus(ctx context.Context, id string, status domain.WithdrawalStatus, at time.Time) (*domain.WithdrawalRequest, error) {
	if !status.Terminal() {
		return nil, fmt.Errorf("invalid target status %q", status)
	}

	transition := func(w *domain.WithdrawalRequest) error {
		if w.Status != domain.WithdrawalStatusPending {
			return ErrWithdrawalNotPending
		}
		w.Status = status
		w.ResolvedAt = &at
		return nil
	}

	if u, ok := r.st.(store.Updater); ok {
		var out domain.WithdrawalRequest
		_, err := u.Update(ctx, withdrawalPath(id), func(cur json.RawMessage) (any, error) {
			if cur == nil {
				return nil, ErrWithdrawalNotFound
			}
			if err := json.Unmarshal(cur, &out); err != nil {
				return nil, err
			}
			if err := transition(&out); err != nil {
				return nil, err
			}
			return &out, nil
		})
		if err != nil {
			return nil, err
		}
		return &out, nil
	}

	w, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(w); err != nil {
		return nil, err
	}
	if err := r.st.Set(ctx, withdrawalPath(id), w); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes a request. Only used to roll back a failed submission.
func (r *WithdrawalRepository) Delete(ctx context.Context, id string) error {
	return r.st.Set(ctx, withdrawalPath(id), nil)
}

// List returns all requests, newest first.
func (r *WithdrawalRepository) List(ctx context.Context) ([]*domain.WithdrawalRequest, error) {
	all, err := listAll[domain.WithdrawalRequest](ctx, r.st, store.Withdrawals)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// GetByUserID retrieves all withdrawals for a user, newest first
func (r *WithdrawalRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.WithdrawalRequest, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.WithdrawalRequest
	for _, w := range all {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

// GetPending returns pending requests, oldest first
func (r *WithdrawalRepository) GetPending(ctx context.Context) ([]*domain.WithdrawalRequest, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.WithdrawalRequest
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].Status == domain.WithdrawalStatusPending {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// HasAny reports whether the user ever submitted a request.
func (r *WithdrawalRepository) HasAny(ctx context.Context, userID string) (bool, error) {
	mine, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	return len(mine) > 0, nil
}
