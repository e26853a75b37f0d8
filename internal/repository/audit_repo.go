package repository

import (
	"context"
	"sort"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"

	"github.com/google/uuid"
)

// AuditRepository handles audit log storage
type AuditRepository struct {
	st store.Store
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(st store.Store) *AuditRepository {
	return &AuditRepository{st: st}
}

// Create inserts a new audit log entry
func (r *AuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	return r.st.Set(ctx, store.Join(store.AuditLogs, log.ID), log)
}

// List returns the newest entries first, at most limit when limit > 0.
func (r *AuditRepository) List(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	all, err := listAll[domain.AuditLog](ctx, r.st, store.AuditLogs)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// GetByUserID returns audit logs for a user
func (r *AuditRepository) GetByUserID(ctx context.Context, userID string, limit int) ([]*domain.AuditLog, error) {
	all, err := r.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []*domain.AuditLog
	for _, l := range all {
		if l.UserID == userID {
			out = append(out, l)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// GetByAction returns recent entries of one action, e.g. auto bans.
func (r *AuditRepository) GetByAction(ctx context.Context, action string, limit int) ([]*domain.AuditLog, error) {
	all, err := r.List(ctx, 0)
	if err != nil {
		return nil, err
	}
	var out []*domain.AuditLog
	for _, l := range all {
		if l.Action == action {
			out = append(out, l)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
