package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"

	"github.com/google/uuid"
)

var (
	ErrAnnouncementNotFound = errors.New("announcement not found")
	ErrTicketNotFound       = errors.New("support message not found")
	ErrResetNotFound        = errors.New("password reset request not found")
)

type AnnouncementRepository struct {
	st store.Store
}

func NewAnnouncementRepository(st store.Store) *AnnouncementRepository {
	return &AnnouncementRepository{st: st}
}

func (r *AnnouncementRepository) Create(ctx context.Context, a *domain.Announcement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return r.st.Set(ctx, store.Join(store.Announcements, a.ID), a)
}

func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	var a domain.Announcement
	if err := get(ctx, r.st, store.Join(store.Announcements, id), &a, ErrAnnouncementNotFound); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AnnouncementRepository) Save(ctx context.Context, a *domain.Announcement) error {
	return r.st.Set(ctx, store.Join(store.Announcements, a.ID), a)
}

func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	return r.st.Set(ctx, store.Join(store.Announcements, id), nil)
}

// List returns announcements newest first.
func (r *AnnouncementRepository) List(ctx context.Context) ([]*domain.Announcement, error) {
	all, err := listAll[domain.Announcement](ctx, r.st, store.Announcements)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

type SupportRepository struct {
	st store.Store
}

func NewSupportRepository(st store.Store) *SupportRepository {
	return &SupportRepository{st: st}
}

func (r *SupportRepository) Create(ctx context.Context, m *domain.SupportMessage) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return r.Save(ctx, m)
}

func (r *SupportRepository) Save(ctx context.Context, m *domain.SupportMessage) error {
	return r.st.Set(ctx, store.Join(store.SupportMessages, m.ID), m)
}

func (r *SupportRepository) GetByID(ctx context.Context, id string) (*domain.SupportMessage, error) {
	var m domain.SupportMessage
	if err := get(ctx, r.st, store.Join(store.SupportMessages, id), &m, ErrTicketNotFound); err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns threads most recently updated first.
func (r *SupportRepository) List(ctx context.Context) ([]*domain.SupportMessage, error) {
	all, err := listAll[domain.SupportMessage](ctx, r.st, store.SupportMessages)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	return all, nil
}

func (r *SupportRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.SupportMessage, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.SupportMessage
	for _, m := range all {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

type PasswordResetRepository struct {
	st store.Store
}

func NewPasswordResetRepository(st store.Store) *PasswordResetRepository {
	return &PasswordResetRepository{st: st}
}

func (r *PasswordResetRepository) Create(ctx context.Context, p *domain.PasswordResetRequest) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return r.Save(ctx, p)
}

func (r *PasswordResetRepository) Save(ctx context.Context, p *domain.PasswordResetRequest) error {
	return r.st.Set(ctx, store.Join(store.PasswordResetRequests, p.ID), p)
}

func (r *PasswordResetRepository) GetByID(ctx context.Context, id string) (*domain.PasswordResetRequest, error) {
	var p domain.PasswordResetRequest
	if err := get(ctx, r.st, store.Join(store.PasswordResetRequests, id), &p, ErrResetNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns requests newest first.
func (r *PasswordResetRepository) List(ctx context.Context) ([]*domain.PasswordResetRequest, error) {
	all, err := listAll[domain.PasswordResetRequest](ctx, r.st, store.PasswordResetRequests)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

// GetPendingByUserID returns the newest pending request for a user.
func (r *PasswordResetRepository) GetPendingByUserID(ctx context.Context, userID string) (*domain.PasswordResetRequest, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.UserID == userID && p.Status == domain.PasswordResetPending {
			return p, nil
		}
	}
	return nil, ErrResetNotFound
}
