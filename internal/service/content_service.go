package service

import (
	"context"
	"strings"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
)

// AnnouncementService manages admin announcements and per-user seen markers.
type AnnouncementService struct {
	repo   *repository.AnnouncementRepository
	ledger *reward.Ledger
}

func NewAnnouncementService(repo *repository.AnnouncementRepository, ledger *reward.Ledger) *AnnouncementService {
	return &AnnouncementService{repo: repo, ledger: ledger}
}

func (s *AnnouncementService) List(ctx context.Context) ([]*domain.Announcement, error) {
	return s.repo.List(ctx)
}

func (s *AnnouncementService) Create(ctx context.Context, title, message string) (*domain.Announcement, error) {
	title, message = strings.TrimSpace(title), strings.TrimSpace(message)
	if title == "" || message == "" {
		return nil, &ValidationError{Msg: "Title and message are required."}
	}
	a := &domain.Announcement{Title: title, Message: message, CreatedAt: s.ledger.Clock().Now()}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Update changes the text but keeps the original timestamp.
func (s *AnnouncementService) Update(ctx context.Context, id, title, message string) (*domain.Announcement, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t := strings.TrimSpace(title); t != "" {
		a.Title = t
	}
	if m := strings.TrimSpace(message); m != "" {
		a.Message = m
	}
	if err := s.repo.Save(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// MarkSeen stamps the user's last seen announcement time with now.
func (s *AnnouncementService) MarkSeen(ctx context.Context, userID string) error {
	now := s.ledger.Clock().Now()
	_, err := s.ledger.UpdateUser(ctx, userID, func(u *domain.User) error {
		u.LastSeenAnnouncementTimestamp = &now
		return nil
	})
	return err
}

// HasNew reports whether the newest announcement is newer than the user's
// last seen marker. A user who never looked sees any announcement as new.
func HasNew(u *domain.User, list []*domain.Announcement) bool {
	if len(list) == 0 {
		return false
	}
	latest := list[0]
	for _, a := range list[1:] {
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if u.LastSeenAnnouncementTimestamp == nil {
		return true
	}
	return latest.CreatedAt.After(*u.LastSeenAnnouncementTimestamp)
}

var ErrTicketClosed = &ValidationError{Msg: "This conversation has been closed."}

// SupportService runs user support threads.
type SupportService struct {
	repo  *repository.SupportRepository
	users *repository.UserRepository
	clock clock.Clock
}

func NewSupportService(repo *repository.SupportRepository, users *repository.UserRepository, clk clock.Clock) *SupportService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &SupportService{repo: repo, users: users, clock: clk}
}

// Open starts a thread; the first message is also the first reply.
func (s *SupportService) Open(ctx context.Context, userID, subject, message string) (*domain.SupportMessage, error) {
	subject, message = strings.TrimSpace(subject), strings.TrimSpace(message)
	if subject == "" || message == "" {
		return nil, &ValidationError{Msg: "Subject and message are required."}
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	m := &domain.SupportMessage{
		UserID:    u.ID,
		UserName:  u.Name,
		UserEmail: u.Email,
		Subject:   subject,
		Message:   message,
		Status:    domain.SupportStatusOpen,
		Replies:   []domain.SupportReply{{Sender: domain.SupportSenderUser, Message: message, CreatedAt: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SupportService) ForUser(ctx context.Context, userID string) ([]*domain.SupportMessage, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *SupportService) All(ctx context.Context) ([]*domain.SupportMessage, error) {
	return s.repo.List(ctx)
}

// Reply appends to a thread. Users may only reply to their own open
// threads; an admin reply is accepted on any thread.
func (s *SupportService) Reply(ctx context.Context, id, userID string, sender domain.SupportSender, message string) (*domain.SupportMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, &ValidationError{Msg: "Message cannot be empty."}
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sender == domain.SupportSenderUser {
		if m.UserID != userID {
			return nil, repository.ErrTicketNotFound
		}
		if m.Status == domain.SupportStatusClosed {
			return nil, ErrTicketClosed
		}
	}
	now := s.clock.Now()
	m.Replies = append(m.Replies, domain.SupportReply{Sender: sender, Message: message, CreatedAt: now})
	m.UpdatedAt = now
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SupportService) Close(ctx context.Context, id string) (*domain.SupportMessage, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Status = domain.SupportStatusClosed
	m.UpdatedAt = s.clock.Now()
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}
