package repository

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already registered")
	ErrReferralCodeTaken = errors.New("referral code collision")
)

type indexEntry struct {
	UserID string `json:"user_id"`
}

type UserRepository struct {
	st store.Store
}

func NewUserRepository(st store.Store) *UserRepository {
	return &UserRepository{st: st}
}

func UserPath(id string) string { return store.Join(store.Users, id) }

// emails can contain characters that are not path safe
func emailKey(email string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(NormalizeEmail(email)))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormalizeReferralCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GenerateReferralCode returns an 8 character upper-case hex code.
func GenerateReferralCode() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return strings.ToUpper(hex.EncodeToString(b))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" || strings.Contains(id, "/") {
		return nil, ErrUserNotFound
	}
	var u domain.User
	if err := get(ctx, r.st, UserPath(id), &u, ErrUserNotFound); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) lookup(ctx context.Context, path string) (*domain.User, error) {
	var e indexEntry
	if err := get(ctx, r.st, path, &e, ErrUserNotFound); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, e.UserID)
}

// GetByEmail is case-insensitive.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if NormalizeEmail(email) == "" {
		return nil, ErrUserNotFound
	}
	return r.lookup(ctx, store.Join(store.EmailIndex, emailKey(email)))
}

// GetByReferralCode is case-insensitive.
func (r *UserRepository) GetByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	code = NormalizeReferralCode(code)
	if code == "" {
		return nil, ErrUserNotFound
	}
	return r.lookup(ctx, store.Join(store.ReferralCodeIndex, code))
}

// Create assigns id and referral code when missing, then writes the record
// followed by its indexes.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	u.Email = NormalizeEmail(u.Email)
	if _, err := r.GetByEmail(ctx, u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = domain.RoleUser
	}
	u.ReferralCode = NormalizeReferralCode(u.ReferralCode)
	if u.ReferralCode == "" {
		code, err := r.freeReferralCode(ctx)
		if err != nil {
			return err
		}
		u.ReferralCode = code
	}

	if err := r.st.Set(ctx, UserPath(u.ID), u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if err := r.st.Set(ctx, store.Join(store.EmailIndex, emailKey(u.Email)), indexEntry{UserID: u.ID}); err != nil {
		return fmt.Errorf("index email: %w", err)
	}
	if err := r.st.Set(ctx, store.Join(store.ReferralCodeIndex, u.ReferralCode), indexEntry{UserID: u.ID}); err != nil {
		return fmt.Errorf("index referral code: %w", err)
	}
	return nil
}

func (r *UserRepository) freeReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < 5; i++ { // retry on collision
		code := GenerateReferralCode()
		_, err := r.st.Get(ctx, store.Join(store.ReferralCodeIndex, code))
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrReferralCodeTaken
}

// Save overwrites the whole record.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) error {
	return r.st.Set(ctx, UserPath(u.ID), u)
}

// List returns all users, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]*domain.User, error) {
	users, err := listAll[domain.User](ctx, r.st, store.Users)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].AccountCreatedAt.Before(users[j].AccountCreatedAt)
	})
	return users, nil
}

// Search matches id, email, name or referral code (case-insensitive substring).
func (r *UserRepository) Search(ctx context.Context, q string) ([]*domain.User, error) {
	users, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return users, nil
	}
	var out []*domain.User
	for _, u := range users {
		if u.ID == q ||
			strings.Contains(u.Email, q) ||
			strings.Contains(strings.ToLower(u.Name), q) ||
			strings.EqualFold(u.ReferralCode, q) {
			out = append(out, u)
		}
	}
	return out, nil
}

// Delete removes the record and its index entries.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.st.Set(ctx, UserPath(id), nil); err != nil {
		return err
	}
	_ = r.st.Set(ctx, store.Join(store.EmailIndex, emailKey(u.Email)), nil)
	_ = r.st.Set(ctx, store.Join(store.ReferralCodeIndex, u.ReferralCode), nil)
	return nil
}
