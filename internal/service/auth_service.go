package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/session"

	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountSuspended   = errors.New("account suspended")
	ErrSessionRevoked     = errors.New("session revoked")
)

// ValidationError is an input problem with a user-facing message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

type RegisterInput struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referral_code"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Token    string         `json:"token"`
	User     *domain.User   `json:"user"`
	IsAdmin  bool           `json:"is_admin"`
	Welcome  *reward.Result `json:"welcome,omitempty"`
	Referral *reward.Result `json:"referral,omitempty"`
}

type AuthService struct {
	users    *repository.UserRepository
	sessions *reward.Manager
	keeper   session.Keeper
	audit    *AuditService
	clock    clock.Clock
}

// NewAuthService wires login sessions to the ledger: a session that the
// ledger logs out for a ban or deletion has its tokens revoked.
func NewAuthService(users *repository.UserRepository, sessions *reward.Manager, keeper session.Keeper, audit *AuditService) *AuthService {
	s := &AuthService{
		users:    users,
		sessions: sessions,
		keeper:   keeper,
		audit:    audit,
		clock:    sessions.Ledger().Clock(),
	}
	sessions.Ledger().OnLogout(func(userID, reason string) {
		if reason == "logout" {
			return
		}
		if err := keeper.RevokeUser(context.Background(), userID); err != nil {
			logger.Warn("revoke sessions failed", "user_id", userID, "reason", reason, "error", err)
		}
	})
	return s
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := repository.NormalizeEmail(in.Email)
	if name == "" {
		return nil, &ValidationError{Msg: "Please enter your name."}
	}
	if !strings.Contains(email, "@") {
		return nil, &ValidationError{Msg: "Please enter a valid email address."}
	}
	if len(in.Password) < MinPasswordLength {
		return nil, &ValidationError{Msg: fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength)}
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:            email,
		Name:             name,
		PasswordHash:     hash,
		Role:             domain.RoleUser,
		AccountCreatedAt: s.clock.Now(),
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, &ValidationError{Msg: "An account with this email already exists."}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.audit.Log(ctx, u.ID, domain.AuditActionRegister, domain.AuditCategoryAuth, nil)

	res, sess, err := s.start(ctx, u)
	if err != nil {
		return nil, err
	}
	if code := strings.TrimSpace(in.ReferralCode); code != "" {
		r := sess.ApplyReferralCode(ctx, code)
		res.Referral = &r
	}
	res.User = sess.State().User
	return res, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if u.IsBanned {
		return nil, ErrAccountSuspended
	}
	s.audit.Log(ctx, u.ID, domain.AuditActionLogin, domain.AuditCategoryAuth, nil)

	res, sess, err := s.start(ctx, u)
	if err != nil {
		return nil, err
	}
	res.User = sess.State().User
	return res, nil
}

// start issues a token, attaches the ledger session and applies the
// welcome bonus if it is still owed.
func (s *AuthService) start(ctx context.Context, u *domain.User) (*AuthResult, *reward.Session, error) {
	sess, err := s.sessions.Get(ctx, u.ID)
	if errors.Is(err, reward.ErrSuspended) {
		return nil, nil, ErrAccountSuspended
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open ledger session: %w", err)
	}
	sid, err := s.keeper.Create(ctx, u.ID)
	if err != nil {
		return nil, nil, err
	}
	token, err := GenerateJWT(u.ID, u.Role, sid, s.clock.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("sign token: %w", err)
	}

	res := &AuthResult{Token: token, IsAdmin: u.IsAdmin()}
	if r := sess.ApplyWelcomeBonus(ctx); r.OK {
		res.Welcome = &r
	}
	return res, sess, nil
}

// Authenticate parses the token and checks that its session is still live.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := ParseJWT(token, s.clock.Now())
	if err != nil {
		return nil, err
	}
	userID, err := s.keeper.Lookup(ctx, claims.SessionID)
	if errors.Is(err, session.ErrNotFound) || (err == nil && userID != claims.UserID()) {
		return nil, ErrSessionRevoked
	}
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Logout revokes the token's session and detaches the ledger session
// quietly; other devices reattach on their next request.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	s.sessions.Release(claims.UserID())
	s.audit.Log(ctx, claims.UserID(), domain.AuditActionLogout, domain.AuditCategoryAuth, nil)
	return s.keeper.Revoke(ctx, claims.SessionID)
}

// RevokeAll drops every login session of userID.
func (s *AuthService) RevokeAll(ctx context.Context, userID string) error {
	return s.keeper.RevokeUser(ctx, userID)
}

// SetPassword replaces the user's password hash and revokes their sessions.
func (s *AuthService) SetPassword(ctx context.Context, userID, password string) error {
	return setPassword(ctx, s.sessions.Ledger(), s.keeper, userID, password)
}

func setPassword(ctx context.Context, l *reward.Ledger, keeper session.Keeper, userID, password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{Msg: fmt.Sprintf("Password must be at least %d characters.", MinPasswordLength)}
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := l.UpdateUser(ctx, userID, func(u *domain.User) error {
		u.PasswordHash = hash
		return nil
	}); err != nil {
		return err
	}
	return keeper.RevokeUser(ctx, userID)
}
