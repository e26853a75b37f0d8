package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/session"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// OTPPeriod is both the TOTP step and the code's lifetime.
const OTPPeriod = 180 * time.Second

var otpOpts = totp.ValidateOpts{
	Period:    uint(OTPPeriod / time.Second),
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// ResetNotifier delivers a reset code to whoever relays it to the user.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, req *domain.PasswordResetRequest, message string)
}

type PasswordResetService struct {
	users    *repository.UserRepository
	resets   *repository.PasswordResetRepository
	settings *repository.SettingsRepository
	ledger   *reward.Ledger
	keeper   session.Keeper
	audit    *AuditService
	notifier ResetNotifier
}

func NewPasswordResetService(users *repository.UserRepository, resets *repository.PasswordResetRepository, settings *repository.SettingsRepository,
	ledger *reward.Ledger, keeper session.Keeper, audit *AuditService, notifier ResetNotifier) *PasswordResetService {
	return &PasswordResetService{
		users:    users,
		resets:   resets,
		settings: settings,
		ledger:   ledger,
		keeper:   keeper,
		audit:    audit,
		notifier: notifier,
	}
}

// Request opens a reset request. It reports success for unknown emails so
// the endpoint cannot be used to probe for accounts.
func (s *PasswordResetService) Request(ctx context.Context, email, contact string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "If an account with this email exists, instructions have been sent.", nil
	}
	if err != nil {
		return "", err
	}
	if _, err := s.resets.GetPendingByUserID(ctx, u.ID); err == nil {
		return "A password reset request is already pending for this account.", nil
	} else if !errors.Is(err, repository.ErrResetNotFound) {
		return "", err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	now := s.ledger.Clock().Now()
	req := &domain.PasswordResetRequest{
		UserID:    u.ID,
		Email:     u.Email,
		Contact:   strings.TrimSpace(contact),
		Status:    domain.PasswordResetPending,
		CreatedAt: now,
	}

	msg := "The automated system is offline. Please contact the admin directly on WhatsApp to reset your password."
	if settings.OTPBotEnabled {
		code, err := generateOTP(u.Email, now)
		if err != nil {
			return "", err
		}
		expiry := now.Add(OTPPeriod)
		req.OTP = code
		req.OTPExpiry = &expiry
		msg = "An OTP has been sent to your WhatsApp. Please check and enter it below."
	}
	if err := s.resets.Create(ctx, req); err != nil {
		return "", fmt.Errorf("create reset request: %w", err)
	}

	if req.OTP != "" && s.notifier != nil {
		s.notifier.NotifyPasswordReset(ctx, req, renderOTP(settings.OTPMessageTemplate, req.OTP))
	}
	logger.Info("password reset requested", "user_id", u.ID, "otp", req.OTP != "")
	return msg, nil
}

// Verify checks the code and sets the new password.
func (s *PasswordResetService) Verify(ctx context.Context, email, code, newPassword string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return "", &ValidationError{Msg: "No pending password reset request found."}
	}
	if err != nil {
		return "", err
	}
	req, err := s.resets.GetPendingByUserID(ctx, u.ID)
	if errors.Is(err, repository.ErrResetNotFound) {
		return "", &ValidationError{Msg: "No pending password reset request found."}
	}
	if err != nil {
		return "", err
	}
	if req.OTP == "" || subtle.ConstantTimeCompare([]byte(req.OTP), []byte(strings.TrimSpace(code))) != 1 {
		return "", &ValidationError{Msg: "Invalid OTP."}
	}
	if req.OTPExpiry == nil || s.ledger.Clock().Now().After(*req.OTPExpiry) {
		return "", &ValidationError{Msg: "OTP has expired."}
	}

	if err := setPassword(ctx, s.ledger, s.keeper, u.ID, newPassword); err != nil {
		return "", err
	}
	req.Status = domain.PasswordResetResolved
	if err := s.resets.Save(ctx, req); err != nil {
		return "", err
	}
	s.audit.Log(ctx, u.ID, domain.AuditActionPasswordReset, domain.AuditCategoryAuth, map[string]interface{}{"request_id": req.ID})
	return "Password has been successfully reset. You can now log in.", nil
}

// Resolve closes a request by hand, after an admin reset the password
// out of band.
func (s *PasswordResetService) Resolve(ctx context.Context, actorID, id string) error {
	req, err := s.resets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	req.Status = domain.PasswordResetResolved
	if err := s.resets.Save(ctx, req); err != nil {
		return err
	}
	s.audit.LogAdmin(ctx, actorID, req.UserID, domain.AuditActionPasswordReset, map[string]interface{}{"request_id": id})
	return nil
}

func (s *PasswordResetService) List(ctx context.Context) ([]*domain.PasswordResetRequest, error) {
	return s.resets.List(ctx)
}

// Pending returns open requests, newest first.
func (s *PasswordResetService) Pending(ctx context.Context) ([]*domain.PasswordResetRequest, error) {
	all, err := s.resets.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.PasswordResetRequest
	for _, r := range all {
		if r.Status == domain.PasswordResetPending {
			out = append(out, r)
		}
	}
	return out, nil
}

// generateOTP derives a six digit code from a fresh random secret.
func generateOTP(email string, now time.Time) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "GlobalDragon",
		AccountName: email,
		Period:      otpOpts.Period,
		Digits:      otpOpts.Digits,
		Algorithm:   otpOpts.Algorithm,
	})
	if err != nil {
		return "", err
	}
	return totp.GenerateCodeCustom(key.Secret(), now, otpOpts)
}

func renderOTP(tmpl, code string) string {
	if tmpl == "" {
		tmpl = domain.DefaultSettings().OTPMessageTemplate
	}
	return strings.ReplaceAll(tmpl, "{{OTP}}", code)
}
