package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
)

// AdminService provides admin statistics and the read side of the panel.
// Balance-changing admin actions live on reward.Ledger.
type AdminService struct {
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
	settings    *repository.SettingsRepository
	audit       *AuditService
	clock       clock.Clock
}

// NewAdminService creates a new admin service
func NewAdminService(users *repository.UserRepository, withdrawals *repository.WithdrawalRepository,
	settings *repository.SettingsRepository, audit *AuditService, clk clock.Clock) *AdminService {
	if clk == nil {
		clk = clock.Real{}
	}
	return &AdminService{users: users, withdrawals: withdrawals, settings: settings, audit: audit, clock: clk}
}

// Stats represents platform statistics
type Stats struct {
	TotalUsers          int   `json:"total_users"`
	NewUsersToday       int   `json:"new_users_today"`
	TotalCoins          int64 `json:"total_coins"`
	BannedUsers         int   `json:"banned_users"`
	AutoBannedUsers     int   `json:"auto_banned_users"`
	PendingWithdrawals  int   `json:"pending_withdrawals"`
	ApprovedWithdrawals int   `json:"approved_withdrawals"`
	RejectedWithdrawals int   `json:"rejected_withdrawals"`
	PendingPKR          int64 `json:"pending_pkr"`
	PaidOutPKR          int64 `json:"paid_out_pkr"`
}

// GetStats returns platform statistics
func (s *AdminService) GetStats(ctx context.Context) (*Stats, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	withdrawals, err := s.withdrawals.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}

	today := clock.DayKey(s.clock.Now())
	stats := &Stats{TotalUsers: len(users)}
	for _, u := range users {
		stats.TotalCoins += u.Coins
		if clock.DayKey(u.AccountCreatedAt) == today {
			stats.NewUsersToday++
		}
		if u.IsBanned {
			stats.BannedUsers++
			if u.BanReason == domain.BanReasonAutoAntiCheat {
				stats.AutoBannedUsers++
			}
		}
	}
	for _, w := range withdrawals {
		switch w.Status {
		case domain.WithdrawalStatusPending:
			stats.PendingWithdrawals++
			stats.PendingPKR += w.AmountPKR
		case domain.WithdrawalStatusApproved:
			stats.ApprovedWithdrawals++
			stats.PaidOutPKR += w.AmountPKR
		case domain.WithdrawalStatusRejected:
			stats.RejectedWithdrawals++
		}
	}
	return stats, nil
}

// Withdrawal tabs of the admin panel.
const (
	TabNew     = "new"
	TabOld     = "old"
	TabHistory = "history"
)

var ErrUnknownTab = errors.New("unknown withdrawal tab")

// WithdrawalTab returns pending requests from first-time (new) or returning
// (old) users, oldest first, or resolved requests (history), newest first.
func (s *AdminService) WithdrawalTab(ctx context.Context, tab string) ([]*domain.WithdrawalRequest, error) {
	switch tab {
	case TabNew, TabOld:
		pending, err := s.withdrawals.GetPending(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]*domain.WithdrawalRequest, 0, len(pending))
		for _, w := range pending {
			if w.IsNewUser == (tab == TabNew) {
				out = append(out, w)
			}
		}
		return out, nil
	case TabHistory:
		all, err := s.withdrawals.List(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]*domain.WithdrawalRequest, 0, len(all))
		for _, w := range all {
			if w.Status.Terminal() {
				out = append(out, w)
			}
		}
		return out, nil
	}
	return nil, ErrUnknownTab
}

// AntiCheat lists accounts suspended by the anti-abuse monitor.
func (s *AdminService) AntiCheat(ctx context.Context) ([]*domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.User
	for _, u := range users {
		if u.IsBanned && u.BanReason == domain.BanReasonAutoAntiCheat {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

// ListUsers returns every user, or those matching q by name, email or
// referral code.
func (s *AdminService) ListUsers(ctx context.Context, q string) ([]*domain.User, error) {
	var (
		users []*domain.User
		err   error
	)
	if strings.TrimSpace(q) == "" {
		users, err = s.users.List(ctx)
	} else {
		users, err = s.users.Search(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	return out, nil
}

// GetUser resolves an id, email or referral code.
func (s *AdminService) GetUser(ctx context.Context, identifier string) (*domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	u, err := s.users.GetByID(ctx, identifier)
	if errors.Is(err, repository.ErrUserNotFound) && strings.Contains(identifier, "@") {
		u, err = s.users.GetByEmail(ctx, identifier)
	}
	if errors.Is(err, repository.ErrUserNotFound) {
		u, err = s.users.GetByReferralCode(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	return u.Public(), nil
}

func (s *AdminService) UserWithdrawals(ctx context.Context, userID string) ([]*domain.WithdrawalRequest, error) {
	return s.withdrawals.GetByUserID(ctx, userID)
}

func (s *AdminService) Settings(ctx context.Context) (domain.AppSettings, error) {
	return s.settings.Get(ctx)
}

// UpdateSettings replaces the settings record. Live sessions pick the new
// values up through their subscription.
func (s *AdminService) UpdateSettings(ctx context.Context, actorID string, next domain.AppSettings) error {
	if err := validateSettings(next); err != nil {
		return err
	}
	if err := s.settings.Save(ctx, next); err != nil {
		return err
	}
	s.audit.LogAdmin(ctx, actorID, "", domain.AuditActionSettings, nil)
	return nil
}

func validateSettings(v domain.AppSettings) error {
	switch {
	case v.CoinsPerVideo < 0, v.CoinsPerAnotherVideo < 0, v.DailyBonusCoins < 0,
		v.SpecialRewardCoins < 0, v.WelcomeBonusCoins < 0,
		v.ReferrerBonusCoins < 0, v.RefereeBonusCoins < 0:
		return &ValidationError{Msg: "Coin amounts cannot be negative."}
	case v.DailyVideoLimit < 0, v.DailyAnotherVideoLimit < 0,
		v.VideosPerCooldown < 0, v.AnotherVideosPerCooldown < 0,
		v.CooldownMinutes < 0, v.AnotherCooldownMinutes < 0:
		return &ValidationError{Msg: "Limits and cooldowns cannot be negative."}
	case v.CoinsPerPKR <= 0:
		return &ValidationError{Msg: "Coins per PKR must be positive."}
	case v.MinWithdrawalNewUser < 0, v.MinWithdrawalOldUsers < 0, v.MaxWithdrawal < 0:
		return &ValidationError{Msg: "Withdrawal limits cannot be negative."}
	}
	return nil
}

func (s *AdminService) AdMobIDs(ctx context.Context) (domain.AdMobIDs, error) {
	return s.settings.GetAdMobIDs(ctx)
}

func (s *AdminService) UpdateAdMobIDs(ctx context.Context, actorID string, ids domain.AdMobIDs) error {
	if err := s.settings.SaveAdMobIDs(ctx, ids); err != nil {
		return err
	}
	s.audit.LogAdmin(ctx, actorID, "", domain.AuditActionAdsUpdate, map[string]interface{}{
		"banner": len(ids.BannerIDs), "interstitial": len(ids.InterstitialIDs), "rewarded": len(ids.RewardedIDs),
	})
	return nil
}
