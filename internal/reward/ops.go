package reward

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/metrics"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
)

const dailyBonusInterval = 24 * time.Hour

// WatchChannel credits one rewarded video on ch.
func (s *Session) WatchChannel(ctx context.Context, ch Channel) Result {
	op := "watch_" + string(ch)
	if _, ok := ParseChannel(string(ch)); !ok {
		return s.finish("watch", fail(ReasonValidation, "Unknown channel."))
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	u, settings, r, ok := s.begin()
	if !ok {
		return s.finish(op, r)
	}
	if r, ok := s.gate(ctx, u); !ok {
		return s.finish(op, r)
	}

	now := s.l.d.Clock.Now()
	policy := PolicyFor(ch, settings)
	d := Authorize(quotaOf(u, ch), policy, now)
	switch d.Verdict {
	case CoolingDown:
		res := fail(ReasonIneligible, "On cooldown. Please wait.")
		res.CooldownSeconds = d.RemainingSeconds()
		return s.finish(op, res)
	case LimitReached:
		return s.finish(op, fail(ReasonIneligible, "Daily video limit reached."))
	}

	nu, r, ok := s.commit(ctx, u, policy.Reward, func(x *domain.User) error {
		// re-run on the record being written
		fresh := Authorize(quotaOf(x, ch), policy, now)
		if fresh.Verdict != Allowed {
			return refuse(ReasonIneligible, "Video already counted. Please try again.")
		}
		setQuota(x, ch, fresh.Next)
		x.LastActionTimestamp = &now
		return nil
	})
	if !ok {
		return s.finish(op, r)
	}

	msg := "Coins earned!"
	if quotaOf(nu, ch).VideosWatchedToday >= policy.DailyLimit {
		msg = "Daily limit reached!"
	}
	res := success(msg, policy.Reward)
	if d.CooldownStarted {
		res.CooldownSeconds = int(policy.Cooldown.Seconds())
	}

	metrics.CoinsCredited.WithLabelValues(op).Add(float64(policy.Reward))
	s.earned(policy.Reward, msg)
	s.l.publish(ctx, domain.LedgerEvent{Type: "video_reward", UserID: s.userID, Amount: policy.Reward, Balance: nu.Coins, Channel: string(ch), At: now})
	return s.finish(op, res)
}

// DailyBonusRemaining is the wait before the next daily bonus, zero when claimable.
func DailyBonusRemaining(u *domain.User, now time.Time) time.Duration {
	if u.LastDailyBonus == nil {
		return 0
	}
	left := u.LastDailyBonus.Add(dailyBonusInterval).Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// ClaimDailyBonus credits the daily bonus once per rolling 24 hours.
func (s *Session) ClaimDailyBonus(ctx context.Context) Result {
	const op = "daily_bonus"
	s.opMu.Lock()
	defer s.opMu.Unlock()

	u, settings, r, ok := s.begin()
	if !ok {
		return s.finish(op, r)
	}
	if r, ok := s.gate(ctx, u); !ok {
		return s.finish(op, r)
	}

	now := s.l.d.Clock.Now()
	alreadyClaimed := func(x *domain.User) (Result, bool) {
		left := DailyBonusRemaining(x, now)
		if left <= 0 {
			return Result{}, false
		}
		res := fail(ReasonIneligible, fmt.Sprintf("Daily bonus already claimed. Come back in %s.", formatWait(left)))
		res.CooldownSeconds = int(left.Round(time.Second).Seconds())
		return res, true
	}
	if res, claimed := alreadyClaimed(u); claimed {
		return s.finish(op, res)
	}

	amount := settings.DailyBonusCoins
	if amount <= 0 {
		return s.finish(op, fail(ReasonIneligible, "Daily bonus is not available."))
	}
	nu, r, ok := s.commit(ctx, u, amount, func(x *domain.User) error {
		if res, claimed := alreadyClaimed(x); claimed {
			return &refusal{res: res}
		}
		x.LastDailyBonus = &now
		x.LastActionTimestamp = &now
		return nil
	})
	if !ok {
		return s.finish(op, r)
	}

	msg := fmt.Sprintf("+%d Coins! Daily bonus claimed.", amount)
	metrics.CoinsCredited.WithLabelValues(op).Add(float64(amount))
	s.l.audit(ctx, s.userID, domain.AuditActionDailyBonus, domain.AuditCategoryReward, map[string]interface{}{"amount": amount})
	s.earned(amount, msg)
	s.l.publish(ctx, domain.LedgerEvent{Type: op, UserID: s.userID, Amount: amount, Balance: nu.Coins, At: now})
	return s.finish(op, success(msg, amount))
}

// ClaimSpecialTask pays the special reward once per calendar day after the
// earn-more channel hit its daily limit.
func (s *Session) ClaimSpecialTask(ctx context.Context) Result {
	const op = "special_task"
	s.opMu.Lock()
	defer s.opMu.Unlock()

	u, settings, r, ok := s.begin()
	if !ok {
		return s.finish(op, r)
	}
	if r, ok := s.gate(ctx, u); !ok {
		return s.finish(op, r)
	}

	now := s.l.d.Clock.Now()
	limit := settings.DailyAnotherVideoLimit
	check := func(x *domain.User) (Result, bool) {
		if Rollover(x.EarnMore, now).VideosWatchedToday < limit {
			return fail(ReasonIneligible, fmt.Sprintf("Watch all %d videos to unlock this task.", limit)), false
		}
		if clock.SameDay(x.LastSpecialTaskClaim, now) {
			return fail(ReasonIneligible, "Special task already claimed for today."), false
		}
		return Result{}, true
	}
	if res, ok := check(u); !ok {
		return s.finish(op, res)
	}

	amount := settings.SpecialRewardCoins
	if amount <= 0 {
		return s.finish(op, fail(ReasonIneligible, "Special task is not available."))
	}
	nu, r, ok := s.commit(ctx, u, amount, func(x *domain.User) error {
		if res, ok := check(x); !ok {
			return &refusal{res: res}
		}
		x.LastSpecialTaskClaim = clock.DayKey(now)
		x.LastActionTimestamp = &now
		return nil
	})
	if !ok {
		return s.finish(op, r)
	}

	msg := fmt.Sprintf("+%d Coins! Special reward unlocked!", amount)
	metrics.CoinsCredited.WithLabelValues(op).Add(float64(amount))
	s.l.audit(ctx, s.userID, domain.AuditActionSpecialTask, domain.AuditCategoryReward, map[string]interface{}{"amount": amount})
	s.earned(amount, msg)
	s.l.publish(ctx, domain.LedgerEvent{Type: op, UserID: s.userID, Amount: amount, Balance: nu.Coins, At: now})
	return s.finish(op, success(msg, amount))
}

// ApplyWelcomeBonus credits the welcome bonus at most once per account. It
// is called after every login and registration.
func (s *Session) ApplyWelcomeBonus(ctx context.Context) Result {
	const op = "welcome_bonus"
	s.opMu.Lock()
	defer s.opMu.Unlock()

	u, settings, r, ok := s.begin()
	if !ok {
		return s.finish(op, r)
	}
	amount := settings.WelcomeBonusCoins
	if u.HasReceivedWelcomeBonus || amount <= 0 {
		return fail(ReasonIneligible, "Welcome bonus already received.")
	}

	nu, r, ok := s.commit(ctx, u, amount, func(x *domain.User) error {
		if x.HasReceivedWelcomeBonus {
			return refuse(ReasonIneligible, "Welcome bonus already received.")
		}
		x.HasReceivedWelcomeBonus = true
		return nil
	})
	if !ok {
		return s.finish(op, r)
	}

	msg := fmt.Sprintf("Welcome! You received %d coins.", amount)
	metrics.CoinsCredited.WithLabelValues(op).Add(float64(amount))
	s.l.audit(ctx, s.userID, domain.AuditActionWelcomeBonus, domain.AuditCategoryReward, map[string]interface{}{"amount": amount})
	s.earned(amount, msg)
	s.l.publish(ctx, domain.LedgerEvent{Type: op, UserID: s.userID, Amount: amount, Balance: nu.Coins})
	return s.finish(op, success(msg, amount))
}

// ApplyReferralCode credits the referee, then the referrer, as two writes.
// If the second write fails the referee keeps the bonus and the result is
// marked partial.
func (s *Session) ApplyReferralCode(ctx context.Context, code string) Result {
	const op = "referral"
	s.opMu.Lock()
	defer s.opMu.Unlock()

	u, settings, r, ok := s.begin()
	if !ok {
		return s.finish(op, r)
	}
	if r, ok := s.gate(ctx, u); !ok {
		return s.finish(op, r)
	}

	if !settings.ReferralProgramEnabled {
		return s.finish(op, fail(ReasonIneligible, "The referral program is currently disabled."))
	}
	if u.ReferredBy != "" {
		return s.finish(op, fail(ReasonIneligible, "You have already used a referral code."))
	}
	code = repository.NormalizeReferralCode(code)
	if code == "" {
		return s.finish(op, fail(ReasonValidation, "Please enter a referral code."))
	}
	referrer, err := s.l.d.Users.GetByReferralCode(ctx, code)
	if errors.Is(err, repository.ErrUserNotFound) {
		return s.finish(op, fail(ReasonIneligible, "Invalid referral code."))
	}
	if err != nil {
		return s.finish(op, fail(ReasonUnavailable, msgUnavailable))
	}
	if referrer.ID == u.ID {
		return s.finish(op, fail(ReasonIneligible, "You cannot use your own referral code."))
	}

	now := s.l.d.Clock.Now()
	refereeBonus := settings.RefereeBonusCoins
	mark := func(x *domain.User) error {
		if x.ReferredBy != "" {
			return refuse(ReasonIneligible, "You have already used a referral code.")
		}
		x.ReferredBy = referrer.ReferralCode
		x.LastActionTimestamp = &now
		return nil
	}
	var nu *domain.User
	if refereeBonus > 0 {
		nu, r, ok = s.commit(ctx, u, refereeBonus, mark)
	} else {
		nu, r, ok = s.commit(ctx, u, 0, mark)
	}
	if !ok {
		return s.finish(op, r)
	}

	msg := fmt.Sprintf("Successfully applied code! You received %d coins.", refereeBonus)
	if refereeBonus > 0 {
		metrics.CoinsCredited.WithLabelValues("referee").Add(float64(refereeBonus))
		s.earned(refereeBonus, msg)
	}
	s.l.publish(ctx, domain.LedgerEvent{Type: "referee_bonus", UserID: s.userID, Amount: refereeBonus, Balance: nu.Coins, At: now})

	referrerBonus := settings.ReferrerBonusCoins
	credit := func(x *domain.User) error {
		x.ReferralsCount++
		x.ReferralBonusEarned += referrerBonus
		return nil
	}
	var ru *domain.User
	if referrerBonus > 0 {
		ru, err = s.l.d.Balances.Credit(ctx, referrer, referrerBonus, credit)
	} else {
		ru, err = s.l.d.Balances.Update(ctx, referrer, credit)
	}
	if err != nil {
		metrics.PartialFailures.WithLabelValues(op).Inc()
		s.log.Warn("referrer credit failed after referee was credited",
			"referrer_id", referrer.ID, "bonus", referrerBonus, "error", err)
		res := success(msg, refereeBonus)
		res.Reason = ReasonPartial
		return s.finish(op, res)
	}

	metrics.CoinsCredited.WithLabelValues("referrer").Add(float64(referrerBonus))
	s.l.audit(ctx, s.userID, domain.AuditActionReferral, domain.AuditCategoryReward, map[string]interface{}{
		"referrer_id": referrer.ID, "referee_bonus": refereeBonus, "referrer_bonus": referrerBonus,
	})
	s.l.publish(ctx, domain.LedgerEvent{Type: "referrer_bonus", UserID: referrer.ID, Amount: referrerBonus, Balance: ru.Coins, At: now})
	return s.finish(op, success(msg, refereeBonus))
}

// SubmitWithdrawal validates req, debits the coin cost immediately and
// records a PENDING request. If the record cannot be created the debit is
// refunded.
func (s *Session) SubmitWithdrawal(ctx context.Context, req domain.WithdrawRequest) Result {
	const op = "withdrawal_submit"
	s.opMu.Lock()
	defer s.opMu.Unlock()

	u, settings, r, ok := s.begin()
	if !ok {
		return s.finish(op, r)
	}

	if !settings.WithdrawalsEnabled {
		return s.finish(op, fail(ReasonIneligible, "Withdrawals are currently disabled."))
	}
	if !settings.JazzcashEnabled && !settings.EasypaisaEnabled {
		return s.finish(op, fail(ReasonIneligible, "No payment methods are currently available."))
	}
	switch req.Method {
	case domain.PaymentMethodJazzCash:
		if !settings.JazzcashEnabled {
			return s.finish(op, fail(ReasonValidation, "JazzCash withdrawals are currently unavailable."))
		}
	case domain.PaymentMethodEasypaisa:
		if !settings.EasypaisaEnabled {
			return s.finish(op, fail(ReasonValidation, "Easypaisa withdrawals are currently unavailable."))
		}
	default:
		return s.finish(op, fail(ReasonValidation, "Please choose a payment method."))
	}
	if req.AmountPKR <= 0 {
		return s.finish(op, fail(ReasonValidation, "Please enter a valid amount."))
	}
	fullName := strings.TrimSpace(req.FullName)
	mobile := strings.TrimSpace(req.MobileNumber)
	if fullName == "" || mobile == "" {
		return s.finish(op, fail(ReasonValidation, "Please fill in your full name and mobile number."))
	}

	hasAny, err := s.l.d.Withdrawals.HasAny(ctx, u.ID)
	if err != nil {
		return s.finish(op, fail(ReasonUnavailable, msgUnavailable))
	}
	isNew := !hasAny
	if isNew && settings.MinWithdrawalNewUserEnabled && req.AmountPKR < settings.MinWithdrawalNewUser {
		return s.finish(op, fail(ReasonValidation, fmt.Sprintf("Minimum withdrawal for new users is %d PKR.", settings.MinWithdrawalNewUser)))
	}
	if !isNew && settings.MinWithdrawalOldEnabled && req.AmountPKR < settings.MinWithdrawalOldUsers {
		return s.finish(op, fail(ReasonValidation, fmt.Sprintf("Minimum withdrawal is %d PKR.", settings.MinWithdrawalOldUsers)))
	}
	if settings.MaxWithdrawalEnabled && req.AmountPKR > settings.MaxWithdrawal {
		return s.finish(op, fail(ReasonValidation, fmt.Sprintf("Maximum withdrawal is %d PKR.", settings.MaxWithdrawal)))
	}
	rate := settings.CoinsPerPKR
	if rate <= 0 {
		return s.finish(op, fail(ReasonUnavailable, "Withdrawals are temporarily unavailable."))
	}
	if req.AmountPKR > math.MaxInt64/rate {
		return s.finish(op, fail(ReasonValidation, "Invalid withdrawal amount."))
	}
	cost := req.AmountPKR * rate
	if cost > u.Coins {
		return s.finish(op, fail(ReasonIneligible, "Insufficient coins."))
	}

	nu, r, ok := s.commit(ctx, u, -cost, nil)
	if !ok {
		return s.finish(op, r)
	}

	w := &domain.WithdrawalRequest{
		UserID:       u.ID,
		UserName:     u.Name,
		FullName:     fullName,
		MobileNumber: mobile,
		Amount:       cost,
		AmountPKR:    req.AmountPKR,
		Method:       req.Method,
		Status:       domain.WithdrawalStatusPending,
		IsNewUser:    isNew,
		CreatedAt:    s.l.d.Clock.Now(),
	}
	if err := s.l.d.Withdrawals.Create(ctx, w); err != nil {
		s.log.Error("create withdrawal failed, refunding", "amount", cost, "error", err)
		if _, rr, ok := s.commit(ctx, nu, cost, nil); !ok {
			metrics.PartialFailures.WithLabelValues(op).Inc()
			s.log.Error("refund after failed withdrawal create also failed", "amount", cost, "reason", rr.Message)
			return s.finish(op, fail(ReasonPartial, "Your request could not be saved. Please contact support."))
		}
		return s.finish(op, fail(ReasonUnavailable, "Could not submit your request. Please try again."))
	}

	metrics.CoinsDebited.WithLabelValues("withdrawal").Add(float64(cost))
	s.l.audit(ctx, s.userID, domain.AuditActionWithdrawalRequest, domain.AuditCategoryWithdrawal, map[string]interface{}{
		"withdrawal_id": w.ID, "amount": cost, "amount_pkr": req.AmountPKR, "method": string(req.Method),
	})
	s.l.publish(ctx, domain.LedgerEvent{Type: "withdrawal_requested", UserID: s.userID, Amount: -cost, Balance: nu.Coins, WithdrawalID: w.ID})
	if s.l.d.Notifier != nil {
		s.l.d.Notifier.NotifyNewWithdrawal(ctx, w)
	}

	res := success("Withdrawal request submitted!", cost)
	res.Withdrawal = w
	return s.finish(op, res)
}

func formatWait(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m < 1 {
		m = 1
	}
	return fmt.Sprintf("%dm", m)
}
