package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/metrics"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
)

// Auditor records security and balance relevant actions.
type Auditor interface {
	Log(ctx context.Context, userID, action, category string, details map[string]interface{})
	LogAdmin(ctx context.Context, actorID, userID, action string, details map[string]interface{})
}

// EventSink receives confirmed ledger changes. Publish must not block for long.
type EventSink interface {
	Publish(ctx context.Context, ev domain.LedgerEvent)
}

// WithdrawalNotifier is told about every new cash-out request.
type WithdrawalNotifier interface {
	NotifyNewWithdrawal(ctx context.Context, w *domain.WithdrawalRequest)
}

type Deps struct {
	Store       store.Store
	Users       *repository.UserRepository
	Withdrawals *repository.WithdrawalRepository
	Settings    *repository.SettingsRepository
	Balances    BalanceStore
	Clock       clock.Clock
	Monitor     Monitor

	// optional
	Audit    Auditor
	Events   EventSink
	Notifier WithdrawalNotifier
}

// Ledger authorizes and applies every coin-earning and coin-spending action.
// User-facing operations go through a Session; admin operations are methods
// on the Ledger itself.
type Ledger struct {
	d   Deps
	log *slog.Logger

	mu          sync.RWMutex
	logoutHooks []func(userID, reason string)
}

func New(d Deps) *Ledger {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Monitor.Threshold <= 0 {
		d.Monitor = NewMonitor(0)
	}
	if d.Balances == nil {
		d.Balances = NewSerialBalances(d.Users)
	}
	return &Ledger{d: d, log: logger.With("component", "ledger")}
}

func (l *Ledger) Clock() clock.Clock { return l.d.Clock }

// OnLogout registers fn to run whenever a session is force-logged-out.
func (l *Ledger) OnLogout(fn func(userID, reason string)) {
	l.mu.Lock()
	l.logoutHooks = append(l.logoutHooks, fn)
	l.mu.Unlock()
}

func (l *Ledger) loggedOut(userID, reason string) {
	l.mu.RLock()
	hooks := append([]func(string, string){}, l.logoutHooks...)
	l.mu.RUnlock()
	for _, fn := range hooks {
		fn(userID, reason)
	}
}

func (l *Ledger) audit(ctx context.Context, userID, action, category string, details map[string]interface{}) {
	if l.d.Audit != nil {
		l.d.Audit.Log(ctx, userID, action, category, details)
	}
}

func (l *Ledger) auditAdmin(ctx context.Context, actorID, userID, action string, details map[string]interface{}) {
	if l.d.Audit != nil {
		l.d.Audit.LogAdmin(ctx, actorID, userID, action, details)
	}
}

func (l *Ledger) publish(ctx context.Context, ev domain.LedgerEvent) {
	if l.d.Events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = l.d.Clock.Now()
	}
	l.d.Events.Publish(ctx, ev)
}

func (l *Ledger) record(op string, r Result) Result {
	metrics.LedgerOps.WithLabelValues(op, metrics.Outcome(r.OK, string(r.Reason))).Inc()
	return r
}

// Open loads the user and settings, subscribes to both and returns a live
// session. It fails when the user does not exist or is banned.
func (l *Ledger) Open(ctx context.Context, userID string, p Presenter) (*Session, error) {
	if p == nil {
		p = NopPresenter{}
	}
	u, err := l.d.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsBanned {
		return nil, ErrSuspended
	}
	settings, err := l.d.Settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	s := &Session{
		l:         l,
		userID:    userID,
		presenter: p,
		log:       l.log.With("user_id", userID),
	}
	s.state.User = u
	s.state.Settings = settings
	s.userRaw, _ = json.Marshal(u)

	unsubUser, err := l.d.Store.Subscribe(ctx, repository.UserPath(userID), s.onUserEvent)
	if err != nil {
		return nil, fmt.Errorf("subscribe user: %w", err)
	}
	unsubSettings, err := l.d.Store.Subscribe(ctx, store.Settings, s.onSettingsEvent)
	if err != nil {
		unsubUser()
		return nil, fmt.Errorf("subscribe settings: %w", err)
	}
	s.unsub = []func(){unsubUser, unsubSettings}
	metrics.ActiveSessions.Inc()
	return s, nil
}

var ErrSuspended = errors.New("account suspended")

// ResolveWithdrawal moves a PENDING request to APPROVED or REJECTED. The
// status is written first so a request can be refunded at most once.
func (l *Ledger) ResolveWithdrawal(ctx context.Context, actorID, id string, status domain.WithdrawalStatus) Result {
	const op = "resolve_withdrawal"
	if !status.Terminal() {
		return l.record(op, fail(ReasonValidation, "Invalid status."))
	}

	w, err := l.d.Withdrawals.UpdateStatus(ctx, id, status, l.d.Clock.Now())
	switch {
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return l.record(op, fail(ReasonNotFound, "Withdrawal request not found."))
	case errors.Is(err, repository.ErrWithdrawalNotPending):
		return l.record(op, fail(ReasonIneligible, "This request has already been processed."))
	case err != nil:
		l.log.Error("update withdrawal status failed", "withdrawal_id", id, "error", err)
		return l.record(op, fail(ReasonUnavailable, "Could not update the request. Please try again."))
	}

	if status == domain.WithdrawalStatusApproved {
		l.auditAdmin(ctx, actorID, w.UserID, domain.AuditActionWithdrawalApprove, map[string]interface{}{
			"withdrawal_id": w.ID, "amount": w.Amount,
		})
		l.publish(ctx, domain.LedgerEvent{Type: "withdrawal_approved", UserID: w.UserID, ActorID: actorID, Amount: w.Amount, WithdrawalID: w.ID})
		return l.record(op, Result{OK: true, Message: "Withdrawal approved.", Withdrawal: w})
	}

	l.auditAdmin(ctx, actorID, w.UserID, domain.AuditActionWithdrawalReject, map[string]interface{}{
		"withdrawal_id": w.ID, "amount": w.Amount,
	})

	u, err := l.d.Users.GetByID(ctx, w.UserID)
	if err == nil {
		u, err = l.d.Balances.Credit(ctx, u, w.Amount, nil)
	}
	if err != nil {
		metrics.PartialFailures.WithLabelValues(op).Inc()
		l.log.Error("refund after rejection failed", "withdrawal_id", w.ID, "user_id", w.UserID, "amount", w.Amount, "error", err)
		return l.record(op, Result{OK: true, Reason: ReasonPartial, Message: "Request rejected but the refund failed.", Withdrawal: w})
	}

	metrics.CoinsCredited.WithLabelValues("refund").Add(float64(w.Amount))
	l.audit(ctx, w.UserID, domain.AuditActionWithdrawalRefund, domain.AuditCategoryBalance, map[string]interface{}{
		"withdrawal_id": w.ID, "amount": w.Amount,
	})
	l.publish(ctx, domain.LedgerEvent{Type: "withdrawal_refunded", UserID: w.UserID, ActorID: actorID, Amount: w.Amount, Balance: u.Coins, WithdrawalID: w.ID})
	return l.record(op, Result{OK: true, Message: "Withdrawal rejected and coins refunded.", Amount: w.Amount, Withdrawal: w})
}

// BanUser sets a manual ban. Live sessions log out through their subscription.
func (l *Ledger) BanUser(ctx context.Context, actorID, userID string) Result {
	return l.setBan(ctx, actorID, userID, true)
}

// UnbanUser clears any ban, manual or automatic.
func (l *Ledger) UnbanUser(ctx context.Context, actorID, userID string) Result {
	return l.setBan(ctx, actorID, userID, false)
}

// ToggleBan flips the ban flag, as the admin user list does.
func (l *Ledger) ToggleBan(ctx context.Context, actorID, userID string) Result {
	u, err := l.d.Users.GetByID(ctx, userID)
	if err != nil {
		return l.record("toggle_ban", fail(ReasonNotFound, msgUserNotFound))
	}
	return l.setBan(ctx, actorID, u.ID, !u.IsBanned)
}

func (l *Ledger) setBan(ctx context.Context, actorID, userID string, banned bool) Result {
	op, action, msg := "ban", domain.AuditActionUserBan, "User banned."
	if !banned {
		op, action, msg = "unban", domain.AuditActionUserUnban, "User unbanned."
	}

	u, err := l.d.Users.GetByID(ctx, userID)
	if err != nil {
		return l.record(op, fail(ReasonNotFound, msgUserNotFound))
	}
	_, err = l.d.Balances.Update(ctx, u, func(x *domain.User) error {
		x.IsBanned = banned
		x.BanReason = domain.BanReasonNone
		if banned {
			x.BanReason = domain.BanReasonManual
		}
		return nil
	})
	if err != nil {
		l.log.Error("ban update failed", "user_id", userID, "error", err)
		return l.record(op, fail(ReasonUnavailable, "Could not update the user. Please try again."))
	}
	l.auditAdmin(ctx, actorID, userID, action, nil)
	return l.record(op, success(msg, 0))
}

// SetCoins overwrites a user's balance.
func (l *Ledger) SetCoins(ctx context.Context, actorID, userID string, coins int64) Result {
	const op = "set_coins"
	if coins < 0 {
		return l.record(op, fail(ReasonValidation, "Coins cannot be negative."))
	}
	u, err := l.d.Users.GetByID(ctx, userID)
	if err != nil {
		return l.record(op, fail(ReasonNotFound, msgUserNotFound))
	}
	var before int64
	nu, err := l.d.Balances.Update(ctx, u, func(x *domain.User) error {
		before = x.Coins
		x.Coins = coins
		return nil
	})
	if err != nil {
		return l.record(op, fail(ReasonUnavailable, "Could not update the balance. Please try again."))
	}
	l.auditAdmin(ctx, actorID, userID, domain.AuditActionSetCoins, map[string]interface{}{
		"before": before, "after": coins,
	})
	l.publish(ctx, domain.LedgerEvent{Type: "balance_set", UserID: userID, ActorID: actorID, Amount: coins - before, Balance: nu.Coins})
	return l.record(op, success("Balance updated.", coins))
}

// DeleteUser removes the account. Open sessions see the deletion and log out.
func (l *Ledger) DeleteUser(ctx context.Context, actorID, userID string) Result {
	const op = "delete_user"
	if err := l.d.Users.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return l.record(op, fail(ReasonNotFound, msgUserNotFound))
		}
		return l.record(op, fail(ReasonUnavailable, "Could not delete the user. Please try again."))
	}
	l.auditAdmin(ctx, actorID, userID, domain.AuditActionUserDelete, nil)
	return l.record(op, success("User deleted.", 0))
}

// UpdateUser applies a non-balance change through the BalanceStore so it
// cannot overwrite a concurrent credit.
func (l *Ledger) UpdateUser(ctx context.Context, userID string, m Mutation) (*domain.User, error) {
	u, err := l.d.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.d.Balances.Update(ctx, u, m)
}
