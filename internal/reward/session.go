package reward

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/metrics"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
)

// Session is one user's view of the ledger. Operations are serialized by
// opMu; the mirror is guarded by mu and only changes after a confirmed write
// or an inbound store event.
type Session struct {
	l         *Ledger
	userID    string
	presenter Presenter
	log       *slog.Logger

	opMu sync.Mutex

	mu         sync.RWMutex
	state      State
	userRaw    json.RawMessage
	closed     bool
	unsub      []func()
	closeOnce  sync.Once
	logoutOnce sync.Once
}

func (s *Session) UserID() string { return s.userID }

// State returns a copy of the mirror. An expired earned event is dropped.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{User: s.state.User.Public(), Settings: s.state.Settings}
	if e := s.state.Earned; e != nil && s.l.d.Clock.Now().Before(e.ExpiresAt) {
		c := *e
		st.Earned = &c
	}
	return st
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close detaches the session without telling the presenter.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		unsub := s.unsub
		s.unsub = nil
		s.mu.Unlock()
		for _, fn := range unsub {
			fn()
		}
		metrics.ActiveSessions.Dec()
	})
}

// forceLogout closes the session and notifies presenter and hooks once.
func (s *Session) forceLogout(reason string) {
	s.logoutOnce.Do(func() {
		if s.Closed() {
			return
		}
		s.Close()
		s.log.Info("session logged out", "reason", reason)
		s.presenter.LoggedOut(reason)
		s.l.loggedOut(s.userID, reason)
	})
}

// Logout ends the session at the user's request.
func (s *Session) Logout() {
	s.forceLogout("logout")
}

// mirrorUser replaces the mirrored user. It returns false when nothing changed.
func (s *Session) mirrorUser(u *domain.User) bool {
	raw, err := json.Marshal(u)
	if err != nil {
		return false
	}
	s.mu.Lock()
	if bytes.Equal(raw, s.userRaw) {
		s.mu.Unlock()
		return false
	}
	s.state.User = u
	s.userRaw = raw
	s.mu.Unlock()
	s.presenter.UserChanged(u.Public())
	return true
}

func (s *Session) onUserEvent(ev store.Event) {
	if s.Closed() {
		return
	}
	raw := ev.Value
	if ev.Path != repository.UserPath(s.userID) && !ev.Deleted() {
		var err error
		raw, err = s.l.d.Store.Get(context.Background(), repository.UserPath(s.userID))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return
		}
	}
	if raw == nil {
		s.forceLogout("deleted")
		return
	}
	var u domain.User
	if err := json.Unmarshal(raw, &u); err != nil {
		s.log.Warn("bad user record from store", "error", err)
		return
	}
	s.mirrorUser(&u)
	if u.IsBanned {
		s.forceLogout("banned")
	}
}

func (s *Session) onSettingsEvent(ev store.Event) {
	if s.Closed() {
		return
	}
	settings := domain.DefaultSettings()
	if ev.Value != nil {
		if err := json.Unmarshal(ev.Value, &settings); err != nil {
			s.log.Warn("bad settings record from store", "error", err)
			return
		}
	}
	s.mu.Lock()
	s.state.Settings = settings
	s.mu.Unlock()
	s.presenter.SettingsChanged(settings)
}

// Refresh re-reads the user and settings from the store.
func (s *Session) Refresh(ctx context.Context) Result {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	u, err := s.l.d.Users.GetByID(ctx, s.userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		s.forceLogout("deleted")
		return fail(ReasonNotFound, msgUserNotFound)
	}
	if err != nil {
		return fail(ReasonUnavailable, msgUnavailable)
	}
	settings, err := s.l.d.Settings.Get(ctx)
	if err != nil {
		return fail(ReasonUnavailable, msgUnavailable)
	}
	s.mirrorUser(u)
	s.mu.Lock()
	s.state.Settings = settings
	s.mu.Unlock()
	if u.IsBanned {
		s.forceLogout("banned")
		return fail(ReasonSuspended, msgSuspended)
	}
	return success("", 0)
}

// begin returns a private copy of the mirrored user and the settings, or a
// failure result when the session cannot act.
func (s *Session) begin() (*domain.User, domain.AppSettings, Result, bool) {
	s.mu.RLock()
	closed := s.closed
	u := s.state.User.Clone()
	settings := s.state.Settings
	s.mu.RUnlock()

	if closed {
		return nil, settings, fail(ReasonSuspended, msgSignedOut), false
	}
	if u == nil {
		s.forceLogout("deleted")
		return nil, settings, fail(ReasonNotFound, msgUserNotFound), false
	}
	if u.IsBanned {
		s.forceLogout("banned")
		return nil, settings, fail(ReasonSuspended, msgSuspended), false
	}
	return u, settings, Result{}, true
}

// gate runs the anti-abuse check. On a violation the ban is written, the
// session logs out and ok is false.
func (s *Session) gate(ctx context.Context, u *domain.User) (Result, bool) {
	now := s.l.d.Clock.Now()
	if !s.l.d.Monitor.Violation(u, now) {
		return Result{}, true
	}

	s.log.Warn("anti-abuse threshold violated", "since_last", now.Sub(*u.LastActionTimestamp).String())
	banned, err := s.l.d.Balances.Update(ctx, u, autoBan)
	if err != nil {
		s.log.Error("auto-ban write failed", "error", err)
		return fail(ReasonUnavailable, msgUnavailable), false
	}
	metrics.AutoBans.Inc()
	s.l.audit(ctx, s.userID, domain.AuditActionAutoBan, domain.AuditCategorySecurity, map[string]interface{}{
		"threshold_ms": s.l.d.Monitor.Threshold.Milliseconds(),
	})
	s.mirrorUser(banned)
	s.forceLogout("banned")
	return fail(ReasonSuspended, msgAutoBanned), false
}

// commit persists delta plus m, then mirrors the confirmed record. Nothing
// is mirrored when the write fails.
func (s *Session) commit(ctx context.Context, u *domain.User, delta int64, m Mutation) (*domain.User, Result, bool) {
	var (
		nu  *domain.User
		err error
	)
	switch {
	case delta > 0:
		nu, err = s.l.d.Balances.Credit(ctx, u, delta, m)
	case delta < 0:
		nu, err = s.l.d.Balances.Debit(ctx, u, -delta, m)
	default:
		nu, err = s.l.d.Balances.Update(ctx, u, m)
	}
	if err != nil {
		if r, ok := asRefusal(err); ok {
			return nil, r, false
		}
		if errors.Is(err, ErrInsufficientFunds) {
			return nil, fail(ReasonIneligible, "Insufficient coins."), false
		}
		if errors.Is(err, repository.ErrUserNotFound) {
			s.forceLogout("deleted")
			return nil, fail(ReasonNotFound, msgUserNotFound), false
		}
		s.log.Error("ledger write failed", "error", err)
		return nil, fail(ReasonUnavailable, msgUnavailable), false
	}
	s.mirrorUser(nu)
	return nu, Result{}, true
}

func (s *Session) earned(amount int64, msg string) {
	e := Earned{Amount: amount, Message: msg, ExpiresAt: s.l.d.Clock.Now().Add(EarnedTTL)}
	s.mu.Lock()
	s.state.Earned = &e
	s.mu.Unlock()
	s.presenter.CoinsEarned(e)
}

// finish reports r to the presenter and metrics.
func (s *Session) finish(op string, r Result) Result {
	s.l.record(op, r)
	s.log.Debug("ledger op", "op", op, "ok", r.OK, "reason", string(r.Reason), "message", r.Message)
	s.presenter.Result(op, r)
	return r
}
