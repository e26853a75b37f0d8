package reward

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
)

var t0 = time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)

type harness struct {
	st          *store.Memory
	clk         *clock.Mock
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
	settings    *repository.SettingsRepository
	ledger      *Ledger
	events      *eventRecorder
	n           int
}

func newHarness(t *testing.T, tweak func(*domain.AppSettings)) *harness {
	t.Helper()
	st := store.NewMemory()
	h := &harness{
		st:          st,
		clk:         clock.NewMock(t0),
		users:       repository.NewUserRepository(st),
		withdrawals: repository.NewWithdrawalRepository(st),
		settings:    repository.NewSettingsRepository(st),
		events:      &eventRecorder{},
	}
	s := domain.DefaultSettings()
	if tweak != nil {
		tweak(&s)
	}
	if err := h.settings.Save(context.Background(), s); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	h.ledger = New(Deps{
		Store:       st,
		Users:       h.users,
		Withdrawals: h.withdrawals,
		Settings:    h.settings,
		Balances:    NewSerialBalances(h.users),
		Clock:       h.clk,
		Monitor:     NewMonitor(DefaultAbuseThreshold),
		Events:      h.events,
	})
	return h
}

func (h *harness) newUser(t *testing.T, coins int64) *domain.User {
	t.Helper()
	h.n++
	u := &domain.User{
		Email:            fmt.Sprintf("user%d@example.com", h.n),
		Name:             fmt.Sprintf("User %d", h.n),
		Coins:            coins,
		AccountCreatedAt: h.clk.Now(),
	}
	if err := h.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func (h *harness) open(t *testing.T, u *domain.User) (*Session, *recorder) {
	t.Helper()
	rec := &recorder{}
	s, err := h.ledger.Open(context.Background(), u.ID, rec)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(s.Close)
	return s, rec
}

func (h *harness) stored(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := h.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	return u
}

// step moves the clock past the anti-abuse threshold.
func (h *harness) step() { h.clk.Advance(time.Second) }

type recorder struct {
	mu        sync.Mutex
	users     []*domain.User
	settings  int
	earned    []Earned
	results   []string
	loggedOut []string
}

func (r *recorder) UserChanged(u *domain.User) {
	r.mu.Lock()
	r.users = append(r.users, u)
	r.mu.Unlock()
}

func (r *recorder) SettingsChanged(domain.AppSettings) {
	r.mu.Lock()
	r.settings++
	r.mu.Unlock()
}

func (r *recorder) CoinsEarned(e Earned) {
	r.mu.Lock()
	r.earned = append(r.earned, e)
	r.mu.Unlock()
}

func (r *recorder) Result(op string, res Result) {
	r.mu.Lock()
	r.results = append(r.results, op+":"+res.Message)
	r.mu.Unlock()
}

func (r *recorder) LoggedOut(reason string) {
	r.mu.Lock()
	r.loggedOut = append(r.loggedOut, reason)
	r.mu.Unlock()
}

func (r *recorder) logouts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.loggedOut...)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (e *eventRecorder) Publish(_ context.Context, ev domain.LedgerEvent) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *eventRecorder) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func mustOK(t *testing.T, r Result) {
	t.Helper()
	if !r.OK {
		t.Fatalf("expected success, got %+v", r)
	}
}

func mustFail(t *testing.T, r Result, reason Reason, msg string) {
	t.Helper()
	if r.OK || r.Reason != reason {
		t.Fatalf("expected %s failure, got %+v", reason, r)
	}
	if msg != "" && r.Message != msg {
		t.Fatalf("message = %q, want %q", r.Message, msg)
	}
}
