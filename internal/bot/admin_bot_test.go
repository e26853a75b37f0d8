package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"
	"github.com/abbasifarasat36-dev/globaldragon/internal/session"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recorder struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (r *recorder) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		r.sent = append(r.sent, m)
	}
	return tgbotapi.Message{}, nil
}

type env struct {
	bot     *AdminBot
	out     *recorder
	users   *repository.UserRepository
	manager *reward.Manager
	ledger  *reward.Ledger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	clk := clock.NewMock(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))

	users := repository.NewUserRepository(st)
	withdrawals := repository.NewWithdrawalRepository(st)
	settings := repository.NewSettingsRepository(st)
	if err := settings.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	out := &recorder{}
	b := newAdminBot(out, []int64{11, 22})

	audit := service.NewAuditService(repository.NewAuditRepository(st), clk)
	ledger := reward.New(reward.Deps{
		Store:       st,
		Users:       users,
		Withdrawals: withdrawals,
		Settings:    settings,
		Clock:       clk,
		Audit:       audit,
		Notifier:    b,
	})
	manager := reward.NewManager(ledger, nil)
	t.Cleanup(manager.CloseAll)
	keeper := session.NewMemory(time.Hour, clk)

	b.Bind(Deps{
		Admin:  service.NewAdminService(users, withdrawals, settings, audit, clk),
		Auth:   service.NewAuthService(users, manager, keeper, audit),
		Resets: service.NewPasswordResetService(users, repository.NewPasswordResetRepository(st), settings, ledger, keeper, audit, b),
		Ledger: ledger,
	})
	return &env{bot: b, out: out, users: users, manager: manager, ledger: ledger}
}

func (e *env) user(t *testing.T, email string, coins int64) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, Name: "Ayesha <b>", Coins: coins, HasReceivedWelcomeBonus: true}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

func (e *env) run(cmd, args string) string {
	return e.bot.execute(context.Background(), "telegram:11", cmd, args)
}

func TestIsAdmin(t *testing.T) {
	b := newAdminBot(&recorder{}, []int64{5})
	if !b.isAdmin(5) || b.isAdmin(6) {
		t.Fatal("isAdmin mismatch")
	}
}

func TestStatsAndUser(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", 1234)

	if got := e.run("stats", ""); !strings.Contains(got, "Total: 1") || !strings.Contains(got, "Coins in circulation: 1234") {
		t.Fatalf("stats = %q", got)
	}

	got := e.run("user", "A@Example.com")
	if !strings.Contains(got, u.ID) || !strings.Contains(got, "&lt;b&gt;") {
		t.Fatalf("user = %q", got)
	}
	if got := e.run("user", ""); !strings.HasPrefix(got, "❌ Usage") {
		t.Fatalf("user without args = %q", got)
	}
	if got := e.run("nope", ""); !strings.Contains(got, "Unknown command") {
		t.Fatalf("unknown = %q", got)
	}
}

func TestBanAndUnban(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "a@example.com", 0)

	if got := e.run("ban", u.ID); !strings.Contains(got, "banned") {
		t.Fatalf("ban = %q", got)
	}
	stored, err := e.users.GetByID(context.Background(), u.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsBanned || stored.BanReason != domain.BanReasonManual {
		t.Fatalf("stored = %+v", stored)
	}

	if got := e.run("unban", u.ID); !strings.Contains(got, "unbanned") {
		t.Fatalf("unban = %q", got)
	}
	if got := e.run("ban", "missing"); !strings.HasPrefix(got, "❌") {
		t.Fatalf("ban missing = %q", got)
	}
}

func TestWithdrawalNotificationAndResolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "a@example.com", 60000)

	s, err := e.manager.Get(ctx, u.ID)
	if err != nil {
		t.Fatal(err)
	}
	r := s.SubmitWithdrawal(ctx, domain.WithdrawRequest{
		AmountPKR: 500, Method: domain.PaymentMethodJazzCash, FullName: "Ayesha Khan", MobileNumber: "03001234567",
	})
	if !r.OK {
		t.Fatalf("submit = %+v", r)
	}
	e.bot.wg.Wait()

	e.out.mu.Lock()
	sent := append([]tgbotapi.MessageConfig(nil), e.out.sent...)
	e.out.mu.Unlock()
	if len(sent) != 2 {
		t.Fatalf("sent %d notifications, want one per admin", len(sent))
	}
	if sent[0].ChatID != 11 || sent[1].ChatID != 22 || !strings.Contains(sent[0].Text, r.Withdrawal.ID) {
		t.Fatalf("notification = %+v", sent[0])
	}

	if got := e.run("withdrawals", ""); !strings.Contains(got, r.Withdrawal.ID) || !strings.Contains(got, "new user") {
		t.Fatalf("withdrawals = %q", got)
	}
	if got := e.run("approve", r.Withdrawal.ID); !strings.HasPrefix(got, "✅") {
		t.Fatalf("approve = %q", got)
	}
	if got := e.run("reject", r.Withdrawal.ID); !strings.Contains(got, "already been processed") {
		t.Fatalf("second resolve = %q", got)
	}
	if got := e.run("withdrawals", ""); got != "✅ No pending withdrawals" {
		t.Fatalf("withdrawals after approve = %q", got)
	}
}

func TestPasswordResetNotification(t *testing.T) {
	e := newEnv(t)
	e.user(t, "a@example.com", 0)

	if _, err := e.bot.deps.Resets.Request(context.Background(), "a@example.com", "0300"); err != nil {
		t.Fatal(err)
	}
	e.bot.wg.Wait()

	e.out.mu.Lock()
	n := len(e.out.sent)
	e.out.mu.Unlock()
	if n != 2 {
		t.Fatalf("sent %d, want 2", n)
	}
	if got := e.run("resets", ""); !strings.Contains(got, "a@example.com") || !strings.Contains(got, "0300") {
		t.Fatalf("resets = %q", got)
	}
}
