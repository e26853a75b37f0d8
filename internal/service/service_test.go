package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/session"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
)

type fixture struct {
	clk         *clock.Mock
	users       *repository.UserRepository
	withdrawals *repository.WithdrawalRepository
	settings    *repository.SettingsRepository
	ledger      *reward.Ledger
	manager     *reward.Manager
	keeper      *session.Memory
	audit       *AuditService
	auditRepo   *repository.AuditRepository
	auth        *AuthService
	resets      *PasswordResetService
	notifier    *resetRecorder
	admin       *AdminService
	ann         *AnnouncementService
	support     *SupportService
}

type resetRecorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *resetRecorder) NotifyPasswordReset(_ context.Context, _ *domain.PasswordResetRequest, msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	InitJWT("test-secret", time.Hour)
	st := store.NewMemory()
	f := &fixture{
		clk:         clock.NewMock(time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)),
		users:       repository.NewUserRepository(st),
		withdrawals: repository.NewWithdrawalRepository(st),
		settings:    repository.NewSettingsRepository(st),
		auditRepo:   repository.NewAuditRepository(st),
		notifier:    &resetRecorder{},
	}
	if err := f.settings.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.audit = NewAuditService(f.auditRepo, f.clk)
	f.ledger = reward.New(reward.Deps{
		Store:       st,
		Users:       f.users,
		Withdrawals: f.withdrawals,
		Settings:    f.settings,
		Clock:       f.clk,
		Audit:       f.audit,
	})
	f.manager = reward.NewManager(f.ledger, nil)
	f.keeper = session.NewMemory(time.Hour, f.clk)
	f.auth = NewAuthService(f.users, f.manager, f.keeper, f.audit)
	f.resets = NewPasswordResetService(f.users, repository.NewPasswordResetRepository(st), f.settings, f.ledger, f.keeper, f.audit, f.notifier)
	f.admin = NewAdminService(f.users, f.withdrawals, f.settings, f.audit, f.clk)
	f.ann = NewAnnouncementService(repository.NewAnnouncementRepository(st), f.ledger)
	f.support = NewSupportService(repository.NewSupportRepository(st), f.users, f.clk)
	t.Cleanup(f.manager.CloseAll)
	return f
}

func (f *fixture) register(t *testing.T, email string) *AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), RegisterInput{Name: "Ali", Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return res
}

func TestRegisterAppliesWelcomeBonusOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.register(t, "Ali@Example.com")
	if res.Welcome == nil || res.Welcome.Amount != 200 {
		t.Fatalf("welcome = %+v", res.Welcome)
	}
	if res.User.Coins != 200 || res.User.PasswordHash != "" {
		t.Fatalf("user = %+v", res.User)
	}
	if res.User.Email != "ali@example.com" || res.User.Role != domain.RoleUser {
		t.Fatalf("email=%q role=%q", res.User.Email, res.User.Role)
	}

	f.clk.Advance(time.Minute)
	again, err := f.auth.Login(ctx, "ALI@example.com", "secret1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Welcome != nil || again.User.Coins != 200 {
		t.Fatalf("second login paid again: %+v", again)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "taken@example.com")

	cases := []RegisterInput{
		{Name: "", Email: "a@example.com", Password: "secret1"},
		{Name: "A", Email: "not-an-email", Password: "secret1"},
		{Name: "A", Email: "b@example.com", Password: "12345"},
		{Name: "A", Email: "TAKEN@example.com", Password: "secret1"},
	}
	for _, in := range cases {
		_, err := f.auth.Register(ctx, in)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%+v: err = %v", in, err)
		}
	}
}

func TestRegisterWithReferralCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	referrer := f.register(t, "ref@example.com")

	f.clk.Advance(time.Second)
	res, err := f.auth.Register(ctx, RegisterInput{Name: "New", Email: "new@example.com", Password: "secret1", ReferralCode: referrer.User.ReferralCode})
	if err != nil {
		t.Fatal(err)
	}
	if res.Referral == nil || !res.Referral.OK {
		t.Fatalf("referral = %+v", res.Referral)
	}
	if res.User.Coins != 200+150 || res.User.ReferredBy != referrer.User.ReferralCode {
		t.Fatalf("referee = %+v", res.User)
	}
	r, _ := f.users.GetByID(ctx, referrer.User.ID)
	if r.Coins != 200+250 || r.ReferralsCount != 1 {
		t.Fatalf("referrer = %+v", r)
	}
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "a@example.com")

	if _, err := f.auth.Login(ctx, "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := f.auth.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email err = %v", err)
	}

	f.ledger.BanUser(ctx, "admin", res.User.ID)
	if _, err := f.auth.Login(ctx, "a@example.com", "secret1"); !errors.Is(err, ErrAccountSuspended) {
		t.Fatalf("banned err = %v", err)
	}
}

func TestAuthenticateAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "a@example.com")

	claims, err := f.auth.Authenticate(ctx, res.Token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.UserID() != res.User.ID || claims.IsAdmin() {
		t.Fatalf("claims = %+v", claims)
	}

	if err := f.auth.Logout(ctx, claims); err != nil {
		t.Fatal(err)
	}
	if _, err := f.auth.Authenticate(ctx, res.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("after logout err = %v", err)
	}

	second, _ := f.auth.Login(ctx, "a@example.com", "secret1")
	f.ledger.BanUser(ctx, "admin", res.User.ID)
	if _, err := f.auth.Authenticate(ctx, second.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("ban did not revoke: %v", err)
	}

	if _, err := f.auth.Authenticate(ctx, "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage err = %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "a@example.com")
	f.clk.Advance(time.Hour + time.Second)
	if _, err := f.auth.Authenticate(context.Background(), res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired token err = %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "a@example.com")

	msg, err := f.resets.Request(ctx, "a@example.com", "03001234567")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(msg, "OTP has been sent") {
		t.Fatalf("msg = %q", msg)
	}
	msg, _ = f.resets.Request(ctx, "a@example.com", "")
	if msg != "A password reset request is already pending for this account." {
		t.Fatalf("second request msg = %q", msg)
	}
	if len(f.notifier.msgs) != 1 {
		t.Fatalf("notifications = %v", f.notifier.msgs)
	}

	pending, _ := f.resets.Pending(ctx)
	if len(pending) != 1 || len(pending[0].OTP) != 6 {
		t.Fatalf("pending = %+v", pending)
	}
	code := pending[0].OTP
	if !strings.Contains(f.notifier.msgs[0], code) {
		t.Fatalf("notification missing code: %q", f.notifier.msgs[0])
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	var ve *ValidationError
	if _, err := f.resets.Verify(ctx, "a@example.com", wrong, "newpass"); !errors.As(err, &ve) || ve.Msg != "Invalid OTP." {
		t.Fatalf("wrong code err = %v", err)
	}
	if _, err := f.resets.Verify(ctx, "a@example.com", code, "newpass"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.auth.Login(ctx, "a@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := f.auth.Login(ctx, "a@example.com", "newpass"); err != nil {
		t.Fatalf("new password: %v", err)
	}
	if _, err := f.auth.Authenticate(ctx, res.Token); !errors.Is(err, ErrSessionRevoked) {
		t.Fatal("reset should revoke old sessions")
	}
	u, _ := f.users.GetByID(ctx, res.User.ID)
	if u.Coins != 200 {
		t.Fatalf("password change touched coins: %d", u.Coins)
	}

	if _, err := f.resets.Verify(ctx, "a@example.com", code, "again1"); !errors.As(err, &ve) || ve.Msg != "No pending password reset request found." {
		t.Fatalf("reuse err = %v", err)
	}
}

func TestPasswordResetExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com")
	if _, err := f.resets.Request(ctx, "a@example.com", ""); err != nil {
		t.Fatal(err)
	}
	pending, _ := f.resets.Pending(ctx)
	f.clk.Advance(OTPPeriod + time.Second)

	var ve *ValidationError
	if _, err := f.resets.Verify(ctx, "a@example.com", pending[0].OTP, "newpass"); !errors.As(err, &ve) || ve.Msg != "OTP has expired." {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateOTPSixDigits(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	code, err := generateOTP("a@example.com", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		t.Fatalf("code = %q", code)
	}
}

func TestPasswordResetBotOffline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@example.com")
	s, _ := f.settings.Get(ctx)
	s.OTPBotEnabled = false
	_ = f.settings.Save(ctx, s)

	msg, err := f.resets.Request(ctx, "a@example.com", "")
	if err != nil || !strings.Contains(msg, "offline") {
		t.Fatalf("msg=%q err=%v", msg, err)
	}
	pending, _ := f.resets.Pending(ctx)
	if pending[0].OTP != "" || len(f.notifier.msgs) != 0 {
		t.Fatal("offline request generated a code")
	}

	msg, err = f.resets.Request(ctx, "ghost@example.com", "")
	if err != nil || !strings.HasPrefix(msg, "If an account") {
		t.Fatalf("unknown email msg=%q err=%v", msg, err)
	}

	if err := f.resets.Resolve(ctx, "admin", pending[0].ID); err != nil {
		t.Fatal(err)
	}
	if p, _ := f.resets.Pending(ctx); len(p) != 0 {
		t.Fatal("resolve left request pending")
	}
}

func TestAdminStatsAndTabs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")
	b := f.register(t, "b@example.com")
	f.ledger.SetCoins(ctx, "admin", a.User.ID, 200000)
	f.ledger.SetCoins(ctx, "admin", b.User.ID, 100000)

	req := domain.WithdrawRequest{AmountPKR: 500, Method: domain.PaymentMethodJazzCash, FullName: "A", MobileNumber: "1"}
	sa, _ := f.manager.Get(ctx, a.User.ID)
	first := sa.SubmitWithdrawal(ctx, req)
	f.ledger.ResolveWithdrawal(ctx, "admin", first.Withdrawal.ID, domain.WithdrawalStatusApproved)
	req.AmountPKR = 1000
	sa.SubmitWithdrawal(ctx, req)
	sb, _ := f.manager.Get(ctx, b.User.ID)
	req.AmountPKR = 500
	sb.SubmitWithdrawal(ctx, req)

	newTab, _ := f.admin.WithdrawalTab(ctx, TabNew)
	oldTab, _ := f.admin.WithdrawalTab(ctx, TabOld)
	history, _ := f.admin.WithdrawalTab(ctx, TabHistory)
	if len(newTab) != 1 || newTab[0].UserID != b.User.ID {
		t.Fatalf("new tab = %+v", newTab)
	}
	if len(oldTab) != 1 || oldTab[0].UserID != a.User.ID {
		t.Fatalf("old tab = %+v", oldTab)
	}
	if len(history) != 1 || history[0].Status != domain.WithdrawalStatusApproved {
		t.Fatalf("history = %+v", history)
	}
	if _, err := f.admin.WithdrawalTab(ctx, "bogus"); !errors.Is(err, ErrUnknownTab) {
		t.Fatalf("bogus tab err = %v", err)
	}

	f.ledger.BanUser(ctx, "admin", b.User.ID)
	stats, err := f.admin.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalUsers != 2 || stats.PendingWithdrawals != 2 || stats.ApprovedWithdrawals != 1 || stats.BannedUsers != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.PaidOutPKR != 500 || stats.PendingPKR != 1500 || stats.NewUsersToday != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.TotalCoins != (200000-50000-100000)+(100000-50000) {
		t.Fatalf("total coins = %d", stats.TotalCoins)
	}
}

func TestAdminAntiCheatList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")
	f.register(t, "b@example.com")

	s, _ := f.manager.Get(ctx, a.User.ID)
	s.WatchChannel(ctx, reward.ChannelHome)
	f.clk.Advance(100 * time.Millisecond)
	s.WatchChannel(ctx, reward.ChannelHome)

	list, err := f.admin.AntiCheat(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != a.User.ID || list[0].PasswordHash != "" {
		t.Fatalf("anti-cheat = %+v", list)
	}
	logs, _ := f.audit.GetLogsByAction(ctx, domain.AuditActionAutoBan, 10)
	if len(logs) != 1 {
		t.Fatalf("auto-ban audit entries = %d", len(logs))
	}
}

func TestAdminGetUserAndSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")

	for _, id := range []string{a.User.ID, "A@example.com", strings.ToLower(a.User.ReferralCode)} {
		u, err := f.admin.GetUser(ctx, id)
		if err != nil || u.ID != a.User.ID {
			t.Fatalf("lookup %q: %v", id, err)
		}
	}
	if _, err := f.admin.GetUser(ctx, "nope"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Fatalf("err = %v", err)
	}

	s, _ := f.admin.Settings(ctx)
	s.CoinsPerPKR = 0
	var ve *ValidationError
	if err := f.admin.UpdateSettings(ctx, "admin", s); !errors.As(err, &ve) {
		t.Fatalf("invalid settings accepted: %v", err)
	}
	s.CoinsPerPKR = 50
	if err := f.admin.UpdateSettings(ctx, "admin", s); err != nil {
		t.Fatal(err)
	}
	sess, _ := f.manager.Get(ctx, a.User.ID)
	if sess.State().Settings.CoinsPerPKR != 50 {
		t.Fatal("live session missed settings change")
	}
}

func TestAnnouncements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")

	u, _ := f.users.GetByID(ctx, a.User.ID)
	if HasNew(u, nil) {
		t.Fatal("nothing to see")
	}
	ann, err := f.ann.Create(ctx, "Hello", "World")
	if err != nil {
		t.Fatal(err)
	}
	list, _ := f.ann.List(ctx)
	if !HasNew(u, list) {
		t.Fatal("never-seen user should see new")
	}

	f.clk.Advance(time.Minute)
	if err := f.ann.MarkSeen(ctx, a.User.ID); err != nil {
		t.Fatal(err)
	}
	u, _ = f.users.GetByID(ctx, a.User.ID)
	if HasNew(u, list) {
		t.Fatal("seen announcement still new")
	}
	if u.Coins != 200 {
		t.Fatal("mark seen touched coins")
	}

	f.clk.Advance(time.Minute)
	f.ann.Create(ctx, "Second", "One")
	list, _ = f.ann.List(ctx)
	if !HasNew(u, list) {
		t.Fatal("newer announcement not flagged")
	}

	if _, err := f.ann.Update(ctx, ann.ID, "Hi", ""); err != nil {
		t.Fatal(err)
	}
	if err := f.ann.Delete(ctx, ann.ID); err != nil {
		t.Fatal(err)
	}
	if err := f.ann.Delete(ctx, ann.ID); !errors.Is(err, repository.ErrAnnouncementNotFound) {
		t.Fatalf("double delete err = %v", err)
	}
	if _, err := f.ann.Create(ctx, " ", "x"); err == nil {
		t.Fatal("empty title accepted")
	}
}

func TestSupportThreads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "a@example.com")
	b := f.register(t, "b@example.com")

	m, err := f.support.Open(ctx, a.User.ID, "Payout", "Where is my money?")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Replies) != 1 || m.Status != domain.SupportStatusOpen {
		t.Fatalf("thread = %+v", m)
	}
	if _, err := f.support.Reply(ctx, m.ID, "", domain.SupportSenderAdmin, "Processing"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.support.Reply(ctx, m.ID, b.User.ID, domain.SupportSenderUser, "me too"); !errors.Is(err, repository.ErrTicketNotFound) {
		t.Fatalf("foreign reply err = %v", err)
	}
	if _, err := f.support.Close(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.support.Reply(ctx, m.ID, a.User.ID, domain.SupportSenderUser, "thanks"); !errors.Is(err, ErrTicketClosed) {
		t.Fatalf("closed reply err = %v", err)
	}

	mine, _ := f.support.ForUser(ctx, a.User.ID)
	if len(mine) != 1 || len(mine[0].Replies) != 2 || mine[0].Status != domain.SupportStatusClosed {
		t.Fatalf("threads = %+v", mine)
	}
}
