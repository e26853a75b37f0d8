package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of *tgbotapi.BotAPI used for replies and notifications.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Deps are the services the commands act on. They are bound after the bot
// is created because the ledger and the reset service notify through it.
type Deps struct {
	Admin  *service.AdminService
	Auth   *service.AuthService
	Resets *service.PasswordResetService
	Ledger *reward.Ledger
}

// AdminBot handles admin commands via Telegram and relays withdrawal and
// password reset notifications to the admins.
type AdminBot struct {
	api      *tgbotapi.BotAPI
	out      sender
	deps     Deps
	adminIDs []int64 // Telegram user IDs who can use admin commands
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	log      *slog.Logger
}

// NewAdminBot creates a new admin bot
func NewAdminBot(token string, adminIDs []int64) (*AdminBot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newAdminBot(api, adminIDs)
	b.api = api
	b.log.Info("admin bot authorized", "username", api.Self.UserName)
	return b, nil
}

func newAdminBot(out sender, adminIDs []int64) *AdminBot {
	return &AdminBot{
		out:      out,
		adminIDs: adminIDs,
		stopCh:   make(chan struct{}),
		log:      logger.With("component", "admin_bot"),
	}
}

// Bind sets the services used by commands. Call it before Start.
func (b *AdminBot) Bind(d Deps) { b.deps = d }

// Start listens for commands until Stop is called.
func (b *AdminBot) Start() {
	if b.api == nil {
		return
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("starting bot update loop")

	for {
		select {
		case <-b.stopCh:
			b.log.Info("stopping bot update loop")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if !b.isAdmin(update.Message.From.ID) {
				continue
			}

			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleCommand(msg)
			}(update.Message)
		}
	}
}

// Stop gracefully stops the bot
func (b *AdminBot) Stop() {
	b.stopOnce.Do(func() {
		b.log.Info("stopping admin bot...")
		close(b.stopCh)
		if b.api != nil {
			b.api.StopReceivingUpdates()
		}
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.log.Info("admin bot stopped gracefully")
	case <-time.After(10 * time.Second):
		b.log.Warn("admin bot shutdown timeout, some handlers may not have completed")
	}
}

func (b *AdminBot) isAdmin(userID int64) bool {
	for _, id := range b.adminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *AdminBot) handleCommand(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	actor := fmt.Sprintf("telegram:%d", msg.From.ID)
	response := b.execute(ctx, actor, msg.Command(), strings.TrimSpace(msg.CommandArguments()))

	reply := tgbotapi.NewMessage(msg.Chat.ID, response)
	reply.ParseMode = "HTML"
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.out.Send(reply); err != nil {
		b.log.Error("error sending message", "error", err)
	}
}

// execute runs one command and returns the HTML reply.
func (b *AdminBot) execute(ctx context.Context, actor, command, args string) string {
	switch command {
	case "start", "help":
		return helpMessage
	case "stats":
		return b.handleStats(ctx)
	case "user":
		return b.handleUser(ctx, args)
	case "ban":
		return b.handleBan(ctx, actor, args, true)
	case "unban":
		return b.handleBan(ctx, actor, args, false)
	case "withdrawals":
		return b.handleWithdrawals(ctx)
	case "approve":
		return b.handleResolve(ctx, actor, args, domain.WithdrawalStatusApproved)
	case "reject":
		return b.handleResolve(ctx, actor, args, domain.WithdrawalStatusRejected)
	case "resets":
		return b.handleResets(ctx)
	}
	return "❌ Unknown command. Use /help for the list of commands."
}

const helpMessage = `<b>🤖 Admin commands</b>

<b>📊 Stats:</b>
/stats - Platform statistics

<b>👤 Users:</b>
/user &lt;id|email|referral code&gt; - User details
/ban &lt;id&gt; - Suspend an account
/unban &lt;id&gt; - Lift a suspension

<b>💸 Withdrawals:</b>
/withdrawals - Pending withdrawals
/approve &lt;id&gt; - Approve a withdrawal
/reject &lt;id&gt; - Reject and refund a withdrawal

<b>🔑 Password resets:</b>
/resets - Pending reset requests`

func (b *AdminBot) handleStats(ctx context.Context) string {
	stats, err := b.deps.Admin.GetStats(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}

	return fmt.Sprintf(`<b>📊 Platform statistics</b>

<b>👥 Users:</b>
• Total: %d
• New today: %d
• Banned: %d (auto: %d)

<b>💰 Economy:</b>
• Coins in circulation: %d

<b>💸 Withdrawals:</b>
• Pending: %d (%d PKR)
• Approved: %d (%d PKR paid out)
• Rejected: %d`,
		stats.TotalUsers,
		stats.NewUsersToday,
		stats.BannedUsers,
		stats.AutoBannedUsers,
		stats.TotalCoins,
		stats.PendingWithdrawals,
		stats.PendingPKR,
		stats.ApprovedWithdrawals,
		stats.PaidOutPKR,
		stats.RejectedWithdrawals,
	)
}

func (b *AdminBot) handleUser(ctx context.Context, args string) string {
	if args == "" {
		return "❌ Usage: /user <id|email|referral code>"
	}

	u, err := b.deps.Admin.GetUser(ctx, args)
	if err != nil {
		return fmt.Sprintf("❌ User not found: %v", err)
	}

	status := "active"
	if u.IsBanned {
		status = "banned"
		if u.BanReason != domain.BanReasonNone {
			status += " (" + string(u.BanReason) + ")"
		}
	}

	return fmt.Sprintf(`<b>👤 User</b>

• ID: <code>%s</code>
• Name: %s
• Email: %s
• 🪙 Coins: %d
• Status: %s
• Referral code: <code>%s</code> (%d referrals)
• 📅 Registered: %s`,
		u.ID,
		html.EscapeString(u.Name),
		html.EscapeString(u.Email),
		u.Coins,
		status,
		u.ReferralCode,
		u.ReferralsCount,
		u.AccountCreatedAt.Format("02.01.2006 15:04"),
	)
}

func (b *AdminBot) handleBan(ctx context.Context, actor, args string, banned bool) string {
	if args == "" {
		if banned {
			return "❌ Usage: /ban <id>"
		}
		return "❌ Usage: /unban <id>"
	}

	var r reward.Result
	if banned {
		r = b.deps.Ledger.BanUser(ctx, actor, args)
	} else {
		r = b.deps.Ledger.UnbanUser(ctx, actor, args)
	}
	if !r.OK {
		return "❌ " + r.Message
	}

	if banned {
		if err := b.deps.Auth.RevokeAll(ctx, args); err != nil {
			b.log.Warn("revoke sessions failed", "user_id", args, "error", err)
		}
		return fmt.Sprintf("🚫 User <code>%s</code> banned", html.EscapeString(args))
	}
	return fmt.Sprintf("✅ User <code>%s</code> unbanned", html.EscapeString(args))
}

func (b *AdminBot) handleWithdrawals(ctx context.Context) string {
	var pending []*domain.WithdrawalRequest
	for _, tab := range []string{service.TabNew, service.TabOld} {
		list, err := b.deps.Admin.WithdrawalTab(ctx, tab)
		if err != nil {
			return fmt.Sprintf("❌ Error: %v", err)
		}
		pending = append(pending, list...)
	}

	if len(pending) == 0 {
		return "✅ No pending withdrawals"
	}

	var sb strings.Builder
	sb.WriteString("<b>💸 Pending withdrawals</b>\n\n")
	for _, w := range pending {
		sb.WriteString(withdrawalLine(w))
		sb.WriteString("\n")
	}
	sb.WriteString("/approve <id> - approve\n/reject <id> - reject and refund")
	return sb.String()
}

func withdrawalLine(w *domain.WithdrawalRequest) string {
	tag := "returning user"
	if w.IsNewUser {
		tag = "new user"
	}
	return fmt.Sprintf("🆔 <code>%s</code>\n👤 %s (%s)\n💰 %d PKR (%d coins) via %s\n📱 %s, %s\n📅 %s\n",
		w.ID,
		html.EscapeString(w.UserName), tag,
		w.AmountPKR, w.Amount, w.Method,
		html.EscapeString(w.FullName), html.EscapeString(w.MobileNumber),
		w.CreatedAt.Format("02.01.2006 15:04"),
	)
}

func (b *AdminBot) handleResolve(ctx context.Context, actor, args string, status domain.WithdrawalStatus) string {
	id := strings.Fields(args)
	if len(id) == 0 {
		if status == domain.WithdrawalStatusApproved {
			return "❌ Usage: /approve <id>"
		}
		return "❌ Usage: /reject <id>"
	}

	r := b.deps.Ledger.ResolveWithdrawal(ctx, actor, id[0], status)
	if !r.OK {
		return "❌ " + r.Message
	}
	if r.Reason == reward.ReasonPartial {
		return "⚠️ " + r.Message
	}
	return "✅ " + r.Message
}

func (b *AdminBot) handleResets(ctx context.Context) string {
	pending, err := b.deps.Resets.Pending(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Error: %v", err)
	}
	if len(pending) == 0 {
		return "✅ No pending password resets"
	}

	var sb strings.Builder
	sb.WriteString("<b>🔑 Pending password resets</b>\n\n")
	for _, r := range pending {
		sb.WriteString(fmt.Sprintf("📧 %s", html.EscapeString(r.Email)))
		if r.Contact != "" {
			sb.WriteString(fmt.Sprintf(" (%s)", html.EscapeString(r.Contact)))
		}
		if r.OTP != "" {
			sb.WriteString(fmt.Sprintf("\n🔢 <code>%s</code>", r.OTP))
		}
		sb.WriteString(fmt.Sprintf("\n📅 %s\n\n", r.CreatedAt.Format("02.01.2006 15:04")))
	}
	return sb.String()
}

// NotifyNewWithdrawal implements reward.WithdrawalNotifier. Delivery runs
// in the background so the ledger never waits on Telegram.
func (b *AdminBot) NotifyNewWithdrawal(_ context.Context, w *domain.WithdrawalRequest) {
	b.notify("🔔 <b>New withdrawal request!</b>\n\n" + withdrawalLine(w) +
		fmt.Sprintf("\n/approve %s - approve\n/reject %s - reject", w.ID, w.ID))
}

// NotifyPasswordReset implements service.ResetNotifier.
func (b *AdminBot) NotifyPasswordReset(_ context.Context, req *domain.PasswordResetRequest, message string) {
	text := fmt.Sprintf("🔑 <b>Password reset</b>\n\n📧 %s", html.EscapeString(req.Email))
	if req.Contact != "" {
		text += fmt.Sprintf("\n📱 %s", html.EscapeString(req.Contact))
	}
	text += "\n\n" + html.EscapeString(message)
	b.notify(text)
}

func (b *AdminBot) notify(text string) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for _, adminID := range b.adminIDs {
			msg := tgbotapi.NewMessage(adminID, text)
			msg.ParseMode = "HTML"
			if _, err := b.out.Send(msg); err != nil {
				b.log.Error("failed to notify admin", "admin_id", adminID, "error", err)
			}
		}
	}()
}
