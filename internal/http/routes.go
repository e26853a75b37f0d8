package http

import (
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/http/handlers"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/middleware"
	"github.com/abbasifarasat36-dev/globaldragon/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
)

type Options struct {
	// RewardRateLimit caps reward requests per user per minute; 0 disables it.
	RewardRateLimit int
	// AuthRateLimit caps public auth requests per IP per minute.
	AuthRateLimit int
	CORSOrigins   []string
	// Redis backs the shared rate limiter. Nil means fail-open.
	Redis *redis.Client
}

// NewRouter builds the engine with the global middleware and all routes.
func NewRouter(h *handlers.Handler, health *handlers.HealthHandler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(), middleware.Metrics(), middleware.CORS(opts.CORSOrigins))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	RegisterRoutes(r, h, health, opts)
	return r
}

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, opts Options) {
	authRateLimit := opts.AuthRateLimit
	if authRateLimit <= 0 {
		authRateLimit = 10
	}
	authRL := middleware.NewLocalLimiter(authRateLimit, authRateLimit).Middleware("auth")
	rewardRL := middleware.NewRedisLimiter(opts.Redis).Limit("reward", opts.RewardRateLimit, time.Minute)
	jwt := middleware.JWT(h.Auth)

	v1 := r.Group("/api/v1")

	// Health checks (no rate limiting)
	v1.GET("/health", health.Health)
	v1.GET("/health/live", health.Liveness)
	v1.GET("/health/ready", health.Readiness)

	// Public
	v1.POST("/auth/register", authRL, h.Register)
	v1.POST("/auth/login", authRL, h.Login)
	v1.POST("/auth/password-reset", authRL, h.RequestPasswordReset)
	v1.POST("/auth/password-reset/verify", authRL, h.VerifyPasswordReset)
	v1.GET("/settings/public", h.PublicSettings)
	v1.GET("/ads/:slot/next", h.NextAd)

	// User
	user := v1.Group("", jwt)
	{
		user.GET("/me", h.Me)
		user.POST("/auth/logout", h.Logout)

		user.POST("/watch/:channel", rewardRL, h.Watch)
		user.POST("/bonus/daily", rewardRL, h.DailyBonus)
		user.POST("/bonus/special", rewardRL, h.SpecialTask)
		user.POST("/referral/apply", rewardRL, h.ApplyReferralCode)
		user.GET("/referral", h.GetReferral)
		user.POST("/withdrawals", rewardRL, h.SubmitWithdrawal)
		user.GET("/withdrawals", h.MyWithdrawals)

		user.GET("/announcements", h.ListAnnouncements)
		user.POST("/announcements/seen", h.MarkAnnouncementsSeen)
		user.GET("/support", h.MySupport)
		user.POST("/support", h.OpenSupport)
		user.POST("/support/:id/reply", h.ReplySupport)
	}

	// WebSocket presenter push; authenticates from the header or ?token=
	v1.GET("/ws", ws.HandleWS(h.Hub, h.Auth, h.Sessions, opts.CORSOrigins))

	// Admin
	admin := v1.Group("/admin", jwt, middleware.RequireAdmin())
	{
		admin.GET("/stats", h.Stats)
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.POST("/users/:id/ban", h.BanUser)
		admin.POST("/users/:id/unban", h.UnbanUser)
		admin.POST("/users/:id/coins", h.SetCoins)
		admin.DELETE("/users/:id", h.DeleteUser)

		admin.GET("/withdrawals", h.AdminWithdrawals)
		admin.POST("/withdrawals/:id/approve", h.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/reject", h.RejectWithdrawal)

		admin.GET("/settings", h.GetSettings)
		admin.PUT("/settings", h.UpdateSettings)
		admin.GET("/ads", h.GetAds)
		admin.PUT("/ads", h.UpdateAds)
		admin.GET("/anti-cheat", h.AntiCheat)

		admin.GET("/announcements", h.AdminListAnnouncements)
		admin.POST("/announcements", h.CreateAnnouncement)
		admin.PUT("/announcements/:id", h.UpdateAnnouncement)
		admin.DELETE("/announcements/:id", h.DeleteAnnouncement)

		admin.GET("/support", h.AdminSupport)
		admin.POST("/support/:id/reply", h.AdminReplySupport)
		admin.POST("/support/:id/close", h.CloseSupport)

		admin.GET("/password-resets", h.PasswordResets)
		admin.POST("/password-resets/:id/resolve", h.ResolvePasswordReset)
		admin.GET("/audit", h.AuditLogs)
	}
}
