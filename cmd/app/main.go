package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/bot"
	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/config"
	"github.com/abbasifarasat36-dev/globaldragon/internal/db"
	"github.com/abbasifarasat36-dev/globaldragon/internal/events"
	httpServer "github.com/abbasifarasat36-dev/globaldragon/internal/http"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/handlers"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"
	"github.com/abbasifarasat36-dev/globaldragon/internal/session"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
	"github.com/abbasifarasat36-dev/globaldragon/internal/ws"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret, cfg.JWTTTL)
	if !cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	checks := map[string]handlers.Check{}

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var st store.Store
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", "error", err)
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
		checks["database"] = pool.Ping
	case config.StoreRedis:
		st = store.NewRedis(rdb, "gd:")
	default:
		logger.Warn("using the in-memory store; data is lost on restart")
		st = store.NewMemory()
	}
	defer st.Close()

	users := repository.NewUserRepository(st)
	withdrawals := repository.NewWithdrawalRepository(st)
	settings := repository.NewSettingsRepository(st)
	if cfg.SeedDefaults {
		if err := settings.Seed(ctx); err != nil {
			logger.Fatal("failed to seed settings", "error", err)
		}
	}

	audit := service.NewAuditService(repository.NewAuditRepository(st), clock.Real{})

	deps := reward.Deps{
		Store:       st,
		Users:       users,
		Withdrawals: withdrawals,
		Settings:    settings,
		Balances:    balances(cfg.BalanceMode, st, users),
		Clock:       clock.Real{},
		Monitor:     reward.NewMonitor(cfg.AntiCheatThreshold),
		Audit:       audit,
	}

	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		deps.Events = publisher
		logger.Info("ledger events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	var (
		adminBot      *bot.AdminBot
		resetNotifier service.ResetNotifier
	)
	if cfg.AdminBotEnabled {
		b, err := bot.NewAdminBot(cfg.BotToken, cfg.AdminTelegramIDs)
		if err != nil {
			logger.Error("admin bot disabled", "error", err)
		} else {
			adminBot = b
			deps.Notifier = b
			resetNotifier = b
		}
	}

	ledger := reward.New(deps)
	hub := ws.NewHub()
	manager := reward.NewManager(ledger, hub.Presenter)

	var keeper session.Keeper
	if rdb != nil {
		keeper = session.NewRedis(rdb, cfg.JWTTTL)
	} else {
		keeper = session.NewMemory(cfg.JWTTTL, clock.Real{})
	}

	auth := service.NewAuthService(users, manager, keeper, audit)
	resets := service.NewPasswordResetService(users, repository.NewPasswordResetRepository(st), settings, ledger, keeper, audit, resetNotifier)
	admin := service.NewAdminService(users, withdrawals, settings, audit, clock.Real{})

	if adminBot != nil {
		adminBot.Bind(bot.Deps{Admin: admin, Auth: auth, Resets: resets, Ledger: ledger})
		go adminBot.Start()
	}

	h := &handlers.Handler{
		Auth:          auth,
		Resets:        resets,
		Admin:         admin,
		Audit:         audit,
		Announcements: service.NewAnnouncementService(repository.NewAnnouncementRepository(st), ledger),
		Support:       service.NewSupportService(repository.NewSupportRepository(st), users, clock.Real{}),
		Sessions:      manager,
		Ads:           reward.NewSelector(settings),
		Users:         users,
		Withdrawals:   withdrawals,
		Settings:      settings,
		Hub:           hub,
	}
	router := httpServer.NewRouter(h, handlers.NewHealthHandler(version, checks), httpServer.Options{
		RewardRateLimit: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
		Redis:           rdb,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "store", cfg.StoreBackend, "balance_mode", cfg.BalanceMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	hub.Close()
	manager.CloseAll()
	if adminBot != nil {
		adminBot.Stop()
	}
	if err := publisher.Close(); err != nil {
		logger.Warn("closing event publisher", "error", err)
	}

	logger.Info("server exited")
}

func balances(mode string, st store.Store, users *repository.UserRepository) reward.BalanceStore {
	switch mode {
	case config.BalanceSnapshot:
		logger.Warn("snapshot balance mode can lose concurrent updates")
		return reward.NewSnapshotBalances(users)
	case config.BalanceAtomic:
		up, ok := st.(store.Updater)
		if !ok {
			logger.Fatal("store backend does not support atomic updates")
		}
		return reward.NewAtomicBalances(up)
	}
	return reward.NewSerialBalances(users)
}
