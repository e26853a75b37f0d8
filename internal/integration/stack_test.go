package integration

import (
	"context"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/handlers"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"
	"github.com/abbasifarasat36-dev/globaldragon/internal/session"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
	"github.com/abbasifarasat36-dev/globaldragon/internal/ws"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// process is one server instance. Several processes can share one Redis.
type process struct {
	rdb     *redis.Client
	store   *store.Redis
	users   *repository.UserRepository
	wds     *repository.WithdrawalRepository
	ledger  *reward.Ledger
	manager *reward.Manager
	hub     *ws.Hub
	handler *handlers.Handler
}

func newProcess(t *testing.T, mr *miniredis.Miniredis, clk clock.Clock) *process {
	t.Helper()
	ctx := context.Background()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := store.NewRedis(rdb, "it:")
	t.Cleanup(func() {
		_ = st.Close()
		_ = rdb.Close()
	})

	users := repository.NewUserRepository(st)
	withdrawals := repository.NewWithdrawalRepository(st)
	settings := repository.NewSettingsRepository(st)
	require.NoError(t, settings.Seed(ctx))

	audit := service.NewAuditService(repository.NewAuditRepository(st), clk)
	ledger := reward.New(reward.Deps{
		Store:       st,
		Users:       users,
		Withdrawals: withdrawals,
		Settings:    settings,
		Balances:    reward.NewAtomicBalances(st),
		Clock:       clk,
		Audit:       audit,
	})
	hub := ws.NewHub()
	manager := reward.NewManager(ledger, hub.Presenter)
	t.Cleanup(func() {
		hub.Close()
		manager.CloseAll()
	})
	keeper := session.NewRedis(rdb, time.Hour)

	h := &handlers.Handler{
		Auth:          service.NewAuthService(users, manager, keeper, audit),
		Resets:        service.NewPasswordResetService(users, repository.NewPasswordResetRepository(st), settings, ledger, keeper, audit, nil),
		Admin:         service.NewAdminService(users, withdrawals, settings, audit, clk),
		Audit:         audit,
		Announcements: service.NewAnnouncementService(repository.NewAnnouncementRepository(st), ledger),
		Support:       service.NewSupportService(repository.NewSupportRepository(st), users, clk),
		Sessions:      manager,
		Ads:           reward.NewSelector(settings),
		Users:         users,
		Withdrawals:   withdrawals,
		Settings:      settings,
		Hub:           hub,
	}
	return &process{rdb: rdb, store: st, users: users, wds: withdrawals, ledger: ledger, manager: manager, hub: hub, handler: h}
}
