package http

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/handlers"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"
	"github.com/abbasifarasat36-dev/globaldragon/internal/session"
	"github.com/abbasifarasat36-dev/globaldragon/internal/store"
	"github.com/abbasifarasat36-dev/globaldragon/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type app struct {
	t      *testing.T
	clk    *clock.Mock
	router *gin.Engine
	users  *repository.UserRepository
	ledger *reward.Ledger
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service.InitJWT("handler-test-secret", time.Hour)

	ctx := context.Background()
	st := store.NewMemory()
	clk := clock.NewMock(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC))

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
		Clock:       clk,
		Audit:       audit,
	})
	hub := ws.NewHub()
	manager := reward.NewManager(ledger, hub.Presenter)
	t.Cleanup(manager.CloseAll)
	keeper := session.NewMemory(time.Hour, clk)

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
	health := handlers.NewHealthHandler("test", nil)

	return &app{
		t:      t,
		clk:    clk,
		router: NewRouter(h, health, Options{AuthRateLimit: 1000}),
		users:  users,
		ledger: ledger,
	}
}

func (a *app) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func (a *app) register(email string) (string, string) {
	a.t.Helper()
	code, body := a.do(nethttp.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"name": "Test", "email": email, "password": "secret1",
	})
	require.Equal(a.t, nethttp.StatusCreated, code, body)
	user := body["user"].(map[string]any)
	return body["token"].(string), user["id"].(string)
}

func (a *app) admin() string {
	a.t.Helper()
	ctx := context.Background()
	hash, err := service.HashPassword("adminpw")
	require.NoError(a.t, err)
	require.NoError(a.t, a.users.Create(ctx, &domain.User{
		Email: "admin@example.com", Name: "Admin", PasswordHash: hash,
		Role: domain.RoleAdmin, HasReceivedWelcomeBonus: true, AccountCreatedAt: a.clk.Now(),
	}))
	code, body := a.do(nethttp.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "adminpw",
	})
	require.Equal(a.t, nethttp.StatusOK, code, body)
	assert.Equal(a.t, true, body["is_admin"])
	return body["token"].(string)
}

func TestRegisterLoginAndMe(t *testing.T) {
	a := newApp(t)
	token, _ := a.register("user@example.com")

	code, body := a.do(nethttp.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, nethttp.StatusOK, code)
	user := body["user"].(map[string]any)
	assert.Equal(t, float64(200), user["coins"])
	assert.Empty(t, user["password_hash"])

	code, _ = a.do(nethttp.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "nope"})
	assert.Equal(t, nethttp.StatusUnauthorized, code)

	code, body = a.do(nethttp.MethodPost, "/api/v1/auth/register", "", map[string]string{"name": "X", "email": "user@example.com", "password": "secret1"})
	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.Equal(t, "An account with this email already exists.", body["error"])

	code, _ = a.do(nethttp.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, code)
}

func TestWatchAndBonusStatusCodes(t *testing.T) {
	a := newApp(t)
	token, _ := a.register("user@example.com")

	code, body := a.do(nethttp.MethodPost, "/api/v1/watch/home", token, nil)
	require.Equal(t, nethttp.StatusOK, code, body)
	assert.Equal(t, float64(25), body["amount"])

	a.clk.Advance(time.Second)
	code, body = a.do(nethttp.MethodPost, "/api/v1/watch/earn-more", token, nil)
	require.Equal(t, nethttp.StatusOK, code, body)
	assert.Equal(t, float64(15), body["amount"])

	code, _ = a.do(nethttp.MethodPost, "/api/v1/watch/sideways", token, nil)
	assert.Equal(t, nethttp.StatusBadRequest, code)

	a.clk.Advance(time.Second)
	code, _ = a.do(nethttp.MethodPost, "/api/v1/bonus/daily", token, nil)
	require.Equal(t, nethttp.StatusOK, code)

	a.clk.Advance(time.Second)
	code, body = a.do(nethttp.MethodPost, "/api/v1/bonus/daily", token, nil)
	assert.Equal(t, nethttp.StatusConflict, code)
	assert.Equal(t, "ineligible", body["reason"])
	assert.Greater(t, body["cooldown_seconds"].(float64), float64(0))
}

func TestAntiAbuseRevokesToken(t *testing.T) {
	a := newApp(t)
	token, _ := a.register("user@example.com")

	code, _ := a.do(nethttp.MethodPost, "/api/v1/watch/home", token, nil)
	require.Equal(t, nethttp.StatusOK, code)
	a.clk.Advance(100 * time.Millisecond)
	code, body := a.do(nethttp.MethodPost, "/api/v1/watch/home", token, nil)
	require.Equal(t, nethttp.StatusForbidden, code)
	assert.Equal(t, "suspended", body["reason"])

	code, _ = a.do(nethttp.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, code)

	code, _ = a.do(nethttp.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "secret1"})
	assert.Equal(t, nethttp.StatusForbidden, code)
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newApp(t)
	token, _ := a.register("user@example.com")

	code, _ := a.do(nethttp.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, nethttp.StatusOK, code)
	code, _ = a.do(nethttp.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, code)
}

func TestWithdrawalFlowThroughAdmin(t *testing.T) {
	a := newApp(t)
	token, userID := a.register("user@example.com")
	adminToken := a.admin()

	req := map[string]any{"amount_pkr": 500, "method": "JazzCash", "full_name": "Test User", "mobile_number": "03001234567"}
	code, body := a.do(nethttp.MethodPost, "/api/v1/withdrawals", token, req)
	assert.Equal(t, nethttp.StatusConflict, code, body)

	code, _ = a.do(nethttp.MethodPost, "/api/v1/admin/users/"+userID+"/coins", token, map[string]int{"coins": 1})
	assert.Equal(t, nethttp.StatusForbidden, code)

	code, body = a.do(nethttp.MethodPost, "/api/v1/admin/users/"+userID+"/coins", adminToken, map[string]int{"coins": 60000})
	require.Equal(t, nethttp.StatusOK, code, body)

	req["amount_pkr"] = 100
	code, body = a.do(nethttp.MethodPost, "/api/v1/withdrawals", token, req)
	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.Equal(t, "Minimum withdrawal for new users is 500 PKR.", body["message"])

	req["amount_pkr"] = 500
	code, body = a.do(nethttp.MethodPost, "/api/v1/withdrawals", token, req)
	require.Equal(t, nethttp.StatusOK, code, body)
	wid := body["withdrawal"].(map[string]any)["id"].(string)

	code, body = a.do(nethttp.MethodGet, "/api/v1/admin/withdrawals?tab=new", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Len(t, body["withdrawals"], 1)

	code, body = a.do(nethttp.MethodPost, "/api/v1/admin/withdrawals/"+wid+"/reject", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, code, body)
	code, body = a.do(nethttp.MethodPost, "/api/v1/admin/withdrawals/"+wid+"/reject", adminToken, nil)
	assert.Equal(t, nethttp.StatusConflict, code, body)

	code, body = a.do(nethttp.MethodGet, "/api/v1/me", token, nil)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, float64(60000), body["user"].(map[string]any)["coins"])

	code, _ = a.do(nethttp.MethodPost, "/api/v1/admin/withdrawals/missing/approve", adminToken, nil)
	assert.Equal(t, nethttp.StatusNotFound, code)

	code, body = a.do(nethttp.MethodGet, "/api/v1/admin/stats", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, float64(1), body["rejected_withdrawals"])
}

func TestAdminBanRevokesTokens(t *testing.T) {
	a := newApp(t)
	token, userID := a.register("user@example.com")
	adminToken := a.admin()

	code, _ := a.do(nethttp.MethodPost, "/api/v1/admin/users/"+userID+"/ban", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, code)
	code, _ = a.do(nethttp.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, nethttp.StatusUnauthorized, code)

	code, _ = a.do(nethttp.MethodPost, "/api/v1/admin/users/"+userID+"/unban", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, code)
	code, _ = a.do(nethttp.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "user@example.com", "password": "secret1"})
	assert.Equal(t, nethttp.StatusOK, code)

	code, _ = a.do(nethttp.MethodPost, "/api/v1/admin/users/nobody/ban", adminToken, nil)
	assert.Equal(t, nethttp.StatusNotFound, code)
}

func TestAdminSettingsValidation(t *testing.T) {
	a := newApp(t)
	adminToken := a.admin()

	code, body := a.do(nethttp.MethodGet, "/api/v1/admin/settings", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, code)
	body["coins_per_pkr"] = 0
	code, _ = a.do(nethttp.MethodPut, "/api/v1/admin/settings", adminToken, body)
	assert.Equal(t, nethttp.StatusBadRequest, code)

	body["coins_per_pkr"] = 50
	code, _ = a.do(nethttp.MethodPut, "/api/v1/admin/settings", adminToken, body)
	require.Equal(t, nethttp.StatusOK, code)

	code, body = a.do(nethttp.MethodGet, "/api/v1/settings/public", "", nil)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, float64(50), body["coins_per_pkr"])
	assert.NotContains(t, body, "otp_message_template")
}

func TestPublicAdsAndHealth(t *testing.T) {
	a := newApp(t)

	code, body := a.do(nethttp.MethodGet, "/api/v1/ads/banner/next", "", nil)
	require.Equal(t, nethttp.StatusOK, code)
	assert.NotEmpty(t, body["ad_id"])

	code, body = a.do(nethttp.MethodGet, "/api/v1/ads/popup/next", "", nil)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, domain.AdInvalidType, body["ad_id"])

	code, _ = a.do(nethttp.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, nethttp.StatusOK, code)
	code, _ = a.do(nethttp.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, code)
}

func TestSupportAndAnnouncements(t *testing.T) {
	a := newApp(t)
	token, _ := a.register("user@example.com")
	adminToken := a.admin()

	code, body := a.do(nethttp.MethodPost, "/api/v1/admin/announcements", adminToken, map[string]string{"title": "Hi", "message": "News"})
	require.Equal(t, nethttp.StatusCreated, code, body)

	code, body = a.do(nethttp.MethodGet, "/api/v1/announcements", token, nil)
	require.Equal(t, nethttp.StatusOK, code)
	assert.Equal(t, true, body["has_new"])

	a.clk.Advance(time.Second)
	code, _ = a.do(nethttp.MethodPost, "/api/v1/announcements/seen", token, nil)
	require.Equal(t, nethttp.StatusOK, code)
	_, body = a.do(nethttp.MethodGet, "/api/v1/announcements", token, nil)
	assert.Equal(t, false, body["has_new"])

	code, body = a.do(nethttp.MethodPost, "/api/v1/support", token, map[string]string{"subject": "Help", "message": "Payout?"})
	require.Equal(t, nethttp.StatusCreated, code, body)
	id := body["id"].(string)

	code, _ = a.do(nethttp.MethodPost, "/api/v1/admin/support/"+id+"/reply", adminToken, map[string]string{"message": "Soon"})
	require.Equal(t, nethttp.StatusOK, code)
	code, _ = a.do(nethttp.MethodPost, "/api/v1/admin/support/"+id+"/close", adminToken, nil)
	require.Equal(t, nethttp.StatusOK, code)

	code, body = a.do(nethttp.MethodPost, "/api/v1/support/"+id+"/reply", token, map[string]string{"message": "Thanks"})
	assert.Equal(t, nethttp.StatusBadRequest, code)
	assert.Equal(t, "This conversation has been closed.", body["error"])
}
