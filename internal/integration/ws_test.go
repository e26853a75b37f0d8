package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"
	httpserver "github.com/abbasifarasat36-dev/globaldragon/internal/http"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/handlers"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"
	"github.com/abbasifarasat36-dev/globaldragon/internal/ws"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func post(t *testing.T, url, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req, err := http.NewRequest(http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// next reads frames until one of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if f.Type == typ {
			return f
		}
	}
}

func TestWebSocketFollowsLedger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	service.InitJWT("integration-secret", time.Hour)

	mr := miniredis.RunT(t)
	clk := clock.NewMock(time.Date(2024, 7, 2, 9, 0, 0, 0, time.UTC))
	a := newProcess(t, mr, clk)
	b := newProcess(t, mr, clk)

	router := httpserver.NewRouter(a.handler, handlers.NewHealthHandler("it", nil), httpserver.Options{
		RewardRateLimit: 100,
		Redis:           a.rdb,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	api := srv.URL + "/api/v1"

	code, body := post(t, api+"/auth/register", "", map[string]string{
		"name": "Sana", "email": "sana@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, code, body)
	token := body["token"].(string)
	userID := body["user"].(map[string]any)["id"].(string)

	wsURL := "ws" + strings.TrimPrefix(api, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	next(t, conn, ws.MsgReady)
	st := next(t, conn, ws.MsgState)
	var state ws.StatePayload
	require.NoError(t, json.Unmarshal(st.Data, &state))
	assert.Equal(t, int64(200), state.User.Coins)
	assert.Empty(t, state.User.PasswordHash)

	code, body = post(t, api+"/watch/home", token, nil)
	require.Equal(t, http.StatusOK, code, body)

	earned := next(t, conn, ws.MsgEarned)
	var e reward.Earned
	require.NoError(t, json.Unmarshal(earned.Data, &e))
	assert.Equal(t, int64(25), e.Amount)

	// an admin in another process bans the user
	r := b.ledger.BanUser(context.Background(), "admin", userID)
	require.True(t, r.OK, r.Message)

	logout := next(t, conn, ws.MsgLogout)
	var lp ws.LogoutPayload
	require.NoError(t, json.Unmarshal(logout.Data, &lp))
	assert.Equal(t, "banned", lp.Reason)

	// later requests with the same token are refused
	require.Eventually(t, func() bool {
		code, _ := post(t, api+"/watch/home", token, nil)
		return code == http.StatusUnauthorized
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	a := newProcess(t, mr, clock.Real{})

	srv := httptest.NewServer(httpserver.NewRouter(a.handler, handlers.NewHealthHandler("it", nil), httpserver.Options{}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?token=nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
