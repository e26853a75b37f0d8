package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// HandleWS upgrades an authenticated request and streams the user's ledger
// session to it. The token comes from the Authorization header or, for
// browsers, the token query parameter.
func HandleWS(hub *Hub, auth *service.AuthService, sessions *reward.Manager, allowedOrigins []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					return true
				}
			}
			return false
		},
	}

	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}

		claims, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		userID := claims.UserID()

		sess, err := sessions.Get(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "session unavailable"})
			return
		}
		initial := StateFrame(sess.State())

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("ws upgrade failed", "user_id", userID, "error", err)
			return
		}

		hub.Serve(userID, claims.SessionID, conn, &initial, func(cl *Client, in Inbound) {
			if in.Type != MsgRefresh {
				cl.Push(Frame{Type: MsgError, Data: ErrorPayload{Message: "unknown message type"}})
				return
			}
			s, err := sessions.Get(context.Background(), userID)
			if err != nil {
				cl.Push(Frame{Type: MsgError, Data: ErrorPayload{Message: "session unavailable"}})
				return
			}
			s.Refresh(context.Background())
			cl.Push(StateFrame(s.State()))
		})
	}
}
