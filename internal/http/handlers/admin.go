package handlers

import (
	"net/http"
	"strconv"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/middleware"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	"github.com/gin-gonic/gin"
)

type SetCoinsRequest struct {
	Coins *int64 `json:"coins" binding:"required"`
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.Admin.GetStats(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.Admin.ListUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser accepts an id, email or referral code.
func (h *Handler) GetUser(c *gin.Context) {
	ctx := c.Request.Context()
	u, err := h.Admin.GetUser(ctx, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	withdrawals, err := h.Admin.UserWithdrawals(ctx, u.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u, "withdrawals": withdrawals})
}

// afterSuspend revokes the target's tokens; a live session in another
// process only learns about the ban from the store.
func (h *Handler) afterSuspend(c *gin.Context, userID string, r reward.Result) {
	if !r.OK {
		return
	}
	if err := h.Auth.RevokeAll(c.Request.Context(), userID); err != nil {
		logger.Warn("revoke sessions failed", "user_id", userID, "error", err)
	}
}

func (h *Handler) BanUser(c *gin.Context) {
	id := c.Param("id")
	r := h.ledger().BanUser(c.Request.Context(), middleware.UserID(c), id)
	h.afterSuspend(c, id, r)
	h.respond(c, r)
}

func (h *Handler) UnbanUser(c *gin.Context) {
	r := h.ledger().UnbanUser(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	h.respond(c, r)
}

func (h *Handler) SetCoins(c *gin.Context) {
	var req SetCoinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "coins is required"})
		return
	}
	r := h.ledger().SetCoins(c.Request.Context(), middleware.UserID(c), c.Param("id"), *req.Coins)
	h.respond(c, r)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	r := h.ledger().DeleteUser(c.Request.Context(), middleware.UserID(c), id)
	h.afterSuspend(c, id, r)
	h.respond(c, r)
}

func (h *Handler) AdminWithdrawals(c *gin.Context) {
	tab := c.DefaultQuery("tab", service.TabNew)
	list, err := h.Admin.WithdrawalTab(c.Request.Context(), tab)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tab": tab, "withdrawals": list})
}

func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	r := h.ledger().ResolveWithdrawal(c.Request.Context(), middleware.UserID(c), c.Param("id"), domain.WithdrawalStatusApproved)
	h.respond(c, r)
}

func (h *Handler) RejectWithdrawal(c *gin.Context) {
	r := h.ledger().ResolveWithdrawal(c.Request.Context(), middleware.UserID(c), c.Param("id"), domain.WithdrawalStatusRejected)
	h.respond(c, r)
}

func (h *Handler) GetSettings(c *gin.Context) {
	s, err := h.Admin.Settings(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// UpdateSettings replaces the whole settings record.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var s domain.AppSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if err := h.Admin.UpdateSettings(c.Request.Context(), middleware.UserID(c), s); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) GetAds(c *gin.Context) {
	ids, err := h.Admin.AdMobIDs(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (h *Handler) UpdateAds(c *gin.Context) {
	var ids domain.AdMobIDs
	if err := c.ShouldBindJSON(&ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if err := h.Admin.UpdateAdMobIDs(c.Request.Context(), middleware.UserID(c), ids); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (h *Handler) AntiCheat(c *gin.Context) {
	users, err := h.Admin.AntiCheat(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) PasswordResets(c *gin.Context) {
	list, err := h.Resets.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": list})
}

func (h *Handler) ResolvePasswordReset(c *gin.Context) {
	if err := h.Resets.Resolve(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// AuditLogs filters by user_id or action; limit defaults to 100.
func (h *Handler) AuditLogs(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}
	ctx := c.Request.Context()

	var logs []*domain.AuditLog
	switch {
	case c.Query("user_id") != "":
		logs, err = h.Audit.GetUserAuditLogs(ctx, c.Query("user_id"), limit)
	case c.Query("action") != "":
		logs, err = h.Audit.GetLogsByAction(ctx, c.Query("action"), limit)
	default:
		logs, err = h.Audit.GetRecentLogs(ctx, limit)
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
