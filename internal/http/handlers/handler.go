package handlers

import (
	"errors"
	"net/http"

	"github.com/abbasifarasat36-dev/globaldragon/internal/http/middleware"
	"github.com/abbasifarasat36-dev/globaldragon/internal/logger"
	"github.com/abbasifarasat36-dev/globaldragon/internal/repository"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"
	"github.com/abbasifarasat36-dev/globaldragon/internal/ws"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Auth          *service.AuthService
	Resets        *service.PasswordResetService
	Admin         *service.AdminService
	Audit         *service.AuditService
	Announcements *service.AnnouncementService
	Support       *service.SupportService
	Sessions      *reward.Manager
	Ads           *reward.Selector
	Users         *repository.UserRepository
	Withdrawals   *repository.WithdrawalRepository
	Settings      *repository.SettingsRepository
	Hub           *ws.Hub
}

func (h *Handler) ledger() *reward.Ledger { return h.Sessions.Ledger() }

// session returns the caller's ledger session or writes the error response.
func (h *Handler) session(c *gin.Context) (*reward.Session, bool) {
	s, err := h.Sessions.Get(c.Request.Context(), middleware.UserID(c))
	switch {
	case err == nil:
		return s, true
	case errors.Is(err, reward.ErrSuspended):
		h.revoke(c)
		c.JSON(http.StatusForbidden, gin.H{"error": "Account suspended."})
	case errors.Is(err, repository.ErrUserNotFound):
		h.revoke(c)
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
	default:
		logger.Error("open ledger session failed", "user_id", middleware.UserID(c), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
	}
	return nil, false
}

// revoke drops every login session of the caller.
func (h *Handler) revoke(c *gin.Context) {
	if uid := middleware.UserID(c); uid != "" {
		if err := h.Auth.RevokeAll(c.Request.Context(), uid); err != nil {
			logger.Warn("revoke sessions failed", "user_id", uid, "error", err)
		}
	}
}

// statusFor maps a ledger result to an HTTP status.
func statusFor(r reward.Result) int {
	switch r.Reason {
	case reward.ReasonNone, reward.ReasonPartial:
		return http.StatusOK
	case reward.ReasonIneligible:
		return http.StatusConflict
	case reward.ReasonValidation:
		return http.StatusBadRequest
	case reward.ReasonSuspended:
		return http.StatusForbidden
	case reward.ReasonUnavailable:
		return http.StatusServiceUnavailable
	case reward.ReasonNotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respond writes a ledger result. A suspended result also revokes the
// caller's tokens.
func (h *Handler) respond(c *gin.Context, r reward.Result) {
	if r.Reason == reward.ReasonSuspended && middleware.UserID(c) != "" {
		h.revoke(c)
	}
	body := gin.H{
		"ok":      r.OK,
		"message": r.Message,
	}
	if r.Reason != reward.ReasonNone {
		body["reason"] = r.Reason
	}
	if r.Reason == reward.ReasonPartial {
		body["partial"] = true
	}
	if r.CooldownSeconds > 0 {
		body["cooldown_seconds"] = r.CooldownSeconds
	}
	if r.Amount != 0 {
		body["amount"] = r.Amount
	}
	if r.Withdrawal != nil {
		body["withdrawal"] = r.Withdrawal
	}
	c.JSON(statusFor(r), body)
}

// fail writes a Go error from the service layer.
func fail(c *gin.Context, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password."})
	case errors.Is(err, service.ErrAccountSuspended):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account suspended."})
	case errors.Is(err, service.ErrUnknownTab):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tab"})
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrWithdrawalNotFound),
		errors.Is(err, repository.ErrAnnouncementNotFound),
		errors.Is(err, repository.ErrTicketNotFound),
		errors.Is(err, repository.ErrResetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
