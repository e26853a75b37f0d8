package handlers

import (
	"net/http"

	"github.com/abbasifarasat36-dev/globaldragon/internal/http/middleware"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type PasswordResetRequest struct {
	Email   string `json:"email" binding:"required"`
	Contact string `json:"contact"`
}

type PasswordResetVerifyRequest struct {
	Email       string `json:"email" binding:"required"`
	OTP         string `json:"otp" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	res, err := h.Auth.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Logout ends the token's session and closes the sockets opened with it.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.Auth.Logout(c.Request.Context(), claims); err != nil {
		fail(c, err)
		return
	}
	if h.Hub != nil {
		h.Hub.DisconnectSession(claims.UserID(), claims.SessionID)
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email is required"})
		return
	}
	msg, err := h.Resets.Request(c.Request.Context(), req.Email, req.Contact)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": msg})
}

func (h *Handler) VerifyPasswordReset(c *gin.Context) {
	var req PasswordResetVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, otp and new_password are required"})
		return
	}
	msg, err := h.Resets.Verify(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": msg})
}
