package handlers

import (
	"net/http"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/middleware"
	"github.com/abbasifarasat36-dev/globaldragon/internal/reward"

	"github.com/gin-gonic/gin"
)

// Watch credits one completed rewarded video on a channel.
func (h *Handler) Watch(c *gin.Context) {
	ch, ok := reward.ParseChannel(c.Param("channel"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown channel"})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, s.WatchChannel(c.Request.Context(), ch))
}

func (h *Handler) DailyBonus(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, s.ClaimDailyBonus(c.Request.Context()))
}

func (h *Handler) SpecialTask(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, s.ClaimSpecialTask(c.Request.Context()))
}

func (h *Handler) SubmitWithdrawal(c *gin.Context) {
	var req domain.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, s.SubmitWithdrawal(c.Request.Context(), req))
}

func (h *Handler) MyWithdrawals(c *gin.Context) {
	list, err := h.Withdrawals.GetByUserID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

// NextAd never fails; problems come back as sentinel ad ids.
func (h *Handler) NextAd(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ad_id": h.Ads.NextAd(c.Request.Context(), c.Param("slot"))})
}

func (h *Handler) PublicSettings(c *gin.Context) {
	s, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Public())
}
