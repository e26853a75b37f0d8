package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ApplyReferralRequest struct {
	Code string `json:"code" binding:"required"`
}

// GetReferral returns the caller's code and referral totals.
func (h *Handler) GetReferral(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	st := s.State()
	c.JSON(http.StatusOK, gin.H{
		"code":            st.User.ReferralCode,
		"referred_by":     st.User.ReferredBy,
		"referrals_count": st.User.ReferralsCount,
		"bonus_earned":    st.User.ReferralBonusEarned,
		"program_enabled": st.Settings.ReferralProgramEnabled,
		"referrer_bonus":  st.Settings.ReferrerBonusCoins,
		"referee_bonus":   st.Settings.RefereeBonusCoins,
	})
}

func (h *Handler) ApplyReferralCode(c *gin.Context) {
	var req ApplyReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	h.respond(c, s.ApplyReferralCode(c.Request.Context(), req.Code))
}
