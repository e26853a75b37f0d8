package handlers

import (
	"net/http"

	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	"github.com/gin-gonic/gin"
)

// Me re-attaches the ledger session from the token and returns its state.
func (h *Handler) Me(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	st := s.State()

	anns, err := h.Announcements.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":              st.User,
		"settings":          st.Settings,
		"earned":            st.Earned,
		"is_admin":          st.User.IsAdmin(),
		"has_announcements": service.HasNew(st.User, anns),
	})
}
