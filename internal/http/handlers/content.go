package handlers

import (
	"net/http"

	"github.com/abbasifarasat36-dev/globaldragon/internal/domain"
	"github.com/abbasifarasat36-dev/globaldragon/internal/http/middleware"
	"github.com/abbasifarasat36-dev/globaldragon/internal/service"

	"github.com/gin-gonic/gin"
)

type AnnouncementRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type SupportOpenRequest struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type SupportReplyRequest struct {
	Message string `json:"message"`
}

func (h *Handler) ListAnnouncements(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := h.Announcements.List(ctx)
	if err != nil {
		fail(c, err)
		return
	}
	u, err := h.Users.GetByID(ctx, middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"announcements": list, "has_new": service.HasNew(u, list)})
}

func (h *Handler) MarkAnnouncementsSeen(c *gin.Context) {
	if err := h.Announcements.MarkSeen(c.Request.Context(), middleware.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) MySupport(c *gin.Context) {
	list, err := h.Support.ForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *Handler) OpenSupport(c *gin.Context) {
	var req SupportOpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	m, err := h.Support.Open(c.Request.Context(), middleware.UserID(c), req.Subject, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) ReplySupport(c *gin.Context) {
	h.reply(c, middleware.UserID(c), domain.SupportSenderUser)
}

func (h *Handler) reply(c *gin.Context, userID string, sender domain.SupportSender) {
	var req SupportReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	m, err := h.Support.Reply(c.Request.Context(), c.Param("id"), userID, sender, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// admin side

func (h *Handler) AdminListAnnouncements(c *gin.Context) {
	list, err := h.Announcements.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"announcements": list})
}

func (h *Handler) CreateAnnouncement(c *gin.Context) {
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	a, err := h.Announcements.Create(c.Request.Context(), req.Title, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h *Handler) UpdateAnnouncement(c *gin.Context) {
	var req AnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	a, err := h.Announcements.Update(c.Request.Context(), c.Param("id"), req.Title, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) DeleteAnnouncement(c *gin.Context) {
	if err := h.Announcements.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) AdminSupport(c *gin.Context) {
	list, err := h.Support.All(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": list})
}

func (h *Handler) AdminReplySupport(c *gin.Context) {
	h.reply(c, "", domain.SupportSenderAdmin)
}

func (h *Handler) CloseSupport(c *gin.Context) {
	m, err := h.Support.Close(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
