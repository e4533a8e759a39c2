package notification

import (
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/notification"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

type Handler struct {
	svc notification.NotificationServicer
}

func NewHandler(svc notification.NotificationServicer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.List)
		notifications.GET("/unread", h.CountUnread)
		notifications.POST("/read-all", h.MarkAllRead)
		notifications.POST("/:id/read", h.SetRead)
		notifications.POST("/:id/unread", h.SetUnread)
	}
}

func (h *Handler) List(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	q, ok := handler.ListQuery(c)
	if !ok {
		return
	}

	items, err := h.svc.List(c.Request.Context(), tc, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, items, len(items), q)
}

func (h *Handler) CountUnread(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	n, err := h.svc.CountUnread(c.Request.Context(), tc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"unread": n})
}

func (h *Handler) SetRead(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.SetRead(c.Request.Context(), tc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResult(c, res, nil)
}

func (h *Handler) SetUnread(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.SetUnread(c.Request.Context(), tc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResult(c, res, nil)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	n, err := h.svc.MarkAllRead(c.Request.Context(), tc)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if n == 0 {
		handler.RespondWithResult(c, model.Info("Nothing to mark as read."), gin.H{"marked": n})
		return
	}
	noun := "notifications"
	if n == 1 {
		noun = "notification"
	}
	msg := fmt.Sprintf("%s %s marked as read.", humanize.Comma(n), noun)
	handler.RespondWithResult(c, model.Success(msg), gin.H{"marked": n})
}
