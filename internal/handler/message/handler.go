package message

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/message"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	"github.com/jwalitptl/crm-api/pkg/httputil"
	"github.com/jwalitptl/crm-api/pkg/logger"
)

type Service interface {
	Create(ctx context.Context, tc *tenant.Context, req *model.MessageRequest) (*model.Message, error)
	Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Message, error)
	List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Message, error)
	Update(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.MessageRequest) (*model.Message, error)
	Delete(ctx context.Context, tc *tenant.Context, id uuid.UUID) error
	Open(ctx context.Context, token string) error

	CreateLink(ctx context.Context, tc *tenant.Context, req *model.LinkRequest) (*model.Link, error)
	GetLink(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Link, error)
	ListLinks(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Link, error)
	DeleteLink(ctx context.Context, tc *tenant.Context, id uuid.UUID) error
	ListVisits(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Visit, error)
	Visit(ctx context.Context, id uuid.UUID, ip string) (*model.Link, error)
}

type Dispatcher interface {
	Run(ctx context.Context, req task.Request) ([]model.Result, error)
}

type Handler struct {
	svc        Service
	dispatcher Dispatcher
	logger     *logger.Logger
}

func NewHandler(svc Service, dispatcher Dispatcher, log *logger.Logger) *Handler {
	return &Handler{
		svc:        svc,
		dispatcher: dispatcher,
		logger:     log,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	messages := r.Group("/messages")
	{
		messages.GET("", h.List)
		messages.POST("", h.Create)
		messages.GET("/:id", h.Get)
		messages.PUT("/:id", h.Update)
		messages.DELETE("/:id", h.Delete)
		messages.POST("/:id/send", h.Send)
		messages.POST("/:id/bounce", h.Bounce)
	}

	links := r.Group("/links")
	{
		links.GET("", h.ListLinks)
		links.POST("", h.CreateLink)
		links.GET("/:id", h.GetLink)
		links.DELETE("/:id", h.DeleteLink)
	}

	r.GET("/visits", h.ListVisits)
}

// RegisterTrackingRoutes mounts the public redirect and open pixel.
func (h *Handler) RegisterTrackingRoutes(r gin.IRoutes) {
	r.GET("/l/:id", h.Redirect)
	r.GET("/m/p/:token", h.Pixel)
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

	messages, err := h.svc.List(c.Request.Context(), tc, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, messages, len(messages), q)
}

func (h *Handler) Create(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	var req model.MessageRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	m, err := h.svc.Create(c.Request.Context(), tc, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, m)
}

func (h *Handler) Get(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	m, err := h.svc.Get(c.Request.Context(), tc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, m)
}

func (h *Handler) Update(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.MessageRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	m, err := h.svc.Update(c.Request.Context(), tc, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, m)
}

func (h *Handler) Delete(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), tc, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Send delivers the message through the task dispatcher.
func (h *Handler) Send(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := tc.Require(permission.SendMessage); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	results, err := h.dispatcher.Run(c.Request.Context(), task.Request{
		Model:    "message",
		Action:   message.SendAction,
		Tenant:   tc,
		TargetID: &id,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResults(c, results)
}

// Bounce records a delivery failure reported for the message.
func (h *Handler) Bounce(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := tc.Require(model.MessageEntity.Perm(model.ActionChange)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.BounceRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	companyID := tc.CompanyID()
	results, err := h.dispatcher.Run(c.Request.Context(), task.Request{
		Model:     "message",
		Action:    message.BounceAction,
		Tenant:    tc,
		CompanyID: &companyID,
		TargetID:  &id,
		Kwargs:    map[string]interface{}{"reason": req.Reason},
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResults(c, results)
}
