package event

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/event"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, tc *tenant.Context, req *model.EventRequest) (*model.Event, error)
	Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Event, error)
	Update(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.EventRequest) (*model.Event, error)
	Delete(ctx context.Context, tc *tenant.Context, id uuid.UUID) error
	GetPublic(ctx context.Context, slug string) (*model.Event, error)
	AddPublic(ctx context.Context, companyID uuid.UUID, req *model.PublicEventRequest) (*model.Event, error)
}

type Dispatcher interface {
	Run(ctx context.Context, req task.Request) ([]model.Result, error)
}

type Handler struct {
	svc        Service
	dispatcher Dispatcher
}

func NewHandler(svc Service, dispatcher Dispatcher) *Handler {
	return &Handler{
		svc:        svc,
		dispatcher: dispatcher,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	events := r.Group("/events")
	{
		events.GET("", h.List)
		events.POST("", h.Create)
		events.GET("/:id", h.Get)
		events.PUT("/:id", h.Update)
		events.DELETE("/:id", h.Delete)
		events.POST("/:id/remind", h.Remind)
	}
}

// RegisterPublicRoutes mounts the booking form endpoints.
func (h *Handler) RegisterPublicRoutes(r gin.IRoutes) {
	r.GET("/e/:slug", h.GetPublic)
	r.POST("/e/:company_id/public", h.AddPublic)
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

	events, err := h.svc.List(c.Request.Context(), tc, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, events, len(events), q)
}

func (h *Handler) Create(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	var req model.EventRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	e, err := h.svc.Create(c.Request.Context(), tc, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, e)
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

	e, err := h.svc.Get(c.Request.Context(), tc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, e)
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

	var req model.EventRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	e, err := h.svc.Update(c.Request.Context(), tc, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, e)
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

// Remind sends the event reminder now instead of waiting for the sweep.
func (h *Handler) Remind(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := tc.Require(model.EventEntity.Perm(model.ActionChange)); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	results, err := h.dispatcher.Run(c.Request.Context(), task.Request{
		Model:    "event",
		Action:   event.RemindAction,
		Tenant:   tc,
		TargetID: &id,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResults(c, results)
}

func (h *Handler) GetPublic(c *gin.Context) {
	e, err := h.svc.GetPublic(c.Request.Context(), c.Param("slug"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, e)
}

// AddPublic books an unowned event for the company named in the path.
func (h *Handler) AddPublic(c *gin.Context) {
	companyID, ok := handler.ParseID(c, "company_id")
	if !ok {
		return
	}

	var req model.PublicEventRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	e, err := h.svc.AddPublic(c.Request.Context(), companyID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, e)
}
