package invite

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/invite"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

type Service interface {
	Send(ctx context.Context, tc *tenant.Context, req *model.InviteRequest) (*model.Invite, []model.Result, error)
	Accept(ctx context.Context, req *model.AcceptInviteRequest) (*model.User, error)
	Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Invite, error)
	List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Invite, error)
	Delete(ctx context.Context, tc *tenant.Context, id uuid.UUID) error
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

// sent is the body returned when an invite is created.
type sent struct {
	Invite  *model.Invite  `json:"invite"`
	Results []model.Result `json:"results,omitempty"`
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	invites := r.Group("/invites")
	{
		invites.GET("", h.List)
		invites.POST("", h.Send)
		invites.GET("/:id", h.Get)
		invites.DELETE("/:id", h.Delete)
		invites.POST("/:id/send", h.Resend)
	}
}

// RegisterPublicRoutes mounts invite acceptance, which works by key.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/invites/accept", h.Accept)
}

func (h *Handler) Send(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	var req model.InviteRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	inv, results, err := h.svc.Send(c.Request.Context(), tc, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, sent{Invite: inv, Results: results})
}

// Resend delivers a pending invite again through the task dispatcher.
func (h *Handler) Resend(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if err := tc.Require(permission.SendInvite); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	results, err := h.dispatcher.Run(c.Request.Context(), task.Request{
		Model:    "invite",
		Action:   invite.SendAction,
		Tenant:   tc,
		TargetID: &id,
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResults(c, results)
}

func (h *Handler) Accept(c *gin.Context) {
	var req model.AcceptInviteRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	user, err := h.svc.Accept(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, user)
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

	invites, err := h.svc.List(c.Request.Context(), tc, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, invites, len(invites), q)
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

	inv, err := h.svc.Get(c.Request.Context(), tc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, inv)
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
