package invoice

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

type Service interface {
	Create(ctx context.Context, tc *tenant.Context, req *model.InvoiceRequest) (*model.Invoice, error)
	Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Invoice, error)
	Pay(ctx context.Context, tc *tenant.Context, id uuid.UUID, token string) (model.Result, error)
}

// Handler serves billing. Its routes stay reachable while the company is
// suspended so an overdue invoice can still be paid.
type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	invoices := r.Group("/invoices")
	{
		invoices.GET("", h.List)
		invoices.POST("", h.Create)
		invoices.GET("/:id", h.Get)
		invoices.POST("/:id/pay", h.Pay)
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

	invoices, err := h.svc.List(c.Request.Context(), tc, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, invoices, len(invoices), q)
}

func (h *Handler) Create(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	var req model.InvoiceRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	inv, err := h.svc.Create(c.Request.Context(), tc, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, inv)
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

// Pay charges the invoice. A declined card is a result, not an HTTP error.
func (h *Handler) Pay(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.PayRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.svc.Pay(c.Request.Context(), tc, id, req.Token)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResult(c, res, nil)
}
