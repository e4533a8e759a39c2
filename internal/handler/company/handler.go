package company

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/company"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

// Service is the part of the company service the API exposes.
type Service interface {
	company.CompanyServicer
	CreateRole(ctx context.Context, tc *tenant.Context, req *model.RoleRequest) (*model.Role, error)
	GetRole(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Role, error)
	ListRoles(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Role, error)
	UpdateRole(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.RoleRequest) (*model.Role, error)
	DeleteRole(ctx context.Context, tc *tenant.Context, id uuid.UUID) error
	ListColaborators(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Colaborator, error)
	GetColaborator(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Colaborator, error)
	UpdateColaborator(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.ColaboratorRequest) (*model.Colaborator, error)
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// currentCompany is the tenant's company with the caller's effective permissions.
type currentCompany struct {
	*model.Company
	Permissions []string `json:"permissions"`
	Universal   bool     `json:"universal"`
}

// RegisterRoutes mounts the endpoints that work across companies; they need a
// user but no current company.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	companies := r.Group("/companies")
	{
		companies.GET("", h.List)
		companies.POST("", h.Create)
		companies.POST("/:id/switch", h.Switch)
		companies.POST("/:id/leave", h.Leave)
		companies.POST("/:id/activate", h.Activate)
		companies.POST("/:id/deactivate", h.Deactivate)
	}
	r.GET("/permissions", h.Catalog)
}

// RegisterTenantRoutes mounts the endpoints acting on the current company.
func (h *Handler) RegisterTenantRoutes(r *gin.RouterGroup) {
	r.GET("/company", h.Current)
	r.PATCH("/company", h.Update)

	roles := r.Group("/roles")
	{
		roles.GET("", h.ListRoles)
		roles.POST("", h.CreateRole)
		roles.GET("/:id", h.GetRole)
		roles.PUT("/:id", h.UpdateRole)
		roles.DELETE("/:id", h.DeleteRole)
	}

	colaborators := r.Group("/colaborators")
	{
		colaborators.GET("", h.ListColaborators)
		colaborators.GET("/:id", h.GetColaborator)
		colaborators.PATCH("/:id", h.UpdateColaborator)
	}
}

func (h *Handler) List(c *gin.Context) {
	user, ok := handler.User(c)
	if !ok {
		return
	}

	companies, err := h.svc.ListForUser(c.Request.Context(), user)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, companies)
}

func (h *Handler) Create(c *gin.Context) {
	user, ok := handler.User(c)
	if !ok {
		return
	}

	var req model.CreateCompanyRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	created, err := h.svc.Create(c.Request.Context(), user, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, created)
}

func (h *Handler) Switch(c *gin.Context) {
	user, ok := handler.User(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Switch(c.Request.Context(), user, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResult(c, model.Success("Company switched."), gin.H{"company_id": id})
}

func (h *Handler) Leave(c *gin.Context) {
	user, ok := handler.User(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.Leave(c.Request.Context(), user, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResult(c, res, nil)
}

func (h *Handler) Activate(c *gin.Context)   { h.setActive(c, true) }
func (h *Handler) Deactivate(c *gin.Context) { h.setActive(c, false) }

func (h *Handler) setActive(c *gin.Context, active bool) {
	user, ok := handler.User(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.SetActive(c.Request.Context(), user, id, active)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithResult(c, res, nil)
}

func (h *Handler) Catalog(c *gin.Context) {
	httputil.RespondWithSuccess(c, http.StatusOK, permission.Catalog())
}

func (h *Handler) Current(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, currentCompany{
		Company:     tc.Company,
		Permissions: tc.Perms.List(),
		Universal:   tc.Perms.IsUniversal(),
	})
}

func (h *Handler) Update(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	var req model.UpdateCompanyRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), tc, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, updated)
}
