package company

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/handler"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

func (h *Handler) ListRoles(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	q, ok := handler.ListQuery(c)
	if !ok {
		return
	}

	roles, err := h.svc.ListRoles(c.Request.Context(), tc, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, roles, len(roles), q)
}

func (h *Handler) CreateRole(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}

	var req model.RoleRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	role, err := h.svc.CreateRole(c.Request.Context(), tc, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, role)
}

func (h *Handler) GetRole(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	role, err := h.svc.GetRole(c.Request.Context(), tc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, role)
}

func (h *Handler) UpdateRole(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.RoleRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	role, err := h.svc.UpdateRole(c.Request.Context(), tc, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, role)
}

func (h *Handler) DeleteRole(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.svc.DeleteRole(c.Request.Context(), tc, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListColaborators(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	q, ok := handler.ListQuery(c)
	if !ok {
		return
	}

	colaborators, err := h.svc.ListColaborators(c.Request.Context(), tc, q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondWithList(c, colaborators, len(colaborators), q)
}

func (h *Handler) GetColaborator(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	colaborator, err := h.svc.GetColaborator(c.Request.Context(), tc, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, colaborator)
}

func (h *Handler) UpdateColaborator(c *gin.Context) {
	tc, ok := handler.Tenant(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.ColaboratorRequest
	if err := httputil.Bind(c, &req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	colaborator, err := h.svc.UpdateColaborator(c.Request.Context(), tc, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, colaborator)
}
