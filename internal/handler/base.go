package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/middleware"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

// RouteRegistrar is implemented by every domain handler.
type RouteRegistrar interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Tenant returns the resolved tenant, rendering NoCurrentTenant when the route
// was mounted without the tenant middleware.
func Tenant(c *gin.Context) (*tenant.Context, bool) {
	tc, ok := middleware.CurrentTenant(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.NoCurrentTenant())
		return nil, false
	}
	return tc, true
}

func User(c *gin.Context) (*model.User, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return nil, false
	}
	return user, true
}

// ParseID reads a uuid path parameter.
func ParseID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid "+param, err))
		return uuid.Nil, false
	}
	return id, true
}

// ListQuery reads page and page_size; every other query parameter becomes an
// equality filter that the repository checks against its allow list.
func ListQuery(c *gin.Context) (model.ListQuery, bool) {
	var q model.ListQuery
	if err := c.ShouldBindQuery(&q.Pagination); err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid pagination", err))
		return q, false
	}

	for key, values := range c.Request.URL.Query() {
		if key == "page" || key == "page_size" || len(values) == 0 {
			continue
		}
		if q.Filters == nil {
			q.Filters = model.Filters{}
		}
		q.Filters[key] = values[0]
	}
	return q, true
}
