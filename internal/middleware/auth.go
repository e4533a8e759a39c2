package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/httputil"
)

const (
	ContextUser   = "user"
	ContextTenant = "tenant"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

type TenantResolver interface {
	Resolve(ctx context.Context, user *model.User, opts ...tenant.Option) (*tenant.Context, error)
}

type AuthMiddleware struct {
	auth    Authenticator
	tenants TenantResolver
}

func NewAuthMiddleware(auth Authenticator, tenants TenantResolver) *AuthMiddleware {
	return &AuthMiddleware{
		auth:    auth,
		tenants: tenants,
	}
}

// Authenticate verifies the bearer token and sets the user in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("missing authorization header")))
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.RespondWithError(c, apperrors.Unauthorized(errors.New("invalid authorization format")))
			return
		}

		user, err := m.auth.Authenticate(c.Request.Context(), strings.TrimSpace(parts[1]))
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextUser, user)
		c.Next()
	}
}

// Tenant resolves the user's current company. Routes that must stay
// reachable while the company is suspended pass tenant.AllowInactive.
func (m *AuthMiddleware) Tenant(opts ...tenant.Option) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.Unauthorized(nil))
			return
		}

		tc, err := m.tenants.Resolve(c.Request.Context(), user, opts...)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Set(ContextTenant, tc)
		c.Next()
	}
}

// RequirePermission rejects tenants lacking any of perms.
func (m *AuthMiddleware) RequirePermission(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := CurrentTenant(c)
		if !ok {
			httputil.RespondWithError(c, apperrors.NoCurrentTenant())
			return
		}
		if err := tc.Require(perms...); err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok && user != nil
}

func CurrentTenant(c *gin.Context) (*tenant.Context, bool) {
	v, ok := c.Get(ContextTenant)
	if !ok {
		return nil, false
	}
	tc, ok := v.(*tenant.Context)
	return tc, ok && tc != nil
}
