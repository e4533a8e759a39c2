package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

type CompanyRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Company, error)
}

type ColaboratorRepository interface {
	GetActive(ctx context.Context, userID, companyID uuid.UUID) (*model.Colaborator, error)
}

type PermissionResolver interface {
	Resolve(ctx context.Context, user *model.User, company *model.Company) (permission.Set, error)
}

// Context is the explicit (user, company, permissions) value every tenant operation receives.
type Context struct {
	User    *model.User
	Company *model.Company
	Perms   permission.Set
}

func (c *Context) CompanyID() uuid.UUID {
	return c.Company.ID
}

func (c *Context) UserID() uuid.UUID {
	return c.User.ID
}

// Can reports whether the context holds perm.
func (c *Context) Can(perm string) bool {
	return c.Perms.Has(perm)
}

// Require fails with PermissionDenied on the first missing permission.
func (c *Context) Require(perms ...string) error {
	for _, p := range perms {
		if !c.Perms.Has(p) {
			return apperrors.PermissionDenied(p)
		}
	}
	return nil
}

// Scope returns the row filter for e: the tenant constraint, plus the owner
// constraint unless the user may view all rows of the entity.
func (c *Context) Scope(e model.Entity) model.Scope {
	scope := model.Scope{
		CompanyField: e.CompanyField,
		CompanyID:    c.Company.ID,
	}
	if e.OwnerField != "" && !c.Perms.Has(e.ViewAllPerm()) {
		uid := c.User.ID
		scope.OwnerField = e.OwnerField
		scope.OwnerID = &uid
	}
	return scope
}

// Guard checks the action permission before returning the scope, so no query runs on failure.
func (c *Context) Guard(e model.Entity, action string) (model.Scope, error) {
	if err := c.Require(e.Perm(action)); err != nil {
		return model.Scope{}, err
	}
	return c.Scope(e), nil
}

// Guard resolves tenant contexts.
type Guard struct {
	companies    CompanyRepository
	colaborators ColaboratorRepository
	resolver     PermissionResolver
}

func NewGuard(companies CompanyRepository, colaborators ColaboratorRepository, resolver PermissionResolver) *Guard {
	return &Guard{
		companies:    companies,
		colaborators: colaborators,
		resolver:     resolver,
	}
}

type options struct {
	allowInactive bool
}

type Option func(*options)

// AllowInactive lets activation and billing flows reach a suspended company.
func AllowInactive() Option {
	return func(o *options) { o.allowInactive = true }
}

// Resolve builds the context for the user's current company.
func (g *Guard) Resolve(ctx context.Context, user *model.User, opts ...Option) (*Context, error) {
	if user == nil || user.CurrentCompanyID == nil {
		return nil, apperrors.NoCurrentTenant()
	}
	return g.ResolveFor(ctx, user, *user.CurrentCompanyID, opts...)
}

// ResolveFor builds the context for an explicit company, as background jobs do.
func (g *Guard) ResolveFor(ctx context.Context, user *model.User, companyID uuid.UUID, opts ...Option) (*Context, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if user == nil {
		return nil, apperrors.NoCurrentTenant()
	}

	company, err := g.companies.Get(ctx, companyID)
	if err != nil {
		if errors.Is(err, apperrors.NotFoundError) {
			return nil, apperrors.NoCurrentTenant()
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	if !user.BypassesTenancy() && !company.IsOwner(user.ID) {
		if _, err := g.colaborators.GetActive(ctx, user.ID, company.ID); err != nil {
			if errors.Is(err, apperrors.NotFoundError) {
				return nil, apperrors.NoCurrentTenant()
			}
			return nil, fmt.Errorf("failed to get colaborator: %w", err)
		}
	}

	if !company.IsActive && !o.allowInactive {
		return nil, apperrors.TenantInactive(company.Name)
	}

	perms, err := g.resolver.Resolve(ctx, user, company)
	if err != nil {
		return nil, err
	}

	return &Context{User: user, Company: company, Perms: perms}, nil
}
