package permission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/pkg/logger"
)

type ColaboratorRepository interface {
	GetActive(ctx context.Context, userID, companyID uuid.UUID) (*model.Colaborator, error)
}

type RoleRepository interface {
	Permissions(ctx context.Context, companyID uuid.UUID, roleIDs []uuid.UUID) ([]string, error)
}

type Config struct {
	// Staff is the system wide grant list for staff users.
	Staff []string
	// Debug surfaces lookup errors instead of resolving to the empty set.
	Debug bool
	// CacheTTL of zero disables caching.
	CacheTTL time.Duration
}

// Resolver computes what a user may do inside one company.
type Resolver struct {
	colaborators ColaboratorRepository
	roles        RoleRepository
	staff        Set
	debug        bool
	cache        *cache.Cache
	logger       *logger.Logger
}

func NewResolver(colaborators ColaboratorRepository, roles RoleRepository, cfg Config, log *logger.Logger) *Resolver {
	r := &Resolver{
		colaborators: colaborators,
		roles:        roles,
		staff:        ParseGrants(cfg.Staff...),
		debug:        cfg.Debug,
		logger:       log,
	}
	if cfg.CacheTTL > 0 {
		r.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return r
}

// Resolve returns the effective permissions of user in company.
// Superusers, then staff, then the owner short-circuit; inactive companies grant nothing to anyone else.
func (r *Resolver) Resolve(ctx context.Context, user *model.User, company *model.Company) (Set, error) {
	switch {
	case user == nil || company == nil:
		return NewSet(), nil
	case user.IsSuperuser:
		return Universal(), nil
	case user.IsStaff:
		return r.staff, nil
	case company.IsOwner(user.ID):
		return Universal(), nil
	case !company.IsActive:
		return NewSet(), nil
	}

	key := cacheKey(user.ID, company.ID)
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			return v.(Set), nil
		}
	}

	set, err := r.membership(ctx, user.ID, company.ID)
	if err != nil {
		if r.debug {
			return NewSet(), err
		}
		r.logger.Warn("Permission lookup failed, denying",
			"user_id", user.ID.String(), "company_id", company.ID.String(), "error", err.Error())
		return NewSet(), nil
	}

	if r.cache != nil {
		r.cache.SetDefault(key, set)
	}
	return set, nil
}

func (r *Resolver) membership(ctx context.Context, userID, companyID uuid.UUID) (Set, error) {
	colaborator, err := r.colaborators.GetActive(ctx, userID, companyID)
	if err != nil {
		return Set{}, fmt.Errorf("failed to get colaborator: %w", err)
	}

	rolePerms, err := r.roles.Permissions(ctx, companyID, colaborator.RoleIDs)
	if err != nil {
		return Set{}, fmt.Errorf("failed to get role permissions: %w", err)
	}

	perms := make([]string, 0, len(rolePerms)+len(colaborator.Permissions))
	perms = append(perms, rolePerms...)
	perms = append(perms, colaborator.Permissions...)
	return NewSet(perms...), nil
}

// Has checks a single permission.
func (r *Resolver) Has(ctx context.Context, user *model.User, company *model.Company, perm string) (bool, error) {
	set, err := r.Resolve(ctx, user, company)
	if err != nil {
		return false, err
	}
	return set.Has(perm), nil
}

// HasAll resolves once and checks every permission against the same set.
func (r *Resolver) HasAll(ctx context.Context, user *model.User, company *model.Company, perms ...string) (bool, error) {
	set, err := r.Resolve(ctx, user, company)
	if err != nil {
		return false, err
	}
	return set.HasAll(perms...), nil
}

// Invalidate drops the cached set for a membership after its roles or grants change.
func (r *Resolver) Invalidate(userID, companyID uuid.UUID) {
	if r.cache != nil {
		r.cache.Delete(cacheKey(userID, companyID))
	}
}

// Flush drops every cached set, e.g. after a role's permissions change.
func (r *Resolver) Flush() {
	if r.cache != nil {
		r.cache.Flush()
	}
}

func cacheKey(userID, companyID uuid.UUID) string {
	return userID.String() + ":" + companyID.String()
}
