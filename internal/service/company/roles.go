package company

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
)

func validPermissions(perms []string) error {
	if unknown := permission.Unknown(perms); len(unknown) > 0 {
		return apperrors.FieldError("permissions", "Unknown permissions: "+strings.Join(unknown, ", ")+".")
	}
	return nil
}

func (s *Service) CreateRole(ctx context.Context, tc *tenant.Context, req *model.RoleRequest) (*model.Role, error) {
	if err := tc.Require(model.RoleEntity.Perm(model.ActionAdd)); err != nil {
		return nil, err
	}
	if err := validPermissions(req.Permissions); err != nil {
		return nil, err
	}
	role := &model.Role{
		CompanyID:   tc.CompanyID(),
		Name:        req.Name,
		Permissions: req.Permissions,
	}
	if err := s.roles.Create(ctx, role); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}
	return role, nil
}

func (s *Service) GetRole(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Role, error) {
	scope, err := tc.Guard(model.RoleEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.roles.Get(ctx, scope, id)
}

func (s *Service) ListRoles(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Role, error) {
	scope, err := tc.Guard(model.RoleEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.roles.List(ctx, scope, q)
}

// UpdateRole replaces the role's name and permissions. Cached permission sets are flushed
// since any member may hold the role.
func (s *Service) UpdateRole(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.RoleRequest) (*model.Role, error) {
	scope, err := tc.Guard(model.RoleEntity, model.ActionChange)
	if err != nil {
		return nil, err
	}
	if err := validPermissions(req.Permissions); err != nil {
		return nil, err
	}
	role, err := s.roles.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	role.Name = req.Name
	role.Permissions = req.Permissions
	if err := s.roles.Update(ctx, scope, role); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	s.cache.Flush()
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, tc *tenant.Context, id uuid.UUID) error {
	scope, err := tc.Guard(model.RoleEntity, model.ActionDelete)
	if err != nil {
		return err
	}
	if err := s.roles.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.cache.Flush()
	return nil
}

// ownRoles checks that every id names a role of the current company.
func (s *Service) ownRoles(ctx context.Context, tc *tenant.Context, ids []uuid.UUID) error {
	scope := tc.Scope(model.RoleEntity)
	for _, id := range ids {
		if _, err := s.roles.Get(ctx, scope, id); err != nil {
			if apperrors.Is(err, apperrors.NotFoundError) {
				return apperrors.FieldError("role_ids", fmt.Sprintf("Role %s does not exist.", id))
			}
			return err
		}
	}
	return nil
}

// ValidateRoles is used by invites, whose roles must belong to the inviting company.
func (s *Service) ValidateRoles(ctx context.Context, tc *tenant.Context, ids []uuid.UUID) error {
	return s.ownRoles(ctx, tc, ids)
}

func (s *Service) ListColaborators(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Colaborator, error) {
	scope, err := tc.Guard(model.ColaboratorEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.colaborators.List(ctx, scope, q)
}

func (s *Service) GetColaborator(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Colaborator, error) {
	scope, err := tc.Guard(model.ColaboratorEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.colaborators.Get(ctx, scope, id)
}

// UpdateColaborator changes a member's roles, direct grants or active flag. The owner's
// membership cannot be deactivated.
func (s *Service) UpdateColaborator(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.ColaboratorRequest) (*model.Colaborator, error) {
	scope, err := tc.Guard(model.ColaboratorEntity, model.ActionChange)
	if err != nil {
		return nil, err
	}
	c, err := s.colaborators.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if req.IsActive != nil {
		if !*req.IsActive && tc.Company.IsOwner(c.UserID) {
			return nil, apperrors.FieldError("is_active", "The owner cannot be deactivated.")
		}
		c.IsActive = *req.IsActive
	}
	if req.RoleIDs != nil {
		if err := s.ownRoles(ctx, tc, req.RoleIDs); err != nil {
			return nil, err
		}
		c.RoleIDs = req.RoleIDs
	}
	if req.Permissions != nil {
		if err := validPermissions(req.Permissions); err != nil {
			return nil, err
		}
		c.Permissions = req.Permissions
	}

	if err := s.colaborators.Update(ctx, scope, c); err != nil {
		return nil, fmt.Errorf("failed to update colaborator: %w", err)
	}
	s.cache.Invalidate(c.UserID, c.CompanyID)
	return c, nil
}
