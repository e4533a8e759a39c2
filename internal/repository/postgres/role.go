package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const roleColumns = `id, company_id, name, permissions, created_at, updated_at`

var roleFilters = map[string]string{"name": "name"}

type roleRepository struct {
	BaseRepository
}

func NewRoleRepository(db *sqlx.DB) repository.RoleRepository {
	return &roleRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *roleRepository) Create(ctx context.Context, role *model.Role) error {
	role.ID = uuid.New()
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	if role.Permissions == nil {
		role.Permissions = pq.StringArray{}
	}

	query := `
		INSERT INTO roles (` + roleColumns + `)
		VALUES (:id, :company_id, :name, :permissions, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, role); err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

func (r *roleRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Role, error) {
	query, args, err := selectOne("roles", roleColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var role model.Role
	if err := r.db.GetContext(ctx, &role, query, args...); err != nil {
		return nil, getErr("role", err)
	}
	return &role, nil
}

func (r *roleRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Role, error) {
	query, args, err := selectList("roles", roleColumns, scope, lq, roleFilters, "name")
	if err != nil {
		return nil, err
	}
	var roles []*model.Role
	if err := r.db.SelectContext(ctx, &roles, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	return roles, nil
}

func (r *roleRepository) Permissions(ctx context.Context, companyID uuid.UUID, roleIDs []uuid.UUID) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	var perms []string
	query := `SELECT unnest(permissions) FROM roles WHERE company_id = $1 AND id = ANY($2::uuid[])`
	if err := r.db.SelectContext(ctx, &perms, query, companyID, model.UUIDs(roleIDs)); err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	return perms, nil
}

func (r *roleRepository) Update(ctx context.Context, scope model.Scope, role *model.Role) error {
	role.UpdatedAt = time.Now()
	query, args, err := update("roles", scope, role.ID,
		[]string{"name", "permissions", "updated_at"},
		[]interface{}{role.Name, role.Permissions, role.UpdatedAt})
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return affected("role", result)
}

func (r *roleRepository) Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error {
	query, args, err := deleteOne("roles", scope, id)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	return affected("role", result)
}
