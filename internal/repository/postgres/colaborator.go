package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
)

const colaboratorColumns = `id, user_id, company_id, is_active, role_ids, permissions, created_at, updated_at`

var colaboratorFilters = map[string]string{
	"user":      "user_id",
	"is_active": "is_active",
}

type colaboratorRepository struct {
	BaseRepository
}

func NewColaboratorRepository(db *sqlx.DB) repository.ColaboratorRepository {
	return &colaboratorRepository{BaseRepository: NewBaseRepository(db)}
}

func insertColaborator(ctx context.Context, ex sqlx.ExtContext, c *model.Colaborator) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.RoleIDs == nil {
		c.RoleIDs = model.UUIDs{}
	}
	if c.Permissions == nil {
		c.Permissions = []string{}
	}

	query := `
		INSERT INTO colaborators (` + colaboratorColumns + `)
		VALUES (:id, :user_id, :company_id, :is_active, :role_ids, :permissions, :created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, ex, query, c); err != nil {
		return fmt.Errorf("failed to create colaborator: %w", err)
	}
	return nil
}

func (r *colaboratorRepository) Create(ctx context.Context, c *model.Colaborator) error {
	return insertColaborator(ctx, r.db, c)
}

func (r *colaboratorRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Colaborator, error) {
	query, args, err := selectOne("colaborators", colaboratorColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var c model.Colaborator
	if err := r.db.GetContext(ctx, &c, query, args...); err != nil {
		return nil, getErr("colaborator", err)
	}
	return &c, nil
}

func (r *colaboratorRepository) GetActive(ctx context.Context, userID, companyID uuid.UUID) (*model.Colaborator, error) {
	var c model.Colaborator
	query := `SELECT ` + colaboratorColumns + ` FROM colaborators WHERE company_id = $1 AND user_id = $2 AND is_active`
	if err := r.db.GetContext(ctx, &c, query, companyID, userID); err != nil {
		return nil, getErr("colaborator", err)
	}
	return &c, nil
}

func (r *colaboratorRepository) Find(ctx context.Context, userID, companyID uuid.UUID) (*model.Colaborator, error) {
	var c model.Colaborator
	query := `SELECT ` + colaboratorColumns + ` FROM colaborators WHERE company_id = $1 AND user_id = $2`
	if err := r.db.GetContext(ctx, &c, query, companyID, userID); err != nil {
		return nil, getErr("colaborator", err)
	}
	return &c, nil
}

func (r *colaboratorRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Colaborator, error) {
	query, args, err := selectList("colaborators", colaboratorColumns, scope, lq, colaboratorFilters, "created_at")
	if err != nil {
		return nil, err
	}
	var out []*model.Colaborator
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list colaborators: %w", err)
	}
	return out, nil
}

func (r *colaboratorRepository) Update(ctx context.Context, scope model.Scope, c *model.Colaborator) error {
	c.UpdatedAt = time.Now()
	query, args, err := update("colaborators", scope, c.ID,
		[]string{"is_active", "role_ids", "permissions", "updated_at"},
		[]interface{}{c.IsActive, c.RoleIDs, c.Permissions, c.UpdatedAt})
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update colaborator: %w", err)
	}
	return affected("colaborator", result)
}

func (r *colaboratorRepository) Delete(ctx context.Context, userID, companyID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM colaborators WHERE company_id = $1 AND user_id = $2`, companyID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete colaborator: %w", err)
	}
	return affected("colaborator", result)
}

func (r *colaboratorRepository) ExistsByEmail(ctx context.Context, companyID uuid.UUID, email string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM colaborators c JOIN users u ON u.id = c.user_id
			WHERE c.company_id = $1 AND lower(u.email) = lower($2)
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, companyID, email); err != nil {
		return false, fmt.Errorf("failed to check colaborator: %w", err)
	}
	return exists, nil
}
