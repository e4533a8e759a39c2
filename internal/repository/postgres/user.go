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

const userColumns = `id, email, name, password_hash, is_active, is_superuser, is_staff, timezone, language,
	photo, current_company_id, activation_key, key_expires, reset_key, reset_expires, last_login_at,
	created_at, updated_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{BaseRepository: NewBaseRepository(db)}
}

func insertUser(ctx context.Context, ex sqlx.ExtContext, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :name, :password_hash, :is_active, :is_superuser, :is_staff, :timezone, :language,
			:photo, :current_company_id, :activation_key, :key_expires, :reset_key, :reset_expires, :last_login_at,
			:created_at, :updated_at)
	`
	if _, err := sqlx.NamedExecContext(ctx, ex, query, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return insertUser(ctx, r.db, user)
}

func (r *userRepository) getBy(ctx context.Context, column string, value interface{}) (*model.User, error) {
	var user model.User
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = $1`, userColumns, column)
	if err := r.db.GetContext(ctx, &user, query, value); err != nil {
		return nil, getErr("user", err)
	}
	return &user, nil
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		return nil, getErr("user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByActivationKey(ctx context.Context, key string) (*model.User, error) {
	return r.getBy(ctx, "activation_key", key)
}

func (r *userRepository) GetByResetKey(ctx context.Context, key string) (*model.User, error) {
	return r.getBy(ctx, "reset_key", key)
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()
	query := `
		UPDATE users SET
			email = :email, name = :name, password_hash = :password_hash, is_active = :is_active,
			timezone = :timezone, language = :language, photo = :photo,
			current_company_id = :current_company_id, activation_key = :activation_key,
			key_expires = :key_expires, reset_key = :reset_key, reset_expires = :reset_expires,
			last_login_at = :last_login_at, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return affected("user", result)
}

func (r *userRepository) SetCurrentCompany(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET current_company_id = $1, updated_at = $2 WHERE id = $3`,
		companyID, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to set current company: %w", err)
	}
	return affected("user", result)
}

func (r *userRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	raw := make(pq.StringArray, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}
	var users []*model.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1::uuid[]) ORDER BY email`
	if err := r.db.SelectContext(ctx, &users, query, raw); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *userRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*model.User, error) {
	var users []*model.User
	query := `
		SELECT ` + prefixed("u", userColumns) + `
		FROM users u
		JOIN colaborators c ON c.user_id = u.id
		WHERE c.company_id = $1
		ORDER BY u.email
	`
	if err := r.db.SelectContext(ctx, &users, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to list company users: %w", err)
	}
	return users, nil
}
