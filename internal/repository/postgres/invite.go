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

const inviteColumns = `id, company_id, email, role_ids, activation_key, sent_at, user_id, is_active, created_at, updated_at`

var inviteFilters = map[string]string{
	"email":     "email",
	"is_active": "is_active",
}

type inviteRepository struct {
	BaseRepository
}

func NewInviteRepository(db *sqlx.DB) repository.InviteRepository {
	return &inviteRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *inviteRepository) Create(ctx context.Context, invite *model.Invite) error {
	invite.ID = uuid.New()
	invite.CreatedAt = time.Now()
	invite.UpdatedAt = invite.CreatedAt
	if invite.RoleIDs == nil {
		invite.RoleIDs = model.UUIDs{}
	}

	query := `
		INSERT INTO invites (` + inviteColumns + `)
		VALUES (:id, :company_id, :email, :role_ids, :activation_key, :sent_at, :user_id, :is_active, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, invite); err != nil {
		return fmt.Errorf("failed to create invite: %w", err)
	}
	return nil
}

func (r *inviteRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Invite, error) {
	query, args, err := selectOne("invites", inviteColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var invite model.Invite
	if err := r.db.GetContext(ctx, &invite, query, args...); err != nil {
		return nil, getErr("invite", err)
	}
	return &invite, nil
}

func (r *inviteRepository) GetPendingByKey(ctx context.Context, key string) (*model.Invite, error) {
	var invite model.Invite
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE activation_key = $1 AND is_active AND user_id IS NULL`
	if err := r.db.GetContext(ctx, &invite, query, key); err != nil {
		return nil, getErr("invite", err)
	}
	return &invite, nil
}

func (r *inviteRepository) FindPending(ctx context.Context, companyID uuid.UUID, email string) (*model.Invite, error) {
	var invite model.Invite
	query := `
		SELECT ` + inviteColumns + ` FROM invites
		WHERE company_id = $1 AND lower(email) = lower($2) AND is_active AND user_id IS NULL
	`
	if err := r.db.GetContext(ctx, &invite, query, companyID, email); err != nil {
		return nil, getErr("invite", err)
	}
	return &invite, nil
}

func (r *inviteRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Invite, error) {
	query, args, err := selectList("invites", inviteColumns, scope, lq, inviteFilters, "created_at DESC")
	if err != nil {
		return nil, err
	}
	var invites []*model.Invite
	if err := r.db.SelectContext(ctx, &invites, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return invites, nil
}

func (r *inviteRepository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invites SET sent_at = $1, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark invite sent: %w", err)
	}
	return affected("invite", result)
}

func (r *inviteRepository) Consume(ctx context.Context, invite *model.Invite, newUser *model.User, colaborator *model.Colaborator) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if newUser != nil {
			if err := insertUser(ctx, tx, newUser); err != nil {
				return err
			}
		}
		now := time.Now()

		result, err := tx.ExecContext(ctx, `
			UPDATE invites SET user_id = $1, is_active = FALSE, updated_at = $2
			WHERE id = $3 AND is_active AND user_id IS NULL
		`, colaborator.UserID, now, invite.ID)
		if err != nil {
			return fmt.Errorf("failed to consume invite: %w", err)
		}
		if err := affected("invite", result); err != nil {
			return err
		}

		if err := insertColaborator(ctx, tx, colaborator); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET current_company_id = $1, updated_at = $2 WHERE id = $3 AND current_company_id IS NULL`,
			colaborator.CompanyID, now, colaborator.UserID); err != nil {
			return fmt.Errorf("failed to set current company: %w", err)
		}

		invite.UserID = &colaborator.UserID
		invite.IsActive = false
		invite.UpdatedAt = now
		return nil
	})
}

func (r *inviteRepository) Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error {
	query, args, err := deleteOne("invites", scope, id)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete invite: %w", err)
	}
	return affected("invite", result)
}
