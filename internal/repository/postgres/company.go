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

const companyColumns = `id, name, owner_id, is_active, language, currency, mail_host, mail_port, mail_user,
	mail_password, mail_from, created_at, updated_at`

type companyRepository struct {
	BaseRepository
}

func NewCompanyRepository(db *sqlx.DB) repository.CompanyRepository {
	return &companyRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *companyRepository) CreateWithOwner(ctx context.Context, company *model.Company, owner *model.Colaborator) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	now := time.Now()
	company.CreatedAt = now
	company.UpdatedAt = now

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO companies (` + companyColumns + `)
			VALUES (:id, :name, :owner_id, :is_active, :language, :currency, :mail_host, :mail_port, :mail_user,
				:mail_password, :mail_from, :created_at, :updated_at)
		`
		if _, err := tx.NamedExecContext(ctx, query, company); err != nil {
			return fmt.Errorf("failed to create company: %w", err)
		}

		owner.CompanyID = company.ID
		owner.UserID = company.OwnerID
		if err := insertColaborator(ctx, tx, owner); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET current_company_id = $1, updated_at = $2 WHERE id = $3 AND current_company_id IS NULL`,
			company.ID, now, company.OwnerID); err != nil {
			return fmt.Errorf("failed to set current company: %w", err)
		}
		return nil
	})
}

func (r *companyRepository) Get(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, getErr("company", err)
	}
	return &company, nil
}

func (r *companyRepository) GetByName(ctx context.Context, name string) (*model.Company, error) {
	var company model.Company
	query := `SELECT ` + companyColumns + ` FROM companies WHERE lower(name) = lower($1)`
	if err := r.db.GetContext(ctx, &company, query, name); err != nil {
		return nil, getErr("company", err)
	}
	return &company, nil
}

func (r *companyRepository) Update(ctx context.Context, company *model.Company) error {
	company.UpdatedAt = time.Now()
	query := `
		UPDATE companies SET
			name = :name, language = :language, currency = :currency, mail_host = :mail_host,
			mail_port = :mail_port, mail_user = :mail_user, mail_password = :mail_password,
			mail_from = :mail_from, updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, company)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	return affected("company", result)
}

func (r *companyRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE companies SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set company active: %w", err)
	}
	return affected("company", result)
}

func (r *companyRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Company, error) {
	var companies []*model.Company
	query := `
		SELECT ` + prefixed("co", companyColumns) + `
		FROM companies co
		JOIN colaborators c ON c.company_id = co.id
		WHERE c.user_id = $1 AND c.is_active
		ORDER BY co.name
	`
	if err := r.db.SelectContext(ctx, &companies, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

func (r *companyRepository) ListActive(ctx context.Context) ([]*model.Company, error) {
	var companies []*model.Company
	query := `SELECT ` + companyColumns + ` FROM companies WHERE is_active ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &companies, query); err != nil {
		return nil, fmt.Errorf("failed to list active companies: %w", err)
	}
	return companies, nil
}
