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

const (
	linkColumns  = `id, company_id, message_id, destination, total_visits, created_at, updated_at`
	visitColumns = `id, link_id, company_id, ip_address, created_at`
)

var (
	linkFilters  = map[string]string{"message": "message_id", "destination": "destination"}
	visitFilters = map[string]string{"link": "link_id"}
)

type linkRepository struct {
	BaseRepository
}

func NewLinkRepository(db *sqlx.DB) repository.LinkRepository {
	return &linkRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	link.ID = uuid.New()
	link.CreatedAt = time.Now()
	link.UpdatedAt = link.CreatedAt

	query := `
		INSERT INTO links (` + linkColumns + `)
		VALUES (:id, :company_id, :message_id, :destination, :total_visits, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}
	return nil
}

func (r *linkRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Link, error) {
	query, args, err := selectOne("links", linkColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var link model.Link
	if err := r.db.GetContext(ctx, &link, query, args...); err != nil {
		return nil, getErr("link", err)
	}
	return &link, nil
}

func (r *linkRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error) {
	var link model.Link
	if err := r.db.GetContext(ctx, &link, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id); err != nil {
		return nil, getErr("link", err)
	}
	return &link, nil
}

func (r *linkRepository) FindByDestination(ctx context.Context, companyID uuid.UUID, destination string) (*model.Link, error) {
	var link model.Link
	query := `
		SELECT ` + linkColumns + ` FROM links
		WHERE company_id = $1 AND destination = $2
		ORDER BY created_at LIMIT 1
	`
	if err := r.db.GetContext(ctx, &link, query, companyID, destination); err != nil {
		return nil, getErr("link", err)
	}
	return &link, nil
}

func (r *linkRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Link, error) {
	query, args, err := selectList("links", linkColumns, scope, lq, linkFilters, "created_at DESC")
	if err != nil {
		return nil, err
	}
	var links []*model.Link
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

func (r *linkRepository) Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error {
	query, args, err := deleteOne("links", scope, id)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	return affected("link", result)
}

func (r *linkRepository) RecordVisit(ctx context.Context, visit *model.Visit) error {
	visit.ID = uuid.New()
	visit.CreatedAt = time.Now()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO visits (`+visitColumns+`) VALUES ($1, $2, $3, $4, $5)`,
			visit.ID, visit.LinkID, visit.CompanyID, visit.IPAddress, visit.CreatedAt); err != nil {
			return fmt.Errorf("failed to record visit: %w", err)
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE links SET total_visits = total_visits + 1, updated_at = $1 WHERE id = $2`,
			visit.CreatedAt, visit.LinkID)
		if err != nil {
			return fmt.Errorf("failed to count visit: %w", err)
		}
		return affected("link", result)
	})
}

func (r *linkRepository) ListVisits(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Visit, error) {
	query, args, err := selectList("visits", visitColumns, scope, lq, visitFilters, "created_at DESC")
	if err != nil {
		return nil, err
	}
	var visits []*model.Visit
	if err := r.db.SelectContext(ctx, &visits, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return visits, nil
}
