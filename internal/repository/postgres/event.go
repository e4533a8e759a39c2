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

const eventColumns = `id, company_id, user_id, share_with, related_kind, related_id, title, description,
	start_at, finish_at, notify, notified, slug, is_public, created_at, updated_at`

var eventFilters = map[string]string{
	"user":         "user_id",
	"related_kind": "related_kind",
	"related_id":   "related_id",
	"is_public":    "is_public",
}

type eventRepository struct {
	BaseRepository
}

func NewEventRepository(db *sqlx.DB) repository.EventRepository {
	return &eventRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *eventRepository) Create(ctx context.Context, event *model.Event) error {
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	if event.ShareWith == nil {
		event.ShareWith = model.UUIDs{}
	}

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (:id, :company_id, :user_id, :share_with, :related_kind, :related_id, :title, :description,
			:start_at, :finish_at, :notify, :notified, :slug, :is_public, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

func (r *eventRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Event, error) {
	query, args, err := selectOne("events", eventColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var event model.Event
	if err := r.db.GetContext(ctx, &event, query, args...); err != nil {
		return nil, getErr("event", err)
	}
	return &event, nil
}

func (r *eventRepository) GetPublicBySlug(ctx context.Context, slug string) (*model.Event, error) {
	var event model.Event
	query := `SELECT ` + eventColumns + ` FROM events WHERE slug = $1 AND is_public`
	if err := r.db.GetContext(ctx, &event, query, slug); err != nil {
		return nil, getErr("event", err)
	}
	return &event, nil
}

func (r *eventRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Event, error) {
	query, args, err := selectList("events", eventColumns, scope, lq, eventFilters, "start_at DESC")
	if err != nil {
		return nil, err
	}
	var events []*model.Event
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*model.Event, error) {
	var events []*model.Event
	query := `
		SELECT ` + eventColumns + ` FROM events
		WHERE user_id IS NOT NULL AND notify <> '' AND start_at BETWEEN $1 AND $2
		ORDER BY start_at
	`
	if err := r.db.SelectContext(ctx, &events, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	return events, nil
}

func (r *eventRepository) Update(ctx context.Context, scope model.Scope, event *model.Event) error {
	event.UpdatedAt = time.Now()
	query, args, err := update("events", scope, event.ID,
		[]string{"share_with", "related_kind", "related_id", "title", "description", "start_at", "finish_at",
			"notify", "notified", "is_public", "updated_at"},
		[]interface{}{event.ShareWith, event.RelatedKind, event.RelatedID, event.Title, event.Description,
			event.Start, event.Finish, event.Notify, event.Notified, event.IsPublic, event.UpdatedAt})
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return affected("event", result)
}

func (r *eventRepository) UpdateNotified(ctx context.Context, id uuid.UUID, notified string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE events SET notified = $1, updated_at = $2 WHERE id = $3`, notified, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update notified offsets: %w", err)
	}
	return affected("event", result)
}

func (r *eventRepository) Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error {
	query, args, err := deleteOne("events", scope, id)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return affected("event", result)
}
