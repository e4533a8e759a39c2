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

const notificationColumns = `id, company_id, user_id, source_kind, source_id, destination, level, content, date_read, created_at`

var notificationFilters = map[string]string{
	"level":       "level",
	"source_kind": "source_kind",
}

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	n.ID = uuid.New()
	n.CreatedAt = time.Now()

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (:id, :company_id, :user_id, :source_kind, :source_id, :destination, :level, :content, :date_read, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Notification, error) {
	query, args, err := selectOne("notifications", notificationColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return nil, getErr("notification", err)
	}
	return &n, nil
}

func (r *notificationRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Notification, error) {
	// "unread" is not a column filter.
	filters := model.Filters{}
	unreadOnly := false
	for k, v := range lq.Filters {
		if k == "unread" {
			unreadOnly = v == "true" || v == "1"
			continue
		}
		filters[k] = v
	}

	q := &query{}
	q.write("SELECT %s FROM notifications", notificationColumns)
	if err := q.where(scope); err != nil {
		return nil, err
	}
	if err := q.filter(filters, notificationFilters); err != nil {
		return nil, err
	}
	if unreadOnly {
		q.write(" AND date_read IS NULL")
	}
	q.write(" ORDER BY created_at DESC")
	q.page(lq.Pagination)

	var out []*model.Notification
	if err := r.db.SelectContext(ctx, &out, q.String(), q.args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepository) SetRead(ctx context.Context, id uuid.UUID, at *time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE notifications SET date_read = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return affected("notification", result)
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, companyID, userID uuid.UUID, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET date_read = $1
		WHERE company_id = $2 AND user_id = $3 AND date_read IS NULL
	`, at, companyID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, companyID, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`SELECT count(*) FROM notifications WHERE company_id = $1 AND user_id = $2 AND date_read IS NULL`,
		companyID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}
