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

const messageColumns = `id, company_id, user_id, direction, related_kind, related_id, from_address, to_addresses,
	cc_addresses, subject, content, token, date_send, date_read, date_failed, created_at, updated_at`

var messageFilters = map[string]string{
	"user":         "user_id",
	"direction":    "direction",
	"related_kind": "related_kind",
	"related_id":   "related_id",
}

type messageRepository struct {
	BaseRepository
}

func NewMessageRepository(db *sqlx.DB) repository.MessageRepository {
	return &messageRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *messageRepository) Create(ctx context.Context, m *model.Message) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	if m.To == nil {
		m.To = pq.StringArray{}
	}
	if m.Cc == nil {
		m.Cc = pq.StringArray{}
	}

	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (:id, :company_id, :user_id, :direction, :related_kind, :related_id, :from_address, :to_addresses,
			:cc_addresses, :subject, :content, :token, :date_send, :date_read, :date_failed, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *messageRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Message, error) {
	query, args, err := selectOne("messages", messageColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var m model.Message
	if err := r.db.GetContext(ctx, &m, query, args...); err != nil {
		return nil, getErr("message", err)
	}
	return &m, nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var m model.Message
	if err := r.db.GetContext(ctx, &m, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id); err != nil {
		return nil, getErr("message", err)
	}
	return &m, nil
}

func (r *messageRepository) GetByToken(ctx context.Context, token string) (*model.Message, error) {
	var m model.Message
	if err := r.db.GetContext(ctx, &m, `SELECT `+messageColumns+` FROM messages WHERE token = $1`, token); err != nil {
		return nil, getErr("message", err)
	}
	return &m, nil
}

func (r *messageRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Message, error) {
	query, args, err := selectList("messages", messageColumns, scope, lq, messageFilters, "created_at DESC")
	if err != nil {
		return nil, err
	}
	var out []*model.Message
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

// Update rewrites draft fields. Sent messages are left untouched and reported as not found.
func (r *messageRepository) Update(ctx context.Context, scope model.Scope, m *model.Message) error {
	m.UpdatedAt = time.Now()
	query, args, err := update("messages", scope, m.ID,
		[]string{"related_kind", "related_id", "to_addresses", "cc_addresses", "subject", "content", "updated_at"},
		[]interface{}{m.RelatedKind, m.RelatedID, m.To, m.Cc, m.Subject, m.Content, m.UpdatedAt})
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query+" AND date_send IS NULL", args...)
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return affected("message", result)
}

func (r *messageRepository) MarkSent(ctx context.Context, id uuid.UUID, content string, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE messages SET content = $1, date_send = $2, date_failed = NULL, updated_at = $2
		WHERE id = $3 AND date_send IS NULL
	`, content, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark message sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET date_read = $1, updated_at = $1 WHERE id = $2 AND date_read IS NULL`, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark message read: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *messageRepository) MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET date_failed = $1, updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return affected("message", result)
}

func (r *messageRepository) Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error {
	query, args, err := deleteOne("messages", scope, id)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return affected("message", result)
}
