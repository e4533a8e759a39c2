package model

import (
	"time"

	"github.com/google/uuid"
)

// Notification is an in-app audit entry for one user in one company.
// Only DateRead changes after creation.
type Notification struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	CompanyID   uuid.UUID  `db:"company_id" json:"company_id"`
	UserID      uuid.UUID  `db:"user_id" json:"user_id"`
	SourceKind  Kind       `db:"source_kind" json:"source_kind"`
	SourceID    *uuid.UUID `db:"source_id" json:"source_id,omitempty"`
	Destination string     `db:"destination" json:"destination"`
	Level       Level      `db:"level" json:"level"`
	Content     string     `db:"content" json:"content"`
	DateRead    *time.Time `db:"date_read" json:"date_read,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

func (n *Notification) IsRead() bool {
	return n.DateRead != nil
}

func (n *Notification) Source() Ref {
	return Ref{Kind: n.SourceKind, ID: n.SourceID}
}
