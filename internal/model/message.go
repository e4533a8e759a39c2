package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is an email tracked per company. Content may only be rewritten before DateSend is set.
type Message struct {
	Base
	CompanyID   uuid.UUID      `db:"company_id" json:"company_id"`
	UserID      *uuid.UUID     `db:"user_id" json:"user_id,omitempty"`
	Direction   Direction      `db:"direction" json:"direction"`
	RelatedKind *Kind          `db:"related_kind" json:"related_kind,omitempty"`
	RelatedID   *uuid.UUID     `db:"related_id" json:"related_id,omitempty"`
	From        string         `db:"from_address" json:"from"`
	To          pq.StringArray `db:"to_addresses" json:"to"`
	Cc          pq.StringArray `db:"cc_addresses" json:"cc"`
	Subject     string         `db:"subject" json:"subject"`
	Content     string         `db:"content" json:"content"`
	Token       string         `db:"token" json:"-"`
	DateSend    *time.Time     `db:"date_send" json:"date_send,omitempty"`
	DateRead    *time.Time     `db:"date_read" json:"date_read,omitempty"`
	DateFailed  *time.Time     `db:"date_failed" json:"date_failed,omitempty"`
}

func (m *Message) Ref() Ref {
	return RefTo(KindMessage, m.ID)
}

func (m *Message) Sent() bool {
	return m.DateSend != nil
}

func (m *Message) Related() (Ref, bool) {
	if m.RelatedKind == nil {
		return Ref{}, false
	}
	return Ref{Kind: *m.RelatedKind, ID: m.RelatedID}, true
}

// Link is a tracked redirect destination.
type Link struct {
	Base
	CompanyID   uuid.UUID  `db:"company_id" json:"company_id"`
	MessageID   *uuid.UUID `db:"message_id" json:"message_id,omitempty"`
	Destination string     `db:"destination" json:"destination"`
	TotalVisits int        `db:"total_visits" json:"total_visits"`
}

func (l *Link) Ref() Ref {
	return RefTo(KindLink, l.ID)
}

// IsOpen reports whether the link was visited at least once.
func (l *Link) IsOpen() bool {
	return l.TotalVisits > 0
}

// Visit is an append-only hit on a Link.
type Visit struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LinkID    uuid.UUID `db:"link_id" json:"link_id"`
	CompanyID uuid.UUID `db:"company_id" json:"company_id"`
	IPAddress string    `db:"ip_address" json:"ip_address"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type MessageRequest struct {
	To          []string   `json:"to" binding:"required,min=1,dive,email"`
	Cc          []string   `json:"cc" binding:"omitempty,dive,email"`
	Subject     string     `json:"subject" binding:"required,max=255"`
	Content     string     `json:"content" binding:"required"`
	RelatedKind *Kind      `json:"related_kind"`
	RelatedID   *uuid.UUID `json:"related_id"`
}

type BounceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type LinkRequest struct {
	Destination string `json:"destination" binding:"required,url"`
}
