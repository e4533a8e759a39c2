package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice keeps its company reference nullable so billing history survives company deletion.
type Invoice struct {
	Base
	CompanyID *uuid.UUID      `db:"company_id" json:"company_id,omitempty"`
	Concept   string          `db:"concept" json:"concept"`
	Subtotal  decimal.Decimal `db:"subtotal" json:"subtotal"`
	Fees      decimal.Decimal `db:"fees" json:"fees"`
	Currency  string          `db:"currency" json:"currency"`
	GraceDays int             `db:"grace_days" json:"grace_days"`
	Payments  []Payment       `db:"-" json:"payments"`
}

func (i *Invoice) Ref() Ref {
	return RefTo(KindInvoice, i.ID)
}

func (i *Invoice) Total() decimal.Decimal {
	return i.Subtotal.Add(i.Fees)
}

func (i *Invoice) TotalPaid() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range i.Payments {
		paid = paid.Add(p.Total)
	}
	return paid
}

// TotalPending is total minus payments, rounded to cents.
func (i *Invoice) TotalPending() decimal.Decimal {
	return i.Total().Sub(i.TotalPaid()).Round(2)
}

func (i *Invoice) IsPayed() bool {
	return i.TotalPending().LessThanOrEqual(decimal.Zero)
}

func (i *Invoice) Expiration() time.Time {
	return i.CreatedAt.AddDate(0, 0, i.GraceDays)
}

// IsExpired reports an unpaid invoice past its grace period.
func (i *Invoice) IsExpired(now time.Time) bool {
	return !i.IsPayed() && now.After(i.Expiration())
}

// Payment is an append-only allocation against an invoice.
type Payment struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	InvoiceID uuid.UUID       `db:"invoice_id" json:"invoice_id"`
	CompanyID *uuid.UUID      `db:"company_id" json:"company_id,omitempty"`
	Total     decimal.Decimal `db:"total" json:"total"`
	ChargeID  string          `db:"charge_id" json:"charge_id"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

type PayRequest struct {
	Token string `json:"token" binding:"required"`
}

type InvoiceRequest struct {
	Concept  string          `json:"concept" binding:"required,max=255"`
	Subtotal decimal.Decimal `json:"subtotal" binding:"required"`
	Fees     decimal.Decimal `json:"fees"`
}
