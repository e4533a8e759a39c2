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

const (
	invoiceColumns = `id, company_id, concept, subtotal, fees, currency, grace_days, created_at, updated_at`
	paymentColumns = `id, invoice_id, company_id, total, charge_id, created_at`
)

type invoiceRepository struct {
	BaseRepository
}

func NewInvoiceRepository(db *sqlx.DB) repository.InvoiceRepository {
	return &invoiceRepository{BaseRepository: NewBaseRepository(db)}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *model.Invoice) error {
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt

	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES (:id, :company_id, :concept, :subtotal, :fees, :currency, :grace_days, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, inv); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Invoice, error) {
	query, args, err := selectOne("invoices", invoiceColumns, scope, id)
	if err != nil {
		return nil, err
	}
	var inv model.Invoice
	if err := r.db.GetContext(ctx, &inv, query, args...); err != nil {
		return nil, getErr("invoice", err)
	}
	if err := r.loadPayments(ctx, []*model.Invoice{&inv}); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invoiceRepository) List(ctx context.Context, scope model.Scope, lq model.ListQuery) ([]*model.Invoice, error) {
	query, args, err := selectList("invoices", invoiceColumns, scope, lq, nil, "created_at DESC")
	if err != nil {
		return nil, err
	}
	var invoices []*model.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	if err := r.loadPayments(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*model.Invoice, error) {
	var invoices []*model.Invoice
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &invoices, query, companyID); err != nil {
		return nil, fmt.Errorf("failed to list company invoices: %w", err)
	}
	if err := r.loadPayments(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) loadPayments(ctx context.Context, invoices []*model.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make(pq.StringArray, len(invoices))
	byID := make(map[uuid.UUID]*model.Invoice, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID.String()
		byID[inv.ID] = inv
	}

	var payments []model.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE invoice_id = ANY($1::uuid[]) ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &payments, query, ids); err != nil {
		return fmt.Errorf("failed to load payments: %w", err)
	}
	for _, p := range payments {
		if inv, ok := byID[p.InvoiceID]; ok {
			inv.Payments = append(inv.Payments, p)
		}
	}
	return nil
}

func (r *invoiceRepository) AddPayment(ctx context.Context, p *model.Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :invoice_id, :company_id, :total, :charge_id, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("failed to add payment: %w", err)
	}
	return nil
}
