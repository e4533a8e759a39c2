package invoice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/payment"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type Notifier interface {
	Notify(ctx context.Context, companyID, userID uuid.UUID, res model.Result) (*model.Notification, error)
}

type Config struct {
	GraceDays int
	Currency  string
}

type Service struct {
	invoices  repository.InvoiceRepository
	companies repository.CompanyRepository
	gateway   payment.Gateway
	notifier  Notifier
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	invoices repository.InvoiceRepository,
	companies repository.CompanyRepository,
	gateway payment.Gateway,
	notifier Notifier,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		invoices:  invoices,
		companies: companies,
		gateway:   gateway,
		notifier:  notifier,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

// Create bills the current company. The grace period is fixed at creation.
func (s *Service) Create(ctx context.Context, tc *tenant.Context, req *model.InvoiceRequest) (*model.Invoice, error) {
	if err := tc.Require(model.InvoiceEntity.Perm(model.ActionAdd)); err != nil {
		return nil, err
	}
	if req.Subtotal.IsNegative() || req.Fees.IsNegative() {
		return nil, apperrors.FieldError("subtotal", "Amounts cannot be negative.")
	}

	currency := tc.Company.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}
	cid := tc.CompanyID()
	inv := &model.Invoice{
		CompanyID: &cid,
		Concept:   req.Concept,
		Subtotal:  req.Subtotal.Round(2),
		Fees:      req.Fees.Round(2),
		Currency:  strings.ToLower(currency),
		GraceDays: s.cfg.GraceDays,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, nil
}

func (s *Service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Invoice, error) {
	scope, err := tc.Guard(model.InvoiceEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.invoices.Get(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Invoice, error) {
	scope, err := tc.Guard(model.InvoiceEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.invoices.List(ctx, scope, q)
}

// Pay charges the pending amount of an invoice. A declined or unavailable
// processor is an error result, not an error. Paying the last expired invoice
// reactivates the company.
func (s *Service) Pay(ctx context.Context, tc *tenant.Context, id uuid.UUID, token string) (model.Result, error) {
	if err := tc.Require(permission.PayInvoice); err != nil {
		return model.Result{}, err
	}
	scope := tc.Scope(model.InvoiceEntity)
	inv, err := s.invoices.Get(ctx, scope, id)
	if err != nil {
		return model.Result{}, err
	}
	if inv.IsPayed() {
		return model.Info("Invoice already paid.").About(inv.Ref()), nil
	}

	pending := inv.TotalPending()
	receipt, err := s.gateway.Charge(ctx, payment.Charge{
		Token:       token,
		Amount:      pending,
		Currency:    inv.Currency,
		Customer:    tc.Company.Name,
		Description: inv.Concept,
	})
	if err != nil {
		s.metrics.PaymentsCaptured.WithLabelValues("failed").Inc()
		s.logger.Error(err, "payment failed", "invoice_id", inv.ID, "company_id", tc.CompanyID())
		return model.Failure(fmt.Sprintf("Payment failed: %s", payment.Reason(err))).About(inv.Ref()), nil
	}

	p := &model.Payment{
		InvoiceID: inv.ID,
		CompanyID: inv.CompanyID,
		Total:     receipt.Amount,
		ChargeID:  receipt.ChargeID,
	}
	if err := s.invoices.AddPayment(ctx, p); err != nil {
		return model.Result{}, fmt.Errorf("failed to record payment %s: %w", receipt.ChargeID, err)
	}
	inv.Payments = append(inv.Payments, *p)
	s.metrics.PaymentsCaptured.WithLabelValues("captured").Inc()

	if inv.IsPayed() && !tc.Company.IsActive {
		if err := s.reactivate(ctx, tc.Company); err != nil {
			return model.Result{}, err
		}
	}

	return model.Success(fmt.Sprintf("Payment of %s %s received.", receipt.Amount.StringFixed(2), strings.ToUpper(inv.Currency))).About(inv.Ref()), nil
}

// reactivate turns the company back on once no invoice is past due.
func (s *Service) reactivate(ctx context.Context, company *model.Company) error {
	invoices, err := s.invoices.ListByCompany(ctx, company.ID)
	if err != nil {
		return err
	}
	if firstExpired(invoices, s.now()) != nil {
		return nil
	}
	if err := s.companies.SetActive(ctx, company.ID, true); err != nil {
		return fmt.Errorf("failed to reactivate company: %w", err)
	}
	company.IsActive = true
	s.logger.Info("company reactivated after payment", "company_id", company.ID)
	return nil
}

func firstExpired(invoices []*model.Invoice, now time.Time) *model.Invoice {
	for _, inv := range invoices {
		if inv.IsExpired(now) {
			return inv
		}
	}
	return nil
}

// CheckAll deactivates every active company holding an unpaid invoice past its
// grace period and warns the owner. It returns how many were deactivated.
func (s *Service) CheckAll(ctx context.Context) (int, error) {
	companies, err := s.companies.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	deactivated := 0
	for _, company := range companies {
		if err := ctx.Err(); err != nil {
			return deactivated, err
		}
		invoices, err := s.invoices.ListByCompany(ctx, company.ID)
		if err != nil {
			s.logger.Error(err, "failed to list invoices", "company_id", company.ID)
			continue
		}
		expired := firstExpired(invoices, now)
		if expired == nil {
			continue
		}

		if err := s.companies.SetActive(ctx, company.ID, false); err != nil {
			s.logger.Error(err, "failed to deactivate company", "company_id", company.ID)
			continue
		}
		deactivated++
		s.metrics.CompaniesDeactivated.Inc()

		msg := fmt.Sprintf("%s was deactivated: invoice %q (%s pending) expired on %s.",
			company.Name, expired.Concept, expired.TotalPending().StringFixed(2), expired.Expiration().Format("2006-01-02"))
		if _, err := s.notifier.Notify(ctx, company.ID, company.OwnerID, model.Warning(msg).About(expired.Ref())); err != nil {
			s.logger.Error(err, "failed to notify owner", "company_id", company.ID)
		}
	}

	s.logger.Info("billing check finished", "companies", len(companies), "deactivated", deactivated)
	return deactivated, nil
}

// Pending sums what a company still owes.
func Pending(invoices []*model.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		if p := inv.TotalPending(); p.IsPositive() {
			total = total.Add(p)
		}
	}
	return total
}
