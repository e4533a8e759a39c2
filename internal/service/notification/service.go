package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type NotificationServicer interface {
	Notify(ctx context.Context, companyID, userID uuid.UUID, res model.Result) (*model.Notification, error)
	NotifyAll(ctx context.Context, companyID, userID uuid.UUID, results []model.Result) error
	List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Notification, error)
	SetRead(ctx context.Context, tc *tenant.Context, id uuid.UUID) (model.Result, error)
	SetUnread(ctx context.Context, tc *tenant.Context, id uuid.UUID) (model.Result, error)
	MarkAllRead(ctx context.Context, tc *tenant.Context) (int64, error)
	CountUnread(ctx context.Context, tc *tenant.Context) (int64, error)
}

type Service struct {
	repo    repository.NotificationRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(repo repository.NotificationRepository, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		now:     time.Now,
	}
}

// Notify records exactly one notification for res. A result without a concrete
// subject points at the list endpoint of its kind, or of companies when it has none.
func (s *Service) Notify(ctx context.Context, companyID, userID uuid.UUID, res model.Result) (*model.Notification, error) {
	ref := res.Source
	if ref.IsZero() {
		ref = model.Ref{Kind: model.KindCompany}
	}

	n := &model.Notification{
		CompanyID:   companyID,
		UserID:      userID,
		SourceKind:  ref.Kind,
		SourceID:    ref.ID,
		Destination: ref.URL(),
		Level:       res.Level,
		Content:     res.Message,
	}
	if n.Level == "" {
		n.Level = model.LevelInfo
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}
	if s.metrics != nil {
		s.metrics.NotificationsCreated.WithLabelValues(string(n.Level)).Inc()
	}
	return n, nil
}

// NotifyAll records one notification per result.
func (s *Service) NotifyAll(ctx context.Context, companyID, userID uuid.UUID, results []model.Result) error {
	for _, res := range results {
		if _, err := s.Notify(ctx, companyID, userID, res); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Notification, error) {
	// Notifications are always personal, view_all does not apply.
	return s.repo.List(ctx, s.scope(tc), q)
}

func (s *Service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Notification, error) {
	return s.repo.Get(ctx, s.scope(tc), id)
}

// SetRead stamps the read date. Reading a read notification is a no-op reported as info.
func (s *Service) SetRead(ctx context.Context, tc *tenant.Context, id uuid.UUID) (model.Result, error) {
	n, err := s.repo.Get(ctx, s.scope(tc), id)
	if err != nil {
		return model.Result{}, err
	}
	if n.IsRead() {
		return model.Info("Notification already marked as read.").About(n.Source()), nil
	}

	now := s.now()
	if err := s.repo.SetRead(ctx, n.ID, &now); err != nil {
		return model.Result{}, fmt.Errorf("failed to mark notification read: %w", err)
	}
	return model.Success("Notification marked as read.").About(n.Source()), nil
}

func (s *Service) SetUnread(ctx context.Context, tc *tenant.Context, id uuid.UUID) (model.Result, error) {
	n, err := s.repo.Get(ctx, s.scope(tc), id)
	if err != nil {
		return model.Result{}, err
	}
	if !n.IsRead() {
		return model.Info("Notification already marked as unread.").About(n.Source()), nil
	}

	if err := s.repo.SetRead(ctx, n.ID, nil); err != nil {
		return model.Result{}, fmt.Errorf("failed to mark notification unread: %w", err)
	}
	return model.Success("Notification marked as unread.").About(n.Source()), nil
}

// MarkAllRead is a single bulk update over the user's unread notifications in the company.
func (s *Service) MarkAllRead(ctx context.Context, tc *tenant.Context) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, tc.CompanyID(), tc.UserID(), s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return count, nil
}

func (s *Service) CountUnread(ctx context.Context, tc *tenant.Context) (int64, error) {
	return s.repo.CountUnread(ctx, tc.CompanyID(), tc.UserID())
}

func (s *Service) scope(tc *tenant.Context) model.Scope {
	uid := tc.UserID()
	return model.Scope{
		CompanyField: model.NotificationEntity.CompanyField,
		CompanyID:    tc.CompanyID(),
		OwnerField:   model.NotificationEntity.OwnerField,
		OwnerID:      &uid,
	}
}
