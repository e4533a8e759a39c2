package event

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type MessageSender interface {
	CreateMessage(ctx context.Context, m *model.Message) error
	Send(ctx context.Context, m *model.Message) (model.Result, error)
}

type Renderer interface {
	Render(name string, data interface{}) (*email.Mail, error)
}

type Notifier interface {
	Notify(ctx context.Context, companyID, userID uuid.UUID, res model.Result) (*model.Notification, error)
}

type Config struct {
	BaseURL string
	// Lookback and Horizon bound the start times a reminder sweep looks at.
	Lookback time.Duration
	Horizon  time.Duration
}

type Service struct {
	events       repository.EventRepository
	companies    repository.CompanyRepository
	users        repository.UserRepository
	colaborators repository.ColaboratorRepository
	messages     MessageSender
	renderer     Renderer
	notifier     Notifier
	cfg          Config
	logger       *logger.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	events repository.EventRepository,
	companies repository.CompanyRepository,
	users repository.UserRepository,
	colaborators repository.ColaboratorRepository,
	messages MessageSender,
	renderer Renderer,
	notifier Notifier,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		events:       events,
		companies:    companies,
		users:        users,
		colaborators: colaborators,
		messages:     messages,
		renderer:     renderer,
		notifier:     notifier,
		cfg:          cfg,
		logger:       log,
		metrics:      m,
		now:          time.Now,
	}
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func newSlug(title string) string {
	base := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if len(base) > 40 {
		base = strings.TrimRight(base[:40], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

func (s *Service) Create(ctx context.Context, tc *tenant.Context, req *model.EventRequest) (*model.Event, error) {
	if err := tc.Require(model.EventEntity.Perm(model.ActionAdd)); err != nil {
		return nil, err
	}

	uid := tc.UserID()
	e := &model.Event{CompanyID: tc.CompanyID(), UserID: &uid}
	if err := s.apply(ctx, tc.CompanyID(), e, req); err != nil {
		return nil, err
	}
	e.Slug = newSlug(e.Title)

	if err := s.events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return e, nil
}

func (s *Service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Event, error) {
	scope, err := tc.Guard(model.EventEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.events.Get(ctx, scope, id)
}

func (s *Service) List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Event, error) {
	scope, err := tc.Guard(model.EventEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.events.List(ctx, scope, q)
}

// Update rewrites the event. Moving the start clears sent reminders so they fire for the new time.
func (s *Service) Update(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.EventRequest) (*model.Event, error) {
	scope, err := tc.Guard(model.EventEntity, model.ActionChange)
	if err != nil {
		return nil, err
	}
	e, err := s.events.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	moved := !req.Start.Equal(e.Start)
	if err := s.apply(ctx, tc.CompanyID(), e, req); err != nil {
		return nil, err
	}
	if moved {
		e.Notified = ""
	}
	e.MarkNotified()

	if err := s.events.Update(ctx, scope, e); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, tc *tenant.Context, id uuid.UUID) error {
	scope, err := tc.Guard(model.EventEntity, model.ActionDelete)
	if err != nil {
		return err
	}
	return s.events.Delete(ctx, scope, id)
}

// apply validates req and copies it onto e.
func (s *Service) apply(ctx context.Context, companyID uuid.UUID, e *model.Event, req *model.EventRequest) error {
	fields := map[string]string{}

	offsets, err := model.ParseOffsets(req.Notify)
	if err != nil {
		fields["notify"] = "Enter comma separated minutes, e.g. 0,15,60."
	}
	if req.Finish != nil && req.Finish.Before(req.Start) {
		fields["finish"] = "Finish must be after start."
	}
	if req.RelatedKind != nil && !req.RelatedKind.Valid() {
		fields["related_kind"] = "Unknown kind."
	}
	if req.RelatedKind == nil && req.RelatedID != nil {
		fields["related_kind"] = "Required when related_id is set."
	}

	share := make(model.UUIDs, 0, len(req.ShareWith))
	for _, uid := range req.ShareWith {
		if _, err := s.colaborators.GetActive(ctx, uid, companyID); err != nil {
			if errors.Is(err, apperrors.NotFoundError) {
				fields["share_with"] = fmt.Sprintf("User %s is not a member of this company.", uid)
				break
			}
			return fmt.Errorf("failed to check colaborator: %w", err)
		}
		share = append(share, uid)
	}

	if len(fields) > 0 {
		return apperrors.Validation(fields)
	}

	e.Title = req.Title
	e.Description = req.Description
	e.Start = req.Start
	e.Finish = req.Finish
	e.Notify = model.FormatOffsets(offsets)
	e.ShareWith = share
	e.RelatedKind = req.RelatedKind
	e.RelatedID = req.RelatedID
	e.IsPublic = req.IsPublic
	return nil
}

// GetPublic returns an event flagged public by its slug.
func (s *Service) GetPublic(ctx context.Context, slug string) (*model.Event, error) {
	return s.events.GetPublicBySlug(ctx, slug)
}

// AddPublic books an unowned event for an active company and tells the owner.
func (s *Service) AddPublic(ctx context.Context, companyID uuid.UUID, req *model.PublicEventRequest) (*model.Event, error) {
	company, err := s.companies.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !company.IsActive {
		return nil, apperrors.TenantInactive(company.Name)
	}
	if req.Finish != nil && req.Finish.Before(req.Start) {
		return nil, apperrors.FieldError("finish", "Finish must be after start.")
	}

	e := &model.Event{
		CompanyID:   company.ID,
		Title:       req.Title,
		Description: req.Description,
		Start:       req.Start,
		Finish:      req.Finish,
		Slug:        newSlug(req.Title),
	}
	if err := s.events.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	res := model.Info(fmt.Sprintf("New booking: %s.", e.Title)).About(e.Ref())
	if _, err := s.notifier.Notify(ctx, company.ID, company.OwnerID, res); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) eventURL(e *model.Event) string {
	if e.IsPublic {
		return fmt.Sprintf("%s/e/%s", s.cfg.BaseURL, e.Slug)
	}
	return s.cfg.BaseURL + e.Ref().URL()
}
