package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/model"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	apperrors "github.com/jwalitptl/crm-api/pkg/errors"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/metrics"
)

type Mailer interface {
	Render(name string, data interface{}) (*email.Mail, error)
	Deliver(ctx context.Context, company *model.Company, mail *email.Mail) (int, error)
	SendTemplate(ctx context.Context, company *model.Company, name string, data interface{}, to ...string) (int, error)
}

type Notifier interface {
	Notify(ctx context.Context, companyID, userID uuid.UUID, res model.Result) (*model.Notification, error)
}

type Config struct {
	// BaseURL prefixes /l/ redirect and /m/p/ pixel URLs.
	BaseURL string
}

type Service struct {
	messages  repository.MessageRepository
	links     repository.LinkRepository
	companies repository.CompanyRepository
	users     repository.UserRepository
	mailer    Mailer
	notifier  Notifier
	baseURL   string
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(
	messages repository.MessageRepository,
	links repository.LinkRepository,
	companies repository.CompanyRepository,
	users repository.UserRepository,
	mailer Mailer,
	notifier Notifier,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		messages:  messages,
		links:     links,
		companies: companies,
		users:     users,
		mailer:    mailer,
		notifier:  notifier,
		baseURL:   cfg.BaseURL,
		logger:    log,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *Service) LinkURL(id uuid.UUID) string {
	return fmt.Sprintf("%s/l/%s", s.baseURL, id)
}

func (s *Service) PixelURL(token string) string {
	return fmt.Sprintf("%s/m/p/%s", s.baseURL, token)
}

func newToken() string {
	return ulid.Make().String()
}

// Create stores an outbound message authored by the acting user.
func (s *Service) Create(ctx context.Context, tc *tenant.Context, req *model.MessageRequest) (*model.Message, error) {
	if err := tc.Require(model.MessageEntity.Perm(model.ActionAdd)); err != nil {
		return nil, err
	}
	if err := validateRelated(req.RelatedKind, req.RelatedID); err != nil {
		return nil, err
	}

	uid := tc.UserID()
	m := &model.Message{
		CompanyID:   tc.CompanyID(),
		UserID:      &uid,
		Direction:   model.DirectionOutbound,
		RelatedKind: req.RelatedKind,
		RelatedID:   req.RelatedID,
		From:        tc.Company.MailFrom,
		To:          req.To,
		Cc:          req.Cc,
		Subject:     req.Subject,
		Content:     req.Content,
	}
	if err := s.CreateMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMessage stores m as given, minting its tracking token.
func (s *Service) CreateMessage(ctx context.Context, m *model.Message) error {
	if m.Direction == "" {
		m.Direction = model.DirectionOutbound
	}
	m.Token = newToken()
	if err := s.messages.Create(ctx, m); err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*model.Message, error) {
	scope, err := tc.Guard(model.MessageEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.messages.Get(ctx, scope, id)
}

// GetByID loads a message without tenant scoping, for task handlers that resolved the tenant already.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	return s.messages.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, tc *tenant.Context, q model.ListQuery) ([]*model.Message, error) {
	scope, err := tc.Guard(model.MessageEntity, model.ActionView)
	if err != nil {
		return nil, err
	}
	return s.messages.List(ctx, scope, q)
}

// Update edits a message that has not been sent yet.
func (s *Service) Update(ctx context.Context, tc *tenant.Context, id uuid.UUID, req *model.MessageRequest) (*model.Message, error) {
	scope, err := tc.Guard(model.MessageEntity, model.ActionChange)
	if err != nil {
		return nil, err
	}
	if err := validateRelated(req.RelatedKind, req.RelatedID); err != nil {
		return nil, err
	}

	m, err := s.messages.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if m.Sent() {
		return nil, apperrors.FieldError("content", "Sent messages cannot be edited.")
	}

	m.To = req.To
	m.Cc = req.Cc
	m.Subject = req.Subject
	m.Content = req.Content
	m.RelatedKind = req.RelatedKind
	m.RelatedID = req.RelatedID
	if err := s.messages.Update(ctx, scope, m); err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	return m, nil
}

func (s *Service) Delete(ctx context.Context, tc *tenant.Context, id uuid.UUID) error {
	scope, err := tc.Guard(model.MessageEntity, model.ActionDelete)
	if err != nil {
		return err
	}
	return s.messages.Delete(ctx, scope, id)
}

// SetLinks swaps every URL in the message body for a tracking redirect and returns
// the new body. Links are looked up by (company, destination) and created when missing;
// concurrent sends of the same destination may each create one.
func (s *Service) SetLinks(ctx context.Context, m *model.Message) (string, error) {
	tracked := make(map[string]string)
	prefix := s.baseURL + "/l/"
	for _, dest := range destinations(m.Content, prefix) {
		link, err := s.getOrCreateLink(ctx, m, dest)
		if err != nil {
			return "", err
		}
		tracked[dest] = s.LinkURL(link.ID)
	}
	m.Content = replaceURLs(m.Content, tracked, prefix)
	return m.Content, nil
}

func (s *Service) getOrCreateLink(ctx context.Context, m *model.Message, dest string) (*model.Link, error) {
	link, err := s.links.FindByDestination(ctx, m.CompanyID, dest)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, apperrors.NotFoundError) {
		return nil, fmt.Errorf("failed to find link: %w", err)
	}

	mid := m.ID
	link = &model.Link{CompanyID: m.CompanyID, MessageID: &mid, Destination: dest}
	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return link, nil
}

// Send instruments and delivers m. Expected outcomes (already sent, delivery
// failure) are results; only storage failures are errors. A failed delivery
// leaves date_send unset so the caller may retry.
func (s *Service) Send(ctx context.Context, m *model.Message) (model.Result, error) {
	if m.Sent() {
		return model.Failure("Message already sent.").About(m.Ref()), nil
	}

	company, err := s.companies.Get(ctx, m.CompanyID)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to get company: %w", err)
	}
	locale := Locale(company.Language)

	if _, err := s.SetLinks(ctx, m); err != nil {
		return model.Result{}, err
	}
	isHTML := IsHTML(m.Content)
	if isHTML {
		m.Content = withPixel(m.Content, s.PixelURL(m.Token))
	}

	// Persist the instrumented body so a retry does not track links twice.
	scope := model.Scope{CompanyField: model.MessageEntity.CompanyField, CompanyID: m.CompanyID}
	if err := s.messages.Update(ctx, scope, m); err != nil {
		if errors.Is(err, apperrors.NotFoundError) {
			return model.Failure("Message already sent.").About(m.Ref()), nil
		}
		return model.Result{}, fmt.Errorf("failed to store message content: %w", err)
	}

	mail := &email.Mail{
		From:     m.From,
		To:       m.To,
		Cc:       m.Cc,
		Subject:  m.Subject,
		Language: locale.String(),
	}
	if isHTML {
		mail.HTML = m.Content
		mail.Text = PlainText(m.Content)
	} else {
		mail.Text = m.Content
	}

	log := s.logger.WithFields(map[string]interface{}{"message_id": m.ID, "company_id": m.CompanyID})
	count, err := s.mailer.Deliver(ctx, company, mail)
	if err != nil || count == 0 {
		s.metrics.MessagesFailed.Inc()
		reason := "no recipient accepted the message"
		if err != nil {
			reason = err.Error()
			log.Error(err, "message delivery failed")
		}
		return model.Failure(fmt.Sprintf("Message could not be sent: %s.", reason)).About(m.Ref()), nil
	}

	now := s.now()
	ok, err := s.messages.MarkSent(ctx, m.ID, m.Content, now)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to mark message sent: %w", err)
	}
	if !ok {
		return model.Failure("Message already sent.").About(m.Ref()), nil
	}
	m.DateSend = &now

	s.metrics.MessagesSent.Inc()
	log.Info("message sent", "recipients", count)
	return model.Success(fmt.Sprintf("Message sent to %d recipients.", count)).About(m.Ref()), nil
}

// ReportBounce marks m failed and mails the author a bounce report. The warning
// result is routed by the caller.
func (s *Service) ReportBounce(ctx context.Context, m *model.Message, reason string) (model.Result, error) {
	now := s.now()
	if err := s.messages.MarkFailed(ctx, m.ID, now); err != nil {
		return model.Result{}, fmt.Errorf("failed to mark message failed: %w", err)
	}
	m.DateFailed = &now

	res := model.Warning(fmt.Sprintf("Message %q bounced: %s", m.Subject, reason)).About(m.Ref())
	if m.UserID == nil {
		return res, nil
	}

	author, err := s.users.Get(ctx, *m.UserID)
	if err != nil {
		return model.Result{}, fmt.Errorf("failed to get message author: %w", err)
	}

	data := email.BounceData{Subject: m.Subject, To: m.To, Reason: reason}
	if _, err := s.mailer.SendTemplate(ctx, nil, email.Bounce, data, author.Email); err != nil {
		s.logger.Error(err, "failed to send bounce report", "message_id", m.ID)
	}
	return res, nil
}

// notifyAuthor records res for the message author unless the author is actor,
// whose notification the dispatcher already creates.
func (s *Service) notifyAuthor(ctx context.Context, m *model.Message, res model.Result, actor *model.User) error {
	if m.UserID == nil || (actor != nil && actor.ID == *m.UserID) {
		return nil
	}
	_, err := s.notifier.Notify(ctx, m.CompanyID, *m.UserID, res)
	return err
}

// Open marks the message behind a pixel token read. Only the first open counts.
func (s *Service) Open(ctx context.Context, token string) error {
	m, err := s.messages.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	first, err := s.messages.MarkRead(ctx, m.ID, s.now())
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if first {
		s.metrics.MessagesOpened.Inc()
	}
	return nil
}

func validateRelated(kind *model.Kind, id *uuid.UUID) error {
	if kind == nil {
		if id != nil {
			return apperrors.FieldError("related_kind", "Required when related_id is set.")
		}
		return nil
	}
	if !kind.Valid() {
		return apperrors.FieldError("related_kind", "Unknown kind.")
	}
	return nil
}
