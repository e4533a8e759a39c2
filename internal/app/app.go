// Package app wires repositories, services and the task dispatcher from
// configuration. Both binaries build on it.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/crm-api/internal/config"
	"github.com/jwalitptl/crm-api/internal/email"
	"github.com/jwalitptl/crm-api/internal/ops"
	"github.com/jwalitptl/crm-api/internal/payment"
	"github.com/jwalitptl/crm-api/internal/repository"
	"github.com/jwalitptl/crm-api/internal/repository/postgres"
	"github.com/jwalitptl/crm-api/internal/service/auth"
	"github.com/jwalitptl/crm-api/internal/service/company"
	"github.com/jwalitptl/crm-api/internal/service/event"
	"github.com/jwalitptl/crm-api/internal/service/invite"
	"github.com/jwalitptl/crm-api/internal/service/invoice"
	"github.com/jwalitptl/crm-api/internal/service/message"
	"github.com/jwalitptl/crm-api/internal/service/notification"
	"github.com/jwalitptl/crm-api/internal/service/permission"
	"github.com/jwalitptl/crm-api/internal/service/tenant"
	"github.com/jwalitptl/crm-api/internal/task"
	jwtauth "github.com/jwalitptl/crm-api/pkg/auth"
	"github.com/jwalitptl/crm-api/pkg/logger"
	"github.com/jwalitptl/crm-api/pkg/messaging"
	"github.com/jwalitptl/crm-api/pkg/messaging/redis"
	"github.com/jwalitptl/crm-api/pkg/metrics"
	"github.com/jwalitptl/crm-api/pkg/security"
)

type Repositories struct {
	Users         repository.UserRepository
	Companies     repository.CompanyRepository
	Colaborators  repository.ColaboratorRepository
	Roles         repository.RoleRepository
	Invites       repository.InviteRepository
	Events        repository.EventRepository
	Messages      repository.MessageRepository
	Links         repository.LinkRepository
	Notifications repository.NotificationRepository
	Invoices      repository.InvoiceRepository
}

func NewRepositories(db *sqlx.DB) Repositories {
	return Repositories{
		Users:         postgres.NewUserRepository(db),
		Companies:     postgres.NewCompanyRepository(db),
		Colaborators:  postgres.NewColaboratorRepository(db),
		Roles:         postgres.NewRoleRepository(db),
		Invites:       postgres.NewInviteRepository(db),
		Events:        postgres.NewEventRepository(db),
		Messages:      postgres.NewMessageRepository(db),
		Links:         postgres.NewLinkRepository(db),
		Notifications: postgres.NewNotificationRepository(db),
		Invoices:      postgres.NewInvoiceRepository(db),
	}
}

// App holds the wired services.
type App struct {
	Config *config.Config
	Logger *logger.Logger

	DB    *sqlx.DB
	Queue messaging.Queue
	Repos Repositories

	Resolver      *permission.Resolver
	Guard         *tenant.Guard
	Mailer        *email.Mailer
	Reporter      *ops.Reporter
	Registry      *task.Registry
	Dispatcher    *task.Dispatcher
	Auth          *auth.Service
	Companies     *company.Service
	Invites       *invite.Service
	Events        *event.Service
	Messages      *message.Service
	Notifications *notification.Service
	Invoices      *invoice.Service
}

// New connects to the database and, in async mode, to Redis, then builds
// every service and registers the task actions.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*App, error) {
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	var queue messaging.Queue
	if cfg.Tasks.Async() {
		queue, err = redis.NewQueue(redis.Config{URL: cfg.Redis.URL}, &log.ZL)
		if err != nil {
			db.Close()
			return nil, err
		}
	} else {
		queue = messaging.NewMemoryQueue()
	}

	a, err := Build(cfg, db, queue, log, m)
	if err != nil {
		queue.Close()
		db.Close()
		return nil, err
	}
	return a, nil
}

// Build wires the services over an open database and queue.
func Build(cfg *config.Config, db *sqlx.DB, queue messaging.Queue, log *logger.Logger, m *metrics.Metrics) (*App, error) {
	repos := NewRepositories(db)

	var enc security.Encryptor
	if cfg.Security.EncryptionKey != "" {
		var err error
		enc, err = security.NewAESEncryptor([]byte(cfg.Security.EncryptionKey))
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
	}
	secrets := security.NewSecretBox(enc)

	templates, err := email.NewTemplates()
	if err != nil {
		return nil, err
	}
	sender := email.NewSMTPSender(email.Connection{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, log)
	mailer := email.NewMailer(sender, templates, secrets)
	reporter := ops.NewReporter(mailer, cfg.Ops.Emails, cfg.Site.Name, log)

	tokens, err := jwtauth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	if err != nil {
		return nil, err
	}
	hasher := security.NewBcryptHasher(0)

	resolver := permission.NewResolver(repos.Colaborators, repos.Roles, permission.Config{
		Staff:    cfg.Permissions.Staff,
		Debug:    cfg.Permissions.Debug,
		CacheTTL: cfg.Permissions.CacheTTL,
	}, log)
	guard := tenant.NewGuard(repos.Companies, repos.Colaborators, resolver)

	notifications := notification.NewService(repos.Notifications, m)

	registry := task.NewRegistry()
	dispatcher := task.NewDispatcher(task.Config{
		Mode:  task.Mode(cfg.Tasks.Mode),
		Queue: cfg.Tasks.Queue,
	}, queue, registry, guard, repos.Users, notifications, reporter, log, m)

	companies := company.NewService(repos.Companies, repos.Colaborators, repos.Roles, repos.Users, resolver, secrets, log)

	messages := message.NewService(repos.Messages, repos.Links, repos.Companies, repos.Users,
		mailer, notifications, message.Config{BaseURL: cfg.Site.BaseURL}, log, m)

	events := event.NewService(repos.Events, repos.Companies, repos.Users, repos.Colaborators,
		messages, mailer, notifications, event.Config{
			BaseURL:  cfg.Site.BaseURL,
			Lookback: cfg.Reminders.Lookback,
			Horizon:  cfg.Reminders.Horizon,
		}, log, m)

	invites := invite.NewService(repos.Invites, repos.Users, repos.Colaborators, repos.Roles,
		mailer, dispatcher, hasher, invite.Config{Site: cfg.Site.Name, BaseURL: cfg.Site.BaseURL}, log)

	authSvc := auth.NewService(repos.Users, companies, hasher, tokens, mailer, dispatcher,
		auth.Config{Site: cfg.Site.Name, BaseURL: cfg.Site.BaseURL}, log)

	gateway := payment.NewHTTPGateway(cfg.Billing.GatewayURL, cfg.Billing.GatewayKey)
	invoices := invoice.NewService(repos.Invoices, repos.Companies, gateway, notifications, invoice.Config{
		GraceDays: cfg.Billing.GraceDays,
		Currency:  cfg.Billing.Currency,
	}, log, m)

	invites.Register(registry)
	messages.Register(registry)
	events.Register(registry)
	authSvc.Register(registry)

	return &App{
		Config:        cfg,
		Logger:        log,
		DB:            db,
		Queue:         queue,
		Repos:         repos,
		Resolver:      resolver,
		Guard:         guard,
		Mailer:        mailer,
		Reporter:      reporter,
		Registry:      registry,
		Dispatcher:    dispatcher,
		Auth:          authSvc,
		Companies:     companies,
		Invites:       invites,
		Events:        events,
		Messages:      messages,
		Notifications: notifications,
		Invoices:      invoices,
	}, nil
}

// Close releases the queue and the database.
func (a *App) Close() {
	if err := a.Queue.Close(); err != nil {
		a.Logger.Error(err, "failed to close queue")
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Error(err, "failed to close database")
	}
}
