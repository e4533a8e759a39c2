package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/crm-api/internal/model"
)

// Tenant-owned repositories take a model.Scope on every read and write. The scope's
// company clause is applied before any caller supplied filter, so a filter can only narrow it.
// Rows outside the scope are reported as not found.
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		GetByActivationKey(ctx context.Context, key string) (*model.User, error)
		GetByResetKey(ctx context.Context, key string) (*model.User, error)
		Update(ctx context.Context, user *model.User) error
		SetCurrentCompany(ctx context.Context, userID uuid.UUID, companyID *uuid.UUID) error
		ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.User, error)
		// ListByCompany returns members of a company, active or not.
		ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*model.User, error)
	}

	CompanyRepository interface {
		// CreateWithOwner inserts the company and its owner's membership atomically and
		// points the owner's current company at it when unset.
		CreateWithOwner(ctx context.Context, company *model.Company, owner *model.Colaborator) error
		Get(ctx context.Context, id uuid.UUID) (*model.Company, error)
		GetByName(ctx context.Context, name string) (*model.Company, error)
		Update(ctx context.Context, company *model.Company) error
		SetActive(ctx context.Context, id uuid.UUID, active bool) error
		ListForUser(ctx context.Context, userID uuid.UUID) ([]*model.Company, error)
		ListActive(ctx context.Context) ([]*model.Company, error)
	}

	ColaboratorRepository interface {
		Create(ctx context.Context, colaborator *model.Colaborator) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Colaborator, error)
		// GetActive returns the active membership of user in company.
		GetActive(ctx context.Context, userID, companyID uuid.UUID) (*model.Colaborator, error)
		Find(ctx context.Context, userID, companyID uuid.UUID) (*model.Colaborator, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Colaborator, error)
		Update(ctx context.Context, scope model.Scope, colaborator *model.Colaborator) error
		// Delete removes the membership row.
		Delete(ctx context.Context, userID, companyID uuid.UUID) error
		ExistsByEmail(ctx context.Context, companyID uuid.UUID, email string) (bool, error)
	}

	RoleRepository interface {
		Create(ctx context.Context, role *model.Role) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Role, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Role, error)
		// Permissions returns the permissions of the given roles that belong to companyID.
		Permissions(ctx context.Context, companyID uuid.UUID, roleIDs []uuid.UUID) ([]string, error)
		Update(ctx context.Context, scope model.Scope, role *model.Role) error
		Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error
	}

	InviteRepository interface {
		Create(ctx context.Context, invite *model.Invite) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Invite, error)
		GetPendingByKey(ctx context.Context, key string) (*model.Invite, error)
		FindPending(ctx context.Context, companyID uuid.UUID, email string) (*model.Invite, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Invite, error)
		MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
		// Consume attaches user to the invite, deactivates it and creates the membership in one
		// transaction. newUser is inserted first when non-nil.
		Consume(ctx context.Context, invite *model.Invite, newUser *model.User, colaborator *model.Colaborator) error
		Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error
	}

	EventRepository interface {
		Create(ctx context.Context, event *model.Event) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Event, error)
		GetPublicBySlug(ctx context.Context, slug string) (*model.Event, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Event, error)
		// ListReminderCandidates returns owned events starting within [from, to].
		ListReminderCandidates(ctx context.Context, from, to time.Time) ([]*model.Event, error)
		Update(ctx context.Context, scope model.Scope, event *model.Event) error
		UpdateNotified(ctx context.Context, id uuid.UUID, notified string) error
		Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error
	}

	MessageRepository interface {
		Create(ctx context.Context, message *model.Message) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Message, error)
		// GetByID bypasses tenant scoping; only for task handlers that already resolved the tenant.
		GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error)
		GetByToken(ctx context.Context, token string) (*model.Message, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Message, error)
		Update(ctx context.Context, scope model.Scope, message *model.Message) error
		// MarkSent stores the delivered content and send date unless already sent.
		MarkSent(ctx context.Context, id uuid.UUID, content string, at time.Time) (bool, error)
		// MarkRead sets date_read once; false means it was already set.
		MarkRead(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
		MarkFailed(ctx context.Context, id uuid.UUID, at time.Time) error
		Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error
	}

	LinkRepository interface {
		Create(ctx context.Context, link *model.Link) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Link, error)
		GetByID(ctx context.Context, id uuid.UUID) (*model.Link, error)
		// FindByDestination looks up (company, destination). Several rows may exist; the oldest wins.
		FindByDestination(ctx context.Context, companyID uuid.UUID, destination string) (*model.Link, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Link, error)
		Delete(ctx context.Context, scope model.Scope, id uuid.UUID) error
		// RecordVisit appends the visit and bumps the link's visit count.
		RecordVisit(ctx context.Context, visit *model.Visit) error
		ListVisits(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Visit, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Notification, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Notification, error)
		SetRead(ctx context.Context, id uuid.UUID, at *time.Time) error
		// MarkAllRead updates every unread notification of (company, user) and returns the count.
		MarkAllRead(ctx context.Context, companyID, userID uuid.UUID, at time.Time) (int64, error)
		CountUnread(ctx context.Context, companyID, userID uuid.UUID) (int64, error)
	}

	InvoiceRepository interface {
		Create(ctx context.Context, invoice *model.Invoice) error
		Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Invoice, error)
		List(ctx context.Context, scope model.Scope, q model.ListQuery) ([]*model.Invoice, error)
		ListByCompany(ctx context.Context, companyID uuid.UUID) ([]*model.Invoice, error)
		AddPayment(ctx context.Context, payment *model.Payment) error
	}
)
