package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Entity describes how a tenant-owned table is guarded.
type Entity struct {
	Namespace string
	Name      string
	Table     string
	// CompanyField is the tenant foreign key column.
	CompanyField string
	// OwnerField restricts rows to the acting user unless they hold view_all; empty disables it.
	OwnerField string
}

// Perm formats the permission guarding action on the entity, e.g. "crm:change_event".
func (e Entity) Perm(action string) string {
	return fmt.Sprintf("%s:%s_%s", e.Namespace, action, e.Name)
}

// ViewAllPerm is the escalation that lifts the owner restriction.
func (e Entity) ViewAllPerm() string {
	return e.Perm("view_all")
}

// Standard actions.
const (
	ActionView   = "view"
	ActionAdd    = "add"
	ActionChange = "change"
	ActionDelete = "delete"
)

var (
	EventEntity        = Entity{Namespace: "crm", Name: "event", Table: "events", CompanyField: "company_id", OwnerField: "user_id"}
	MessageEntity      = Entity{Namespace: "crm", Name: "message", Table: "messages", CompanyField: "company_id", OwnerField: "user_id"}
	LinkEntity         = Entity{Namespace: "crm", Name: "link", Table: "links", CompanyField: "company_id"}
	VisitEntity        = Entity{Namespace: "crm", Name: "visit", Table: "visits", CompanyField: "company_id"}
	NotificationEntity = Entity{Namespace: "account", Name: "notification", Table: "notifications", CompanyField: "company_id", OwnerField: "user_id"}
	ColaboratorEntity  = Entity{Namespace: "account", Name: "colaborator", Table: "colaborators", CompanyField: "company_id"}
	RoleEntity         = Entity{Namespace: "account", Name: "role", Table: "roles", CompanyField: "company_id"}
	InviteEntity       = Entity{Namespace: "account", Name: "invite", Table: "invites", CompanyField: "company_id"}
	InvoiceEntity      = Entity{Namespace: "billing", Name: "invoice", Table: "invoices", CompanyField: "company_id"}
	PaymentEntity      = Entity{Namespace: "billing", Name: "payment", Table: "payments", CompanyField: "company_id"}
)

// Scope is the row filter every tenant query starts from.
type Scope struct {
	CompanyField string
	CompanyID    uuid.UUID
	OwnerField   string
	OwnerID      *uuid.UUID
}

// Valid reports whether the scope pins a tenant.
func (s Scope) Valid() bool {
	return s.CompanyField != "" && s.CompanyID != uuid.Nil
}

// Filters are user supplied equality filters; they can only narrow a Scope.
type Filters map[string]string

// ListQuery bundles the narrowing parts of a list request.
type ListQuery struct {
	Filters    Filters
	Pagination Pagination
}
