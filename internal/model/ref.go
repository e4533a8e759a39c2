package model

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind names the closed set of entities a related reference can point at.
type Kind string

const (
	KindCompany     Kind = "company"
	KindUser        Kind = "user"
	KindColaborator Kind = "colaborator"
	KindRole        Kind = "role"
	KindInvite      Kind = "invite"
	KindEvent       Kind = "event"
	KindMessage     Kind = "message"
	KindLink        Kind = "link"
	KindInvoice     Kind = "invoice"
)

var kindPaths = map[Kind]string{
	KindCompany:     "companies",
	KindUser:        "users",
	KindColaborator: "colaborators",
	KindRole:        "roles",
	KindInvite:      "invites",
	KindEvent:       "events",
	KindMessage:     "messages",
	KindLink:        "links",
	KindInvoice:     "invoices",
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := kindPaths[k]
	return ok
}

// ListURL is the API list endpoint for the kind.
func (k Kind) ListURL() string {
	if p, ok := kindPaths[k]; ok {
		return "/api/v1/" + p
	}
	return ""
}

// Ref is a tagged reference to another entity. A zero ID means "the kind as a whole".
type Ref struct {
	Kind Kind       `json:"kind"`
	ID   *uuid.UUID `json:"id,omitempty"`
}

// RefTo builds a reference to a concrete entity.
func RefTo(kind Kind, id uuid.UUID) Ref {
	return Ref{Kind: kind, ID: &id}
}

// IsZero reports an empty reference.
func (r Ref) IsZero() bool {
	return r.Kind == ""
}

// URL is the detail endpoint when the reference names an entity, else the list endpoint.
func (r Ref) URL() string {
	if r.ID == nil || *r.ID == uuid.Nil {
		return r.Kind.ListURL()
	}
	return fmt.Sprintf("%s/%s", r.Kind.ListURL(), r.ID)
}

// Referable is implemented by entities that can be the target of a Ref.
type Referable interface {
	Ref() Ref
}
