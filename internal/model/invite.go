package model

import (
	"time"

	"github.com/google/uuid"
)

// Invite is pending until a user is attached to it.
type Invite struct {
	Base
	CompanyID     uuid.UUID  `db:"company_id" json:"company_id"`
	Email         string     `db:"email" json:"email"`
	RoleIDs       UUIDs      `db:"role_ids" json:"role_ids"`
	ActivationKey string     `db:"activation_key" json:"-"`
	SentAt        *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	UserID        *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
}

// Pending reports an invite that has not been consumed.
func (i *Invite) Pending() bool {
	return i.IsActive && i.UserID == nil
}

func (i *Invite) Ref() Ref {
	return RefTo(KindInvite, i.ID)
}

type InviteRequest struct {
	Email   string      `json:"email" binding:"required,email"`
	RoleIDs []uuid.UUID `json:"role_ids"`
}

type AcceptInviteRequest struct {
	Key             string `json:"key" binding:"required"`
	Name            string `json:"name"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}
