package model

import (
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Role is a company scoped, named bundle of permissions.
type Role struct {
	Base
	CompanyID   uuid.UUID      `db:"company_id" json:"company_id"`
	Name        string         `db:"name" json:"name"`
	Permissions pq.StringArray `db:"permissions" json:"permissions"`
}

func (r *Role) Ref() Ref {
	return RefTo(KindRole, r.ID)
}

// Permission is a grantable "<namespace>:<action>" identifier.
type Permission struct {
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Colaborator joins a user to a company; at most one row per (user, company).
type Colaborator struct {
	Base
	UserID      uuid.UUID      `db:"user_id" json:"user_id"`
	CompanyID   uuid.UUID      `db:"company_id" json:"company_id"`
	IsActive    bool           `db:"is_active" json:"is_active"`
	RoleIDs     UUIDs          `db:"role_ids" json:"role_ids"`
	Permissions pq.StringArray `db:"permissions" json:"permissions"`
}

func (c *Colaborator) Ref() Ref {
	return RefTo(KindColaborator, c.ID)
}

type RoleRequest struct {
	Name        string   `json:"name" binding:"required,max=80"`
	Permissions []string `json:"permissions" binding:"dive,required"`
}

type ColaboratorRequest struct {
	IsActive    *bool       `json:"is_active"`
	RoleIDs     []uuid.UUID `json:"role_ids"`
	Permissions []string    `json:"permissions" binding:"omitempty,dive,required"`
}
