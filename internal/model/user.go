package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account holder. Superusers and staff bypass tenant membership.
type User struct {
	Base
	Email            string     `json:"email" db:"email"`
	Name             string     `json:"name" db:"name"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	IsSuperuser      bool       `json:"is_superuser" db:"is_superuser"`
	IsStaff          bool       `json:"is_staff" db:"is_staff"`
	Timezone         string     `json:"timezone" db:"timezone"`
	Language         string     `json:"language" db:"language"`
	Photo            string     `json:"photo,omitempty" db:"photo"`
	CurrentCompanyID *uuid.UUID `json:"current_company_id,omitempty" db:"current_company_id"`
	ActivationKey    *string    `json:"-" db:"activation_key"`
	KeyExpires       *time.Time `json:"-" db:"key_expires"`
	ResetKey         *string    `json:"-" db:"reset_key"`
	ResetExpires     *time.Time `json:"-" db:"reset_expires"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// BypassesTenancy reports users that are not bound to Colaborator membership.
func (u *User) BypassesTenancy() bool {
	return u.IsSuperuser || u.IsStaff
}

func (u *User) Ref() Ref {
	return RefTo(KindUser, u.ID)
}

type SignupRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Name            string `json:"name" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
	CompanyName     string `json:"company_name" binding:"required,max=120"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type PasswordResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type PasswordResetConfirm struct {
	Key             string `json:"key" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

type PasswordChangeRequest struct {
	OldPassword     string `json:"old_password" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Timezone *string `json:"timezone"`
	Language *string `json:"language" binding:"omitempty,bcp47_language_tag"`
	Photo    *string `json:"photo" binding:"omitempty,url"`
}
