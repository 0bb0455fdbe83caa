package users

import (
	"time"

	"github.com/facturia/facturia/internal/authz"
)

// User represents a user account for management.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Role         authz.Role `json:"role"`
	IsActive     bool       `json:"is_active"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Resource returns the user as an authorization target.
func (u User) Resource() *authz.Resource {
	return &authz.Resource{ID: u.ID, Role: u.Role}
}

// CreateInput is the payload for a new account.
type CreateInput struct {
	Username string `json:"username" validate:"required,min=3,max=50,alphanum"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
}

// UpdateInput carries the fields to change. Nil fields are left untouched.
type UpdateInput struct {
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Name     *string `json:"name" validate:"omitempty,min=1,max=100"`
	Password *string `json:"password" validate:"omitempty,min=8,max=72"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}
