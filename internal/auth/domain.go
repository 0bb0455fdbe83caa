package auth

import "github.com/facturia/facturia/internal/authz"

// Account is the credential view of a user.
type Account struct {
	ID           int64
	Username     string
	Role         authz.Role
	PasswordHash string
	IsActive     bool
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}
