package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/upb/commerce-gateway/tokens"
)

// Role names an account can hold; they travel unchanged into the roles claim
const (
	RoleAdmin = tokens.RoleAdmin
	RoleUser  = tokens.RoleUser
)

// Account is a stored credential with its granted roles
type Account struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Roles        []string  `json:"roles" db:"roles"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// NewAccount creates a new Account instance. A nil role list becomes empty.
func NewAccount(username, passwordHash string, roles []string) *Account {
	if roles == nil {
		roles = []string{}
	}
	now := time.Now().UTC()
	return &Account{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: passwordHash,
		Roles:        roles,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasRole reports whether the account holds role
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the account holds the ADMIN role
func (a *Account) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// GrantRole adds role if it is not already held and reports whether it changed
func (a *Account) GrantRole(role string) bool {
	if a.HasRole(role) {
		return false
	}
	a.Roles = append(a.Roles, role)
	a.UpdatedAt = time.Now().UTC()
	return true
}
