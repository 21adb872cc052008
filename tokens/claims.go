package tokens

import (
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Well-known role names carried in the roles claim
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// Claims is the payload signed into every access token
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Credentials is a login request body
type Credentials struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=1024"`
}

// Principal is the identity reconstructed from a verified token.
// It only lives for the duration of one request.
type Principal struct {
	Subject string
	Roles   []string
}

// NewPrincipal builds a principal, dropping empty and duplicate roles
func NewPrincipal(subject string, roles []string) *Principal {
	set := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" || slices.Contains(set, role) {
			continue
		}
		set = append(set, role)
	}
	return &Principal{Subject: subject, Roles: set}
}

// HasRole reports whether the principal carries role
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.Roles, role)
}

// IsAdmin reports whether the principal carries the ADMIN role
func (p *Principal) IsAdmin() bool {
	return p.HasRole(RoleAdmin)
}

// RolesHeader returns the roles joined the way downstream services expect them
func (p *Principal) RolesHeader() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.Roles, ",")
}

// BearerToken extracts the token from an Authorization header value.
// The scheme is matched case-insensitively; ok is false for any other scheme.
func BearerToken(header string) (token string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
