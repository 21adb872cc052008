package chat

import (
	"github.com/upb/commerce-gateway/tokens"
	"go.uber.org/zap"
)

// TokenVerifier is the shared verification contract
type TokenVerifier interface {
	Verify(token string) (*tokens.Principal, error)
}

// Tier is the resolved privilege level of a chat caller.
// Principal is nil for anonymous callers.
type Tier struct {
	Principal *tokens.Principal
	Admin     bool
}

// Subject is the caller's token subject, empty when anonymous
func (t Tier) Subject() string {
	if t.Principal == nil {
		return ""
	}
	return t.Principal.Subject
}

// MemoryKey is the conversation key for this caller. Anonymous callers have
// no conversation: ok is false and nothing is recalled or stored for them.
func (t Tier) MemoryKey() (key string, ok bool) {
	if t.Subject() == "" {
		return "", false
	}
	return subjectKeyPrefix + t.Subject(), true
}

// Authorizer resolves caller tiers and gates intents
type Authorizer struct {
	verifier    TokenVerifier
	permissions *PermissionTable
	logger      *zap.Logger
}

// NewAuthorizer creates an authorizer. A nil table means DefaultPermissions.
func NewAuthorizer(verifier TokenVerifier, permissions *PermissionTable, logger *zap.Logger) *Authorizer {
	if permissions == nil {
		permissions = DefaultPermissions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authorizer{
		verifier:    verifier,
		permissions: permissions,
		logger:      logger,
	}
}

// Resolve derives the caller tier from an Authorization header value.
// Missing or invalid tokens resolve to the anonymous non-admin tier; they
// never raise the caller above it.
func (a *Authorizer) Resolve(authHeader string) Tier {
	token, ok := tokens.BearerToken(authHeader)
	if !ok {
		return Tier{}
	}
	principal, err := a.verifier.Verify(token)
	if err != nil {
		a.logger.Debug("chat token rejected, using anonymous tier", zap.Error(err))
		return Tier{}
	}
	return Tier{Principal: principal, Admin: principal.IsAdmin()}
}

// IsAllowed reports whether the tier may run intent
func (a *Authorizer) IsAllowed(admin bool, intent Intent) bool {
	if admin {
		return true
	}
	return a.permissions.Allows(intent)
}
