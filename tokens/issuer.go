package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// CredentialStore checks a username/password pair and returns the granted roles.
// Implementations return ErrInvalidCredentials for any mismatch and
// ErrCredentialStoreUnavailable when the check could not be performed.
type CredentialStore interface {
	Authenticate(ctx context.Context, username, password string) ([]string, error)
}

// Issuer authenticates credentials and mints signed access tokens
type Issuer struct {
	cfg    Config
	secret []byte
	method jwt.SigningMethod
	store  CredentialStore
	logger *zap.Logger
}

// NewIssuer creates an issuer. It refuses secrets below the algorithm minimum.
func NewIssuer(cfg Config, store CredentialStore, logger *zap.Logger) (*Issuer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("credential store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Issuer{
		cfg:    cfg,
		secret: secret,
		method: cfg.signingMethod(),
		store:  store,
		logger: logger,
	}, nil
}

// Issue authenticates the credentials and returns a compact signed token.
// Every credential mismatch collapses to ErrInvalidCredentials.
func (i *Issuer) Issue(ctx context.Context, username, password string) (string, error) {
	roles, err := i.store.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, ErrCredentialStoreUnavailable) {
			i.logger.Error("credential store unavailable", zap.Error(err))
			return "", ErrCredentialStoreUnavailable
		}
		i.logger.Debug("credential check failed", zap.String("username", username))
		return "", ErrInvalidCredentials
	}

	return i.Sign(username, roles)
}

// Sign mints a token for an already authenticated subject
func (i *Issuer) Sign(subject string, roles []string) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if roles == nil {
		roles = []string{}
	}

	now := i.cfg.now()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.ttl())),
		},
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
