package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/commerce-gateway/repositories"
	"github.com/upb/commerce-gateway/tokens"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AccountAuthenticator checks login credentials against the account store.
// It implements tokens.CredentialStore.
type AccountAuthenticator struct {
	accounts  repositories.AccountRepository
	dummyHash []byte
	logger    *zap.Logger
}

// NewAccountAuthenticator creates an authenticator over accounts
func NewAccountAuthenticator(accounts repositories.AccountRepository, logger *zap.Logger) (*AccountAuthenticator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// compared against when the username is unknown so both failures cost the same
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &AccountAuthenticator{
		accounts:  accounts,
		dummyHash: dummy,
		logger:    logger,
	}, nil
}

// Authenticate returns the account roles when password matches
func (a *AccountAuthenticator) Authenticate(ctx context.Context, username, password string) ([]string, error) {
	if username == "" || password == "" {
		return nil, tokens.ErrInvalidCredentials
	}

	account, err := a.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
			return nil, tokens.ErrInvalidCredentials
		}
		a.logger.Error("account lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", tokens.ErrCredentialStoreUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, tokens.ErrInvalidCredentials
	}

	roles := make([]string, len(account.Roles))
	copy(roles, account.Roles)
	return roles, nil
}
