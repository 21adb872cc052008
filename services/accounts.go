package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/commerce-gateway/models"
	"github.com/upb/commerce-gateway/repositories"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Account listing bounds
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// KnownRoles are the roles that may be granted
var KnownRoles = map[string]bool{
	models.RoleAdmin: true,
	models.RoleUser:  true,
}

// RegisterInput is the account creation request
type RegisterInput struct {
	Username string   `json:"username" validate:"required,min=3,max=100"`
	Password string   `json:"password" validate:"required,min=8,max=72"`
	Roles    []string `json:"roles" validate:"omitempty,dive,required"`
}

// GrantRoleInput adds a role to an existing account
type GrantRoleInput struct {
	Username string `json:"username" validate:"required"`
	RoleName string `json:"roleName" validate:"required"`
}

// AccountService administers stored accounts
type AccountService struct {
	accounts repositories.AccountRepository
	txMgr    repositories.TransactionManager
	hashCost int
	logger   *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(accounts repositories.AccountRepository, txMgr repositories.TransactionManager, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		accounts: accounts,
		txMgr:    txMgr,
		hashCost: bcrypt.DefaultCost,
		logger:   logger,
	}
}

// ListAccounts returns a page of accounts ordered by username
func (s *AccountService) ListAccounts(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, WrapUnavailable("credential store unavailable", err)
	}
	return accounts, nil
}

// Register hashes the password and stores a new account.
// Accounts registered without roles get USER.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*models.Account, error) {
	roles := input.Roles
	if len(roles) == 0 {
		roles = []string{models.RoleUser}
	}
	for _, role := range roles {
		if !KnownRoles[role] {
			return nil, ErrInvalidRole.WithDetail("role", role)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return nil, WrapInternal("failed to hash password", err)
	}

	account := models.NewAccount(input.Username, string(hash), dedupe(roles))
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrDuplicateUsername.WithDetail("username", input.Username)
		}
		return nil, WrapUnavailable("credential store unavailable", err)
	}

	s.logger.Info("account registered",
		zap.String("username", account.Username),
		zap.Strings("roles", account.Roles))
	return account, nil
}

// GrantRole adds a role to an account. Granting a held role is a no-op.
func (s *AccountService) GrantRole(ctx context.Context, input GrantRoleInput) (*models.Account, error) {
	if !KnownRoles[input.RoleName] {
		return nil, ErrInvalidRole.WithDetail("role", input.RoleName)
	}

	account, err := WithTransactionResult(ctx, s.txMgr, func(ctx context.Context) (*models.Account, error) {
		account, err := s.accounts.GetByUsernameForUpdate(ctx, input.Username)
		if err != nil {
			return nil, err
		}
		if !account.GrantRole(input.RoleName) {
			return account, nil
		}
		if err := s.accounts.UpdateRoles(ctx, account); err != nil {
			return nil, err
		}
		return account, nil
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrAccountNotFound.WithDetail("username", input.Username)
		}
		return nil, WrapUnavailable("credential store unavailable", fmt.Errorf("grant role: %w", err))
	}

	s.logger.Info("role granted",
		zap.String("username", account.Username),
		zap.String("role", input.RoleName))
	return account, nil
}

// EnsureAdmin registers an ADMIN account unless the username already exists
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) error {
	_, err := s.Register(ctx, RegisterInput{
		Username: username,
		Password: password,
		Roles:    []string{models.RoleAdmin, models.RoleUser},
	})
	if err != nil && !IsConflictError(err) {
		return err
	}
	return nil
}

// Ready reports whether the account store is reachable
func (s *AccountService) Ready(ctx context.Context) error {
	return s.accounts.Ping(ctx)
}

func dedupe(roles []string) []string {
	seen := make(map[string]bool, len(roles))
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
