package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/upb/commerce-gateway/models"
	"github.com/upb/commerce-gateway/repositories"
	"go.uber.org/zap"
)

const accountColumns = `id, username, password_hash, roles, created_at, updated_at`

// AccountRepository implements repositories.AccountRepository
type AccountRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB, logger *zap.Logger) repositories.AccountRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	exec := executorFor(ctx, r.db)
	_, err := exec.ExecContext(ctx, query,
		account.ID,
		account.Username,
		account.PasswordHash,
		pq.Array(account.Roles),
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("account %q: %w", account.Username, repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	r.logger.Debug("account created", zap.String("id", account.ID.String()), zap.String("username", account.Username))
	return nil
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.getOne(ctx, query, username)
}

// GetByUsernameForUpdate retrieves an account and locks its row until the
// surrounding transaction ends
func (r *AccountRepository) GetByUsernameForUpdate(ctx context.Context, username string) (*models.Account, error) {
	if _, ok := txFromContext(ctx); !ok {
		return nil, errors.New("row lock requested outside a transaction")
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1 FOR UPDATE`
	return r.getOne(ctx, query, username)
}

func (r *AccountRepository) getOne(ctx context.Context, query, username string) (*models.Account, error) {
	exec := executorFor(ctx, r.db)
	account := &models.Account{}

	err := exec.QueryRowContext(ctx, query, username).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		pq.Array(&account.Roles),
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account %q: %w", username, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account.Roles == nil {
		account.Roles = []string{}
	}
	return account, nil
}

// List returns accounts ordered by username
func (r *AccountRepository) List(ctx context.Context, limit, offset int) ([]*models.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		ORDER BY username
		LIMIT $1 OFFSET $2
	`

	exec := executorFor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account := &models.Account{}
		if err := rows.Scan(
			&account.ID,
			&account.Username,
			&account.PasswordHash,
			pq.Array(&account.Roles),
			&account.CreatedAt,
			&account.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if account.Roles == nil {
			account.Roles = []string{}
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// UpdateRoles replaces the role set of an account
func (r *AccountRepository) UpdateRoles(ctx context.Context, account *models.Account) error {
	query := `
		UPDATE accounts
		SET roles = $2, updated_at = $3
		WHERE id = $1
	`

	account.UpdatedAt = time.Now().UTC()

	exec := executorFor(ctx, r.db)
	result, err := exec.ExecContext(ctx, query, account.ID, pq.Array(account.Roles), account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update account roles: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account %s: %w", account.ID, repositories.ErrNotFound)
	}

	r.logger.Debug("account roles updated",
		zap.String("username", account.Username),
		zap.Strings("roles", account.Roles))
	return nil
}

// Ping checks that the store is reachable
func (r *AccountRepository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
