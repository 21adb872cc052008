package repositories

import (
	"context"
	"errors"

	"github.com/upb/commerce-gateway/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager runs a unit of work atomically. Repositories called
// with the context handed to fn join the transaction; row locks they take
// are held until fn returns. fn's writes commit only when it returns nil.
type TransactionManager interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountRepository handles credential store operations.
// Implementations join the transaction carried by ctx, if any.
type AccountRepository interface {
	// Create inserts a new account. A taken username yields ErrDuplicate.
	Create(ctx context.Context, account *models.Account) error

	// GetByUsername retrieves an account, or ErrNotFound
	GetByUsername(ctx context.Context, username string) (*models.Account, error)

	// GetByUsernameForUpdate retrieves and row-locks an account inside a transaction
	GetByUsernameForUpdate(ctx context.Context, username string) (*models.Account, error)

	// List returns accounts ordered by username
	List(ctx context.Context, limit, offset int) ([]*models.Account, error)

	// UpdateRoles replaces the role set of an account
	UpdateRoles(ctx context.Context, account *models.Account) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	Accounts AccountRepository
}
