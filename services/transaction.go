package services

import (
	"context"

	"github.com/upb/commerce-gateway/repositories"
)

// WithTransactionResult runs fn inside a transaction carried by the context
// it receives and returns fn's value once the transaction commits.
// Repositories called with that context join the transaction. The zero value
// is returned when the transaction fails, including when fn succeeded but
// the commit did not.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(txCtx context.Context) (err error) {
		result, err = fn(txCtx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
