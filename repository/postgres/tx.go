package postgres

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// RunInTransaction runs fn in a single database transaction. Repository calls
// made with the context passed to fn use that transaction. A nested call joins
// the outer transaction instead of opening a new one.
func (r *PostgresRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
	return mapError(err)
}

// conn returns the transaction bound to ctx, or the pool.
func (r *PostgresRepository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}
