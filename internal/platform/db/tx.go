package db

import (
	"context"

	"gorm.io/gorm"
)

type txContextKey struct{}

// WithTx returns a context carrying an open transaction handle.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// FromContext returns the transaction carried by ctx, or fallback when the
// caller runs outside a unit of work.
func FromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return fallback
}

// Atomically runs fn inside one transaction and threads it through the
// context, so every repository built on this handle joins the same unit of
// work. Commands that fan out across modules commit or roll back as a whole.
func (p *Postgres) Atomically(ctx context.Context, fn func(context.Context) error) error {
	return p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}
