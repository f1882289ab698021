package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// DBTxKey is the context key holding an open transaction.
const DBTxKey contextKey = "db_tx"

// WithTx begins a transaction on the tenant-scoped connection and returns a
// derived context carrying it. Callers own Commit/Rollback on the returned tx.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, errors.New("no database connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// TxFromContext retrieves the open transaction from context, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
