package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the
// transaction handle to fn as tx.
//
// Repositories receive the same tx and bind their statements to it; when tx
// is a live transaction, lookups used for read-modify-write (session end,
// rating, counselor claim) take row locks with SELECT ... FOR UPDATE.
// Repositories MUST accept NoTX (nil) and fall back to the pool.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		s, err := sessions.FindByID(ctx, tx, id)
//		...
//		return sessions.Update(ctx, tx, s)
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
