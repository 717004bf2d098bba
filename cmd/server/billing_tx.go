package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "healthfinance/pkg/domain-errors"
	"healthfinance/pkg/platform/tx"
)

const defaultLedgerTxTimeout = 5 * time.Second

// ledgerPostgresTx runs the billing ledger transaction: the payment insert
// and the invoice update see the same *sql.Tx through the context.
type ledgerPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newLedgerPostgresTx(db *sql.DB) *ledgerPostgresTx {
	return &ledgerPostgresTx{db: db}
}

func (t *ledgerPostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultLedgerTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return err
	}
	return nil
}
