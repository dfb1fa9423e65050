package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/simurgh/internal/pkg/errors"
)

// ErrForeignTx is returned when a store receives a Tx that was begun by a
// different backend.
var ErrForeignTx = errors.New("transaction belongs to another backend")

// Tx is one atomic unit of work. Every store call of one service operation
// receives the same Tx; it is never shared between operations.
type Tx interface {
	Commit() error
	Rollback() error
}

type TxManager interface {
	Begin(ctx context.Context) (Tx, error)
}

// RunInTx begins a transaction, runs fn and commits. Any error or panic from
// fn rolls the transaction back; the error from fn is returned unchanged.
func RunInTx(ctx context.Context, txm TxManager, fn func(tx Tx) error) (err error) {
	tx, err := txm.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logutil.GetLogger(ctx).Error("rollback failed", zap.Error(rbErr), zap.NamedError("cause", err))
		}
		return err
	}
	return tx.Commit()
}

const defaultTxTimeout = 5 * time.Second

// PostgresTxManager begins READ COMMITTED transactions on the shared pool.
// Writers on the same employee are serialized with row locks taken by the
// stores, so the default isolation level is enough.
type PostgresTxManager struct {
	db      *sql.DB
	timeout time.Duration
}

func NewPostgresTxManager(db *sql.DB, timeout time.Duration) *PostgresTxManager {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &PostgresTxManager{db: db, timeout: timeout}
}

func (m *PostgresTxManager) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("transaction aborted: %w", err)
	}
	txCtx, cancel := context.WithTimeout(ctx, m.timeout)
	tx, err := m.db.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		cancel()
		return nil, appErr.Storage("begin", err)
	}
	return &pgTx{tx: tx, ctx: txCtx, cancel: cancel}, nil
}

type pgTx struct {
	tx     *sql.Tx
	ctx    context.Context
	cancel context.CancelFunc
}

func (t *pgTx) Commit() error {
	defer t.cancel()
	if err := t.tx.Commit(); err != nil {
		return appErr.Storage("commit", err)
	}
	return nil
}

func (t *pgTx) Rollback() error {
	defer t.cancel()
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return appErr.Storage("rollback", err)
	}
	return nil
}

// sqlTx unwraps a postgres transaction. Statements run under the tx context
// so the per-transaction timeout also bounds each statement.
func sqlTx(ctx context.Context, tx Tx) (*sql.Tx, context.Context, error) {
	p, ok := tx.(*pgTx)
	if !ok || p == nil {
		return nil, ctx, ErrForeignTx
	}
	return p.tx, p.ctx, nil
}
