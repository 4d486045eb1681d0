package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type PostgresPool = *pgxpool.Pool

type DB struct {
	Pool PostgresPool
}

const (
	maxOpenDbConn = 10
	maxIdleDbTime = 5 * time.Minute
	maxDbLifetime = 30 * time.Minute
)

// ConnectSQL creates a pgx pool for dsn and verifies it with a ping.
func ConnectSQL(dsn string) (*DB, error) {

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	config.MaxConns = maxOpenDbConn
	config.MaxConnIdleTime = maxIdleDbTime
	config.MaxConnLifetime = maxDbLifetime

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Transactor runs fn inside a transaction, committing when fn returns nil.
type Transactor interface {
	ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type TransactionManager struct {
	conn   PostgresPool
	logger *zap.Logger
}

func NewTransactionManager(conn PostgresPool, logger *zap.Logger) *TransactionManager {
	return &TransactionManager{
		conn:   conn,
		logger: logger,
	}
}

func (tm *TransactionManager) ExecuteTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return tm.execute(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

func (tm *TransactionManager) execute(ctx context.Context, opts pgx.TxOptions, fn func(tx pgx.Tx) error) error {

	tx, err := tm.conn.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			tm.logger.Error("failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
