// Package database is the relational store: screening snapshots, sim
// accounts, positions, trades, auto-trade decision logs, alerts and
// notification settings.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

// Querier abstracts a pool or an open transaction so repository writes can
// participate in engine transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func NewDB(ctx context.Context, url string, maxConns int) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func (db *DB) Close() {
	db.Pool.Close()
}

// WithTx runs fn inside a transaction, rolling back on error.
func (db *DB) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// RunMigrations creates all tables and indexes. Statements are idempotent.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS screening_results (
			id BIGSERIAL PRIMARY KEY,
			pass_id UUID NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			price_change_5m DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_15m DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_1h DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_4h DOUBLE PRECISION NOT NULL DEFAULT 0,
			price_change_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
			quote_volume_24h DOUBLE PRECISION NOT NULL DEFAULT 0,
			beta_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			volume_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			technical_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			rsi DOUBLE PRECISION,
			volume_surge BOOLEAN NOT NULL DEFAULT FALSE,
			macd_golden_cross BOOLEAN NOT NULL DEFAULT FALSE,
			above_all_ema BOOLEAN NOT NULL DEFAULT FALSE,
			price_anomaly BOOLEAN NOT NULL DEFAULT FALSE,
			signals JSONB NOT NULL DEFAULT '[]',
			indicators JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_screening_tf_created
			ON screening_results (timeframe, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_screening_score
			ON screening_results (total_score DESC)`,

		`CREATE TABLE IF NOT EXISTS sim_accounts (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			initial_balance DOUBLE PRECISION NOT NULL,
			current_balance DOUBLE PRECISION NOT NULL,
			total_equity DOUBLE PRECISION NOT NULL,
			max_positions INTEGER NOT NULL DEFAULT 5,
			position_pct DOUBLE PRECISION NOT NULL DEFAULT 10,
			stop_loss_pct DOUBLE PRECISION NOT NULL DEFAULT 5,
			take_profit_levels JSONB NOT NULL DEFAULT '[5, 10, 15]',
			entry_score_min DOUBLE PRECISION NOT NULL DEFAULT 75,
			entry_technical_min DOUBLE PRECISION NOT NULL DEFAULT 60,
			commission_rate DOUBLE PRECISION NOT NULL DEFAULT 0.001,
			auto_trade BOOLEAN NOT NULL DEFAULT FALSE,
			timeframe TEXT NOT NULL DEFAULT '5m',
			total_trades INTEGER NOT NULL DEFAULT 0,
			winning_trades INTEGER NOT NULL DEFAULT 0,
			losing_trades INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sim_positions (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL REFERENCES sim_accounts(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			entry_price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			initial_quantity DOUBLE PRECISION NOT NULL,
			position_value DOUBLE PRECISION NOT NULL,
			stop_loss_price DOUBLE PRECISION NOT NULL,
			take_profit_prices JSONB NOT NULL DEFAULT '[]',
			take_profit_total INTEGER NOT NULL DEFAULT 0,
			current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			unrealized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			realized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
			entry_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			entry_signals JSONB NOT NULL DEFAULT '[]',
			close_reason TEXT,
			opened_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_unique
			ON sim_positions (account_id, symbol) WHERE status = 'OPEN'`,
		`CREATE INDEX IF NOT EXISTS idx_positions_account_status
			ON sim_positions (account_id, status)`,

		`CREATE TABLE IF NOT EXISTS sim_trades (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL REFERENCES sim_accounts(id) ON DELETE CASCADE,
			position_id BIGINT NOT NULL REFERENCES sim_positions(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			trade_type TEXT NOT NULL,
			price DOUBLE PRECISION NOT NULL,
			quantity DOUBLE PRECISION NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			commission DOUBLE PRECISION NOT NULL DEFAULT 0,
			pnl DOUBLE PRECISION,
			pnl_pct DOUBLE PRECISION,
			reason TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_account_created
			ON sim_trades (account_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS auto_trading_logs (
			id BIGSERIAL PRIMARY KEY,
			account_id BIGINT NOT NULL REFERENCES sim_accounts(id) ON DELETE CASCADE,
			symbol TEXT NOT NULL,
			action TEXT NOT NULL,
			reason TEXT,
			total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_auto_logs_account_created
			ON auto_trading_logs (account_id, created_at DESC)`,

		`CREATE TABLE IF NOT EXISTS notification_settings (
			id BIGSERIAL PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT TRUE,
			min_score DOUBLE PRECISION NOT NULL DEFAULT 70,
			quiet_start TEXT NOT NULL DEFAULT '23:00',
			quiet_end TEXT NOT NULL DEFAULT '07:00',
			max_per_day INTEGER NOT NULL DEFAULT 20,
			min_interval_minutes INTEGER NOT NULL DEFAULT 30,
			sent_today INTEGER NOT NULL DEFAULT 0,
			counter_date DATE NOT NULL DEFAULT CURRENT_DATE,
			last_sent_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			total_score DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL,
			channels JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created
			ON alerts (created_at DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("error running migration %d: %w", i+1, err)
		}
	}

	return nil
}
