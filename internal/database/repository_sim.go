package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const accountColumns = `id, name, initial_balance, current_balance, total_equity,
	max_positions, position_pct, stop_loss_pct, take_profit_levels,
	entry_score_min, entry_technical_min, commission_rate, auto_trade, timeframe,
	total_trades, winning_trades, losing_trades, created_at, updated_at`

const positionColumns = `id, account_id, symbol, status, entry_price, quantity,
	initial_quantity, position_value, stop_loss_price, take_profit_prices,
	take_profit_total, current_price, unrealized_pnl, realized_pnl,
	entry_score, entry_signals, close_reason, opened_at, closed_at`

// CreateAccount inserts a new sim account.
func (r *Repository) CreateAccount(ctx context.Context, account *SimAccount) error {
	levels, err := json.Marshal(account.TakeProfitLevels)
	if err != nil {
		return fmt.Errorf("error encoding take profit levels: %w", err)
	}

	err = r.db.Pool.QueryRow(ctx, `
		INSERT INTO sim_accounts (
			name, initial_balance, current_balance, total_equity,
			max_positions, position_pct, stop_loss_pct, take_profit_levels,
			entry_score_min, entry_technical_min, commission_rate, auto_trade, timeframe)
		VALUES ($1, $2, $2, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`,
		account.Name, account.InitialBalance,
		account.MaxPositions, account.PositionPct, account.StopLossPct, levels,
		account.EntryScoreMin, account.EntryTechnicalMin, account.CommissionRate,
		account.AutoTrade, account.Timeframe).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating account: %w", err)
	}

	account.CurrentBalance = account.InitialBalance
	account.TotalEquity = account.InitialBalance
	return nil
}

// GetAccount fetches one account by id.
func (r *Repository) GetAccount(ctx context.Context, q Querier, id int64) (*SimAccount, error) {
	row := q.QueryRow(ctx, `SELECT `+accountColumns+` FROM sim_accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// ListAccounts returns all sim accounts.
func (r *Repository) ListAccounts(ctx context.Context) ([]SimAccount, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+accountColumns+` FROM sim_accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []SimAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// ListAutoTradeAccounts returns accounts with auto-trading enabled.
func (r *Repository) ListAutoTradeAccounts(ctx context.Context) ([]SimAccount, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+accountColumns+` FROM sim_accounts WHERE auto_trade ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error querying auto-trade accounts: %w", err)
	}
	defer rows.Close()

	var accounts []SimAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// UpdateAccountSettings updates the tunable account parameters.
func (r *Repository) UpdateAccountSettings(ctx context.Context, account *SimAccount) error {
	levels, err := json.Marshal(account.TakeProfitLevels)
	if err != nil {
		return fmt.Errorf("error encoding take profit levels: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE sim_accounts SET
			max_positions = $2, position_pct = $3, stop_loss_pct = $4,
			take_profit_levels = $5, entry_score_min = $6, entry_technical_min = $7,
			auto_trade = $8, timeframe = $9, updated_at = NOW()
		WHERE id = $1`,
		account.ID, account.MaxPositions, account.PositionPct, account.StopLossPct,
		levels, account.EntryScoreMin, account.EntryTechnicalMin,
		account.AutoTrade, account.Timeframe)
	if err != nil {
		return fmt.Errorf("error updating account settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAccount removes an account; positions, trades and auto-trade logs go
// with it via the cascade constraints.
func (r *Repository) DeleteAccount(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sim_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateAccountBalance writes balance and equity, optionally bumping the
// trade counters on a full close.
func (r *Repository) UpdateAccountBalance(ctx context.Context, q Querier, account *SimAccount) error {
	_, err := q.Exec(ctx, `
		UPDATE sim_accounts SET
			current_balance = $2, total_equity = $3,
			total_trades = $4, winning_trades = $5, losing_trades = $6,
			updated_at = NOW()
		WHERE id = $1`,
		account.ID, account.CurrentBalance, account.TotalEquity,
		account.TotalTrades, account.WinningTrades, account.LosingTrades)
	if err != nil {
		return fmt.Errorf("error updating account balance: %w", err)
	}
	return nil
}

// CreatePosition inserts a new open position.
func (r *Repository) CreatePosition(ctx context.Context, q Querier, pos *SimPosition) error {
	tpPrices, err := json.Marshal(pos.TakeProfitPrices)
	if err != nil {
		return fmt.Errorf("error encoding take profit prices: %w", err)
	}
	signals, err := json.Marshal(pos.EntrySignals)
	if err != nil {
		return fmt.Errorf("error encoding entry signals: %w", err)
	}

	err = q.QueryRow(ctx, `
		INSERT INTO sim_positions (
			account_id, symbol, status, entry_price, quantity, initial_quantity,
			position_value, stop_loss_price, take_profit_prices, take_profit_total,
			current_price, entry_score, entry_signals)
		VALUES ($1, $2, $3, $4, $5, $5, $6, $7, $8, $9, $4, $10, $11)
		RETURNING id, opened_at`,
		pos.AccountID, pos.Symbol, PositionOpen, pos.EntryPrice, pos.Quantity,
		pos.PositionValue, pos.StopLossPrice, tpPrices, pos.TakeProfitTotal,
		pos.EntryScore, signals).
		Scan(&pos.ID, &pos.OpenedAt)
	if err != nil {
		return fmt.Errorf("error creating position: %w", err)
	}

	pos.Status = PositionOpen
	pos.InitialQuantity = pos.Quantity
	pos.CurrentPrice = pos.EntryPrice
	return nil
}

// GetPosition fetches one position by id.
func (r *Repository) GetPosition(ctx context.Context, q Querier, id int64) (*SimPosition, error) {
	row := q.QueryRow(ctx, `SELECT `+positionColumns+` FROM sim_positions WHERE id = $1`, id)
	return scanPosition(row)
}

// GetOpenPositions returns all open positions for an account.
func (r *Repository) GetOpenPositions(ctx context.Context, q Querier, accountID int64) ([]SimPosition, error) {
	rows, err := q.Query(ctx, `
		SELECT `+positionColumns+` FROM sim_positions
		WHERE account_id = $1 AND status = $2
		ORDER BY opened_at`,
		accountID, PositionOpen)
	if err != nil {
		return nil, fmt.Errorf("error querying open positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// ListPositions returns positions for an account, optionally filtered by
// status, newest first.
func (r *Repository) ListPositions(ctx context.Context, accountID int64, status string, limit int) ([]SimPosition, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + positionColumns + ` FROM sim_positions WHERE account_id = $1`
	args := []interface{}{accountID}
	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY opened_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying positions: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// HasOpenPosition reports whether the account already holds the symbol.
func (r *Repository) HasOpenPosition(ctx context.Context, q Querier, accountID int64, symbol string) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sim_positions
			WHERE account_id = $1 AND symbol = $2 AND status = $3)`,
		accountID, symbol, PositionOpen).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking open position: %w", err)
	}
	return exists, nil
}

// UpdatePositionMark writes the current price and unrealized pnl.
func (r *Repository) UpdatePositionMark(ctx context.Context, q Querier, pos *SimPosition) error {
	_, err := q.Exec(ctx, `
		UPDATE sim_positions SET current_price = $2, unrealized_pnl = $3
		WHERE id = $1`,
		pos.ID, pos.CurrentPrice, pos.UnrealizedPnL)
	if err != nil {
		return fmt.Errorf("error updating position mark: %w", err)
	}
	return nil
}

// UpdatePositionExit writes the post-exit state of a position: remaining
// quantity, consumed ladder, realized pnl, and closed fields when fully out.
func (r *Repository) UpdatePositionExit(ctx context.Context, q Querier, pos *SimPosition) error {
	tpPrices, err := json.Marshal(pos.TakeProfitPrices)
	if err != nil {
		return fmt.Errorf("error encoding take profit prices: %w", err)
	}

	_, err = q.Exec(ctx, `
		UPDATE sim_positions SET
			status = $2, quantity = $3, take_profit_prices = $4,
			current_price = $5, unrealized_pnl = $6, realized_pnl = $7,
			close_reason = $8, closed_at = $9
		WHERE id = $1`,
		pos.ID, pos.Status, pos.Quantity, tpPrices,
		pos.CurrentPrice, pos.UnrealizedPnL, pos.RealizedPnL,
		pos.CloseReason, pos.ClosedAt)
	if err != nil {
		return fmt.Errorf("error updating position exit: %w", err)
	}
	return nil
}

// RecordTrade inserts one executed fill.
func (r *Repository) RecordTrade(ctx context.Context, q Querier, trade *SimTrade) error {
	err := q.QueryRow(ctx, `
		INSERT INTO sim_trades (
			account_id, position_id, symbol, trade_type, price, quantity,
			value, commission, pnl, pnl_pct, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`,
		trade.AccountID, trade.PositionID, trade.Symbol, trade.TradeType,
		trade.Price, trade.Quantity, trade.Value, trade.Commission,
		trade.PnL, trade.PnLPct, trade.Reason).
		Scan(&trade.ID, &trade.CreatedAt)
	if err != nil {
		return fmt.Errorf("error recording trade: %w", err)
	}
	return nil
}

// ListTrades returns trades for an account, newest first.
func (r *Repository) ListTrades(ctx context.Context, accountID int64, limit int) ([]SimTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, account_id, position_id, symbol, trade_type, price, quantity,
			value, commission, pnl, pnl_pct, reason, created_at
		FROM sim_trades
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying trades: %w", err)
	}
	defer rows.Close()

	var trades []SimTrade
	for rows.Next() {
		var t SimTrade
		var reason *string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.PositionID, &t.Symbol, &t.TradeType,
			&t.Price, &t.Quantity, &t.Value, &t.Commission, &t.PnL, &t.PnLPct,
			&reason, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning trade: %w", err)
		}
		if reason != nil {
			t.Reason = *reason
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// LogAutoTrade records one auto-trade decision.
func (r *Repository) LogAutoTrade(ctx context.Context, q Querier, entry *AutoTradingLog) error {
	err := q.QueryRow(ctx, `
		INSERT INTO auto_trading_logs (account_id, symbol, action, reason, total_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		entry.AccountID, entry.Symbol, entry.Action, entry.Reason, entry.TotalScore).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("error logging auto-trade decision: %w", err)
	}
	return nil
}

// ListAutoTradeLogs returns decision logs for an account, newest first.
func (r *Repository) ListAutoTradeLogs(ctx context.Context, accountID int64, limit int) ([]AutoTradingLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, account_id, symbol, action, reason, total_score, created_at
		FROM auto_trading_logs
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying auto-trade logs: %w", err)
	}
	defer rows.Close()

	var logs []AutoTradingLog
	for rows.Next() {
		var l AutoTradingLog
		var reason *string
		if err := rows.Scan(&l.ID, &l.AccountID, &l.Symbol, &l.Action,
			&reason, &l.TotalScore, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning auto-trade log: %w", err)
		}
		if reason != nil {
			l.Reason = *reason
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// RealizedPnL sums realized pnl over an account's trades.
func (r *Repository) RealizedPnL(ctx context.Context, accountID int64) (float64, error) {
	var pnl float64
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COALESCE(sum(pnl), 0) FROM sim_trades WHERE account_id = $1`,
		accountID).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("error summing realized pnl: %w", err)
	}
	return pnl, nil
}

func scanAccount(row pgx.Row) (*SimAccount, error) {
	var a SimAccount
	var levels []byte
	err := row.Scan(&a.ID, &a.Name, &a.InitialBalance, &a.CurrentBalance, &a.TotalEquity,
		&a.MaxPositions, &a.PositionPct, &a.StopLossPct, &levels,
		&a.EntryScoreMin, &a.EntryTechnicalMin, &a.CommissionRate, &a.AutoTrade, &a.Timeframe,
		&a.TotalTrades, &a.WinningTrades, &a.LosingTrades, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning account: %w", err)
	}
	if err := json.Unmarshal(levels, &a.TakeProfitLevels); err != nil {
		return nil, fmt.Errorf("error decoding take profit levels: %w", err)
	}
	return &a, nil
}

func scanPosition(row pgx.Row) (*SimPosition, error) {
	var p SimPosition
	var tpPrices, signals []byte
	err := row.Scan(&p.ID, &p.AccountID, &p.Symbol, &p.Status, &p.EntryPrice, &p.Quantity,
		&p.InitialQuantity, &p.PositionValue, &p.StopLossPrice, &tpPrices,
		&p.TakeProfitTotal, &p.CurrentPrice, &p.UnrealizedPnL, &p.RealizedPnL,
		&p.EntryScore, &signals, &p.CloseReason, &p.OpenedAt, &p.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning position: %w", err)
	}
	if err := json.Unmarshal(tpPrices, &p.TakeProfitPrices); err != nil {
		return nil, fmt.Errorf("error decoding take profit prices: %w", err)
	}
	if err := json.Unmarshal(signals, &p.EntrySignals); err != nil {
		return nil, fmt.Errorf("error decoding entry signals: %w", err)
	}
	return &p, nil
}

func scanPositions(rows pgx.Rows) ([]SimPosition, error) {
	var positions []SimPosition
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, *pos)
	}
	return positions, rows.Err()
}
