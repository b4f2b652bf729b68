// Package simtrading is the paper-trading engine: accounts, position
// lifecycle with a take-profit ladder and stop-loss, equity marking and the
// auto-trade evaluator. All position mutations run in database transactions.
package simtrading

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/database"
	"altcoin-screener/internal/events"
	"altcoin-screener/internal/strategy"
)

// PriceSource supplies current prices; the exchange client satisfies it.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

type Engine struct {
	db        *database.DB
	repo      *database.Repository
	prices    PriceSource
	evaluator *strategy.Evaluator
	bus       *events.Bus
	cfg       config.SimTradingConfig
	log       zerolog.Logger
}

func NewEngine(db *database.DB, repo *database.Repository, prices PriceSource,
	evaluator *strategy.Evaluator, bus *events.Bus, cfg config.SimTradingConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		db:        db,
		repo:      repo,
		prices:    prices,
		evaluator: evaluator,
		bus:       bus,
		cfg:       cfg,
		log:       logger.With().Str("component", "simtrading").Logger(),
	}
}

// CreateAccount creates a paper account, filling unset parameters with
// engine defaults.
func (e *Engine) CreateAccount(ctx context.Context, account *database.SimAccount) error {
	if account.InitialBalance <= 0 {
		account.InitialBalance = 10000
	}
	if account.MaxPositions <= 0 {
		account.MaxPositions = 5
	}
	if account.PositionPct <= 0 {
		account.PositionPct = 10
	}
	if account.StopLossPct <= 0 {
		account.StopLossPct = 5
	}
	if len(account.TakeProfitLevels) == 0 {
		account.TakeProfitLevels = []float64{5, 10, 15}
	}
	if account.EntryScoreMin <= 0 {
		account.EntryScoreMin = 75
	}
	if account.EntryTechnicalMin <= 0 {
		account.EntryTechnicalMin = 60
	}
	if account.CommissionRate <= 0 {
		account.CommissionRate = e.cfg.CommissionRate
	}
	if account.Timeframe == "" {
		account.Timeframe = "5m"
	}
	return e.repo.CreateAccount(ctx, account)
}

// OpenPosition opens a position at price (fetched from the exchange when
// zero), records the entry trade and debits the account, atomically.
func (e *Engine) OpenPosition(ctx context.Context, accountID int64, symbol string,
	price, score float64, signals []string) (*database.SimPosition, error) {

	if price <= 0 {
		fetched, err := e.prices.GetCurrentPrice(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("error fetching entry price for %s: %w", symbol, err)
		}
		price = fetched
	}

	var pos *database.SimPosition
	err := e.db.WithTx(ctx, func(tx pgx.Tx) error {
		account, err := e.repo.GetAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		exists, err := e.repo.HasOpenPosition(ctx, tx, accountID, symbol)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicatePosition
		}

		open, err := e.repo.GetOpenPositions(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if len(open) >= account.MaxPositions {
			return ErrMaxPositions
		}

		plan, err := PlanOpen(account, price)
		if err != nil {
			return err
		}

		pos = &database.SimPosition{
			AccountID:        accountID,
			Symbol:           symbol,
			EntryPrice:       price,
			Quantity:         plan.Quantity,
			PositionValue:    plan.PositionValue,
			StopLossPrice:    plan.StopLossPrice,
			TakeProfitPrices: plan.TakeProfitPrices,
			TakeProfitTotal:  len(plan.TakeProfitPrices),
			EntryScore:       score,
			EntrySignals:     signals,
		}
		if err := e.repo.CreatePosition(ctx, tx, pos); err != nil {
			return err
		}

		trade := &database.SimTrade{
			AccountID:  accountID,
			PositionID: pos.ID,
			Symbol:     symbol,
			TradeType:  database.TradeEntry,
			Price:      price,
			Quantity:   plan.Quantity,
			Value:      plan.PositionValue,
			Commission: plan.Commission,
		}
		if err := e.repo.RecordTrade(ctx, tx, trade); err != nil {
			return err
		}

		account.CurrentBalance -= plan.PositionValue + plan.Commission
		return e.repo.UpdateAccountBalance(ctx, tx, account)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Int64("account", accountID).Str("symbol", symbol).
		Float64("price", price).Float64("quantity", pos.Quantity).
		Msg("position opened")
	e.bus.Publish(events.Event{
		Type: events.EventPositionOpened,
		Data: map[string]interface{}{
			"account_id": accountID,
			"symbol":     symbol,
			"price":      price,
			"quantity":   pos.Quantity,
		},
	})
	return pos, nil
}

// ClosePosition closes pct percent of a position's initial size (100 closes
// it fully) at price, fetching the price when zero.
func (e *Engine) ClosePosition(ctx context.Context, positionID int64, price, pct float64, reason string) (*database.SimTrade, error) {
	if pct <= 0 || pct > 100 {
		pct = 100
	}

	var trade *database.SimTrade
	err := e.db.WithTx(ctx, func(tx pgx.Tx) error {
		pos, err := e.repo.GetPosition(ctx, tx, positionID)
		if err != nil {
			return err
		}
		if pos.Status != database.PositionOpen {
			return ErrPositionClosed
		}

		p := price
		if p <= 0 {
			fetched, err := e.prices.GetCurrentPrice(ctx, pos.Symbol)
			if err != nil {
				return fmt.Errorf("error fetching close price for %s: %w", pos.Symbol, err)
			}
			p = fetched
		}

		account, err := e.repo.GetAccount(ctx, tx, pos.AccountID)
		if err != nil {
			return err
		}

		trade, err = e.executeClose(ctx, tx, account, pos, p, pct, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return trade, nil
}

// executeClose applies one close fill inside an open transaction: position
// state, trade record and account balance move together.
func (e *Engine) executeClose(ctx context.Context, tx pgx.Tx, account *database.SimAccount,
	pos *database.SimPosition, price, pct float64, reason string) (*database.SimTrade, error) {

	fill := PlanClose(pos, price, pct, account.CommissionRate)

	pos.Quantity -= fill.Quantity
	pos.RealizedPnL += fill.PnL
	pos.CurrentPrice = price
	pos.UnrealizedPnL = pos.Quantity * (price - pos.EntryPrice)

	if fill.Full || pos.Quantity < DustQuantity {
		now := time.Now().UTC()
		pos.Status = database.PositionClosed
		pos.Quantity = 0
		pos.UnrealizedPnL = 0
		pos.ClosedAt = &now
		pos.CloseReason = &reason
	}

	if err := e.repo.UpdatePositionExit(ctx, tx, pos); err != nil {
		return nil, err
	}

	pnl, pnlPct := fill.PnL, fill.PnLPct
	trade := &database.SimTrade{
		AccountID:  account.ID,
		PositionID: pos.ID,
		Symbol:     pos.Symbol,
		TradeType:  fill.TradeType,
		Price:      price,
		Quantity:   fill.Quantity,
		Value:      fill.Value,
		Commission: fill.Commission,
		PnL:        &pnl,
		PnLPct:     &pnlPct,
		Reason:     reason,
	}
	if err := e.repo.RecordTrade(ctx, tx, trade); err != nil {
		return nil, err
	}

	account.CurrentBalance += fill.Value - fill.Commission
	if pos.Status == database.PositionClosed {
		account.TotalTrades++
		if pos.RealizedPnL >= 0 {
			account.WinningTrades++
		} else {
			account.LosingTrades++
		}
	}
	if err := e.repo.UpdateAccountBalance(ctx, tx, account); err != nil {
		return nil, err
	}

	e.log.Info().Int64("account", account.ID).Str("symbol", pos.Symbol).
		Str("reason", reason).Float64("pnl", fill.PnL).
		Bool("full", pos.Status == database.PositionClosed).
		Msg("position exit")
	e.bus.Publish(events.Event{
		Type: events.EventPositionClosed,
		Data: map[string]interface{}{
			"account_id": account.ID,
			"symbol":     pos.Symbol,
			"reason":     reason,
			"pnl":        fill.PnL,
			"full":       pos.Status == database.PositionClosed,
		},
	})
	return trade, nil
}

// CheckExits walks an account's open positions and fires at most one exit
// per position: stop-loss first, otherwise the lowest crossed take-profit
// level.
func (e *Engine) CheckExits(ctx context.Context, accountID int64) ([]database.SimTrade, error) {
	positions, err := e.repo.GetOpenPositions(ctx, e.db.Pool, accountID)
	if err != nil {
		return nil, err
	}

	var trades []database.SimTrade
	for i := range positions {
		pos := positions[i]

		price, err := e.prices.GetCurrentPrice(ctx, pos.Symbol)
		if err != nil {
			e.log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("price fetch failed, skipping exit check")
			continue
		}

		decision := DecideExit(&pos, price)
		if decision == nil {
			continue
		}

		err = e.db.WithTx(ctx, func(tx pgx.Tx) error {
			// Reload inside the transaction; another pass may have
			// raced this position.
			fresh, err := e.repo.GetPosition(ctx, tx, pos.ID)
			if err != nil {
				return err
			}
			if fresh.Status != database.PositionOpen {
				return nil
			}

			d := DecideExit(fresh, price)
			if d == nil {
				return nil
			}
			if d.TPIndex >= 0 {
				fresh.TakeProfitPrices = append(
					fresh.TakeProfitPrices[:d.TPIndex],
					fresh.TakeProfitPrices[d.TPIndex+1:]...)
			}

			account, err := e.repo.GetAccount(ctx, tx, accountID)
			if err != nil {
				return err
			}

			trade, err := e.executeClose(ctx, tx, account, fresh, price, d.Pct, d.Reason)
			if err != nil {
				return err
			}
			trades = append(trades, *trade)
			return nil
		})
		if err != nil {
			e.log.Error().Err(err).Int64("position", pos.ID).Msg("exit execution failed")
		}
	}
	return trades, nil
}

// UpdateEquity marks every open position to market and writes equity =
// balance + open position value.
func (e *Engine) UpdateEquity(ctx context.Context, accountID int64) (float64, error) {
	var equity float64
	err := e.db.WithTx(ctx, func(tx pgx.Tx) error {
		account, err := e.repo.GetAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}

		positions, err := e.repo.GetOpenPositions(ctx, tx, accountID)
		if err != nil {
			return err
		}

		equity = account.CurrentBalance
		for i := range positions {
			pos := &positions[i]
			price, err := e.prices.GetCurrentPrice(ctx, pos.Symbol)
			if err != nil {
				// Mark at the last known price rather than failing
				// the whole account.
				price = pos.CurrentPrice
			}
			pos.CurrentPrice = price
			pos.UnrealizedPnL = pos.Quantity * (price - pos.EntryPrice)
			equity += pos.Quantity * price

			if err := e.repo.UpdatePositionMark(ctx, tx, pos); err != nil {
				return err
			}
		}

		account.TotalEquity = equity
		return e.repo.UpdateAccountBalance(ctx, tx, account)
	})
	if err != nil {
		return 0, err
	}
	return equity, nil
}

// GetAccountSummary aggregates performance for the API surface.
func (e *Engine) GetAccountSummary(ctx context.Context, accountID int64) (*database.AccountSummary, error) {
	account, err := e.repo.GetAccount(ctx, e.db.Pool, accountID)
	if err != nil {
		return nil, err
	}

	open, err := e.repo.GetOpenPositions(ctx, e.db.Pool, accountID)
	if err != nil {
		return nil, err
	}

	realized, err := e.repo.RealizedPnL(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var unrealized float64
	for _, pos := range open {
		unrealized += pos.UnrealizedPnL
	}

	summary := &database.AccountSummary{
		Account:       account,
		OpenPositions: len(open),
		RealizedPnL:   realized,
		UnrealizedPnL: unrealized,
	}
	if account.TotalTrades > 0 {
		summary.WinRate = float64(account.WinningTrades) / float64(account.TotalTrades) * 100
	}
	if account.InitialBalance > 0 {
		summary.ReturnPct = (account.TotalEquity/account.InitialBalance - 1) * 100
	}
	return summary, nil
}
