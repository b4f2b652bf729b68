package simtrading

import (
	"context"
	"errors"
	"time"

	"altcoin-screener/internal/database"
)

// AutoTradeAll runs one auto-trade pass for every enabled account.
func (e *Engine) AutoTradeAll(ctx context.Context) {
	accounts, err := e.repo.ListAutoTradeAccounts(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("listing auto-trade accounts failed")
		return
	}
	for i := range accounts {
		if err := e.AutoTrade(ctx, &accounts[i]); err != nil {
			e.log.Error().Err(err).Int64("account", accounts[i].ID).Msg("auto-trade pass failed")
		}
	}
}

// AutoTrade runs one pass for an account: exits first, then an equity mark,
// then entry evaluation over the freshest screening candidates for the
// account's timeframe. Every considered candidate leaves a decision log row.
func (e *Engine) AutoTrade(ctx context.Context, account *database.SimAccount) error {
	if _, err := e.CheckExits(ctx, account.ID); err != nil {
		return err
	}
	if _, err := e.UpdateEquity(ctx, account.ID); err != nil {
		return err
	}

	since := time.Now().Add(-time.Duration(e.cfg.CandidateWindow) * time.Minute)
	candidates, err := e.repo.GetEntryCandidates(ctx, account.Timeframe, since, e.cfg.CandidateLimit)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, candidate := range candidates {
		ok, reason := e.evaluator.Evaluate(candidate, account, now)
		if !ok {
			e.logDecision(ctx, account.ID, candidate.Symbol, database.AutoActionSkip, reason, candidate.TotalScore)
			continue
		}

		_, err := e.OpenPosition(ctx, account.ID, candidate.Symbol, 0, candidate.TotalScore, candidate.Signals)
		switch {
		case err == nil:
			e.logDecision(ctx, account.ID, candidate.Symbol, database.AutoActionOpen, "", candidate.TotalScore)
			// Re-read balances so subsequent sizing sees the debit.
			fresh, err := e.repo.GetAccount(ctx, e.db.Pool, account.ID)
			if err != nil {
				return err
			}
			*account = *fresh
		case errors.Is(err, ErrDuplicatePosition):
			e.logDecision(ctx, account.ID, candidate.Symbol, database.AutoActionSkip, "Position already open", candidate.TotalScore)
		case errors.Is(err, ErrMaxPositions):
			e.logDecision(ctx, account.ID, candidate.Symbol, database.AutoActionSkip, "Max positions reached", candidate.TotalScore)
			return nil
		case errors.Is(err, ErrInsufficientBalance):
			e.logDecision(ctx, account.ID, candidate.Symbol, database.AutoActionSkip, "Insufficient balance", candidate.TotalScore)
			return nil
		default:
			return err
		}
	}
	return nil
}

func (e *Engine) logDecision(ctx context.Context, accountID int64, symbol, action, reason string, score float64) {
	entry := &database.AutoTradingLog{
		AccountID:  accountID,
		Symbol:     symbol,
		Action:     action,
		Reason:     reason,
		TotalScore: score,
	}
	if err := e.repo.LogAutoTrade(ctx, e.db.Pool, entry); err != nil {
		e.log.Warn().Err(err).Str("symbol", symbol).Msg("decision log write failed")
	}
}
