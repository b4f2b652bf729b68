package simtrading

import (
	"errors"
	"fmt"
	"sort"

	"altcoin-screener/internal/database"
)

// DustQuantity is the remaining size below which a position is closed out
// rather than left open.
const DustQuantity = 1e-4

// fullClosePct marks a close request as a full exit.
const fullClosePct = 99.9

// Open rejections.
var (
	ErrDuplicatePosition   = errors.New("account already holds an open position in this symbol")
	ErrMaxPositions        = errors.New("account is at its position limit")
	ErrInsufficientBalance = errors.New("position value exceeds available balance")
	ErrPositionClosed      = errors.New("position is already closed")
)

// OpenPlan is the computed entry for a position before persistence.
type OpenPlan struct {
	Quantity         float64
	PositionValue    float64
	Commission       float64
	StopLossPrice    float64
	TakeProfitPrices []float64
}

// PlanOpen sizes a new position: value is the account's per-position slice
// of total equity, quantity follows from price, the stop sits below entry by
// the account's stop percent and the ladder above it by each take-profit
// percent, ascending.
func PlanOpen(account *database.SimAccount, price float64) (*OpenPlan, error) {
	if price <= 0 {
		return nil, fmt.Errorf("invalid entry price %v", price)
	}

	value := account.TotalEquity * account.PositionPct / 100
	commission := value * account.CommissionRate
	if value+commission > account.CurrentBalance {
		return nil, ErrInsufficientBalance
	}

	tpPrices := make([]float64, 0, len(account.TakeProfitLevels))
	for _, pct := range account.TakeProfitLevels {
		tpPrices = append(tpPrices, price*(1+pct/100))
	}
	sort.Float64s(tpPrices)

	return &OpenPlan{
		Quantity:         value / price,
		PositionValue:    value,
		Commission:       commission,
		StopLossPrice:    price * (1 - account.StopLossPct/100),
		TakeProfitPrices: tpPrices,
	}, nil
}

// CloseFill is the computed result of closing part or all of a position.
type CloseFill struct {
	Quantity   float64
	Value      float64
	Commission float64
	PnL        float64
	PnLPct     float64
	Full       bool
	TradeType  string
}

// PlanClose computes a close fill. pct is the percentage of the INITIAL
// quantity to close, so a take-profit ladder with N levels peels off equal
// slices; pct at or above 99.9 closes whatever remains. The fill is capped
// at the remaining quantity, and a close that would leave dust takes the
// whole position.
func PlanClose(pos *database.SimPosition, price, pct, commissionRate float64) CloseFill {
	qty := pos.InitialQuantity * pct / 100
	if pct >= fullClosePct || qty > pos.Quantity {
		qty = pos.Quantity
	}
	if pos.Quantity-qty < DustQuantity {
		qty = pos.Quantity
	}

	value := qty * price
	fill := CloseFill{
		Quantity:   qty,
		Value:      value,
		Commission: value * commissionRate,
		PnL:        value - qty*pos.EntryPrice,
		Full:       qty >= pos.Quantity,
	}
	if pos.EntryPrice > 0 {
		fill.PnLPct = (price/pos.EntryPrice - 1) * 100
	}
	if fill.Full {
		fill.TradeType = database.TradeFullExit
	} else {
		fill.TradeType = database.TradePartialExit
	}
	return fill
}

// ExitDecision names the exit triggered for a position at a price.
type ExitDecision struct {
	Reason  string  // STOP_LOSS or TAKE_PROFIT_<k>
	Pct     float64 // percent of initial quantity to close
	TPIndex int     // index into the remaining ladder, -1 for stop-loss
}

// DecideExit checks a position against a price: the stop-loss closes the
// whole position and wins over any take-profit; otherwise the first
// remaining ladder level at or below the price fires, closing one equal
// slice of the original size. At most one exit fires per check.
func DecideExit(pos *database.SimPosition, price float64) *ExitDecision {
	if price <= pos.StopLossPrice {
		return &ExitDecision{Reason: "STOP_LOSS", Pct: 100, TPIndex: -1}
	}

	for i, level := range pos.TakeProfitPrices {
		if price >= level {
			k := pos.TakeProfitTotal - len(pos.TakeProfitPrices) + i + 1
			pct := 100.0
			if pos.TakeProfitTotal > 0 {
				pct = 100.0 / float64(pos.TakeProfitTotal)
			}
			return &ExitDecision{
				Reason:  fmt.Sprintf("TAKE_PROFIT_%d", k),
				Pct:     pct,
				TPIndex: i,
			}
		}
	}
	return nil
}
