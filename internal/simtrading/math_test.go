package simtrading

import (
	"math"
	"testing"

	"altcoin-screener/internal/database"
)

func testAccount() *database.SimAccount {
	return &database.SimAccount{
		InitialBalance:   10000,
		CurrentBalance:   10000,
		TotalEquity:      10000,
		MaxPositions:     5,
		PositionPct:      10,
		StopLossPct:      5,
		TakeProfitLevels: []float64{5, 10, 15},
		CommissionRate:   0.001,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPlanOpen(t *testing.T) {
	plan, err := PlanOpen(testAccount(), 2.5)
	if err != nil {
		t.Fatalf("PlanOpen() error = %v", err)
	}

	if !almostEqual(plan.PositionValue, 1000) {
		t.Errorf("value = %v, want 1000", plan.PositionValue)
	}
	if !almostEqual(plan.Quantity, 400) {
		t.Errorf("quantity = %v, want 400", plan.Quantity)
	}
	if !almostEqual(plan.Commission, 1) {
		t.Errorf("commission = %v, want 1", plan.Commission)
	}
	if !almostEqual(plan.StopLossPrice, 2.375) {
		t.Errorf("stop loss = %v, want 2.375", plan.StopLossPrice)
	}

	wantTPs := []float64{2.625, 2.75, 2.875}
	if len(plan.TakeProfitPrices) != len(wantTPs) {
		t.Fatalf("take profits = %v, want %v", plan.TakeProfitPrices, wantTPs)
	}
	for i, want := range wantTPs {
		if !almostEqual(plan.TakeProfitPrices[i], want) {
			t.Errorf("take profit %d = %v, want %v", i, plan.TakeProfitPrices[i], want)
		}
	}
}

func TestPlanOpenSortsLadder(t *testing.T) {
	account := testAccount()
	account.TakeProfitLevels = []float64{15, 5, 10}

	plan, err := PlanOpen(account, 100)
	if err != nil {
		t.Fatalf("PlanOpen() error = %v", err)
	}
	for i := 1; i < len(plan.TakeProfitPrices); i++ {
		if plan.TakeProfitPrices[i] < plan.TakeProfitPrices[i-1] {
			t.Fatalf("ladder not ascending: %v", plan.TakeProfitPrices)
		}
	}
}

func TestPlanOpenInsufficientBalance(t *testing.T) {
	account := testAccount()
	account.CurrentBalance = 500 // equity still sizes the position at 1000

	if _, err := PlanOpen(account, 2.5); err != ErrInsufficientBalance {
		t.Errorf("PlanOpen() error = %v, want ErrInsufficientBalance", err)
	}
}

func TestPlanOpenInvalidPrice(t *testing.T) {
	if _, err := PlanOpen(testAccount(), 0); err == nil {
		t.Error("PlanOpen with zero price should fail")
	}
}

func testPosition() *database.SimPosition {
	return &database.SimPosition{
		Status:           database.PositionOpen,
		EntryPrice:       2.5,
		Quantity:         400,
		InitialQuantity:  400,
		StopLossPrice:    2.375,
		TakeProfitPrices: []float64{2.625, 2.75, 2.875},
		TakeProfitTotal:  3,
	}
}

func TestPlanCloseFull(t *testing.T) {
	fill := PlanClose(testPosition(), 2.75, 100, 0.001)

	if !fill.Full {
		t.Error("pct 100 should be a full close")
	}
	if fill.TradeType != database.TradeFullExit {
		t.Errorf("trade type = %q, want FULL_EXIT", fill.TradeType)
	}
	if !almostEqual(fill.Quantity, 400) {
		t.Errorf("quantity = %v, want 400", fill.Quantity)
	}
	if !almostEqual(fill.Value, 1100) {
		t.Errorf("value = %v, want 1100", fill.Value)
	}
	if !almostEqual(fill.Commission, 1.1) {
		t.Errorf("commission = %v, want 1.1", fill.Commission)
	}
	if !almostEqual(fill.PnL, 100) {
		t.Errorf("pnl = %v, want 100", fill.PnL)
	}
	if !almostEqual(fill.PnLPct, 10) {
		t.Errorf("pnl pct = %v, want 10", fill.PnLPct)
	}
}

func TestPlanClosePartialSlices(t *testing.T) {
	pos := testPosition()
	slice := 100.0 / 3

	// Three equal slices of the initial quantity close the position exactly.
	first := PlanClose(pos, 2.625, slice, 0.001)
	if first.Full {
		t.Error("first slice should be partial")
	}
	if first.TradeType != database.TradePartialExit {
		t.Errorf("trade type = %q, want PARTIAL_EXIT", first.TradeType)
	}
	if math.Abs(first.Quantity-400.0/3) > 1e-6 {
		t.Errorf("slice quantity = %v, want %v", first.Quantity, 400.0/3)
	}
	pos.Quantity -= first.Quantity

	second := PlanClose(pos, 2.75, slice, 0.001)
	if second.Full {
		t.Error("second slice should be partial")
	}
	pos.Quantity -= second.Quantity

	third := PlanClose(pos, 2.875, slice, 0.001)
	if !third.Full {
		t.Errorf("third slice should close the remainder, left %v", pos.Quantity-third.Quantity)
	}
}

func TestPlanCloseDustAbsorbed(t *testing.T) {
	pos := testPosition()
	pos.Quantity = 100.00001
	pos.InitialQuantity = 400

	// A 25% slice of initial (100) would strand dust; the fill takes it all.
	fill := PlanClose(pos, 2.6, 25, 0.001)
	if !fill.Full {
		t.Error("close leaving dust should become a full exit")
	}
	if !almostEqual(fill.Quantity, pos.Quantity) {
		t.Errorf("quantity = %v, want %v", fill.Quantity, pos.Quantity)
	}
}

func TestPlanCloseCappedAtRemaining(t *testing.T) {
	pos := testPosition()
	pos.Quantity = 50

	fill := PlanClose(pos, 2.6, 50, 0.001) // 50% of initial = 200 > remaining
	if !almostEqual(fill.Quantity, 50) {
		t.Errorf("quantity = %v, want 50 (capped)", fill.Quantity)
	}
	if !fill.Full {
		t.Error("capped close consuming the remainder should be full")
	}
}

func TestDecideExitStopLossPriority(t *testing.T) {
	pos := testPosition()

	decision := DecideExit(pos, 2.3)
	if decision == nil {
		t.Fatal("price through the stop should trigger an exit")
	}
	if decision.Reason != "STOP_LOSS" {
		t.Errorf("reason = %q, want STOP_LOSS", decision.Reason)
	}
	if decision.Pct != 100 {
		t.Errorf("pct = %v, want 100", decision.Pct)
	}
	if decision.TPIndex != -1 {
		t.Errorf("tp index = %d, want -1", decision.TPIndex)
	}
}

func TestDecideExitLadderNumbering(t *testing.T) {
	pos := testPosition()

	first := DecideExit(pos, 2.65)
	if first == nil || first.Reason != "TAKE_PROFIT_1" {
		t.Fatalf("decision = %+v, want TAKE_PROFIT_1", first)
	}
	if math.Abs(first.Pct-100.0/3) > 1e-9 {
		t.Errorf("pct = %v, want %v", first.Pct, 100.0/3)
	}

	// Consume the first level; the next fire keeps its original number.
	pos.TakeProfitPrices = pos.TakeProfitPrices[1:]
	second := DecideExit(pos, 2.76)
	if second == nil || second.Reason != "TAKE_PROFIT_2" {
		t.Fatalf("decision = %+v, want TAKE_PROFIT_2", second)
	}

	// Price between the stop and the next remaining level: no exit.
	if d := DecideExit(pos, 2.6); d != nil {
		t.Errorf("decision = %+v, want nil", d)
	}
}

func TestDecideExitSkipsToHighestReached(t *testing.T) {
	pos := testPosition()

	// A spike through several levels still fires only the first remaining
	// one; later levels fire on subsequent checks.
	decision := DecideExit(pos, 3.0)
	if decision == nil || decision.Reason != "TAKE_PROFIT_1" {
		t.Fatalf("decision = %+v, want TAKE_PROFIT_1", decision)
	}
}
