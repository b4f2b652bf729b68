package strategy

import (
	"testing"
	"time"

	"altcoin-screener/internal/database"
)

func testCandidate() database.ScreeningResult {
	return database.ScreeningResult{
		Symbol:         "SOL/USDT",
		TotalScore:     80,
		TechnicalScore: 70,
		VolumeScore:    60,
		MACDGolden:     true,
		AboveAllEMA:    true,
	}
}

func testEntryAccount() *database.SimAccount {
	return &database.SimAccount{
		EntryScoreMin:     75,
		EntryTechnicalMin: 60,
	}
}

func strictEvaluator(t *testing.T, enableWindows bool) *Evaluator {
	t.Helper()
	e, err := NewEvaluator("strict", "UTC", enableWindows)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	return e
}

func noonUTC() time.Time {
	return time.Date(2025, 6, 15, 13, 0, 0, 0, time.UTC)
}

func TestNewEvaluatorRejectsUnknownPolicy(t *testing.T) {
	if _, err := NewEvaluator("yolo", "UTC", false); err == nil {
		t.Error("unknown policy should be rejected")
	}
}

func TestEvaluateStrictAccept(t *testing.T) {
	e := strictEvaluator(t, false)

	ok, reason := e.Evaluate(testCandidate(), testEntryAccount(), noonUTC())
	if !ok {
		t.Errorf("Evaluate = (false, %q), want accepted", reason)
	}
}

func TestEvaluateStrictRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*database.ScreeningResult)
		want   string
	}{
		{"low total", func(r *database.ScreeningResult) { r.TotalScore = 70 }, "Score too low"},
		{"low technical", func(r *database.ScreeningResult) { r.TechnicalScore = 40 }, "Technical score too low"},
		{"no golden cross", func(r *database.ScreeningResult) { r.MACDGolden = false }, "No MACD golden cross"},
		{"below EMAs", func(r *database.ScreeningResult) { r.AboveAllEMA = false }, "Price not above all EMAs"},
		{"thin volume", func(r *database.ScreeningResult) { r.VolumeScore = 20 }, "Volume too low"},
	}

	e := strictEvaluator(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := testCandidate()
			tt.mutate(&candidate)

			ok, reason := e.Evaluate(candidate, testEntryAccount(), noonUTC())
			if ok || reason != tt.want {
				t.Errorf("Evaluate = (%v, %q), want rejection %q", ok, reason, tt.want)
			}
		})
	}
}

func TestEvaluateStrictOutsideWindow(t *testing.T) {
	e := strictEvaluator(t, true)

	// 13:00 UTC is outside every preferred window.
	ok, reason := e.Evaluate(testCandidate(), testEntryAccount(), noonUTC())
	if ok || reason != "Outside trading window" {
		t.Errorf("Evaluate = (%v, %q), want window rejection", ok, reason)
	}

	// 07:45 falls in the morning window.
	inWindow := time.Date(2025, 6, 15, 7, 45, 0, 0, time.UTC)
	if ok, reason := e.Evaluate(testCandidate(), testEntryAccount(), inWindow); !ok {
		t.Errorf("Evaluate = (false, %q), want accepted inside window", reason)
	}
}

func TestInWindow(t *testing.T) {
	e := strictEvaluator(t, true)

	tests := []struct {
		hour, minute int
		want         bool
	}{
		{7, 29, false},
		{7, 30, true},
		{8, 30, true},
		{8, 31, false},
		{11, 45, true},
		{15, 45, true},
		{20, 0, false},
	}
	for _, tt := range tests {
		now := time.Date(2025, 6, 15, tt.hour, tt.minute, 0, 0, time.UTC)
		if got := e.InWindow(now); got != tt.want {
			t.Errorf("InWindow(%02d:%02d) = %v, want %v", tt.hour, tt.minute, got, tt.want)
		}
	}
}

func TestEvaluateBreakout(t *testing.T) {
	e, err := NewEvaluator("breakout", "UTC", false)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	account := testEntryAccount()

	// High composite accepts outright.
	high := testCandidate()
	if ok, reason := e.Evaluate(high, account, noonUTC()); !ok {
		t.Errorf("Evaluate = (false, %q), want accepted on score", reason)
	}

	// Below the threshold but surging with a decent composite.
	surge := testCandidate()
	surge.TotalScore = 65
	surge.VolumeSurge = true
	if ok, reason := e.Evaluate(surge, account, noonUTC()); !ok {
		t.Errorf("Evaluate = (false, %q), want accepted on surge", reason)
	}

	// Surging but the composite is too weak.
	weak := testCandidate()
	weak.TotalScore = 55
	weak.VolumeSurge = true
	if ok, reason := e.Evaluate(weak, account, noonUTC()); ok || reason != "Score below breakout threshold" {
		t.Errorf("Evaluate = (%v, %q), want breakout rejection", ok, reason)
	}
}

func TestEvaluateBreakoutWindowBonus(t *testing.T) {
	e, err := NewEvaluator("breakout", "UTC", true)
	if err != nil {
		t.Fatalf("NewEvaluator() error = %v", err)
	}
	account := testEntryAccount()

	candidate := testCandidate()
	candidate.TotalScore = 72 // 72+5 crosses the 75 floor inside a window

	inWindow := time.Date(2025, 6, 15, 7, 45, 0, 0, time.UTC)
	if ok, reason := e.Evaluate(candidate, account, inWindow); !ok {
		t.Errorf("Evaluate = (false, %q), want accepted with window bonus", reason)
	}
	if ok, _ := e.Evaluate(candidate, account, noonUTC()); ok {
		t.Error("72 without the bonus should be rejected")
	}
}
