// Package strategy decides whether a screening candidate qualifies for an
// auto-trade entry.
package strategy

import (
	"fmt"
	"time"

	"altcoin-screener/internal/database"
)

// Policy selects the entry gate.
type Policy string

const (
	// PolicyStrict requires every signal: composite score, technical
	// score, a recent MACD golden cross, price above all EMAs and a
	// healthy volume score.
	PolicyStrict Policy = "strict"
	// PolicyBreakout accepts a high adjusted score, or a volume surge
	// with a decent composite score.
	PolicyBreakout Policy = "breakout"
)

const (
	// WindowBonus is added to the adjusted score inside a preferred
	// trading window (breakout policy only).
	WindowBonus = 5.0
	// MinVolumeScore is the strict-policy volume floor.
	MinVolumeScore = 40.0
	// BreakoutTotalMin is the composite floor for surge-driven entries.
	BreakoutTotalMin = 60.0
)

// Window is a daily trading window in the operator's timezone.
type Window struct {
	StartHour, StartMinute int
	EndHour, EndMinute     int
}

// DefaultWindows are the preferred entry windows: around the Asian morning
// open, midday and the European overlap.
var DefaultWindows = []Window{
	{7, 30, 8, 30},
	{11, 30, 12, 30},
	{15, 30, 16, 30},
}

// Evaluator applies one entry policy with optional time windows.
type Evaluator struct {
	policy        Policy
	loc           *time.Location
	enableWindows bool
	windows       []Window
}

func NewEvaluator(policy, timezone string, enableWindows bool) (*Evaluator, error) {
	p := Policy(policy)
	if p != PolicyStrict && p != PolicyBreakout {
		return nil, fmt.Errorf("unknown entry policy %q", policy)
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone %q: %w", timezone, err)
	}

	return &Evaluator{
		policy:        p,
		loc:           loc,
		enableWindows: enableWindows,
		windows:       DefaultWindows,
	}, nil
}

// InWindow reports whether now falls inside any preferred trading window.
func (e *Evaluator) InWindow(now time.Time) bool {
	local := now.In(e.loc)
	minutes := local.Hour()*60 + local.Minute()
	for _, w := range e.windows {
		start := w.StartHour*60 + w.StartMinute
		end := w.EndHour*60 + w.EndMinute
		if minutes >= start && minutes <= end {
			return true
		}
	}
	return false
}

// Evaluate decides whether a candidate qualifies for entry under the
// account's thresholds. On rejection the reason is suitable for the
// auto-trade decision log.
func (e *Evaluator) Evaluate(res database.ScreeningResult, account *database.SimAccount, now time.Time) (bool, string) {
	switch e.policy {
	case PolicyBreakout:
		return e.evaluateBreakout(res, account, now)
	default:
		return e.evaluateStrict(res, account, now)
	}
}

func (e *Evaluator) evaluateStrict(res database.ScreeningResult, account *database.SimAccount, now time.Time) (bool, string) {
	if e.enableWindows && !e.InWindow(now) {
		return false, "Outside trading window"
	}
	if res.TotalScore < account.EntryScoreMin {
		return false, "Score too low"
	}
	if res.TechnicalScore < account.EntryTechnicalMin {
		return false, "Technical score too low"
	}
	if !res.MACDGolden {
		return false, "No MACD golden cross"
	}
	if !res.AboveAllEMA {
		return false, "Price not above all EMAs"
	}
	if res.VolumeScore < MinVolumeScore {
		return false, "Volume too low"
	}
	return true, ""
}

func (e *Evaluator) evaluateBreakout(res database.ScreeningResult, account *database.SimAccount, now time.Time) (bool, string) {
	adjusted := res.TotalScore
	if e.enableWindows && e.InWindow(now) {
		adjusted += WindowBonus
	}
	if adjusted >= account.EntryScoreMin {
		return true, ""
	}
	if res.VolumeSurge && res.TotalScore >= BreakoutTotalMin {
		return true, ""
	}
	return false, "Score below breakout threshold"
}
