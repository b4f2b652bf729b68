package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"altcoin-screener/internal/database"
)

// Gate rate-limits outbound notifications: quiet hours, a daily cap and a
// minimum spacing between sends, all evaluated in the operator's timezone.
type Gate struct {
	loc *time.Location
}

func NewGate(timezone string) (*Gate, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("error loading timezone %q: %w", timezone, err)
	}
	return &Gate{loc: loc}, nil
}

// CanSend decides whether a notification may go out now. On rejection the
// reason names the first rule that blocked it.
func (g *Gate) CanSend(settings *database.NotificationSettings, now time.Time) (bool, string) {
	if !settings.Enabled {
		return false, "notifications disabled"
	}

	local := now.In(g.loc)
	quiet, err := inQuietHours(settings.QuietStart, settings.QuietEnd, local)
	if err != nil {
		return false, err.Error()
	}
	if quiet {
		return false, "quiet hours"
	}

	sentToday := settings.SentToday
	if !sameDate(settings.CounterDate, local) {
		// Date rolled over since the last send; the counter resets on
		// the next RecordSent.
		sentToday = 0
	}
	if sentToday >= settings.MaxPerDay {
		return false, "daily cap reached"
	}

	if settings.LastSentAt != nil {
		minInterval := time.Duration(settings.MinIntervalMinutes) * time.Minute
		if now.Sub(*settings.LastSentAt) < minInterval {
			return false, "minimum interval not elapsed"
		}
	}

	return true, ""
}

// inQuietHours checks whether the local time falls in [start, end), where a
// start after the end means the window wraps midnight.
func inQuietHours(start, end string, local time.Time) (bool, error) {
	startMin, err := parseHHMM(start)
	if err != nil {
		return false, fmt.Errorf("invalid quiet_start: %w", err)
	}
	endMin, err := parseHHMM(end)
	if err != nil {
		return false, fmt.Errorf("invalid quiet_end: %w", err)
	}
	if startMin == endMin {
		return false, nil
	}

	cur := local.Hour()*60 + local.Minute()
	if startMin < endMin {
		return cur >= startMin && cur < endMin, nil
	}
	return cur >= startMin || cur < endMin, nil
}

func parseHHMM(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}

// sameDate compares calendar dates as stored, without timezone conversion;
// counter_date is a plain DATE column.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
