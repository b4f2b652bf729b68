package notification

import (
	"testing"
	"time"

	"altcoin-screener/internal/database"
)

func testSettings() *database.NotificationSettings {
	return &database.NotificationSettings{
		Enabled:            true,
		QuietStart:         "23:00",
		QuietEnd:           "07:00",
		MaxPerDay:          20,
		MinIntervalMinutes: 30,
	}
}

func utcGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate("UTC")
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return g
}

func at(hour, minute int) time.Time {
	return time.Date(2025, 6, 15, hour, minute, 0, 0, time.UTC)
}

func TestCanSendDisabled(t *testing.T) {
	g := utcGate(t)
	settings := testSettings()
	settings.Enabled = false

	ok, reason := g.CanSend(settings, at(12, 0))
	if ok || reason != "notifications disabled" {
		t.Errorf("CanSend = (%v, %q), want disabled rejection", ok, reason)
	}
}

func TestCanSendQuietHoursWrap(t *testing.T) {
	g := utcGate(t)
	settings := testSettings()

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before quiet start", at(22, 59), true},
		{"at quiet start", at(23, 0), false},
		{"after midnight", at(2, 30), false},
		{"just before quiet end", at(6, 59), false},
		{"at quiet end", at(7, 0), true},
		{"midday", at(12, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings.CounterDate = tt.now
			ok, reason := g.CanSend(settings, tt.now)
			if ok != tt.want {
				t.Errorf("CanSend at %v = (%v, %q), want %v", tt.now, ok, reason, tt.want)
			}
			if !ok && reason != "quiet hours" {
				t.Errorf("reason = %q, want quiet hours", reason)
			}
		})
	}
}

func TestCanSendNoQuietWindow(t *testing.T) {
	g := utcGate(t)
	settings := testSettings()
	settings.QuietStart = "08:00"
	settings.QuietEnd = "08:00"
	settings.CounterDate = at(8, 0)

	// Equal start and end means quiet hours are off.
	if ok, reason := g.CanSend(settings, at(8, 0)); !ok {
		t.Errorf("CanSend = (false, %q), want allowed", reason)
	}
}

func TestCanSendDailyCap(t *testing.T) {
	g := utcGate(t)
	settings := testSettings()
	now := at(12, 0)
	settings.CounterDate = now
	settings.SentToday = settings.MaxPerDay

	ok, reason := g.CanSend(settings, now)
	if ok || reason != "daily cap reached" {
		t.Errorf("CanSend = (%v, %q), want daily cap rejection", ok, reason)
	}
}

func TestCanSendCapResetsOnRollover(t *testing.T) {
	g := utcGate(t)
	settings := testSettings()
	settings.CounterDate = at(12, 0).AddDate(0, 0, -1)
	settings.SentToday = settings.MaxPerDay

	// Yesterday's counter does not block today.
	if ok, reason := g.CanSend(settings, at(12, 0)); !ok {
		t.Errorf("CanSend = (false, %q), want allowed after rollover", reason)
	}
}

func TestCanSendMinInterval(t *testing.T) {
	g := utcGate(t)
	settings := testSettings()
	now := at(12, 0)
	settings.CounterDate = now

	last := now.Add(-10 * time.Minute)
	settings.LastSentAt = &last
	if ok, reason := g.CanSend(settings, now); ok || reason != "minimum interval not elapsed" {
		t.Errorf("CanSend = (%v, %q), want interval rejection", ok, reason)
	}

	older := now.Add(-31 * time.Minute)
	settings.LastSentAt = &older
	if ok, reason := g.CanSend(settings, now); !ok {
		t.Errorf("CanSend = (false, %q), want allowed after interval", reason)
	}
}

func TestCanSendInvalidQuietHours(t *testing.T) {
	g := utcGate(t)
	settings := testSettings()
	settings.QuietStart = "25:00"

	if ok, _ := g.CanSend(settings, at(12, 0)); ok {
		t.Error("invalid quiet_start should reject, not allow")
	}
}

func TestParseHHMM(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"07:30", 450, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHHMM(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHHMM(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseHHMM(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
