package api

import (
	"testing"

	"github.com/rs/zerolog"

	"altcoin-screener/config"
	"altcoin-screener/internal/database"
	"altcoin-screener/internal/events"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(config.ServerConfig{AllowedOrigins: "*"},
		nil, nil, nil, nil, nil, nil, nil, nil, events.NewBus(), zerolog.Nop())
}

func TestRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := make(map[string]bool)
	for _, r := range s.router.Routes() {
		routes[r.Method+" "+r.Path] = true
	}

	want := []string{
		"GET /api/health",
		"GET /api/screening/results",
		"GET /api/screening/history",
		"GET /api/indicators/:symbol",
		"POST /api/screening/run",
		"DELETE /api/sim/accounts/:id",
		"POST /api/sim/accounts/:id/check-exits",
		"POST /api/sim/accounts/:id/auto-trade",
		"GET /ws",
	}
	for _, route := range want {
		if !routes[route] {
			t.Errorf("route %s not registered", route)
		}
	}
}

func TestFilterLeaderboard(t *testing.T) {
	cached := []database.ScreeningResult{
		{Symbol: "A/USDT", TotalScore: 90},
		{Symbol: "B/USDT", TotalScore: 70},
		{Symbol: "C/USDT", TotalScore: 50},
	}

	got := filterLeaderboard(cached, 60, 10)
	if len(got) != 2 || got[1].Symbol != "B/USDT" {
		t.Errorf("min-score filter = %+v, want A and B", got)
	}

	got = filterLeaderboard(cached, 0, 1)
	if len(got) != 1 || got[0].Symbol != "A/USDT" {
		t.Errorf("limit filter = %+v, want just A", got)
	}
}
