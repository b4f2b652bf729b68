package cache

import (
	"context"
	"testing"
)

func TestTopResultsKey(t *testing.T) {
	if got := TopResultsKey("5m"); got != "screening:top:5m" {
		t.Errorf("TopResultsKey(5m) = %q", got)
	}
}

func TestStoreTopResultsNilService(t *testing.T) {
	var s *Service
	// A disabled cache is a nil *Service; writes must be a no-op.
	s.StoreTopResults(context.Background(), "5m", []string{"ADA/USDT"})
}
