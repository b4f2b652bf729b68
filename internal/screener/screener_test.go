package screener

import (
	"context"
	"testing"
)

func TestPersistContextSurvivesPassCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	saveCtx, saveCancel := persistContext(parent)
	defer saveCancel()

	if err := saveCtx.Err(); err != nil {
		t.Fatalf("persist context inherited cancellation: %v", err)
	}
	if _, ok := saveCtx.Deadline(); !ok {
		t.Error("persist context should carry its own deadline")
	}
}
