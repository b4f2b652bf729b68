package binance

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &APIError{StatusCode: 429}, true},
		{"ip banned", &APIError{StatusCode: 418}, true},
		{"server error", &APIError{StatusCode: 503}, true},
		{"bad symbol", &APIError{StatusCode: 400, Code: -1121}, false},
		{"not found", &APIError{StatusCode: 404}, false},
		{"wrapped api error", fmt.Errorf("fetching: %w", &APIError{StatusCode: 500}), true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAPIErrorMessage(t *testing.T) {
	withCode := &APIError{StatusCode: 400, Code: -1121, Message: "Invalid symbol."}
	if withCode.Error() != "binance API error 400 (code -1121): Invalid symbol." {
		t.Errorf("unexpected message %q", withCode.Error())
	}

	plain := &APIError{StatusCode: 502, Message: "bad gateway"}
	if plain.Error() != "binance API error 502: bad gateway" {
		t.Errorf("unexpected message %q", plain.Error())
	}
}
