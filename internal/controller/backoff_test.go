package controller

import (
	"testing"
	"time"

	"github.com/danmuck/spacectl/internal/testutil/testlog"
)

func TestBackoffDelay(t *testing.T) {
	testlog.Start(t)

	b := Backoff{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 3, want: 4 * time.Second},
		{attempt: 4, want: 5 * time.Second},
		{attempt: 10, want: 5 * time.Second},
	}
	for _, tc := range tests {
		if got := b.Delay(tc.attempt); got != tc.want {
			t.Fatalf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}

	if got := (Backoff{}).Delay(3); got != 0 {
		t.Fatalf("zero backoff = %v, want 0", got)
	}
	if got := (Backoff{Initial: time.Second, Multiplier: 0.5}).Delay(3); got != time.Second {
		t.Fatalf("sub-1 multiplier = %v, want flat 1s", got)
	}
}
