package retry

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		base    time.Duration
		want    time.Duration
	}{
		{0, time.Second, time.Second},
		{1, time.Second, 2 * time.Second},
		{3, time.Second, 8 * time.Second},
		{2, 100 * time.Millisecond, 400 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := ExponentialBackoff(tt.attempt, tt.base); got != tt.want {
			t.Errorf("ExponentialBackoff(%d, %v) = %v, want %v", tt.attempt, tt.base, got, tt.want)
		}
	}
}
