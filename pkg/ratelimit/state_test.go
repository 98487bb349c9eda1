package ratelimit

import (
	"testing"
	"time"
)

func TestState_IsStale(t *testing.T) {
	now := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		state    State
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    State{ObservedAt: now},
			maxAge:   5 * time.Minute,
			expected: false,
		},
		{
			name:     "stale state",
			state:    State{ObservedAt: now.Add(-10 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: true,
		},
		{
			name:     "just under max age",
			state:    State{ObservedAt: now.Add(-4 * time.Minute)},
			maxAge:   5 * time.Minute,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(now, tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestState_Thresholds(t *testing.T) {
	tests := []struct {
		name         string
		remaining    int
		wantCritical bool
		wantLow      bool
	}{
		{name: "healthy", remaining: 100},
		{name: "at warning threshold", remaining: RemainingThresholdWarning},
		{name: "low", remaining: 15, wantLow: true},
		{name: "at critical threshold", remaining: RemainingThresholdCritical, wantLow: true},
		{name: "critical", remaining: 3, wantCritical: true},
		{name: "exhausted", remaining: 0, wantCritical: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{Remaining: tt.remaining}
			if got := s.IsCritical(); got != tt.wantCritical {
				t.Errorf("IsCritical() = %v, want %v (remaining=%d)", got, tt.wantCritical, tt.remaining)
			}
			if got := s.IsLow(); got != tt.wantLow {
				t.Errorf("IsLow() = %v, want %v (remaining=%d)", got, tt.wantLow, tt.remaining)
			}
		})
	}
}

func TestState_TimeUntilReset(t *testing.T) {
	now := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

	future := State{ResetAt: now.Add(30 * time.Second)}
	if got := future.TimeUntilReset(now); got != 30*time.Second {
		t.Errorf("TimeUntilReset() = %v, want 30s", got)
	}

	past := State{ResetAt: now.Add(-time.Minute)}
	if got := past.TimeUntilReset(now); got != 0 {
		t.Errorf("TimeUntilReset() = %v, want 0 for a past reset", got)
	}
}
