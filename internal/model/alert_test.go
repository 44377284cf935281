package model

import (
	"testing"
	"time"
)

func TestSuppressAlert(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := time.Hour

	within := now.Add(-30 * time.Minute)
	atBoundary := now.Add(-time.Hour)
	outside := now.Add(-2 * time.Hour)

	tests := []struct {
		name        string
		lastTrigger *time.Time
		want        bool
	}{
		{"no_previous_alert", nil, false},
		{"within_window", &within, true},
		{"exactly_at_window", &atBoundary, false},
		{"outside_window", &outside, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SuppressAlert(tt.lastTrigger, now, window); got != tt.want {
				t.Errorf("SuppressAlert = %v, want %v", got, tt.want)
			}
		})
	}
}
