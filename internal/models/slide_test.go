package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoundStateRemaining(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state RoundState
		now   time.Time
		want  int
	}{
		{
			name:  "mid round",
			state: RoundState{Active: true, StartedAt: &start, Duration: 10},
			now:   start.Add(3 * time.Second),
			want:  7,
		},
		{
			name:  "just started",
			state: RoundState{Active: true, StartedAt: &start, Duration: 10},
			now:   start,
			want:  10,
		},
		{
			name:  "expired clamps to zero",
			state: RoundState{Active: true, StartedAt: &start, Duration: 10},
			now:   start.Add(30 * time.Second),
			want:  0,
		},
		{
			name:  "inactive",
			state: RoundState{Active: false, StartedAt: &start, Duration: 10},
			now:   start.Add(3 * time.Second),
			want:  0,
		},
		{
			name:  "no start time",
			state: RoundState{Active: true, Duration: 10},
			now:   start,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Remaining(tt.now))
		})
	}
}
