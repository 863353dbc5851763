package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonthBounds(t *testing.T) {
	tests := []struct {
		name      string
		input     time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{
			name:      "mid month",
			input:     time.Date(2026, 3, 15, 12, 30, 0, 0, time.UTC),
			wantStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 3, 31, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:      "leap year February",
			input:     time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC),
			wantStart: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2024, 2, 29, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:      "non leap year February",
			input:     time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC),
			wantStart: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2023, 2, 28, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:      "December rolls into next year",
			input:     time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC),
			wantStart: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2026, 12, 31, 23, 59, 59, 999000000, time.UTC),
		},
		{
			name:      "non UTC input normalized",
			input:     time.Date(2026, 1, 1, 0, 30, 0, 0, time.FixedZone("UTC+2", 2*3600)),
			wantStart: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
			wantEnd:   time.Date(2025, 12, 31, 23, 59, 59, 999000000, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := MonthBounds(tt.input)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestUsageWindowResolve(t *testing.T) {
	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

	t.Run("zero window defaults to current month", func(t *testing.T) {
		w := UsageWindow{}.Resolve(now)
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), w.Start)
		assert.Equal(t, time.Date(2026, 8, 31, 23, 59, 59, 999000000, time.UTC), w.End)
	})

	t.Run("explicit window is normalized to UTC", func(t *testing.T) {
		zone := time.FixedZone("UTC-5", -5*3600)
		w := UsageWindow{
			Start: time.Date(2026, 7, 1, 0, 0, 0, 0, zone),
			End:   time.Date(2026, 7, 31, 0, 0, 0, 0, zone),
		}.Resolve(now)
		assert.Equal(t, time.UTC, w.Start.Location())
		assert.Equal(t, time.UTC, w.End.Location())
	})
}
