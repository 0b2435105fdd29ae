package timeframe_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serppulse/internal/timeframe"
)

func TestNewRangeRejectsInvertedRange(t *testing.T) {
	_, err := timeframe.NewRange(
		time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, timeframe.ErrInvalidRange))
}

func TestNewRangeTruncatesToDay(t *testing.T) {
	r, err := timeframe.NewRange(
		time.Date(2024, 7, 1, 15, 30, 0, 0, time.UTC),
		time.Date(2024, 7, 3, 8, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), r.From)
	assert.Equal(t, time.Date(2024, 7, 3, 0, 0, 0, 0, time.UTC), r.To)
	assert.Equal(t, 3, r.Days())
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday maps to itself",
			in:   time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC), // Monday
			want: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday maps to preceding monday",
			in:   time.Date(2024, 7, 7, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "wednesday maps to monday",
			in:   time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeframe.WeekStart(tt.in))
		})
	}
}

func TestMonthStart(t *testing.T) {
	assert.Equal(t,
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		timeframe.MonthStart(time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)))
}

func TestPeriodStart(t *testing.T) {
	d := time.Date(2024, 7, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC),
		timeframe.PeriodStart(timeframe.GranularityWeekly, d))
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		timeframe.PeriodStart(timeframe.GranularityMonthly, d))
}

func TestTrailingWeeks(t *testing.T) {
	end := time.Date(2024, 7, 28, 0, 0, 0, 0, time.UTC)
	windows := timeframe.TrailingWeeks(end, 3)
	require.Len(t, windows, 3)

	// Most recent first, each window 7 days, no overlap.
	assert.Equal(t, time.Date(2024, 7, 22, 0, 0, 0, 0, time.UTC), windows[0].From)
	assert.Equal(t, end, windows[0].To)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), windows[1].From)
	assert.Equal(t, time.Date(2024, 7, 21, 0, 0, 0, 0, time.UTC), windows[1].To)
	assert.Equal(t, time.Date(2024, 7, 8, 0, 0, 0, 0, time.UTC), windows[2].From)
	for _, w := range windows {
		assert.Equal(t, 7, w.Days())
	}
}
