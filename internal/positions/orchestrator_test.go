package positions_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serppulse/internal/positions"
	"serppulse/internal/testsupport"
	"serppulse/internal/timeframe"
)

func TestAnalyzePositionsRejectsBadLookback(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	_, err := positions.AnalyzePositions(context.Background(), db, testsupport.GetLogger(),
		[]int{7, 0}, positions.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookback")
}

func TestAnalyzePositionsMultiPeriodReport(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	// Snapshots relative to the current day, since the orchestrator anchors
	// every window at now.
	today := timeframe.DayOf(time.Now().UTC())
	yesterday := today.AddDate(0, 0, -1)
	weekAgo := today.AddDate(0, 0, -7)

	// Climbing page: 10 -> 6 -> 4.
	testsupport.CreateDailyMetric(t, db, "query", "/up", nil, weekAgo, 10.0, 2, 100)
	testsupport.CreateDailyMetric(t, db, "query", "/up", nil, yesterday, 6.0, 6, 180)
	testsupport.CreateDailyMetric(t, db, "query", "/up", nil, today, 4.0, 10, 250)
	// Slipping page: 2 -> 3 -> 5.
	testsupport.CreateDailyMetric(t, db, "query", "/down", nil, weekAgo, 2.0, 30, 500)
	testsupport.CreateDailyMetric(t, db, "query", "/down", nil, yesterday, 3.0, 25, 450)
	testsupport.CreateDailyMetric(t, db, "query", "/down", nil, today, 5.0, 12, 300)

	report, err := positions.AnalyzePositions(context.Background(), db, testsupport.GetLogger(),
		[]int{1, 7}, positions.Options{MinChange: 1.5})
	require.NoError(t, err)
	require.Len(t, report.Periods, 2)
	assert.False(t, report.GeneratedAt.IsZero())

	dayPeriod, ok := report.Periods[1]
	require.True(t, ok)
	assert.Equal(t, 2, dayPeriod.Stats.TotalQueries)
	// 1-day deltas: +2.0 and -2.0, both past the 1.5 gate.
	assert.Equal(t, 2, dayPeriod.Stats.SignificantChanges)
	assert.Equal(t, 1, dayPeriod.Stats.ImprovedCount)
	assert.Equal(t, 1, dayPeriod.Stats.DeclinedCount)

	weekPeriod, ok := report.Periods[7]
	require.True(t, ok)
	assert.Equal(t, 2, weekPeriod.Stats.SignificantChanges)

	assert.Equal(t, 4, report.Summary.TotalSignificantChanges)
	assert.Equal(t, 2, report.Summary.TotalImproved)
	assert.Equal(t, 2, report.Summary.TotalDeclined)

	require.NotNil(t, report.Summary.BestImprovement)
	assert.Equal(t, "/up", report.Summary.BestImprovement.URL)
	assert.InDelta(t, 6.0, report.Summary.BestImprovement.Change, 1e-9)

	require.NotNil(t, report.Summary.WorstDecline)
	assert.Equal(t, "/down", report.Summary.WorstDecline.URL)
	assert.InDelta(t, -3.0, report.Summary.WorstDecline.Change, 1e-9)
}

func TestAnalyzePositionsNoLookbacks(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	report, err := positions.AnalyzePositions(context.Background(), db, testsupport.GetLogger(),
		nil, positions.Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Periods)
	assert.Zero(t, report.Summary.TotalSignificantChanges)
	assert.Nil(t, report.Summary.BestImprovement)
}

func TestAnalyzePositionsCancelledContext(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := positions.AnalyzePositions(ctx, db, testsupport.GetLogger(),
		[]int{7}, positions.Options{})
	assert.Error(t, err)
}
