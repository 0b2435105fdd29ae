package ctr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serppulse/internal/ctr"
	"serppulse/internal/metrics"
)

func rowsAt(position float64, impressions int, ctrs ...float64) []metrics.DailyMetric {
	rows := make([]metrics.DailyMetric, len(ctrs))
	for i, c := range ctrs {
		rows[i] = metrics.DailyMetric{
			Position:    position,
			Impressions: impressions,
			CTR:         c,
		}
	}
	return rows
}

func TestAnalyzeEmptyWindowReturnsErrorStatus(t *testing.T) {
	detector := ctr.NewDetector(nil)

	report := detector.Analyze(nil)

	assert.Equal(t, ctr.StatusError, report.Status)
	assert.NotEmpty(t, report.Message)
	assert.Empty(t, report.Anomalies)
}

func TestAnalyzeFlagsOnlyGenuineUnderperformance(t *testing.T) {
	detector := ctr.NewDetector(nil)

	// Rank 1 at CTR 0.05 is far below the 0.25 baseline; rank 5 at 0.069
	// sits within 70% of its 0.07 baseline and must not be flagged.
	rows := append(
		rowsAt(1, 1000, 0.05, 0.05),
		rowsAt(5, 500, 0.069, 0.069)...,
	)

	report := detector.Analyze(rows)
	require.Equal(t, ctr.StatusOK, report.Status)
	require.Len(t, report.Anomalies, 1)

	a := report.Anomalies[0]
	assert.Equal(t, 1, a.Position)
	assert.Equal(t, ctr.AnomalyLowCTR, a.Type)
	assert.InDelta(t, 0.05, a.ActualCTR, 1e-9)
	assert.InDelta(t, 0.25, a.ExpectedCTR, 1e-9)
	assert.InDelta(t, (0.25-0.05)*1000, a.Impact, 1e-9)
}

func TestAnalyzeFlatLowCTRYieldsNoInstability(t *testing.T) {
	detector := ctr.NewDetector(nil)

	// Five identical observations at rank 2: underperforming, but with
	// zero variance there is nothing unstable about it.
	rows := rowsAt(2, 200, 0.05, 0.05, 0.05, 0.05, 0.05)

	report := detector.Analyze(rows)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, ctr.AnomalyLowCTR, report.Anomalies[0].Type)
	assert.InDelta(t, 0.05, report.Anomalies[0].ActualCTR, 1e-9)
	assert.InDelta(t, 0.15, report.Anomalies[0].ExpectedCTR, 1e-9)
}

func TestAnalyzeDetectsUnstableCTR(t *testing.T) {
	detector := ctr.NewDetector(nil)

	// Mean 0.12 clears the rank-4 baseline, but the swing between
	// observations is large.
	rows := rowsAt(4, 300, 0.20, 0.01, 0.15)

	report := detector.Analyze(rows)
	require.Len(t, report.Anomalies, 1)

	a := report.Anomalies[0]
	assert.Equal(t, ctr.AnomalyUnstableCTR, a.Type)
	assert.Equal(t, 4, a.Position)
	assert.InDelta(t, 300*0.1, a.Impact, 1e-9)
}

func TestAnalyzeInstabilityNeedsThreeObservations(t *testing.T) {
	detector := ctr.NewDetector(nil)

	// Two wildly different observations are not enough for the
	// instability check.
	rows := rowsAt(4, 300, 0.20, 0.01)

	report := detector.Analyze(rows)
	for _, a := range report.Anomalies {
		assert.NotEqual(t, ctr.AnomalyUnstableCTR, a.Type)
	}
}

func TestAnalyzeSortsAnomaliesByImpactDescending(t *testing.T) {
	detector := ctr.NewDetector(nil)

	// Rank 3 loses (0.10-0.01)*100 = 9 clicks; rank 1 loses
	// (0.25-0.05)*1000 = 200. Rank 1 must come first.
	rows := append(
		rowsAt(3, 100, 0.01, 0.01),
		rowsAt(1, 1000, 0.05, 0.05)...,
	)

	report := detector.Analyze(rows)
	require.Len(t, report.Anomalies, 2)
	assert.Equal(t, 1, report.Anomalies[0].Position)
	assert.Equal(t, 3, report.Anomalies[1].Position)
	assert.Greater(t, report.Anomalies[0].Impact, report.Anomalies[1].Impact)
}

func TestRecommendationPriorities(t *testing.T) {
	detector := ctr.NewDetector(nil)

	rows := append(
		rowsAt(2, 100, 0.01, 0.01),
		rowsAt(7, 100, 0.001, 0.001)...,
	)

	report := detector.Analyze(rows)
	require.Len(t, report.Recommendations, 2)

	priorities := map[int]string{}
	for _, rec := range report.Recommendations {
		priorities[rec.Position] = rec.Priority
	}
	assert.Equal(t, ctr.PriorityHigh, priorities[2])
	assert.Equal(t, ctr.PriorityMedium, priorities[7])
}

func TestCustomBaselineIsRespected(t *testing.T) {
	// A market where rank 1 only earns 5% CTR: 0.05 observed is fine.
	baseline := ctr.Baseline{1: 0.05}
	detector := ctr.NewDetector(baseline)

	report := detector.Analyze(rowsAt(1, 1000, 0.05, 0.05))
	assert.Empty(t, report.Anomalies)
}

func TestBaselineFallbackBeyondRankTen(t *testing.T) {
	baseline := ctr.DefaultBaseline()
	assert.InDelta(t, 0.25, baseline.Expected(1), 1e-9)
	assert.InDelta(t, 0.02, baseline.Expected(10), 1e-9)
	assert.InDelta(t, 0.01, baseline.Expected(15), 1e-9)
}

func TestAnalyzeStats(t *testing.T) {
	detector := ctr.NewDetector(nil)

	rows := append(
		rowsAt(1, 1000, 0.05, 0.05),
		rowsAt(5, 500, 0.07, 0.07)...,
	)

	report := detector.Analyze(rows)
	assert.Equal(t, 4, report.Stats.Observations)
	assert.Equal(t, 2, report.Stats.RanksAnalyzed)
	assert.InDelta(t, 0.06, report.Stats.AvgCTR, 1e-9)
	assert.InDelta(t, (0.25-0.05)*1000, report.Stats.TotalClicksLost, 1e-9)
}
