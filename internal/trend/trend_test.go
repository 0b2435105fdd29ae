package trend_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serppulse/internal/metrics"
	"serppulse/internal/trend"
)

func TestDetectImprovingPositionIsPositive(t *testing.T) {
	// Falling rank numbers mean the page is climbing.
	result := trend.Detect(trend.MetricPosition, []float64{10, 8, 6, 4, 2})

	assert.Equal(t, trend.DirectionPositive, result.Direction)
	assert.True(t, result.Significant)
	assert.Less(t, result.Slope, 0.0)
	assert.Less(t, result.PValue, trend.SignificanceLevel)
	assert.InDelta(t, 1.0, result.RSquared, 1e-9)
}

func TestDetectWorseningPositionIsNegative(t *testing.T) {
	result := trend.Detect(trend.MetricPosition, []float64{2, 4, 6, 8, 10})

	assert.Equal(t, trend.DirectionNegative, result.Direction)
	assert.Greater(t, result.Slope, 0.0)
}

func TestDetectDecliningClicksIsNegative(t *testing.T) {
	result := trend.Detect(trend.MetricClicks, []float64{50, 40, 30, 20, 10})

	assert.Equal(t, trend.DirectionNegative, result.Direction)
	assert.True(t, result.Significant)
	assert.Less(t, result.Slope, 0.0)
}

func TestDetectGrowingClicksIsPositive(t *testing.T) {
	result := trend.Detect(trend.MetricClicks, []float64{10, 20, 30, 40, 50})

	assert.Equal(t, trend.DirectionPositive, result.Direction)
	assert.InDelta(t, 10.0, result.Slope, 1e-9)
	assert.InDelta(t, 10.0, result.Intercept, 1e-9)
}

func TestDetectInsufficientDataIsNeutral(t *testing.T) {
	for _, series := range [][]float64{nil, {}, {5}} {
		result := trend.Detect(trend.MetricImpressions, series)
		assert.Equal(t, trend.DirectionNeutral, result.Direction)
		assert.Zero(t, result.Slope)
		assert.False(t, result.Significant)
	}
}

func TestDetectTwoPointsIsNeutral(t *testing.T) {
	// A two-point series always fits perfectly; there is no residual to
	// test against, so it cannot be significant.
	result := trend.Detect(trend.MetricCTR, []float64{0.1, 0.2})

	assert.Equal(t, trend.DirectionNeutral, result.Direction)
	assert.Equal(t, 1.0, result.PValue)
}

func TestDetectFlatSeriesIsNeutral(t *testing.T) {
	result := trend.Detect(trend.MetricClicks, []float64{7, 7, 7, 7, 7, 7})

	assert.Equal(t, trend.DirectionNeutral, result.Direction)
	assert.Zero(t, result.Slope)
	assert.InDelta(t, 7.0, result.Intercept, 1e-9)
}

func TestDetectZeroSlopeNoiseIsNeutral(t *testing.T) {
	// Symmetric oscillation: the fitted slope is exactly zero.
	result := trend.Detect(trend.MetricClicks, []float64{1, 2, 1, 2, 1})

	assert.Equal(t, trend.DirectionNeutral, result.Direction)
	assert.Zero(t, result.Slope)
}

func TestDetectNoisyImprovingSeriesStaysSignificant(t *testing.T) {
	series := []float64{10, 9.5, 8.2, 7.1, 6.3, 5.2, 4.1, 3.3, 2.2, 1.1}
	result := trend.Detect(trend.MetricPosition, series)

	assert.Equal(t, trend.DirectionPositive, result.Direction)
	assert.Less(t, result.PValue, trend.SignificanceLevel)
	assert.Greater(t, result.RSquared, 0.95)
}

func TestDetectAllCoversEveryMetric(t *testing.T) {
	rows := []metrics.DailyMetric{
		{Position: 10, Clicks: 10, Impressions: 100, CTR: 0.10},
		{Position: 8, Clicks: 20, Impressions: 200, CTR: 0.10},
		{Position: 6, Clicks: 30, Impressions: 300, CTR: 0.10},
		{Position: 4, Clicks: 40, Impressions: 400, CTR: 0.10},
		{Position: 2, Clicks: 50, Impressions: 500, CTR: 0.10},
	}

	results := trend.DetectAll(rows)
	require.Len(t, results, 4)

	// Every series improves except CTR, which is flat.
	assert.Equal(t, trend.DirectionPositive, results[trend.MetricPosition].Direction)
	assert.Equal(t, trend.DirectionPositive, results[trend.MetricClicks].Direction)
	assert.Equal(t, trend.DirectionPositive, results[trend.MetricImpressions].Direction)
	assert.Equal(t, trend.DirectionNeutral, results[trend.MetricCTR].Direction)
}

func TestSeriesExtraction(t *testing.T) {
	rows := []metrics.DailyMetric{
		{Position: 3.5, Clicks: 12, Impressions: 240, CTR: 0.05},
		{Position: 2.0, Clicks: 30, Impressions: 300, CTR: 0.10},
	}

	assert.Equal(t, []float64{3.5, 2.0}, trend.Series(rows, trend.MetricPosition))
	assert.Equal(t, []float64{12, 30}, trend.Series(rows, trend.MetricClicks))
	assert.Equal(t, []float64{240, 300}, trend.Series(rows, trend.MetricImpressions))
	assert.Equal(t, []float64{0.05, 0.10}, trend.Series(rows, trend.MetricCTR))
}
