// Package seasonality flags entities whose demand swings over the year.
//
// The score is the coefficient of variation of weekly mean impressions over a
// trailing-year window. This is a cheap proxy, not a seasonal decomposition:
// it cannot tell a yearly cycle from one-off spikes, so treat a positive flag
// as a hint, not a hard gate.
package seasonality

import (
	"context"
	"time"

	"github.com/montanaflynn/stats"
	"gorm.io/gorm"

	"serppulse/internal/metrics"
	"serppulse/internal/timeframe"
)

const (
	// trailingDays is the lookback window for the weekly impression series.
	trailingDays = 365

	// cvThreshold is the coefficient-of-variation cutoff above which an
	// entity counts as seasonal.
	cvThreshold = 0.3
)

// Score computes the entity's seasonality over the trailing year ending at
// referenceDate. With no weekly data the entity is simply not seasonal.
// The returned score is the coefficient of variation capped at 1.
func Score(ctx context.Context, db *gorm.DB, key metrics.EntityKey, referenceDate time.Time) (bool, float64, error) {
	to := timeframe.DayOf(referenceDate)
	window := timeframe.Range{From: to.AddDate(0, 0, -trailingDays), To: to}

	weeks, err := metrics.FetchWeeklyForEntity(ctx, db, key, window)
	if err != nil {
		return false, 0, err
	}
	if len(weeks) == 0 {
		return false, 0, nil
	}

	weeklyMeans := make([]float64, len(weeks))
	for i, w := range weeks {
		weeklyMeans[i] = w.AvgImpressions
	}

	cv := coefficientOfVariation(weeklyMeans)
	score := cv
	if score > 1 {
		score = 1
	}
	return cv > cvThreshold, score, nil
}

// coefficientOfVariation returns stddev/mean, or 0 when the mean is 0 so a
// dead series never divides by zero.
func coefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, err := stats.Mean(values)
	if err != nil || mean == 0 {
		return 0
	}
	stddev, err := stats.StandardDeviation(values)
	if err != nil {
		return 0
	}
	return stddev / mean
}
