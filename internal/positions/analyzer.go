package positions

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gorm.io/gorm"

	"serppulse/internal/metrics"
	"serppulse/internal/seasonality"
	"serppulse/internal/timeframe"
)

// GetPositionChanges compares the two snapshot days in opts and returns the
// significant position moves plus summary statistics for the window. Only
// rows dated exactly on the start or end day participate; this is a
// two-point comparison, not a full-window regression. An empty universe
// yields an empty list and zero-valued stats, not an error.
func GetPositionChanges(ctx context.Context, db *gorm.DB, logger *slog.Logger, opts Options) ([]PositionChange, PeriodStats, error) {
	if opts.MinChange < 0 {
		return nil, PeriodStats{}, fmt.Errorf("%w: min change %.2f", metrics.ErrNegativeThreshold, opts.MinChange)
	}
	window, err := timeframe.NewRange(opts.StartDate, opts.EndDate)
	if err != nil {
		return nil, PeriodStats{}, err
	}
	minChange := opts.MinChange

	rows, err := metrics.FetchOnDates(ctx, db, opts.Filter, window.From, window.To)
	if err != nil {
		return nil, PeriodStats{}, err
	}

	stats := PeriodStats{PeriodDays: window.Days()}
	changes := []PositionChange{}

	oldRows, newRows := splitSnapshots(rows, window)
	if len(oldRows) == 0 || len(newRows) == 0 {
		return changes, stats, nil
	}

	// Explicit two-map join on the entity key. The key carries city
	// presence, so a record without a city never pairs with a record
	// naming one.
	var newPositionSum float64
	for key, newRow := range newRows {
		oldRow, ok := oldRows[key]
		if !ok {
			continue
		}

		stats.TotalQueries++
		newPositionSum += newRow.Position

		change := oldRow.Position - newRow.Position
		if math.Abs(change) < minChange {
			// Below the gate is discarded, not reported as stable;
			// stability classification belongs to the trend report.
			continue
		}

		pc := PositionChange{
			Query:             key.Query,
			URL:               key.URL,
			City:              key.CityPtr(),
			OldPosition:       oldRow.Position,
			NewPosition:       newRow.Position,
			Change:            change,
			ChangeAbs:         math.Abs(change),
			ImpressionsChange: newRow.Impressions - oldRow.Impressions,
			ClicksChange:      newRow.Clicks - oldRow.Clicks,
			QueryType:         newRow.QueryType,
			Competitors:       []string{},
		}

		if opts.IncludeSeasonality {
			isSeasonal, score, err := seasonality.Score(ctx, db, key, window.To)
			if err != nil {
				logger.Warn("Failed to score seasonality",
					slog.String("query", key.Query),
					slog.Any("error", err))
			} else {
				pc.IsSeasonal = isSeasonal
				pc.SeasonalityScore = score
				if isSeasonal {
					stats.SeasonalityAffected++
				}
			}
		}

		if opts.IncludeCompetitors {
			competitors, err := findCompetitors(ctx, db, key, window)
			if err != nil {
				logger.Warn("Failed to look up competitors",
					slog.String("query", key.Query),
					slog.Any("error", err))
			} else {
				pc.Competitors = competitors
				if len(competitors) > 0 {
					stats.CompetitorsAffected++
				}
			}
		}

		stats.SignificantChanges++
		if change > 0 {
			stats.ImprovedCount++
		} else {
			stats.DeclinedCount++
		}
		changes = append(changes, pc)
	}

	if stats.TotalQueries > 0 {
		stats.AvgPosition = newPositionSum / float64(stats.TotalQueries)
	}

	logger.Debug("Computed position changes",
		slog.Time("from", window.From),
		slog.Time("to", window.To),
		slog.Int("matched", stats.TotalQueries),
		slog.Int("significant", stats.SignificantChanges))

	return changes, stats, nil
}

// splitSnapshots indexes rows by entity key per snapshot day. When a key has
// several rows on the same day (should not happen for a clean store) the
// last one wins, matching fetch order.
func splitSnapshots(rows []metrics.DailyMetric, window timeframe.Range) (oldRows, newRows map[metrics.EntityKey]*metrics.DailyMetric) {
	oldRows = make(map[metrics.EntityKey]*metrics.DailyMetric)
	newRows = make(map[metrics.EntityKey]*metrics.DailyMetric)
	for i := range rows {
		key := metrics.KeyFor(&rows[i])
		switch {
		case rows[i].Date.Equal(window.From):
			oldRows[key] = &rows[i]
		case rows[i].Date.Equal(window.To):
			newRows[key] = &rows[i]
		}
	}
	return oldRows, newRows
}

// GetWeeklyChanges runs the snapshot comparison once per trailing 7-day
// window ending at endDate, most recent week first. Windows are independent;
// no state carries across weeks.
func GetWeeklyChanges(ctx context.Context, db *gorm.DB, logger *slog.Logger, endDate time.Time, weeksBack int, opts Options) ([]WeeklyChange, error) {
	if weeksBack < 1 {
		return []WeeklyChange{}, nil
	}

	weeks := []WeeklyChange{}
	for _, window := range timeframe.TrailingWeeks(endDate, weeksBack) {
		weekOpts := opts
		weekOpts.StartDate = window.From
		weekOpts.EndDate = window.To

		changes, stats, err := GetPositionChanges(ctx, db, logger, weekOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to analyze week starting %s: %w",
				window.From.Format("2006-01-02"), err)
		}
		weeks = append(weeks, WeeklyChange{
			WeekStart: window.From,
			Changes:   changes,
			Stats:     stats,
		})
	}
	return weeks, nil
}
