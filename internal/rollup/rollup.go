// Package rollup folds daily search metrics into weekly and monthly buckets.
// Aggregation is idempotent: re-running over the same source interval
// overwrites every bucket deterministically instead of appending.
package rollup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/sqlite"
	"github.com/montanaflynn/stats"
	"gorm.io/gorm"

	"serppulse/internal/metrics"
	"serppulse/internal/timeframe"
)

// bucketKey identifies one rollup bucket: an entity in one period.
type bucketKey struct {
	Entity metrics.EntityKey
	Period time.Time
}

// bucket accumulates the aggregate columns for one key.
type bucket struct {
	TotalClicks      int
	AvgClicks        float64
	TotalImpressions int
	AvgImpressions   float64
	AvgPosition      float64
	AvgCTR           float64
}

// Aggregate rolls up metrics at the given granularity for every entity with
// at least one source record in the inclusive [start, end] range. Weekly
// buckets derive from daily rows; monthly buckets derive from weekly buckets,
// so a monthly run expects the weekly rollup for the range to exist. The
// whole run executes in a single write transaction: a failure leaves every
// bucket at its previous value.
func Aggregate(ctx context.Context, db *gorm.DB, logger *slog.Logger, g timeframe.Granularity, start, end time.Time) error {
	if !g.Valid() {
		return fmt.Errorf("%w: granularity %q", metrics.ErrUnknownFilter, g)
	}
	r, err := timeframe.NewRange(start, end)
	if err != nil {
		return err
	}

	var buckets map[bucketKey]bucket
	if g == timeframe.GranularityWeekly {
		rows, err := metrics.FetchDaily(ctx, db, metrics.Filter{}, r)
		if err != nil {
			return err
		}
		buckets = foldDaily(rows)
	} else {
		// Widen to the containing week start so a range beginning mid-week
		// still picks up that week's bucket.
		weekRange := timeframe.Range{From: timeframe.WeekStart(r.From), To: r.To}
		rows, err := metrics.FetchWeekly(ctx, db, metrics.Filter{}, weekRange)
		if err != nil {
			return err
		}
		buckets = foldWeekly(rows)

		// The widening can also pull in a week keyed to the month before the
		// range. Writing that bucket would overwrite a complete earlier month
		// with a single week of data, so drop anything before the range's
		// first month.
		minMonth := timeframe.MonthStart(r.From)
		for key := range buckets {
			if key.Period.Before(minMonth) {
				delete(buckets, key)
			}
		}
	}

	if len(buckets) == 0 {
		logger.Debug("No metrics to roll up",
			slog.String("granularity", string(g)),
			slog.Time("from", r.From),
			slog.Time("to", r.To))
		return nil
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		for key, b := range buckets {
			if err := upsertBucket(tx, g, key, b); err != nil {
				return fmt.Errorf("failed to upsert %s bucket: %w", g, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Rolled up metrics",
		slog.String("granularity", string(g)),
		slog.Int("buckets", len(buckets)))
	return nil
}

// foldDaily groups daily rows by (entity, ISO week start) and computes the
// aggregate columns per group.
func foldDaily(rows []metrics.DailyMetric) map[bucketKey]bucket {
	groups := make(map[bucketKey][]metrics.DailyMetric)
	for i := range rows {
		key := bucketKey{
			Entity: metrics.KeyFor(&rows[i]),
			Period: timeframe.WeekStart(rows[i].Date),
		}
		groups[key] = append(groups[key], rows[i])
	}

	buckets := make(map[bucketKey]bucket, len(groups))
	for key, group := range groups {
		var b bucket
		clicks := make([]float64, len(group))
		impressions := make([]float64, len(group))
		positions := make([]float64, len(group))
		ctrs := make([]float64, len(group))
		for i, row := range group {
			b.TotalClicks += row.Clicks
			b.TotalImpressions += row.Impressions
			clicks[i] = float64(row.Clicks)
			impressions[i] = float64(row.Impressions)
			positions[i] = row.Position
			ctrs[i] = row.CTR
		}
		b.AvgClicks = mean(clicks)
		b.AvgImpressions = mean(impressions)
		b.AvgPosition = mean(positions)
		b.AvgCTR = mean(ctrs)
		buckets[key] = b
	}
	return buckets
}

// foldWeekly groups weekly buckets by (entity, calendar month start). Totals
// sum the weekly totals; averages are means of the weekly averages, so
// monthly aggregates stay averages-of-averages rather than re-deriving from
// daily granularity.
func foldWeekly(rows []metrics.WeeklyMetric) map[bucketKey]bucket {
	groups := make(map[bucketKey][]metrics.WeeklyMetric)
	for i := range rows {
		key := bucketKey{
			Entity: metrics.WeeklyKeyFor(&rows[i]),
			Period: timeframe.MonthStart(rows[i].WeekStart),
		}
		groups[key] = append(groups[key], rows[i])
	}

	buckets := make(map[bucketKey]bucket, len(groups))
	for key, group := range groups {
		var b bucket
		avgClicks := make([]float64, len(group))
		avgImpressions := make([]float64, len(group))
		avgPositions := make([]float64, len(group))
		avgCTRs := make([]float64, len(group))
		for i, row := range group {
			b.TotalClicks += row.TotalClicks
			b.TotalImpressions += row.TotalImpressions
			avgClicks[i] = row.AvgClicks
			avgImpressions[i] = row.AvgImpressions
			avgPositions[i] = row.AvgPosition
			avgCTRs[i] = row.AvgCTR
		}
		b.AvgClicks = mean(avgClicks)
		b.AvgImpressions = mean(avgImpressions)
		b.AvgPosition = mean(avgPositions)
		b.AvgCTR = mean(avgCTRs)
		buckets[key] = b
	}
	return buckets
}

// upsertBucket overwrites all aggregate columns for the bucket, inserting the
// row if it does not exist yet. The match uses sqlite's null-safe IS operator
// so an absent city only matches an absent city; a plain unique-index
// ON CONFLICT would treat NULL cities as always-distinct and append forever.
func upsertBucket(tx *gorm.DB, g timeframe.Granularity, key bucketKey, b bucket) error {
	table, periodColumn := "weekly_metrics", "week_start"
	if g == timeframe.GranularityMonthly {
		table, periodColumn = "monthly_metrics", "month_start"
	}

	now := time.Now().UTC()
	city := key.Entity.CityPtr()

	update := fmt.Sprintf(`
		UPDATE %s SET
			total_clicks = ?,
			avg_clicks = ?,
			total_impressions = ?,
			avg_impressions = ?,
			avg_position = ?,
			avg_ctr = ?,
			updated_at = ?
		WHERE query = ? AND url = ? AND city IS ? AND %s = ?
	`, table, periodColumn)

	res := tx.Exec(update,
		b.TotalClicks, b.AvgClicks, b.TotalImpressions, b.AvgImpressions,
		b.AvgPosition, b.AvgCTR, now,
		key.Entity.Query, key.Entity.URL, city, key.Period)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (query, url, city, %s, total_clicks, avg_clicks,
			total_impressions, avg_impressions, avg_position, avg_ctr,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table, periodColumn)

	return tx.Exec(insert,
		key.Entity.Query, key.Entity.URL, city, key.Period,
		b.TotalClicks, b.AvgClicks, b.TotalImpressions, b.AvgImpressions,
		b.AvgPosition, b.AvgCTR, now, now).Error
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}
