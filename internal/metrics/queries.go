package metrics

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"serppulse/internal/timeframe"
)

// Filter narrows the entity universe for a fetch. A nil City means no city
// filter; an empty QueryType means all query types.
type Filter struct {
	City      *string
	QueryType string
}

// Validate rejects unknown filter values.
func (f Filter) Validate() error {
	switch f.QueryType {
	case "", QueryTypeCommercial, QueryTypeInformational, QueryTypeNavigational, QueryTypeBranded:
		return nil
	default:
		return fmt.Errorf("%w: query type %q", ErrUnknownFilter, f.QueryType)
	}
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.City != nil {
		q = q.Where("city = ?", *f.City)
	}
	if f.QueryType != "" {
		q = q.Where("query_type = ?", f.QueryType)
	}
	return q
}

// FetchDaily returns all daily rows matching the filter within the inclusive
// range, ordered by date ascending. The store fetch is the only network-bound
// segment, so it carries the caller's context.
func FetchDaily(ctx context.Context, db *gorm.DB, f Filter, r timeframe.Range) ([]DailyMetric, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var rows []DailyMetric
	q := f.apply(db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", r.From, r.To)).
		Order("date ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching daily metrics: %w", err)
	}
	return rows, nil
}

// FetchOnDates returns daily rows dated exactly one of the given snapshot
// days, ordered by date ascending.
func FetchOnDates(ctx context.Context, db *gorm.DB, f Filter, days ...time.Time) ([]DailyMetric, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	normalized := make([]time.Time, len(days))
	for i, d := range days {
		normalized[i] = timeframe.DayOf(d)
	}

	var rows []DailyMetric
	q := f.apply(db.WithContext(ctx).
		Where("date IN ?", normalized)).
		Order("date ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching snapshot metrics: %w", err)
	}
	return rows, nil
}

// FetchWeekly returns weekly rollup buckets matching the filter whose week
// start falls within the inclusive range, ordered by week ascending.
func FetchWeekly(ctx context.Context, db *gorm.DB, f Filter, r timeframe.Range) ([]WeeklyMetric, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var rows []WeeklyMetric
	q := f.apply(db.WithContext(ctx).
		Where("week_start BETWEEN ? AND ?", r.From, r.To)).
		Order("week_start ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching weekly metrics: %w", err)
	}
	return rows, nil
}

// FetchMonthly returns monthly rollup buckets matching the filter whose month
// start falls within the inclusive range, ordered by month ascending.
func FetchMonthly(ctx context.Context, db *gorm.DB, f Filter, r timeframe.Range) ([]MonthlyMetric, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	var rows []MonthlyMetric
	q := f.apply(db.WithContext(ctx).
		Where("month_start BETWEEN ? AND ?", r.From, r.To)).
		Order("month_start ASC")
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching monthly metrics: %w", err)
	}
	return rows, nil
}

// FetchDailyForEntity returns the entity's daily rows within the range,
// ordered by date ascending. City matching is null-safe.
func FetchDailyForEntity(ctx context.Context, db *gorm.DB, key EntityKey, r timeframe.Range) ([]DailyMetric, error) {
	q := db.WithContext(ctx).
		Where("query = ? AND url = ?", key.Query, key.URL).
		Where("date BETWEEN ? AND ?", r.From, r.To)
	if key.HasCity {
		q = q.Where("city = ?", key.City)
	} else {
		q = q.Where("city IS NULL")
	}

	var rows []DailyMetric
	if err := q.Order("date ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching daily metrics for entity: %w", err)
	}
	return rows, nil
}

// FetchWeeklyForEntity returns the entity's weekly buckets within the range,
// ordered by week ascending. City matching is null-safe.
func FetchWeeklyForEntity(ctx context.Context, db *gorm.DB, key EntityKey, r timeframe.Range) ([]WeeklyMetric, error) {
	q := db.WithContext(ctx).
		Where("query = ? AND url = ?", key.Query, key.URL).
		Where("week_start BETWEEN ? AND ?", r.From, r.To)
	if key.HasCity {
		q = q.Where("city = ?", key.City)
	} else {
		q = q.Where("city IS NULL")
	}

	var rows []WeeklyMetric
	if err := q.Order("week_start ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error fetching weekly metrics for entity: %w", err)
	}
	return rows, nil
}

// PutDaily validates and stores daily metric rows. The ingestion collaborator
// guarantees non-negative fields and position >= 1, but the engine still
// rejects malformed rows instead of letting them poison downstream math.
func PutDaily(db *gorm.DB, rows []DailyMetric) error {
	for i := range rows {
		m := &rows[i]
		if m.Clicks < 0 || m.Impressions < 0 {
			return fmt.Errorf("%w: negative clicks or impressions for %q", ErrInvalidRecord, m.Query)
		}
		if m.Position < 1 {
			return fmt.Errorf("%w: position %.2f below 1 for %q", ErrInvalidRecord, m.Position, m.Query)
		}
		m.Query = NormalizeQuery(m.Query)
		m.Date = timeframe.DayOf(m.Date)
		if m.CTR == 0 {
			m.CTR = DerivedCTR(m.Clicks, m.Impressions)
		}
	}

	if len(rows) == 0 {
		return nil
	}
	if err := db.Create(&rows).Error; err != nil {
		return fmt.Errorf("error storing daily metrics: %w", err)
	}
	return nil
}
