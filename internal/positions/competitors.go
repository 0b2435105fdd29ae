package positions

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"serppulse/internal/metrics"
	"serppulse/internal/timeframe"
)

// maxCompetitors caps the displacement list per change.
const maxCompetitors = 5

// findCompetitors returns URLs ranking for the same query (same city,
// different URL) whose best position in the window beats the tracked
// entity's average position there, ordered by the competitor's average
// position ascending.
//
// Best-vs-average is deliberately asymmetric: it surfaces pages that have at
// least once beaten the tracked page's typical standing, a more sensitive
// signal than comparing like-for-like statistics.
func findCompetitors(ctx context.Context, db *gorm.DB, key metrics.EntityKey, window timeframe.Range) ([]string, error) {
	city := key.CityPtr()

	var entityAvg struct {
		AvgPosition float64
		Samples     int64
	}
	avgQuery := `
    SELECT
        AVG(position) as avg_position,
        COUNT(*) as samples
    FROM daily_metrics
    WHERE query = ?
    AND url = ?
    AND city IS ?
    AND date BETWEEN ? AND ?
    `
	err := db.WithContext(ctx).Raw(avgQuery,
		key.Query, key.URL, city, window.From, window.To,
	).Scan(&entityAvg).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching entity average position: %w", err)
	}
	if entityAvg.Samples == 0 {
		return []string{}, nil
	}

	var rivals []struct {
		URL string
	}
	rivalQuery := `
    SELECT url
    FROM daily_metrics
    WHERE query = ?
    AND url != ?
    AND city IS ?
    AND date BETWEEN ? AND ?
    GROUP BY url
    HAVING MIN(position) < ?
    ORDER BY AVG(position) ASC
    LIMIT ?
    `
	err = db.WithContext(ctx).Raw(rivalQuery,
		key.Query, key.URL, city, window.From, window.To,
		entityAvg.AvgPosition, maxCompetitors,
	).Scan(&rivals).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching competitor URLs: %w", err)
	}

	urls := make([]string, len(rivals))
	for i, r := range rivals {
		urls[i] = r.URL
	}
	return urls, nil
}
