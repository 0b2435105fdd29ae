// Package metrics defines the search-ranking metric models and the metrics
// store query layer.
//
// The package is organized into focused modules:
//   - models.go: daily metric and rollup bucket table definitions
//   - entity.go: the (query, url, city) identity tuple and null-safe matching
//   - queries.go: fetch/put query functions against the metrics store
//   - normalize.go: query-string normalization at the ingest boundary
package metrics

import (
	"time"
)

// Known query type classifications carried by the ingestion collaborator.
const (
	QueryTypeCommercial    = "commercial"
	QueryTypeInformational = "informational"
	QueryTypeNavigational  = "navigational"
	QueryTypeBranded       = "branded"
)

// DailyMetric is one observed day of search performance for an entity.
// Rows are owned by the ingestion collaborator; the engine only reads them.
type DailyMetric struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Query       string    `gorm:"uniqueIndex:idx_daily_unique;not null"`
	URL         string    `gorm:"uniqueIndex:idx_daily_unique;not null"`
	City        *string   `gorm:"uniqueIndex:idx_daily_unique"`
	QueryType   string    `gorm:"index"`
	Date        time.Time `gorm:"uniqueIndex:idx_daily_unique;index;type:datetime;not null"`
	Clicks      int       `gorm:"not null;default:0"`
	Impressions int       `gorm:"not null;default:0"`
	Position    float64   `gorm:"not null;default:0"`
	CTR         float64   `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WeeklyMetric is the rollup bucket for one entity and ISO week.
type WeeklyMetric struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	Query            string    `gorm:"uniqueIndex:idx_weekly_unique;not null"`
	URL              string    `gorm:"uniqueIndex:idx_weekly_unique;not null"`
	City             *string   `gorm:"uniqueIndex:idx_weekly_unique"`
	WeekStart        time.Time `gorm:"uniqueIndex:idx_weekly_unique;index;type:datetime;not null"`
	TotalClicks      int       `gorm:"not null;default:0"`
	AvgClicks        float64   `gorm:"not null;default:0"`
	TotalImpressions int       `gorm:"not null;default:0"`
	AvgImpressions   float64   `gorm:"not null;default:0"`
	AvgPosition      float64   `gorm:"not null;default:0"`
	AvgCTR           float64   `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MonthlyMetric is the rollup bucket for one entity and calendar month.
// Monthly buckets are derived from weekly buckets, not raw daily rows.
type MonthlyMetric struct {
	ID               uint      `gorm:"primaryKey;autoIncrement"`
	Query            string    `gorm:"uniqueIndex:idx_monthly_unique;not null"`
	URL              string    `gorm:"uniqueIndex:idx_monthly_unique;not null"`
	City             *string   `gorm:"uniqueIndex:idx_monthly_unique"`
	MonthStart       time.Time `gorm:"uniqueIndex:idx_monthly_unique;index;type:datetime;not null"`
	TotalClicks      int       `gorm:"not null;default:0"`
	AvgClicks        float64   `gorm:"not null;default:0"`
	TotalImpressions int       `gorm:"not null;default:0"`
	AvgImpressions   float64   `gorm:"not null;default:0"`
	AvgPosition      float64   `gorm:"not null;default:0"`
	AvgCTR           float64   `gorm:"not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DerivedCTR returns clicks/impressions, or 0 when there were no impressions.
func DerivedCTR(clicks, impressions int) float64 {
	if impressions <= 0 {
		return 0
	}
	return float64(clicks) / float64(impressions)
}
