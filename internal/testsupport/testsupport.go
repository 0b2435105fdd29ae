// Package testsupport provides shared database and seeding helpers for tests.
package testsupport

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"serppulse/internal/metrics"
	"serppulse/internal/timeframe"
)

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// allModels returns all serppulse models for migration
func allModels() []any {
	return []any{
		&metrics.DailyMetric{},
		&metrics.WeeklyMetric{},
		&metrics.MonthlyMetric{},
	}
}

// SetupTestDB creates a test database with all serppulse models migrated.
// Uses a named in-memory database with cache=shared so multiple connections
// within a test share the same database; cached by root test name.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testName := t.Name()

	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// GetLogger returns a quiet logger for tests.
func GetLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Str returns a pointer to s, for nullable city fields in test fixtures.
func Str(s string) *string {
	return &s
}

// CreateDailyMetric seeds one daily row. CTR derives from clicks and
// impressions unless the caller sets it afterwards.
func CreateDailyMetric(t *testing.T, db *gorm.DB, query, url string, city *string, date time.Time, position float64, clicks, impressions int) metrics.DailyMetric {
	t.Helper()

	row := metrics.DailyMetric{
		Query:       query,
		URL:         url,
		City:        city,
		Date:        timeframe.DayOf(date),
		Clicks:      clicks,
		Impressions: impressions,
		Position:    position,
		CTR:         metrics.DerivedCTR(clicks, impressions),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("testsupport: failed to seed daily metric: %v", err)
	}
	return row
}

// CreateWeeklyMetric seeds one weekly rollup bucket.
func CreateWeeklyMetric(t *testing.T, db *gorm.DB, query, url string, city *string, weekStart time.Time, avgPosition, avgImpressions float64) metrics.WeeklyMetric {
	t.Helper()

	row := metrics.WeeklyMetric{
		Query:            query,
		URL:              url,
		City:             city,
		WeekStart:        timeframe.WeekStart(weekStart),
		AvgPosition:      avgPosition,
		AvgImpressions:   avgImpressions,
		TotalImpressions: int(avgImpressions * 7),
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("testsupport: failed to seed weekly metric: %v", err)
	}
	return row
}
