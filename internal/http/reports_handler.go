// Package http exposes the engine's reports as a thin read-only JSON API.
// Formatting, localization and delivery belong to downstream consumers.
package http

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"serppulse/internal/config"
	"serppulse/internal/ctr"
	"serppulse/internal/metrics"
	"serppulse/internal/positions"
	"serppulse/internal/timeframe"
	"serppulse/internal/trend"
)

// defaultLookbacks are the periods analyzed when the caller does not pass
// an explicit days list.
var defaultLookbacks = []int{1, 7, 30, 60}

// PositionsIndexAction runs the multi-period position analysis.
// Query params: days (csv of lookbacks), min_change, city, query_type,
// seasonality, competitors.
func PositionsIndexAction(ctx *cartridge.Context) error {
	days, err := parseDays(ctx.Query("days"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid days parameter",
		})
	}

	opts, err := parseOptions(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	db := ctx.DBManager.GetConnection()
	report, err := positions.AnalyzePositions(ctx.Ctx.UserContext(), db, ctx.Logger, days, opts)
	if err != nil {
		return reportError(ctx, err, "Failed to analyze positions")
	}
	return ctx.JSON(report)
}

// WeeklyPositionsAction returns per-week change lists for trailing 7-day
// windows. Query params: end (YYYY-MM-DD, default today), weeks_back.
func WeeklyPositionsAction(ctx *cartridge.Context) error {
	end := time.Now().UTC()
	if raw := ctx.Query("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid end date, expected YYYY-MM-DD",
			})
		}
		end = parsed
	}

	weeksBack, err := parseWeeksBack(ctx.Query("weeks_back"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	opts, err := parseOptions(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	db := ctx.DBManager.GetConnection()
	weeks, err := positions.GetWeeklyChanges(ctx.Ctx.UserContext(), db, ctx.Logger, end, weeksBack, opts)
	if err != nil {
		return reportError(ctx, err, "Failed to analyze weekly changes")
	}
	return ctx.JSON(fiber.Map{"weeks": weeks})
}

// CTRAnalysisAction runs the baseline anomaly detector for one entity.
// Query params: query, url, city, from, to (dates default to the last 30 days).
func CTRAnalysisAction(ctx *cartridge.Context) error {
	key, window, err := parseEntityWindow(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	db := ctx.DBManager.GetConnection()
	rows, err := metrics.FetchDailyForEntity(ctx.Ctx.UserContext(), db, key, window)
	if err != nil {
		return reportError(ctx, err, "Failed to fetch entity metrics")
	}

	detector := ctr.NewDetector(nil)
	return ctx.JSON(detector.Analyze(rows))
}

// TrendAnalysisAction classifies the trend of every metric for one entity.
// Query params match CTRAnalysisAction.
func TrendAnalysisAction(ctx *cartridge.Context) error {
	key, window, err := parseEntityWindow(ctx)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	db := ctx.DBManager.GetConnection()
	rows, err := metrics.FetchDailyForEntity(ctx.Ctx.UserContext(), db, key, window)
	if err != nil {
		return reportError(ctx, err, "Failed to fetch entity metrics")
	}

	return ctx.JSON(trend.DetectAll(rows))
}

func parseDays(raw string) ([]int, error) {
	if raw == "" {
		return defaultLookbacks, nil
	}
	parts := strings.Split(raw, ",")
	days := make([]int, 0, len(parts))
	for _, part := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d < 1 {
			return nil, errors.New("days must be positive integers")
		}
		days = append(days, d)
	}
	return days, nil
}

func parseWeeksBack(raw string) (int, error) {
	if raw == "" {
		return 4, nil
	}
	weeksBack, err := strconv.Atoi(raw)
	if err != nil || weeksBack < 0 {
		return 0, errors.New("weeks_back must be a non-negative integer")
	}
	return weeksBack, nil
}

func parseOptions(ctx *cartridge.Context) (positions.Options, error) {
	opts := positions.Options{
		MinChange:          config.GetConfig().MinPositionChange,
		IncludeSeasonality: ctx.Query("seasonality", "1") != "0",
		IncludeCompetitors: ctx.Query("competitors", "1") != "0",
	}

	if raw := ctx.Query("min_change"); raw != "" {
		minChange, err := strconv.ParseFloat(raw, 64)
		if err != nil || minChange < 0 {
			return opts, errors.New("min_change must be a non-negative number")
		}
		opts.MinChange = minChange
	}

	if city := ctx.Query("city"); city != "" {
		opts.Filter.City = &city
	}
	opts.Filter.QueryType = ctx.Query("query_type")
	if err := opts.Filter.Validate(); err != nil {
		return opts, err
	}

	return opts, nil
}

func parseEntityWindow(ctx *cartridge.Context) (metrics.EntityKey, timeframe.Range, error) {
	query := ctx.Query("query")
	url := ctx.Query("url")
	if query == "" || url == "" {
		return metrics.EntityKey{}, timeframe.Range{}, errors.New("query and url parameters are required")
	}

	key := metrics.EntityKey{Query: metrics.NormalizeQuery(query), URL: url}
	if city := ctx.Query("city"); city != "" {
		key.City = city
		key.HasCity = true
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := ctx.Query("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return key, timeframe.Range{}, errors.New("invalid from date, expected YYYY-MM-DD")
		}
		from = parsed
	}
	if raw := ctx.Query("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return key, timeframe.Range{}, errors.New("invalid to date, expected YYYY-MM-DD")
		}
		to = parsed
	}

	window, err := timeframe.NewRange(from, to)
	if err != nil {
		return key, timeframe.Range{}, err
	}
	return key, window, nil
}

// reportError maps engine errors to HTTP responses: structurally invalid
// inputs are the caller's fault, everything else is a store failure.
func reportError(ctx *cartridge.Context, err error, message string) error {
	if errors.Is(err, metrics.ErrInvalidRange) ||
		errors.Is(err, metrics.ErrNegativeThreshold) ||
		errors.Is(err, metrics.ErrUnknownFilter) ||
		errors.Is(err, timeframe.ErrInvalidRange) {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	ctx.Logger.Error(message, slog.Any("error", err))
	return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": message,
	})
}
