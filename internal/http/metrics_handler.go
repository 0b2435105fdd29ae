package http

import (
	"errors"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"serppulse/internal/metrics"
)

// metricPayload is one already-normalized daily record from the ingestion
// collaborator.
type metricPayload struct {
	Query       string  `json:"query"`
	URL         string  `json:"url"`
	City        *string `json:"city"`
	QueryType   string  `json:"query_type"`
	Date        string  `json:"date"`
	Clicks      int     `json:"clicks"`
	Impressions int     `json:"impressions"`
	Position    float64 `json:"position"`
}

// MetricsCreateAction stores a batch of daily metric rows. The ingestion
// side owns collection and normalization; this endpoint only validates
// defensively and persists.
func MetricsCreateAction(ctx *cartridge.Context) error {
	var payload []metricPayload
	if err := ctx.Ctx.BodyParser(&payload); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if len(payload) == 0 {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "empty metrics batch",
		})
	}

	rows := make([]metrics.DailyMetric, len(payload))
	for i, p := range payload {
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid date, expected YYYY-MM-DD",
			})
		}
		rows[i] = metrics.DailyMetric{
			Query:       p.Query,
			URL:         p.URL,
			City:        p.City,
			QueryType:   p.QueryType,
			Date:        date,
			Clicks:      p.Clicks,
			Impressions: p.Impressions,
			Position:    p.Position,
		}
	}

	db := ctx.DBManager.GetConnection()
	if err := metrics.PutDaily(db, rows); err != nil {
		if errors.Is(err, metrics.ErrInvalidRecord) {
			return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		ctx.Logger.Error("Failed to store metrics batch", slog.Any("error", err))
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store metrics",
		})
	}

	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{
		"stored": len(rows),
	})
}
