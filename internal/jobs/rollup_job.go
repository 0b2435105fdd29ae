package jobs

import (
	"context"
	"log/slog"
	"time"

	"serppulse/internal/config"
	"serppulse/internal/database"
	"serppulse/internal/rollup"
	"serppulse/internal/timeframe"
)

// RollupJob periodically folds daily metrics into weekly and monthly
// buckets. Running as the single scheduled writer serializes same-range
// rollups, which keeps the last-writer-wins upsert contract safe.
type RollupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewRollupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *RollupJob {
	return &RollupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run aggregates the configured lookback window at both granularities.
// Weekly runs first because monthly buckets derive from weekly ones.
func (j *RollupJob) Run(ctx context.Context) error {
	db := j.dbManager.GetConnection()

	end := timeframe.DayOf(time.Now().UTC())
	start := end.AddDate(0, 0, -j.cfg.RollupLookbackDays)

	j.logger.Info("Starting metric rollup",
		slog.Time("from", start),
		slog.Time("to", end))

	if err := rollup.Aggregate(ctx, db, j.logger, timeframe.GranularityWeekly, start, end); err != nil {
		return err
	}
	return rollup.Aggregate(ctx, db, j.logger, timeframe.GranularityMonthly, start, end)
}
