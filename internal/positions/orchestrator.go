package positions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"serppulse/internal/pkg/async"
)

// orchestratorWorkers bounds the fan-out over lookback windows.
const orchestratorWorkers = 4

// AnalyzePositions evaluates every requested lookback window (days back from
// now) and assembles one report. All windows share the same reference time
// so cross-period comparisons within the report stay internally consistent.
// Windows are read-only and independent, so they run concurrently on a
// bounded pool.
func AnalyzePositions(ctx context.Context, db *gorm.DB, logger *slog.Logger, days []int, opts Options) (Report, error) {
	return analyzePositionsAt(ctx, db, logger, time.Now().UTC(), days, opts)
}

func analyzePositionsAt(ctx context.Context, db *gorm.DB, logger *slog.Logger, now time.Time, days []int, opts Options) (Report, error) {
	report := Report{
		GeneratedAt: now,
		Periods:     make(map[int]PeriodResult, len(days)),
	}

	tasks := make([]async.Task, 0, len(days))
	for _, daysBack := range days {
		if daysBack < 1 {
			return Report{}, fmt.Errorf("lookback must be at least one day, got %d", daysBack)
		}
		periodOpts := opts
		periodOpts.StartDate = now.AddDate(0, 0, -daysBack)
		periodOpts.EndDate = now

		tasks = append(tasks, async.Task{
			Name: fmt.Sprintf("%d", daysBack),
			Execute: func() (interface{}, error) {
				changes, stats, err := GetPositionChanges(ctx, db, logger, periodOpts)
				if err != nil {
					return nil, err
				}
				return PeriodResult{Changes: changes, Stats: stats}, nil
			},
		})
	}

	workers := orchestratorWorkers
	if len(tasks) < workers {
		workers = len(tasks)
	}
	results := async.NewPool(workers).Execute(ctx, tasks)
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	for _, daysBack := range days {
		result, ok := results[fmt.Sprintf("%d", daysBack)]
		if !ok {
			return Report{}, fmt.Errorf("missing result for %d-day window", daysBack)
		}
		if result.Err != nil {
			return Report{}, fmt.Errorf("failed to analyze %d-day window: %w", daysBack, result.Err)
		}
		report.Periods[daysBack] = result.Data.(PeriodResult)
	}

	report.Summary = summarize(report.Periods)

	logger.Info("Assembled position analysis report",
		slog.Int("periods", len(report.Periods)),
		slog.Int("significant_changes", report.Summary.TotalSignificantChanges))

	return report, nil
}

// summarize folds per-period stats into the report-level summary and picks
// the single largest climb and drop across all windows.
func summarize(periods map[int]PeriodResult) Summary {
	var s Summary
	for _, period := range periods {
		s.TotalSignificantChanges += period.Stats.SignificantChanges
		s.TotalImproved += period.Stats.ImprovedCount
		s.TotalDeclined += period.Stats.DeclinedCount

		for i := range period.Changes {
			change := &period.Changes[i]
			if change.Change > 0 {
				if s.BestImprovement == nil || change.Change > s.BestImprovement.Change {
					s.BestImprovement = change
				}
			} else if s.WorstDecline == nil || change.Change < s.WorstDecline.Change {
				s.WorstDecline = change
			}
		}
	}
	return s
}
