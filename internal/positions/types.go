// Package positions compares ranking snapshots across time windows and
// assembles period-over-period change reports enriched with seasonality and
// competitor-displacement context.
package positions

import (
	"time"

	"serppulse/internal/metrics"
)

// PositionChange is one significant ranking move for an entity between two
// snapshots. Change is old minus new, so positive means the page climbed.
type PositionChange struct {
	Query             string   `json:"query"`
	URL               string   `json:"url"`
	City              *string  `json:"city"`
	OldPosition       float64  `json:"old_position"`
	NewPosition       float64  `json:"new_position"`
	Change            float64  `json:"change"`
	ChangeAbs         float64  `json:"change_abs"`
	ImpressionsChange int      `json:"impressions_change"`
	ClicksChange      int      `json:"clicks_change"`
	QueryType         string   `json:"query_type"`
	IsSeasonal        bool     `json:"is_seasonal"`
	SeasonalityScore  float64  `json:"seasonality_score"`
	Competitors       []string `json:"competitors"`
}

// PeriodStats summarizes one comparison window. TotalQueries counts matched
// pairs before the significance filter; the improved/declined/significant
// counters apply after it. AvgPosition is the mean new position over all
// matched pairs, not just significant ones.
type PeriodStats struct {
	PeriodDays          int     `json:"period_days"`
	AvgPosition         float64 `json:"avg_position"`
	ImprovedCount       int     `json:"improved_count"`
	DeclinedCount       int     `json:"declined_count"`
	TotalQueries        int     `json:"total_queries"`
	SignificantChanges  int     `json:"significant_changes"`
	SeasonalityAffected int     `json:"seasonality_affected"`
	CompetitorsAffected int     `json:"competitors_affected"`
}

// Options configures one snapshot comparison.
type Options struct {
	StartDate time.Time
	EndDate   time.Time

	// MinChange is the significance gate on |old - new|, applied verbatim:
	// zero reports every matched pair, negative values are rejected.
	// Defaulting is the caller's concern (the HTTP layer fills it from
	// configuration).
	MinChange float64

	Filter metrics.Filter

	IncludeSeasonality bool
	IncludeCompetitors bool
}

// WeeklyChange is one trailing-week window's comparison result.
type WeeklyChange struct {
	WeekStart time.Time        `json:"week_start"`
	Changes   []PositionChange `json:"changes"`
	Stats     PeriodStats      `json:"stats"`
}

// PeriodResult pairs a lookback window's changes with its stats.
type PeriodResult struct {
	Changes []PositionChange `json:"changes"`
	Stats   PeriodStats      `json:"stats"`
}

// Summary aggregates across all periods of one report.
type Summary struct {
	TotalSignificantChanges int             `json:"total_significant_changes"`
	TotalImproved           int             `json:"total_improved"`
	TotalDeclined           int             `json:"total_declined"`
	BestImprovement         *PositionChange `json:"best_improvement,omitempty"`
	WorstDecline            *PositionChange `json:"worst_decline,omitempty"`
}

// Report is the orchestrator output: per-lookback results keyed by days
// back, all evaluated against the same reference time.
type Report struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Periods     map[int]PeriodResult `json:"periods"`
	Summary     Summary              `json:"summary"`
}
