// Package ctr detects click-through anomalies against a position-based
// baseline curve.
package ctr

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"serppulse/internal/metrics"
)

// Anomaly types.
const (
	AnomalyLowCTR      = "low_ctr"
	AnomalyUnstableCTR = "unstable_ctr"
)

// Report statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

const (
	// underperformanceRatio: actual CTR below 70% of expected flags low_ctr.
	underperformanceRatio = 0.7

	// instabilityCV: coefficient of variation of CTR above this flags
	// unstable_ctr.
	instabilityCV = 0.5

	// minInstabilityObservations: the instability check is skipped below
	// this sample size.
	minInstabilityObservations = 3

	// instabilityImpactWeight scales mean impressions into the at-risk
	// click estimate for unstable_ctr anomalies.
	instabilityImpactWeight = 0.1

	// maxRank: ranks beyond the baseline table fall back to a floor value.
	maxRank = 10

	// fallbackCTR is the expected CTR for ranks beyond the table.
	fallbackCTR = 0.01
)

// Baseline maps SERP rank to expected CTR. It is static per-process
// configuration, injected so it can be swapped per market or vertical
// without touching detector logic.
type Baseline map[int]float64

// DefaultBaseline is the stock expected-CTR curve for ranks 1..10.
func DefaultBaseline() Baseline {
	return Baseline{
		1: 0.25, 2: 0.15, 3: 0.10, 4: 0.08, 5: 0.07,
		6: 0.06, 7: 0.05, 8: 0.04, 9: 0.03, 10: 0.02,
	}
}

// Expected returns the baseline CTR for a rank.
func (b Baseline) Expected(rank int) float64 {
	if expected, ok := b[rank]; ok {
		return expected
	}
	return fallbackCTR
}

// Anomaly is one detected CTR problem at a rank position.
type Anomaly struct {
	Position    int     `json:"position"`
	Type        string  `json:"type"`
	ActualCTR   float64 `json:"actual_ctr"`
	ExpectedCTR float64 `json:"expected_ctr,omitempty"`
	Impact      float64 `json:"impact"`
}

// Recommendation is a templated follow-up action for an anomaly.
type Recommendation struct {
	Position int    `json:"position"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

// Stats summarizes the analyzed window.
type Stats struct {
	Observations    int     `json:"observations"`
	RanksAnalyzed   int     `json:"ranks_analyzed"`
	AvgCTR          float64 `json:"avg_ctr"`
	TotalClicksLost float64 `json:"total_clicks_lost"`
}

// Report is the full detector output. Status is "error" with a message for
// an empty input window; no panic, no error return.
type Report struct {
	Status          string           `json:"status"`
	Message         string           `json:"message,omitempty"`
	Anomalies       []Anomaly        `json:"anomalies"`
	Recommendations []Recommendation `json:"recommendations"`
	Stats           Stats            `json:"stats"`
}

// Detector compares observed CTR per rank position against the baseline.
type Detector struct {
	baseline Baseline
}

// NewDetector builds a detector around the given baseline curve. A nil
// baseline falls back to the default.
func NewDetector(baseline Baseline) *Detector {
	if baseline == nil {
		baseline = DefaultBaseline()
	}
	return &Detector{baseline: baseline}
}

// Analyze inspects one entity's daily rows. Rows are bucketed by rounded
// rank 1..10; for each rank present it checks for underperformance against
// the baseline and for CTR instability. Anomalies come back sorted by
// impact descending; consumers rely on that ordering.
func (d *Detector) Analyze(rows []metrics.DailyMetric) Report {
	report := Report{
		Status:          StatusOK,
		Anomalies:       []Anomaly{},
		Recommendations: []Recommendation{},
	}
	if len(rows) == 0 {
		report.Status = StatusError
		report.Message = "no metric rows in the analysis window"
		return report
	}

	byRank := make(map[int][]metrics.DailyMetric)
	var allCTRs []float64
	for i := range rows {
		rank := int(math.Round(rows[i].Position))
		allCTRs = append(allCTRs, rows[i].CTR)
		if rank < 1 || rank > maxRank {
			continue
		}
		byRank[rank] = append(byRank[rank], rows[i])
	}

	report.Stats.Observations = len(rows)
	report.Stats.RanksAnalyzed = len(byRank)
	report.Stats.AvgCTR = meanOf(allCTRs)

	for rank := 1; rank <= maxRank; rank++ {
		group := byRank[rank]
		if len(group) == 0 {
			continue
		}

		ctrs := make([]float64, len(group))
		impressions := make([]float64, len(group))
		for i, row := range group {
			ctrs[i] = row.CTR
			impressions[i] = float64(row.Impressions)
		}
		actual := meanOf(ctrs)
		meanImpressions := meanOf(impressions)
		expected := d.baseline.Expected(rank)

		if actual < expected*underperformanceRatio {
			impact := (expected - actual) * meanImpressions
			report.Anomalies = append(report.Anomalies, Anomaly{
				Position:    rank,
				Type:        AnomalyLowCTR,
				ActualCTR:   actual,
				ExpectedCTR: expected,
				Impact:      impact,
			})
			report.Stats.TotalClicksLost += impact
		}

		if len(group) >= minInstabilityObservations {
			if cv := coefficientOfVariation(ctrs); cv > instabilityCV {
				report.Anomalies = append(report.Anomalies, Anomaly{
					Position:  rank,
					Type:      AnomalyUnstableCTR,
					ActualCTR: actual,
					Impact:    meanImpressions * instabilityImpactWeight,
				})
			}
		}
	}

	// Ranking contract: highest estimated impact first.
	sort.SliceStable(report.Anomalies, func(i, j int) bool {
		return report.Anomalies[i].Impact > report.Anomalies[j].Impact
	})

	for _, a := range report.Anomalies {
		report.Recommendations = append(report.Recommendations, recommend(a))
	}

	return report
}

// recommend templates the follow-up action for an anomaly. Top-3 positions
// get high priority since they carry most of the traffic.
func recommend(a Anomaly) Recommendation {
	rec := Recommendation{
		Position: a.Position,
		Type:     a.Type,
		Priority: PriorityMedium,
	}
	if a.Position <= 3 {
		rec.Priority = PriorityHigh
	}

	switch a.Type {
	case AnomalyLowCTR:
		rec.Action = fmt.Sprintf(
			"Rewrite title and meta description for position %d: CTR %.1f%% against an expected %.1f%%",
			a.Position, a.ActualCTR*100, a.ExpectedCTR*100)
	case AnomalyUnstableCTR:
		rec.Action = fmt.Sprintf(
			"Review content relevance for position %d: click-through is unstable across the window",
			a.Position)
	}
	return rec
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}

// coefficientOfVariation returns stddev/mean with a zero-mean guard, so a
// window of all-zero CTRs reads as perfectly stable rather than NaN.
func coefficientOfVariation(values []float64) float64 {
	mean := meanOf(values)
	if mean == 0 {
		return 0
	}
	stddev, err := stats.StandardDeviation(values)
	if err != nil {
		return 0
	}
	return stddev / mean
}
