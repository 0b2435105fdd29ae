// Package trend classifies the direction of a metric time series using
// ordinary least-squares regression with a significance test on the slope.
package trend

import (
	"math"

	"serppulse/internal/metrics"
)

// Metric identifies which observed series is being analyzed.
type Metric string

const (
	MetricPosition    Metric = "position"
	MetricClicks      Metric = "clicks"
	MetricImpressions Metric = "impressions"
	MetricCTR         Metric = "ctr"
)

// Direction is the classified trend. Positive always means "getting better"
// for the metric in question, regardless of the metric's raw scale.
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
	DirectionNeutral  Direction = "neutral"
)

// SignificanceLevel is the p-value threshold below which a slope counts as a
// real trend rather than noise.
const SignificanceLevel = 0.05

// Result is the regression outcome for one metric series.
type Result struct {
	Metric      Metric    `json:"metric"`
	Direction   Direction `json:"direction"`
	Slope       float64   `json:"slope"`
	Intercept   float64   `json:"intercept"`
	PValue      float64   `json:"p_value"`
	RSquared    float64   `json:"r_squared"`
	Significant bool      `json:"significant"`
}

// policy captures the per-metric classification rules. Position is on an
// inverted scale: a falling rank number is an improvement, so its direction
// polarity flips relative to clicks, impressions and CTR.
type policy struct {
	InvertDirection bool
}

var policies = map[Metric]policy{
	MetricPosition:    {InvertDirection: true},
	MetricClicks:      {},
	MetricImpressions: {},
	MetricCTR:         {},
}

// Detect fits value against the sequence index 0..n-1 and classifies the
// direction. Series with fewer than two points are neutral, never an error.
func Detect(metric Metric, series []float64) Result {
	result := Result{
		Metric:    metric,
		Direction: DirectionNeutral,
		PValue:    1,
	}

	n := len(series)
	if n < 2 {
		return result
	}

	// OLS of y on x = 0..n-1.
	var sumX, sumY float64
	for i, y := range series {
		sumX += float64(i)
		sumY += y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, syy, sxy float64
	for i, y := range series {
		dx := float64(i) - meanX
		dy := y - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	if syy == 0 {
		// Flat series: zero slope, nothing to test.
		result.Intercept = meanY
		return result
	}

	slope := sxy / sxx
	result.Slope = slope
	result.Intercept = meanY - slope*meanX
	result.RSquared = (sxy * sxy) / (sxx * syy)

	result.PValue = slopePValue(slope, sxx, syy, sxy, n)
	result.Significant = result.PValue < SignificanceLevel
	if !result.Significant {
		return result
	}

	improving := slope > 0
	if policies[metric].InvertDirection {
		improving = slope < 0
	}
	if improving {
		result.Direction = DirectionPositive
	} else {
		result.Direction = DirectionNegative
	}
	return result
}

// DetectAll runs Detect for every standard metric over a shared set of daily
// rows, ordered as given.
func DetectAll(rows []metrics.DailyMetric) map[Metric]Result {
	results := make(map[Metric]Result, len(policies))
	for m := range policies {
		results[m] = Detect(m, Series(rows, m))
	}
	return results
}

// Series extracts one metric's values from daily rows, preserving order.
func Series(rows []metrics.DailyMetric, m Metric) []float64 {
	values := make([]float64, len(rows))
	for i, row := range rows {
		switch m {
		case MetricPosition:
			values[i] = row.Position
		case MetricClicks:
			values[i] = float64(row.Clicks)
		case MetricImpressions:
			values[i] = float64(row.Impressions)
		case MetricCTR:
			values[i] = row.CTR
		}
	}
	return values
}

// slopePValue computes the two-sided p-value of the standard t-test on the
// regression slope with n-2 degrees of freedom.
func slopePValue(slope, sxx, syy, sxy float64, n int) float64 {
	df := float64(n - 2)
	if df <= 0 {
		// Two points always fit perfectly; no residual to test against.
		return 1
	}

	sse := syy - slope*sxy
	if sse <= 0 {
		// Perfect fit: the slope is exact.
		if slope == 0 {
			return 1
		}
		return 0
	}

	stderr := math.Sqrt((sse / df) / sxx)
	if stderr == 0 {
		return 1
	}
	t := slope / stderr

	// Two-sided p-value from the Student's t CDF, expressed through the
	// regularized incomplete beta function.
	x := df / (df + t*t)
	return regularizedIncompleteBeta(df/2, 0.5, x)
}

// regularizedIncompleteBeta evaluates I_x(a, b) via the continued-fraction
// expansion (Lentz's method).
func regularizedIncompleteBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lnBeta := lgamma(a+b) - lgamma(a) - lgamma(b)
	front := math.Exp(lnBeta + a*math.Log(x) + b*math.Log(1-x))

	// The continued fraction converges fastest for x < (a+1)/(a+b+2);
	// use the symmetry relation otherwise.
	if x >= (a+1)/(a+b+2) {
		return 1 - regularizedIncompleteBeta(b, a, 1-x)
	}

	const (
		maxIterations = 200
		epsilon       = 1e-14
		tiny          = 1e-30
	)

	c := 1.0
	d := 1 - (a+b)*x/(a+1)
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	result := d

	for m := 1; m <= maxIterations; m++ {
		fm := float64(m)

		// Even step.
		numerator := fm * (b - fm) * x / ((a + 2*fm - 1) * (a + 2*fm))
		d = 1 + numerator*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		d = 1 / d
		c = 1 + numerator/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		result *= d * c

		// Odd step.
		numerator = -(a + fm) * (a + b + fm) * x / ((a + 2*fm) * (a + 2*fm + 1))
		d = 1 + numerator*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		d = 1 / d
		c = 1 + numerator/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		delta := d * c
		result *= delta

		if math.Abs(delta-1) < epsilon {
			break
		}
	}

	return front * result / a
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
