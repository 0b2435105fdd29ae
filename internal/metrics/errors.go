package metrics

import "errors"

// Structurally invalid inputs. These are raised immediately and never
// silently coerced; empty data conditions are not errors and yield
// well-defined zero results instead.
var (
	ErrInvalidRange      = errors.New("metrics: date range end precedes start")
	ErrNegativeThreshold = errors.New("metrics: threshold cannot be negative")
	ErrUnknownFilter     = errors.New("metrics: unknown filter value")
	ErrInvalidRecord     = errors.New("metrics: record fails validation")
)
