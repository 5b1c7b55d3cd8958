package metrics

import (
	"math"
	"sort"
	"time"
)

// durationDays returns the whole-day span between two instants, rounded up.
// Cycle time and lead time are both computed with it today; when in-progress
// tracking lands, only this call site's usage for cycle time changes.
func durationDays(from, to time.Time) float64 {
	return math.Ceil(to.Sub(from).Hours() / 24)
}

// completionDate picks the completion instant for timing samples: the
// resolution timestamp when the tracker recorded one, otherwise the last
// update.
func completionDate(resolved *time.Time, updated time.Time) time.Time {
	if resolved != nil {
		return *resolved
	}
	return updated
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// meanOf returns a pointer to the mean, or nil for an empty sample set so
// that "no timing data" stays distinguishable from "zero days".
func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := mean(values)
	return &m
}

func medianOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := median(values)
	return &m
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
