// Package floatutils provides utilities for working with floats
package floatutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// Argmax returns the index of the maximum value in a slice of float64.
// If multiple values are maximal, the lowest index is returned. NaN
// values are never selected unless all values are NaN, in which case 0
// is returned.
func Argmax(values []float64) int {
	if len(values) == 0 {
		panic("argmax: zero length slice")
	}
	if !floats.HasNaN(values) {
		return floats.MaxIdx(values)
	}

	best := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v > values[best] {
			best = i
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// AllFinite returns whether every value in the slice is neither NaN
// nor infinite
func AllFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsFinite returns whether a value is neither NaN nor infinite
func IsFinite(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0)
}
