package oracle

import (
	"fmt"
	"math"
)

// Admin-boundary magnitude domain in hundredths.
const (
	MinMagnitude uint64 = 200
	MaxMagnitude uint64 = 900
)

// HundredthsFromFloat converts an administrator-supplied decimal to
// hundredths, truncating. Values must already be range-checked; negative
// and NaN inputs yield zero.
func HundredthsFromFloat(v float64) uint64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	scaled := v * 100
	if scaled >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(scaled)
}

// MagnitudeInRange reports whether v lies in [2.0, 9.0].
func MagnitudeInRange(v float64) bool {
	return v >= 2.0 && v <= 9.0
}

// FormatHundredths renders a hundredths value as a decimal string.
func FormatHundredths(v uint64) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}
