package utils

import "math"

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Percent returns pct percent of amount, rounded to cents.
func Percent(amount, pct float64) float64 {
	return Round2(amount * pct / 100)
}
