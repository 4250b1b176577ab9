package output

import (
	"math"
	"strconv"
	"strings"
)

// FloatPlaces is the precision every encoded float is rounded to.
const FloatPlaces = 6

// RoundFloat rounds a float to FloatPlaces decimal places
func RoundFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	multiplier := math.Pow(10, FloatPlaces)
	return math.Round(f*multiplier) / multiplier
}

// FormatFloat formats a rounded float with no trailing zeros
func FormatFloat(f float64) string {
	str := strconv.FormatFloat(RoundFloat(f), 'f', FloatPlaces, 64)
	str = strings.TrimRight(str, "0")
	return strings.TrimSuffix(str, ".")
}
