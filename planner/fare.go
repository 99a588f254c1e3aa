package planner

import (
	"math"
	"time"
)

// Fare model: a flat base plus a per-station-gap amount, with a fixed peak
// multiplier. Amounts are rand, rounded to the nearest whole.
const (
	fareBase       = 20
	farePerStation = 5
	peakMultiplier = 1.3
)

// EstimateFare estimates the fare in rand between two resolved stations.
// The estimate is linear in the difference of the stations' order values;
// it is a presentation aid, not the billed amount.
func EstimateFare(origin, destination Station, peak bool) int {
	gap := origin.Order - destination.Order
	if gap < 0 {
		gap = -gap
	}

	fare := float64(fareBase + gap*farePerStation)
	if peak {
		fare *= peakMultiplier
	}
	return int(math.Round(fare))
}

// IsPeakTime reports whether the instant falls in a weekday peak band
// (06:00-09:00 or 16:00-19:00). Weekends are always off-peak.
func IsPeakTime(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	h := t.Hour()
	return (h >= 6 && h < 9) || (h >= 16 && h < 19)
}
