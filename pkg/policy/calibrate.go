package policy

import "sort"

// CalibrateProfiles recomputes each profile's entropy_budget from
// historical entropy_score samples using quantiles (spec.md §4.4
// "Calibration"): low/medium anchor on p75, high on p90, critical on
// p95; low and critical are scaled by a multiplier (0.7 and 1.0), and
// every level is clamped to a safety floor so calibration never drops a
// budget below a minimum bar. Returns a new map; base is left untouched.
func CalibrateProfiles(historicalEntropyScores []float64, base map[string]Profile) map[string]Profile {
	profiles := make(map[string]Profile, len(base))
	for k, v := range base {
		profiles[k] = v
	}
	if len(historicalEntropyScores) == 0 {
		return profiles
	}

	sorted := append([]float64(nil), historicalEntropyScores...)
	sort.Float64s(sorted)
	n := len(sorted)
	p75 := sorted[quantileIndex(n, calibP75)]
	p90 := sorted[quantileIndex(n, calibP90)]
	p95 := sorted[quantileIndex(n, calibP95)]

	low := profiles["low"]
	low.EntropyBudget = round1(maxF(p75*calibLowMult, calibFloorLow))
	profiles["low"] = low

	medium := profiles["medium"]
	medium.EntropyBudget = round1(maxF(p75, calibFloorMedium))
	profiles["medium"] = medium

	high := profiles["high"]
	high.EntropyBudget = round1(maxF(p90, calibFloorHigh))
	profiles["high"] = high

	critical := profiles["critical"]
	critical.EntropyBudget = round1(maxF(p95*calibCriticalMult, calibFloorCritical))
	profiles["critical"] = critical

	return profiles
}

func quantileIndex(n int, q float64) int {
	idx := int(float64(n) * q)
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
