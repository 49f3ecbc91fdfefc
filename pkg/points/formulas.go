package points

import "math"

// MinimumPoints is the tier-dependent floor every completion on a filter
// earns, regardless of rank or time.
func MinimumPoints(tier int8) float64 {
	return MaxPoints * 0.1 * tierWeight(clampTier(tier))
}

// RankComponent is `0.25 * (MAX - minimum) * f(rank, leaderboard_size)`
// where f decreases monotonically in rank: a flat-out rank fraction.
func RankComponent(rank, leaderboardSize int32, tier int8) float64 {
	if leaderboardSize <= 0 {
		return 0
	}
	minimum := MinimumPoints(tier)
	f := 1.0 - float64(rank-1)/float64(leaderboardSize)
	if f < 0 {
		f = 0
	}
	return 0.25 * (MaxPoints - minimum) * f
}

// DistributionComponent is `0.75 * (MAX - minimum) * g`, where g falls
// back to a best-time-ratio formula at or below LowCompletionThreshold
// completions and otherwise uses the cached NIG survival function.
func DistributionComponent(time, bestTime float64, dist DistributionParameters, leaderboardSize int, tier int8) float64 {
	minimum := MinimumPoints(tier)
	g := distributionRatio(time, bestTime, dist, leaderboardSize, tier)
	return 0.75 * (MaxPoints - minimum) * g
}

func distributionRatio(time, bestTime float64, dist DistributionParameters, leaderboardSize int, tier int8) float64 {
	if leaderboardSize <= LowCompletionThreshold || time <= 0 {
		if time <= 0 {
			return 0
		}
		ratio := bestTime / time
		return clamp01(ratio * tierWeight(clampTier(tier)))
	}

	// SurvivalFunction standardizes time by the fit's loc and scale itself.
	sf := SurvivalFunction(time, dist)
	if dist.TopScale == 0 {
		return 0
	}
	return clamp01(sf / dist.TopScale)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func clampTier(t int8) int8 {
	if t < 1 {
		return 1
	}
	if t > 10 {
		return 10
	}
	return t
}
