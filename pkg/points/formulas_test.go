package points

import "testing"

func TestMinimumPointsIncreasesWithTier(t *testing.T) {
	low := MinimumPoints(1)
	high := MinimumPoints(10)
	if low >= high {
		t.Errorf("MinimumPoints(1) = %f, MinimumPoints(10) = %f; expected a harder tier to have a higher floor", low, high)
	}
}

func TestMinimumPointsClampsOutOfRangeTiers(t *testing.T) {
	if MinimumPoints(0) != MinimumPoints(1) {
		t.Errorf("MinimumPoints(0) should clamp to tier 1")
	}
	if MinimumPoints(20) != MinimumPoints(10) {
		t.Errorf("MinimumPoints(20) should clamp to tier 10")
	}
}

func TestRankComponentFirstPlaceBeatsLastPlace(t *testing.T) {
	first := RankComponent(1, 100, 5)
	last := RankComponent(100, 100, 5)
	if first <= last {
		t.Errorf("RankComponent(1) = %f, RankComponent(100) = %f; expected rank 1 to score higher", first, last)
	}
}

func TestRankComponentEmptyLeaderboard(t *testing.T) {
	if got := RankComponent(1, 0, 5); got != 0 {
		t.Errorf("RankComponent with an empty leaderboard = %f, want 0", got)
	}
}

func TestDistributionComponentLowCompletionFallsBackToRatio(t *testing.T) {
	dist := DistributionParameters{A: 2, B: 0, Loc: 30, Scale: 5, TopScale: 1}

	atBest := DistributionComponent(30, 30, dist, 10, 5)
	slower := DistributionComponent(60, 30, dist, 10, 5)

	if atBest <= slower {
		t.Errorf("DistributionComponent(30) = %f, DistributionComponent(60) = %f; expected the best time to score higher", atBest, slower)
	}
}

func TestDistributionComponentNonPositiveTimeScoresZero(t *testing.T) {
	dist := DistributionParameters{A: 2, B: 0, Loc: 30, Scale: 5, TopScale: 1}
	if got := DistributionComponent(0, 30, dist, 10, 5); got != 0 {
		t.Errorf("DistributionComponent(time=0) = %f, want 0", got)
	}
}

func TestDistributionComponentUsesSurvivalFunctionAboveThreshold(t *testing.T) {
	dist := DistributionParameters{A: 2, B: 0, Loc: 30, Scale: 5, TopScale: 1}

	fast := DistributionComponent(28, 28, dist, LowCompletionThreshold+10, 5)
	slow := DistributionComponent(60, 28, dist, LowCompletionThreshold+10, 5)

	if fast <= slow {
		t.Errorf("DistributionComponent(28) = %f, DistributionComponent(60) = %f; expected a faster time to score higher", fast, slow)
	}
	if fast < 0 || fast > MaxPoints {
		t.Errorf("DistributionComponent(28) = %f, want in [0, MaxPoints]", fast)
	}
}
