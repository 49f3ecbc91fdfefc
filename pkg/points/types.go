// Package points implements the distribution-based points model: fitting a
// normal-inverse-Gaussian (NIG) distribution to a leaderboard's PB times on
// a dedicated worker goroutine (pinned to its own OS thread, since
// gonum.org/v1/gonum/stat's fitting routines are not meant to be called
// concurrently across goroutines sharing a thread pool, mirroring §4.4's
// "isolate the scientific library" requirement), and computing the
// minimum/rank/distribution point components described in §4.3.
package points

// MaxPoints is the ceiling every leaderboard's point value is scaled against.
const MaxPoints = 10000.0

// LowCompletionThreshold is the leaderboard-size cutoff at or below which the
// distribution component falls back to a pure best-time-ratio formula
// instead of the NIG survival function, since a handful of completions
// cannot support a meaningful fit.
const LowCompletionThreshold = 50

// DistributionParameters is a NIG fit of a leaderboard's times, cached per
// (filter, leaderboard) and recomputed when new records materially change
// the leaderboard.
type DistributionParameters struct {
	A        float64 // tail heaviness
	B        float64 // asymmetry
	Loc      float64 // location
	Scale    float64 // scale
	TopScale float64 // survival-function value at the best time, used to normalize g into [0,1]
}

// tierWeight maps a tier to the multiplier used when scaling the
// low-completion ratio formula; harder tiers reward a given ratio more.
func tierWeight(t int8) float64 {
	if t < 1 {
		t = 1
	}
	if t > 10 {
		t = 10
	}
	return float64(t) / 10.0
}
