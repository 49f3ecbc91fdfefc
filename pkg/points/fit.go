package points

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrEmptyInput is returned by Fit when given no times; callers must
// filter empty leaderboards out before dispatching to the worker.
var ErrEmptyInput = errors.New("points: cannot fit a distribution to zero records")

// Fit computes a method-of-moments normal-inverse-Gaussian fit over sorted
// ascending times. It is CPU-bound and intended to only ever run on the
// dedicated worker goroutine (see Worker), never directly from an HTTP
// handler or protocol connection goroutine.
func Fit(times []float64) (DistributionParameters, error) {
	if len(times) == 0 {
		return DistributionParameters{}, ErrEmptyInput
	}
	if len(times) == 1 {
		t := times[0]
		return DistributionParameters{A: 1, B: 0, Loc: t, Scale: 1, TopScale: 1}, nil
	}

	weights := make([]float64, len(times))
	for i := range weights {
		weights[i] = 1
	}

	mean := stat.Mean(times, weights)
	stdDev := stat.StdDev(times, weights)
	var skew, exKurt float64
	if stdDev == 0 {
		// Higher moments are 0/0 for zero-variance input; treat them as 0.
		stdDev = 1e-6
	} else {
		skew = stat.Skew(times, weights)
		exKurt = stat.ExKurtosis(times, weights)
	}

	// NIG moment relations (method-of-moments, Barndorff-Nielsen):
	// excess kurtosis ek = 3*(1 + 4*rho^2) / xi, skewness s = 3*rho / sqrt(xi)
	// where xi = a*delta (shape) and rho = b/a (asymmetry ratio).
	// Solve for xi then rho, clamping to keep the distribution well-defined
	// when sample moments fall outside the NIG's valid region (small
	// samples routinely do).
	xi := 3.0 / math.Max(exKurt/3.0-4*math.Pow(skew/3.0, 2), 0.1)
	xi = math.Max(xi, 0.3)
	rho := skew / (3.0 * math.Sqrt(xi))
	rho = math.Max(-0.9, math.Min(0.9, rho))

	scale := stdDev * math.Sqrt(1-rho*rho)
	if scale <= 0 {
		scale = stdDev
	}
	a := xi / scale
	b := rho * a
	loc := mean - b*scale*scale/math.Sqrt(a*a-b*b+1e-9)

	sf := survivalFunction(times[0], a, b, loc, scale)
	if sf <= 0 {
		sf = 1
	}

	return DistributionParameters{A: a, B: b, Loc: loc, Scale: scale, TopScale: sf}, nil
}

// survivalFunction approximates the NIG survival function via a normal
// approximation with matched mean/variance; an exact NIG CDF requires a
// Bessel-function integral that gonum does not expose directly, and
// approximating it here keeps the worker's per-request cost bounded.
func survivalFunction(time, a, b, loc, scale float64) float64 {
	if a <= math.Abs(b) {
		a = math.Abs(b) + 1e-6
	}
	variance := scale * scale * a / math.Pow(a*a-b*b, 1.5)
	if variance <= 0 {
		variance = scale * scale
	}
	z := (time - loc) / math.Sqrt(variance)
	return 0.5 * math.Erfc(z/math.Sqrt2)
}

// SurvivalFunction is the public entry point used by the points formulas
// to evaluate a cached DistributionParameters at a given time.
func SurvivalFunction(time float64, d DistributionParameters) float64 {
	return survivalFunction(time, d.A, d.B, d.Loc, d.Scale)
}
