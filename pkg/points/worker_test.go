package points

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestWorker(t *testing.T) (*Worker, func()) {
	t.Helper()
	w := NewWorker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	return w, cancel
}

func TestWorkerCalculateDistribution(t *testing.T) {
	w, cancel := newTestWorker(t)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()

	dist, err := w.CalculateDistribution(ctx, []float64{30, 31, 32, 33})
	if err != nil {
		t.Fatalf("CalculateDistribution error: %v", err)
	}
	if dist.Scale <= 0 {
		t.Errorf("Scale = %f, want > 0", dist.Scale)
	}
}

func TestWorkerCalculateDistPoints(t *testing.T) {
	w, cancel := newTestWorker(t)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()

	nubDist := DistributionParameters{A: 2, B: 0, Loc: 30, Scale: 5, TopScale: 1}
	proDist := DistributionParameters{A: 2, B: 0, Loc: 20, Scale: 3, TopScale: 1}

	nubPoints, proPoints, err := w.CalculateDistPoints(ctx,
		[]float64{30, 31, 32}, nubDist, 5,
		[]float64{20, 21}, proDist, 8,
	)
	if err != nil {
		t.Fatalf("CalculateDistPoints error: %v", err)
	}
	if len(nubPoints) != 3 {
		t.Errorf("len(nubPoints) = %d, want 3", len(nubPoints))
	}
	if len(proPoints) != 2 {
		t.Errorf("len(proPoints) = %d, want 2", len(proPoints))
	}
}

func TestWorkerCalculatePoint(t *testing.T) {
	w, cancel := newTestWorker(t)
	defer cancel()

	ctx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()

	dist := DistributionParameters{A: 2, B: 0, Loc: 30, Scale: 5, TopScale: 1}

	best, err := w.CalculatePoint(ctx, 30, 30, dist, 10, 5, 1)
	if err != nil {
		t.Fatalf("CalculatePoint error: %v", err)
	}
	worse, err := w.CalculatePoint(ctx, 35, 30, dist, 10, 5, 2)
	if err != nil {
		t.Fatalf("CalculatePoint error: %v", err)
	}
	if best <= worse {
		t.Errorf("points for rank 1 at the best time (%f) should exceed rank 2 (%f)", best, worse)
	}
}

func TestWorkerShutdownIsCooperative(t *testing.T) {
	w := NewWorker(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	if err := w.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}
}

func TestSearchSorted(t *testing.T) {
	times := []float64{10, 20, 30, 40}

	tests := []struct {
		t    float64
		want int
	}{
		{5, 0},
		{10, 0},
		{15, 1},
		{40, 3},
		{45, 4},
	}

	for _, tt := range tests {
		if got := searchSorted(times, tt.t); got != tt.want {
			t.Errorf("searchSorted(%v, %f) = %d, want %d", times, tt.t, got, tt.want)
		}
	}
}

func TestComputeDistPointsBatchProBoostedByNUBEquivalent(t *testing.T) {
	nubDist := DistributionParameters{A: 2, B: 0, Loc: 30, Scale: 5, TopScale: 1}
	proDist := DistributionParameters{A: 2, B: 0, Loc: 60, Scale: 5, TopScale: 1}

	req := pointsRequest{
		nubTimes: []float64{28, 29, 30},
		nubDist:  nubDist,
		nubTier:  5,
		proTimes: []float64{29},
		proDist:  proDist,
		proTier:  8,
	}

	nubPoints, proPoints := computeDistPointsBatch(req)
	if len(proPoints) != 1 {
		t.Fatalf("len(proPoints) = %d, want 1", len(proPoints))
	}

	// A PRO run at 29s lands between NUB's best (28) and second time (29);
	// the boost should make it at least as good as the matching NUB slot.
	idx := searchSorted(req.nubTimes, 29)
	if idx < len(nubPoints) && proPoints[0] < nubPoints[idx] {
		t.Errorf("proPoints[0] = %f, want >= nubPoints[%d] = %f", proPoints[0], idx, nubPoints[idx])
	}
}

func TestComputeDistPointsBatchEmptyInputs(t *testing.T) {
	nubPoints, proPoints := computeDistPointsBatch(pointsRequest{})
	if len(nubPoints) != 0 || len(proPoints) != 0 {
		t.Errorf("expected empty results for empty input, got nub=%v pro=%v", nubPoints, proPoints)
	}
}
