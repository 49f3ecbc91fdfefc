package points

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/kz-league/cs2kz-api/internal/telemetry"
)

// requestCapacity bounds the worker's inbound queue; callers see
// backpressure (a full channel) rather than unbounded growth.
const requestCapacity = 64

type fitRequest struct {
	times []float64
	reply chan fitResult
}

type fitResult struct {
	dist DistributionParameters
	err  error
}

// pointRequest is a single record's point computation, dispatched through
// the worker so the protocol goroutine that calls SubmitRecord never
// computes points itself (§4.3, §4.4).
type pointRequest struct {
	time     float64
	bestTime float64
	dist     DistributionParameters
	size     int32
	tier     int8
	rank     int32
	reply    chan float64
}

type pointsRequest struct {
	nubTimes []float64
	nubDist  DistributionParameters
	nubTier  int8
	proTimes []float64
	proDist  DistributionParameters
	proTier  int8
	reply    chan pointsResult
}

type pointsResult struct {
	nubPoints []float64
	proPoints []float64
}

// Worker is the single dedicated goroutine that owns the NIG-fitting code
// path. It is pinned to its own OS thread via runtime.LockOSThread, per
// §4.4 and §9's requirement that the scientific library be isolated from
// the cooperative scheduler the rest of the service shares.
type Worker struct {
	fitCh    chan fitRequest
	pointsCh chan pointsRequest
	pointCh  chan pointRequest
	shutdown chan chan struct{}
	logger   *slog.Logger
}

func NewWorker(logger *slog.Logger) *Worker {
	return &Worker{
		fitCh:    make(chan fitRequest, requestCapacity),
		pointsCh: make(chan pointsRequest, requestCapacity),
		pointCh:  make(chan pointRequest, requestCapacity),
		shutdown: make(chan chan struct{}),
		logger:   logger,
	}
}

// Run blocks, processing requests serially until Shutdown is called or ctx
// is cancelled. It must be started in its own goroutine; callers should
// expect it to call runtime.LockOSThread for its entire lifetime.
func (w *Worker) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("points worker panicked, worker is dead", "panic", r)
		}
	}()

	for {
		telemetry.PointsWorkerQueueDepth.Set(float64(len(w.fitCh) + len(w.pointsCh) + len(w.pointCh)))

		select {
		case req := <-w.fitCh:
			start := time.Now()
			dist, err := Fit(req.times)
			telemetry.PointsWorkerDuration.Observe(time.Since(start).Seconds())
			req.reply <- fitResult{dist: dist, err: err}

		case req := <-w.pointCh:
			start := time.Now()
			p := DistributionComponent(req.time, req.bestTime, req.dist, int(req.size), req.tier) +
				RankComponent(req.rank, req.size, req.tier)
			telemetry.PointsWorkerDuration.Observe(time.Since(start).Seconds())
			req.reply <- p

		case req := <-w.pointsCh:
			start := time.Now()
			nubPoints, proPoints := computeDistPointsBatch(req)
			telemetry.PointsWorkerDuration.Observe(time.Since(start).Seconds())
			req.reply <- pointsResult{nubPoints: nubPoints, proPoints: proPoints}

		case ack := <-w.shutdown:
			close(ack)
			return

		case <-ctx.Done():
			return
		}
	}
}

// Shutdown asks the worker to exit and blocks until it acknowledges,
// satisfying §4.4's "shutdown is cooperative via a signal that is ack'd
// back before the worker exits".
func (w *Worker) Shutdown(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case w.shutdown <- ack:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CalculateDistribution fits a NIG distribution to times, dispatching the
// work to the worker goroutine and blocking until it replies or ctx is
// done. Timeouts on individual jobs are the caller's responsibility, per
// §4.4.
func (w *Worker) CalculateDistribution(ctx context.Context, times []float64) (DistributionParameters, error) {
	reply := make(chan fitResult, 1)
	select {
	case w.fitCh <- fitRequest{times: times, reply: reply}:
	case <-ctx.Done():
		return DistributionParameters{}, ctx.Err()
	default:
		return DistributionParameters{}, fmt.Errorf("points: worker queue full")
	}

	select {
	case res := <-reply:
		return res.dist, res.err
	case <-ctx.Done():
		return DistributionParameters{}, ctx.Err()
	}
}

// CalculatePoint computes the points a single record earns — the
// distribution component plus the rank component — on the worker goroutine,
// per §4.3's requirement that SubmitRecord never perform this computation
// inline on the protocol goroutine.
func (w *Worker) CalculatePoint(ctx context.Context, recordTime, bestTime float64, dist DistributionParameters, size int32, tier int8, rank int32) (float64, error) {
	reply := make(chan float64, 1)
	req := pointRequest{time: recordTime, bestTime: bestTime, dist: dist, size: size, tier: tier, rank: rank, reply: reply}
	select {
	case w.pointCh <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
		return 0, fmt.Errorf("points: worker queue full")
	}

	select {
	case p := <-reply:
		return p, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// CalculateDistPoints is the batch form of §4.3's distribution component,
// computed for every NUB and PRO record at once so the worker amortizes
// the per-call dispatch cost.
func (w *Worker) CalculateDistPoints(ctx context.Context, nubTimes []float64, nubDist DistributionParameters, nubTier int8, proTimes []float64, proDist DistributionParameters, proTier int8) (nubPoints, proPoints []float64, err error) {
	reply := make(chan pointsResult, 1)
	req := pointsRequest{
		nubTimes: nubTimes, nubDist: nubDist, nubTier: nubTier,
		proTimes: proTimes, proDist: proDist, proTier: proTier,
		reply: reply,
	}
	select {
	case w.pointsCh <- req:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
		return nil, nil, fmt.Errorf("points: worker queue full")
	}

	select {
	case res := <-reply:
		return res.nubPoints, res.proPoints, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func computeDistPointsBatch(req pointsRequest) (nubPoints, proPoints []float64) {
	nubPoints = make([]float64, len(req.nubTimes))
	var nubBest float64
	if len(req.nubTimes) > 0 {
		nubBest = req.nubTimes[0]
	}
	for i, t := range req.nubTimes {
		nubPoints[i] = DistributionComponent(t, nubBest, req.nubDist, len(req.nubTimes), req.nubTier)
	}

	proPoints = make([]float64, len(req.proTimes))
	var proBest float64
	if len(req.proTimes) > 0 {
		proBest = req.proTimes[0]
	}
	for i, t := range req.proTimes {
		proDistPoints := DistributionComponent(t, proBest, req.proDist, len(req.proTimes), req.proTier)

		// PRO entries are boosted by the NUB distribution at the
		// NUB-equivalent rank: binary-search the NUB times for where this
		// PRO time would land, per §4.3 and the open question in §9(a).
		// When the PRO time betters the NUB #1, idx is 0 and the NUB #1
		// points are the comparison. When the PRO time is slower than
		// every NUB time (idx == len), there is no NUB slot to compare
		// against, so no boost applies.
		idx := searchSorted(req.nubTimes, t)
		if idx < len(req.nubTimes) {
			nubEquivalent := nubPoints[idx]
			if nubEquivalent > proDistPoints {
				proDistPoints = nubEquivalent
			}
		}
		proPoints[i] = proDistPoints
	}

	return nubPoints, proPoints
}

// searchSorted returns the index of the first element >= t in a slice
// sorted ascending.
func searchSorted(times []float64, t float64) int {
	lo, hi := 0, len(times)
	for lo < hi {
		mid := (lo + hi) / 2
		if times[mid] < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
