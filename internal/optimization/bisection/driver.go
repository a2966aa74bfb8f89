package bisection

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/boxmin/boxmin/internal/optimization"
)

// Driver is the multi-restart wrapper around the Bisector. Restarts are
// pure CPU-bound computations that share nothing but the final
// min-reduction, so they are dispatched onto a fixed worker pool and
// merged by a single reducer.
type Driver struct {
	cfg    optimization.Config
	logger *zap.Logger
}

// NewDriver builds a restart driver. logger may be nil.
func NewDriver(cfg optimization.Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{cfg: cfg.WithDefaults(), logger: logger}
}

// restartOutcome carries one restart's result or recoverable failure
// back to the reducer.
type restartOutcome struct {
	index int
	res   *RunResult
	err   error
}

// globalBest is owned by the reducer; workers never touch it.
type globalBest struct {
	x []float64
	f float64
}

// Minimize runs up to MaxRestarts bisector runs from random starting
// points inside domain and returns the best result. Degenerate restarts
// are absorbed; only total exhaustion of the restart budget without a
// single surviving restart is fatal (AllRestartsFailedError). When the
// context is cancelled the best result accumulated so far is returned
// with Converged=false.
//
// Restart streams are seed-derived, so FBest and XBest are reproducible
// for a fixed config as long as the run is exhaustive. With Workers > 1
// and a nonzero TargetF the early stop cuts the run at a point that
// depends on worker scheduling, so RestartsUsed (and which restart
// supplied the best point) can vary between runs; use Workers = 1 when
// exact reproducibility of an early-stopped run matters.
func (d *Driver) Minimize(ctx context.Context, obj optimization.Objective, domain *optimization.Domain) (*optimization.Result, error) {
	cfg := d.cfg

	// Seed the global best from one random evaluated point, as a floor
	// for the reduction. Restart streams are derived separately, so this
	// draw does not disturb them.
	seedRNG := rand.New(rand.NewSource(cfg.Seed))
	best := globalBest{x: sampleUniform(domain, seedRNG), f: math.Inf(1)}
	if f := obj.Evaluate(best.x); isFinite(f) {
		best.f = f
	}

	if cfg.TargetF != 0 && best.f < cfg.TargetF {
		return &optimization.Result{
			XBest:     append([]float64(nil), best.x...),
			FBest:     best.f,
			Converged: true,
		}, nil
	}

	jobs := make(chan int)
	results := make(chan restartOutcome)
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- d.runRestart(ctx, obj, domain, idx)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := 0; i < cfg.MaxRestarts; i++ {
			// Checked first so an already-cancelled context never
			// dispatches work, regardless of select ordering.
			if ctx.Err() != nil {
				return
			}
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		restartsUsed int
		successes    int
		innerTotal   uint64
		outerTotal   uint64
		stopped      bool
	)
	targetReached := func() bool { return cfg.TargetF != 0 && best.f < cfg.TargetF }

	for out := range results {
		restartsUsed++
		if out.res != nil {
			innerTotal += out.res.InnerSteps
			outerTotal += out.res.OuterCycles
		}

		switch {
		case out.err == nil:
			successes++
			if out.res.F < best.f {
				copy(best.x, out.res.X)
				best.f = out.res.F
				d.logger.Info("new global best",
					zap.Int("restart", out.index),
					zap.Float64("f", best.f),
					zap.Bool("restart_converged", out.res.Converged),
				)
			}
		case isDegenerate(out.err):
			d.logger.Warn("restart degenerated",
				zap.Int("restart", out.index),
				zap.Error(out.err),
			)
		default:
			// Cancellation mid-restart: fold in whatever the bisector
			// managed to produce before the context fired.
			if out.res != nil && isFinite(out.res.F) && out.res.F < best.f {
				copy(best.x, out.res.X)
				best.f = out.res.F
			}
		}

		if !stopped && (targetReached() || ctx.Err() != nil) {
			close(stop)
			stopped = true
		}
	}

	if successes == 0 && ctx.Err() == nil {
		return nil, &optimization.AllRestartsFailedError{Restarts: restartsUsed}
	}

	res := &optimization.Result{
		XBest:            append([]float64(nil), best.x...),
		FBest:            best.f,
		Converged:        targetReached() && ctx.Err() == nil,
		RestartsUsed:     restartsUsed,
		InnerStepsTotal:  innerTotal,
		OuterCyclesTotal: outerTotal,
	}
	d.logger.Info("minimization finished",
		zap.Float64("f_best", res.FBest),
		zap.Bool("converged", res.Converged),
		zap.Int("restarts_used", res.RestartsUsed),
		zap.Uint64("inner_steps", res.InnerStepsTotal),
		zap.Uint64("outer_cycles", res.OuterCyclesTotal),
	)
	return res, nil
}

// runRestart executes one bisector run with its own deterministic RNG
// stream, derived from the master seed and the restart index.
func (d *Driver) runRestart(ctx context.Context, obj optimization.Objective, domain *optimization.Domain, idx int) restartOutcome {
	if err := ctx.Err(); err != nil {
		return restartOutcome{index: idx, err: err}
	}

	rng := rand.New(rand.NewSource(restartSeed(d.cfg.Seed, idx)))
	x0 := sampleUniform(domain, rng)

	bis := NewBisector(obj, d.cfg, rng, d.logger)
	res, err := bis.Run(ctx, x0, d.cfg.TrustRadius)
	return restartOutcome{index: idx, res: res, err: err}
}

// sampleUniform draws a point uniformly from the domain.
func sampleUniform(domain *optimization.Domain, rng *rand.Rand) []float64 {
	x := make([]float64, domain.Dim())
	for i := range x {
		x[i] = domain.Low[i] + rng.Float64()*(domain.High[i]-domain.Low[i])
	}
	return x
}

// restartSeed mixes the master seed with the restart index (splitmix64
// finalizer) so every restart gets an independent, schedule-free stream.
func restartSeed(seed int64, idx int) int64 {
	z := uint64(seed) + uint64(idx+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}

func isDegenerate(err error) bool {
	var dbe *optimization.DegenerateBoxError
	return errors.As(err, &dbe)
}
