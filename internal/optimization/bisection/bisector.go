package bisection

import (
	"context"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/boxmin/boxmin/internal/optimization"
)

// jitterScale scales the Gaussian perturbation applied to the previous
// outer iterate when the next trust-region radius is recomputed.
const jitterScale = 0.1

// Bisector is the local solver: a nested loop that bisects a trust
// region guided by gradient signs. One Bisector owns one run; it is not
// safe for concurrent use.
type Bisector struct {
	obj    optimization.Objective
	rng    *rand.Rand
	logger *zap.Logger

	epsInner float64
	epsOuter float64
	maxOuter int

	innerSteps  uint64
	outerCycles uint64
}

// RunResult is the outcome of a single Bisector run.
type RunResult struct {
	X []float64
	F float64

	// Converged is false when the outer loop hit its iteration budget or
	// was cancelled before the relative-change criterion was met.
	Converged bool

	InnerSteps  uint64
	OuterCycles uint64
}

// innerState is the per-outer-iteration scratch. It is created at the
// start of each outer cycle and discarded at its end.
type innerState struct {
	box    *Box
	y      []float64
	fy     float64
	xBest  []float64
	fxBest float64
}

// outerState is the evolving candidate solution of one run.
type outerState struct {
	x      []float64
	fx     float64
	radius float64
	xPrev  []float64
}

// NewBisector builds a local solver around the objective. The RNG
// drives the radius jitter and must be owned by the caller; logger may
// be nil.
func NewBisector(obj optimization.Objective, cfg optimization.Config, rng *rand.Rand, logger *zap.Logger) *Bisector {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bisector{
		obj:      obj,
		rng:      rng,
		logger:   logger,
		epsInner: cfg.EpsilonInner,
		epsOuter: cfg.EpsilonOuter,
		maxOuter: cfg.MaxOuterIterations,
	}
}

// Run minimizes the objective starting from x0 with the given initial
// trust-region radius. It returns a DegenerateBoxError when the box
// collapses or an evaluation turns non-finite; the caller decides
// whether that is recoverable. Exhausting the outer budget is a soft
// outcome: the best point found is returned with Converged=false.
// Cancellation is checked at every outer-iteration boundary and returns
// the progress so far alongside the context error.
func (b *Bisector) Run(ctx context.Context, x0 []float64, radius float64) (*RunResult, error) {
	dim := len(x0)
	st := &outerState{
		x:      append([]float64(nil), x0...),
		fx:     math.Inf(1),
		radius: radius,
		xPrev:  make([]float64, dim),
	}

	converged := false
	for cycle := 0; cycle < b.maxOuter; cycle++ {
		if err := ctx.Err(); err != nil {
			return b.result(st, false), err
		}
		copy(st.xPrev, st.x)

		if err := b.outerCycle(st); err != nil {
			return nil, err
		}
		b.outerCycles++

		b.logger.Debug("outer cycle",
			zap.Int("cycle", cycle),
			zap.Float64("f", st.fx),
			zap.Float64("radius", st.radius),
			zap.Uint64("inner_steps", b.innerSteps),
		)

		if maxRelChange(st.x, st.xPrev) <= b.epsOuter {
			converged = true
			break
		}
	}

	return b.result(st, converged), nil
}

// outerCycle runs one inner-loop convergence, the endpoint selection
// and the radius recomputation, mutating st in place.
func (b *Bisector) outerCycle(st *outerState) error {
	dim := len(st.x)

	box, err := NewCenteredBox(st.x, st.radius)
	if err != nil {
		return err
	}
	inner := &innerState{
		box:    box,
		y:      make([]float64, dim),
		fy:     math.Inf(1),
		fxBest: math.Inf(1),
	}
	for i := range inner.y {
		inner.y[i] = math.Inf(1)
	}

	if err := b.innerLoop(st, inner); err != nil {
		return err
	}

	// Inner loop done: pick the best of the two surviving endpoints and
	// the best interior point seen, ties resolved in that order.
	if err := box.Validate("endpoint evaluation"); err != nil {
		return err
	}
	fLow := b.obj.Evaluate(box.Low)
	fHigh := b.obj.Evaluate(box.High)
	if !isFinite(fLow) || !isFinite(fHigh) {
		return &optimization.DegenerateBoxError{Op: "endpoint evaluation", Dim: -1}
	}

	candX := [][]float64{box.Low, box.High, inner.xBest}
	candF := []float64{fLow, fHigh, inner.fxBest}
	pick := 0
	for i := 1; i < len(candX); i++ {
		if candX[i] != nil && candF[i] < candF[pick] {
			pick = i
		}
	}
	copy(st.x, candX[pick])
	st.fx = candF[pick]

	// Re-randomize the next box size against a jittered copy of the
	// previous iterate. The jitter doubles as an anti-stagnation nudge.
	jittered := make([]float64, dim)
	for i := range jittered {
		jittered[i] = st.xPrev[i] + jitterScale*b.epsInner*b.rng.NormFloat64()
	}
	st.radius = floats.Distance(st.x, jittered, 2)
	return nil
}

// innerLoop bisects the box until consecutive iterates are within
// epsInner of each other.
func (b *Bisector) innerLoop(st *outerState, inner *innerState) error {
	dim := len(st.x)

	for floats.Distance(st.x, inner.y, 2) > b.epsInner {
		if err := inner.box.Validate("inner step"); err != nil {
			return err
		}

		fx := b.obj.Evaluate(st.x)
		grad := b.obj.Gradient(st.x)
		if !isFinite(fx) || len(grad) != dim || !allFinite(grad) {
			return &optimization.DegenerateBoxError{Op: "evaluate", Dim: -1}
		}

		if fx <= inner.fy {
			// The step did not worsen: the gradient sign says which half
			// of each dimension still holds a descent direction.
			for i := 0; i < dim; i++ {
				if grad[i] > 0 {
					if err := inner.box.ShrinkTo(i, st.x[i], SideHigh); err != nil {
						return err
					}
				} else {
					if err := inner.box.ShrinkTo(i, st.x[i], SideLow); err != nil {
						return err
					}
				}
			}
		} else {
			// Worsening step: halve against the previous point instead.
			// Empirical fallback, no descent guarantee.
			for i := 0; i < dim; i++ {
				if st.x[i] > inner.y[i] {
					if err := inner.box.ShrinkTo(i, st.x[i], SideHigh); err != nil {
						return err
					}
				} else {
					if err := inner.box.ShrinkTo(i, st.x[i], SideLow); err != nil {
						return err
					}
				}
			}
		}

		if fx < inner.fxBest {
			if inner.xBest == nil {
				inner.xBest = make([]float64, dim)
			}
			copy(inner.xBest, st.x)
			inner.fxBest = fx
		}

		copy(inner.y, st.x)
		inner.fy = fx
		inner.box.Midpoint(st.x)
		b.innerSteps++
	}
	return nil
}

func (b *Bisector) result(st *outerState, converged bool) *RunResult {
	return &RunResult{
		X:           append([]float64(nil), st.x...),
		F:           st.fx,
		Converged:   converged,
		InnerSteps:  b.innerSteps,
		OuterCycles: b.outerCycles,
	}
}

// maxRelChange is the outer convergence measure max_i |x_i/prev_i - 1|.
// A coordinate whose previous value is zero counts as an infinite
// change unless the current value is zero too.
func maxRelChange(x, prev []float64) float64 {
	maxChange := 0.0
	for i := range x {
		var c float64
		switch {
		case prev[i] != 0:
			c = math.Abs(x[i]/prev[i] - 1)
		case x[i] != 0:
			c = math.Inf(1)
		}
		if c > maxChange {
			maxChange = c
		}
	}
	return maxChange
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if !isFinite(x) {
			return false
		}
	}
	return true
}
