// Package optimization defines the shared types of the boxmin solver:
// the objective capability supplied by callers, the search domain, the
// solver configuration and the result of a minimization run.
package optimization

import (
	"fmt"
	"math"
)

// Objective is the capability a caller supplies to the solver. Both
// methods must be pure and defined over the whole domain; non-finite
// outputs are detected by the solver and treated as degeneracy.
type Objective interface {
	// Evaluate returns f(x).
	Evaluate(x []float64) float64

	// Gradient returns ∇f(x) as a fresh slice of the same length as x.
	Gradient(x []float64) []float64
}

// Domain is a per-dimension box of lower/upper bounds from which restart
// points are sampled. It is validated once at construction and never
// mutated afterwards.
type Domain struct {
	Low  []float64
	High []float64
}

// NewDomain builds a Domain, failing with InvalidDomainError if any
// dimension has low >= high or a non-finite bound.
func NewDomain(low, high []float64) (*Domain, error) {
	if len(low) == 0 || len(low) != len(high) {
		return nil, &InvalidDomainError{
			Dim:    -1,
			Reason: fmt.Sprintf("bound lengths %d and %d", len(low), len(high)),
		}
	}
	for i := range low {
		if !isFinite(low[i]) || !isFinite(high[i]) {
			return nil, &InvalidDomainError{Dim: i, Low: low[i], High: high[i], Reason: "non-finite bound"}
		}
		if low[i] >= high[i] {
			return nil, &InvalidDomainError{Dim: i, Low: low[i], High: high[i], Reason: "low >= high"}
		}
	}
	d := &Domain{
		Low:  append([]float64(nil), low...),
		High: append([]float64(nil), high...),
	}
	return d, nil
}

// NewSymmetricDomain builds the box [-radius, radius]^dim.
func NewSymmetricDomain(dim int, radius float64) (*Domain, error) {
	if dim < 1 {
		return nil, &InvalidDomainError{Dim: -1, Reason: fmt.Sprintf("dimension %d", dim)}
	}
	low := make([]float64, dim)
	high := make([]float64, dim)
	for i := range low {
		low[i] = -radius
		high[i] = radius
	}
	return NewDomain(low, high)
}

// Dim returns the dimensionality of the domain.
func (d *Domain) Dim() int { return len(d.Low) }

// Config holds every tunable of a minimization run. All values are
// explicit; zero values are replaced by the documented defaults below.
type Config struct {
	// EpsilonInner is the inner bisection tolerance: the inner loop ends
	// when consecutive iterates are within this Euclidean distance.
	EpsilonInner float64

	// EpsilonOuter is the outer relative-change tolerance on the iterate.
	EpsilonOuter float64

	// MaxOuterIterations bounds the outer loop of a single restart.
	// Exhausting it is a soft outcome, not an error.
	MaxOuterIterations int

	// MaxRestarts bounds the number of restarts the driver attempts.
	MaxRestarts int

	// TargetF stops the search early once the global best drops below
	// it. Zero disables the early stop.
	TargetF float64

	// Seed is the master seed. Per-restart streams are derived from it,
	// so results are reproducible regardless of worker scheduling.
	Seed int64

	// Workers is the number of restarts executed concurrently.
	Workers int

	// TrustRadius is the initial trust-region radius of each restart.
	TrustRadius float64
}

// Default tolerances, used when the corresponding Config field is zero.
const (
	DefaultEpsilonInner       = 1e-10
	DefaultEpsilonOuter       = 1e-6
	DefaultMaxOuterIterations = 200
	DefaultMaxRestarts        = 100
	DefaultTrustRadius        = 2.0
)

// WithDefaults returns a copy of c with zero fields replaced by the
// documented defaults.
func (c Config) WithDefaults() Config {
	if c.EpsilonInner <= 0 {
		c.EpsilonInner = DefaultEpsilonInner
	}
	if c.EpsilonOuter <= 0 {
		c.EpsilonOuter = DefaultEpsilonOuter
	}
	if c.MaxOuterIterations <= 0 {
		c.MaxOuterIterations = DefaultMaxOuterIterations
	}
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = DefaultMaxRestarts
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.TrustRadius <= 0 {
		c.TrustRadius = DefaultTrustRadius
	}
	return c
}

// Result is the outcome of a full multi-restart minimization.
type Result struct {
	// XBest is the best point found across all restarts.
	XBest []float64

	// FBest is the objective value at XBest.
	FBest float64

	// Converged reports whether FBest reached the target threshold.
	Converged bool

	// RestartsUsed is the number of restarts completed, successful or
	// degenerate, before the run ended.
	RestartsUsed int

	// InnerStepsTotal and OuterCyclesTotal aggregate the per-restart
	// iteration counters.
	InnerStepsTotal  uint64
	OuterCyclesTotal uint64
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
