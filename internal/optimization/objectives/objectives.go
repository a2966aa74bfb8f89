// Package objectives provides benchmark objective functions with
// analytic gradients, used by the test suite and exposed by name
// through the minimization service.
package objectives

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Sphere is f(x) = Σ x_i², minimized at the origin.
type Sphere struct{}

func (Sphere) Evaluate(x []float64) float64 {
	return floats.Dot(x, x)
}

func (Sphere) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * v
	}
	return g
}

// ShiftedSphere is f(x) = Σ (x_i - c_i)², minimized at Center.
type ShiftedSphere struct {
	Center []float64
}

// NewShiftedSphere copies center into an immutable objective.
func NewShiftedSphere(center []float64) *ShiftedSphere {
	return &ShiftedSphere{Center: append([]float64(nil), center...)}
}

func (s *ShiftedSphere) Evaluate(x []float64) float64 {
	sum := 0.0
	for i, v := range x {
		d := v - s.Center[i]
		sum += d * d
	}
	return sum
}

func (s *ShiftedSphere) Gradient(x []float64) []float64 {
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2 * (v - s.Center[i])
	}
	return g
}

// TwoCosine is f(x) = Σ x_i² − cos(v1·x) − cos(v2·x) + 2: a multimodal
// surface with global minimum 0 at the origin. The direction vectors
// are fixed at construction and never mutated.
type TwoCosine struct {
	v1 []float64
	v2 []float64
}

// NewTwoCosine copies the given direction vectors, which must share the
// problem dimension.
func NewTwoCosine(v1, v2 []float64) *TwoCosine {
	return &TwoCosine{
		v1: append([]float64(nil), v1...),
		v2: append([]float64(nil), v2...),
	}
}

// NewRandomTwoCosine draws both direction vectors uniformly from
// (-1, 1)^dim using a stream seeded with seed, so a fixed seed pins the
// surface exactly.
func NewRandomTwoCosine(dim int, seed int64) *TwoCosine {
	rng := rand.New(rand.NewSource(seed))
	v1 := make([]float64, dim)
	v2 := make([]float64, dim)
	for i := range v1 {
		v1[i] = 2*rng.Float64() - 1
	}
	for i := range v2 {
		v2[i] = 2*rng.Float64() - 1
	}
	return &TwoCosine{v1: v1, v2: v2}
}

func (t *TwoCosine) Evaluate(x []float64) float64 {
	return floats.Dot(x, x) - math.Cos(floats.Dot(t.v1, x)) - math.Cos(floats.Dot(t.v2, x)) + 2
}

func (t *TwoCosine) Gradient(x []float64) []float64 {
	s1 := math.Sin(floats.Dot(t.v1, x))
	s2 := math.Sin(floats.Dot(t.v2, x))
	g := make([]float64, len(x))
	for i, v := range x {
		g[i] = 2*v + s1*t.v1[i] + s2*t.v2[i]
	}
	return g
}
