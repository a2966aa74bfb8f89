// Package bisection implements the trust-region bisection solver: a
// derivative-guided local minimizer that narrows a per-dimension box
// instead of taking gradient-descent steps, and a multi-restart driver
// that turns it into a heuristic global search.
package bisection

import (
	"github.com/boxmin/boxmin/internal/optimization"
)

// Side selects which bound of a Box dimension a shrink applies to.
type Side int

const (
	// SideLow moves the lower bound up.
	SideLow Side = iota
	// SideHigh moves the upper bound down.
	SideHigh
)

// Box is the current trust region: a hyper-rectangle with the invariant
// Low[i] < High[i] for every dimension. A Box that violates the
// invariant is degenerate and must never be evaluated against.
type Box struct {
	Low  []float64
	High []float64
}

// NewBox builds a Box from copies of the given bounds, failing with
// DegenerateBoxError if the invariant does not hold.
func NewBox(low, high []float64) (*Box, error) {
	b := &Box{
		Low:  append([]float64(nil), low...),
		High: append([]float64(nil), high...),
	}
	if err := b.Validate("new box"); err != nil {
		return nil, err
	}
	return b, nil
}

// NewCenteredBox builds the box [center-radius, center+radius] per
// dimension.
func NewCenteredBox(center []float64, radius float64) (*Box, error) {
	low := make([]float64, len(center))
	high := make([]float64, len(center))
	for i, c := range center {
		low[i] = c - radius
		high[i] = c + radius
	}
	return NewBox(low, high)
}

// Dim returns the dimensionality of the box.
func (b *Box) Dim() int { return len(b.Low) }

// Validate checks the invariant Low[i] < High[i] for every i. The op
// string names the caller's operation for error context.
func (b *Box) Validate(op string) error {
	for i := range b.Low {
		if !(b.Low[i] < b.High[i]) {
			return &optimization.DegenerateBoxError{Op: op, Dim: i}
		}
	}
	return nil
}

// ContainsStrictly reports whether x lies strictly inside the box.
func (b *Box) ContainsStrictly(x []float64) bool {
	for i, v := range x {
		if v <= b.Low[i] || v >= b.High[i] {
			return false
		}
	}
	return true
}

// Contains reports whether x lies inside the box, bounds included.
func (b *Box) Contains(x []float64) bool {
	for i, v := range x {
		if v < b.Low[i] || v > b.High[i] {
			return false
		}
	}
	return true
}

// Midpoint writes the box center into dst and returns it. dst must have
// the box's dimension.
func (b *Box) Midpoint(dst []float64) []float64 {
	for i := range dst {
		dst[i] = (b.Low[i] + b.High[i]) / 2
	}
	return dst
}

// Width returns High[i] - Low[i].
func (b *Box) Width(i int) float64 { return b.High[i] - b.Low[i] }

// ShrinkTo moves one bound of dimension i to boundary, failing with
// DegenerateBoxError if the move would collapse the dimension. Callers
// must treat the error as fatal to the run, never clamp.
func (b *Box) ShrinkTo(i int, boundary float64, side Side) error {
	switch side {
	case SideLow:
		if !(boundary < b.High[i]) {
			return &optimization.DegenerateBoxError{Op: "shrink low", Dim: i}
		}
		b.Low[i] = boundary
	case SideHigh:
		if !(b.Low[i] < boundary) {
			return &optimization.DegenerateBoxError{Op: "shrink high", Dim: i}
		}
		b.High[i] = boundary
	}
	return nil
}
