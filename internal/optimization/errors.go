package optimization

import "fmt"

// InvalidDomainError reports a search domain whose bounds are unusable.
// It is raised at setup, before any objective evaluation.
type InvalidDomainError struct {
	// Dim is the offending dimension, or -1 when the domain as a whole
	// is malformed.
	Dim    int
	Low    float64
	High   float64
	Reason string
}

func (e *InvalidDomainError) Error() string {
	if e.Dim < 0 {
		return fmt.Sprintf("invalid domain: %s", e.Reason)
	}
	return fmt.Sprintf("invalid domain: dimension %d [%g, %g]: %s", e.Dim, e.Low, e.High, e.Reason)
}

// DegenerateBoxError reports a trust-region collapse or a non-finite
// objective/gradient value. It aborts the restart that produced it; the
// driver treats it as recoverable and moves on to the next restart.
type DegenerateBoxError struct {
	// Op is the operation during which the degeneracy was detected.
	Op string
	// Dim is the collapsed dimension, or -1 when the failure is not
	// tied to a single dimension (e.g. a non-finite value).
	Dim int
	// Err is the underlying cause, if any.
	Err error
}

func (e *DegenerateBoxError) Error() string {
	msg := "degenerate box"
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Dim >= 0 {
		msg = fmt.Sprintf("%s: dimension %d", msg, e.Dim)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *DegenerateBoxError) Unwrap() error { return e.Err }

// AllRestartsFailedError is the only fatal top-level condition: every
// restart within the budget degenerated.
type AllRestartsFailedError struct {
	Restarts int
}

func (e *AllRestartsFailedError) Error() string {
	return fmt.Sprintf("all %d restarts degenerated", e.Restarts)
}
