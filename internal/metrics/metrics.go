// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MinimizationsTotal counts finished minimization jobs by terminal
	// status (completed, failed, cancelled).
	MinimizationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "boxmin_minimizations_total",
		Help: "Finished minimization jobs by terminal status.",
	}, []string{"status"})

	// MinimizationsActive tracks jobs currently running.
	MinimizationsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "boxmin_minimizations_active",
		Help: "Minimization jobs currently running.",
	})

	// RestartsTotal counts restarts consumed across all jobs.
	RestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmin_restarts_total",
		Help: "Restarts consumed across all minimization jobs.",
	})

	// InnerStepsTotal counts inner bisection steps across all jobs.
	InnerStepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmin_inner_steps_total",
		Help: "Inner bisection steps across all minimization jobs.",
	})

	// OuterCyclesTotal counts outer trust-region cycles across all jobs.
	OuterCyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "boxmin_outer_cycles_total",
		Help: "Outer trust-region cycles across all minimization jobs.",
	})
)

// ObserveResult folds one finished job's counters into the collectors.
func ObserveResult(status string, restarts int, innerSteps, outerCycles uint64) {
	MinimizationsTotal.WithLabelValues(status).Inc()
	RestartsTotal.Add(float64(restarts))
	InnerStepsTotal.Add(float64(innerSteps))
	OuterCyclesTotal.Add(float64(outerCycles))
}
