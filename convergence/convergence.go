// Package convergence implements the elementwise trajectory stability
// test and iteration cap from spec.md §4.8. Grounded on the teacher's
// fem/s_richardson.go divergence bookkeeping (ndiverg/prevdiv counters
// driving accept/reject decisions), generalized from step-size
// accept/reject to outer-iteration convergence/timeout.
package convergence

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/strategy"
)

// Config holds the tolerances and iteration cap from spec.md §6.
type Config struct {
	EpsX     float64 // default 0.1
	EpsU     float64 // default EpsX
	MaxIters int     // default 50
}

// DefaultConfig returns spec.md §4.8's defaults.
func DefaultConfig() Config {
	return Config{EpsX: 0.1, EpsU: 0.1, MaxIters: 50}
}

// Status reports the outcome of a single convergence check.
type Status struct {
	Converged bool
	TimedOut  bool
	MaxDeltaX float64
	MaxDeltaU float64
}

// Check implements spec.md §4.8: convergence holds when the
// elementwise max-abs difference between the current and last
// operating point's state and every player's control are both within
// tolerance, on iteration n >= 1. Reaching MaxIters without meeting
// that bound is reported as a timeout, not a failure.
func Check(cfg Config, current, last *strategy.OperatingPoint, iteration int) Status {
	maxDX := maxInfNormDiff(current.X0, last.X0)
	maxDU := 0.0
	for i := 0; i < current.NumPlayers(); i++ {
		curCol := make([]*mat.VecDense, len(current.U))
		lastCol := make([]*mat.VecDense, len(last.U))
		for k := range current.U {
			curCol[k] = current.U[k][i]
			lastCol[k] = last.U[k][i]
		}
		if d := maxInfNormDiff(curCol, lastCol); d > maxDU {
			maxDU = d
		}
	}

	status := Status{MaxDeltaX: maxDX, MaxDeltaU: maxDU}
	withinTol := maxDX <= cfg.EpsX && maxDU <= cfg.EpsU
	if iteration >= 1 && withinTol {
		status.Converged = true
		return status
	}
	if iteration >= cfg.MaxIters {
		status.Converged = true
		status.TimedOut = true
	}
	return status
}

// maxInfNormDiff returns max over k of the infinity-norm distance
// between a[k] and b[k], i.e. max over k, i of |a[k][i] - b[k][i]|.
func maxInfNormDiff(a, b []*mat.VecDense) float64 {
	max := 0.0
	for k := range a {
		if d := floats.Distance(a[k].RawVector().Data, b[k].RawVector().Data, math.Inf(1)); d > max {
			max = d
		}
	}
	return max
}
