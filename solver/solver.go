// Package solver implements the outer fixed-point iteration (spec.md
// §4.4): rollout, linearize+quadraticize, solve the LQ game, modify
// the strategies, log, check convergence. Grounded on the teacher's
// fem.FEM.Run/FEsolver.Run dispatch (fem/fem.go) and its per-step
// delegation pattern (fem/s_linimp.go's solve_linear_problem called
// once per step), generalized from a single forward time loop to an
// outer fixed-point loop wrapping an inner backward solve.
package solver

import (
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/config"
	"github.com/federicomassa/ilqgames/convergence"
	"github.com/federicomassa/ilqgames/dynamics"
	"github.com/federicomassa/ilqgames/errs"
	"github.com/federicomassa/ilqgames/gamelog"
	"github.com/federicomassa/ilqgames/lqgame"
	"github.com/federicomassa/ilqgames/modifier"
	"github.com/federicomassa/ilqgames/playercost"
	"github.com/federicomassa/ilqgames/rollout"
	"github.com/federicomassa/ilqgames/strategy"
)

// Result is returned by Solve on success (including convergence
// timeout, which spec.md §7 treats as success).
type Result struct {
	OperatingPoint *strategy.OperatingPoint
	Strategies     []*strategy.Strategy
	Log            *gamelog.Log
	Iterations     int
	TimedOut       bool
}

// Input bundles everything Solve needs besides configuration: the
// true nonlinear dynamics, each player's cost, the true initial
// state, and optionally a warm-started operating point/strategies
// from a previous Solve call (SPEC_FULL.md §C.3).
type Input struct {
	Dynamics      dynamics.Dynamics
	Costs         []playercost.PlayerCost
	X0            []float64
	InitialOp     *strategy.OperatingPoint // optional warm start
	InitialStrats []*strategy.Strategy     // optional warm start
	Logger        *zerolog.Logger          // nil disables logging
}

// Solve runs the outer loop described in spec.md §4.4 to completion,
// returning an approximate feedback Nash equilibrium (Strategies) and
// its nominal trajectory (OperatingPoint), or a *errs.ConfigError,
// *errs.LinAlgFailure, or *errs.ModifierFailure on the conditions
// spec.md §7 names.
func Solve(in Input, opts *config.Options, mod modifier.Modifier) (*Result, error) {
	if err := validateInput(in, opts); err != nil {
		return nil, err
	}

	N := in.Dynamics.NumPlayers()
	xDim := in.Dynamics.XDim()
	uDims := make([]int, N)
	for i := range uDims {
		uDims[i] = in.Dynamics.UDim(i)
	}
	T := opts.Steps
	dt := opts.TimeStep

	last := in.InitialOp
	if last == nil {
		last = strategy.NewOperatingPoint(T, xDim, uDims, 0)
		for k := 0; k < T; k++ {
			copy(vecDataRef(last.X0[k]), in.X0)
		}
	}

	strategies := in.InitialStrats
	if strategies == nil {
		strategies = make([]*strategy.Strategy, N)
		for i := range strategies {
			strategies[i] = strategy.NewStrategy(T, uDims[i], xDim)
		}
	}

	convCfg := convergence.Config{
		EpsX:     opts.ConvergenceTolerance,
		EpsU:     opts.ConvergenceTolerance,
		MaxIters: opts.MaxIterations,
	}

	log := &gamelog.Log{}

	logger := zerolog.Nop()
	if in.Logger != nil {
		logger = *in.Logger
	}

	for iteration := 0; ; iteration++ {
		current, err := rollout.Rollout(in.Dynamics, last, strategies, in.X0, dt, opts.OpenLoop)
		if err != nil {
			return nil, err
		}

		lin := linearizeAll(in.Dynamics, current, dt)
		quad := quadraticizeAll(in.Costs, current, dt)

		candidateResult, err := lqgame.Solve(lin, quad, xDim, uDims)
		if err != nil {
			return nil, err
		}

		evaluate := func(trial []*strategy.Strategy) (float64, error) {
			trialOp, err := rollout.Rollout(in.Dynamics, current, trial, in.X0, dt, opts.OpenLoop)
			if err != nil {
				return 0, err
			}
			total := 0.0
			for _, c := range in.Costs {
				total += trajectoryCost(c, trialOp, dt)
			}
			return total, nil
		}

		modified, err := mod.Modify(candidateResult.Strategies, evaluate)
		if err != nil {
			return nil, err
		}

		totalCosts := make([]float64, N)
		stateCosts := make([]float64, N)
		controlCosts := make([]float64, N)
		for i, c := range in.Costs {
			totalCosts[i] = trajectoryCost(c, current, dt)
			stateCosts[i], controlCosts[i] = trajectoryCostBreakdown(c, current, dt)
		}
		log.Append(gamelog.Entry{
			OperatingPoint: current,
			Strategies:     modified,
			TotalCost:      totalCosts,
			StateCost:      stateCosts,
			ControlCost:    controlCosts,
		})

		// The first pass compares against the initial operating point
		// rather than a previous rollout, so Check gets the zero-based
		// pass index and cannot report convergence on it; the iteration
		// cap counts completed passes.
		status := convergence.Check(convCfg, current, last, iteration)
		if !status.Converged && iteration+1 >= convCfg.MaxIters {
			status.Converged = true
			status.TimedOut = true
		}
		logger.Debug().
			Int("iteration", iteration).
			Float64("max_delta_x", status.MaxDeltaX).
			Float64("max_delta_u", status.MaxDeltaU).
			Bool("converged", status.Converged).
			Bool("timed_out", status.TimedOut).
			Msg("ilq iteration")

		if status.Converged {
			return &Result{
				OperatingPoint: current,
				Strategies:     modified,
				Log:            log,
				Iterations:     iteration + 1,
				TimedOut:       status.TimedOut,
			}, nil
		}

		strategies = modified
		last = current
	}
}

func vecDataRef(v *mat.VecDense) []float64 {
	return v.RawVector().Data
}

func validateInput(in Input, opts *config.Options) error {
	if in.Dynamics == nil {
		return errs.NewConfigError("solver: Dynamics is required")
	}
	N := in.Dynamics.NumPlayers()
	if len(in.Costs) != N {
		return errs.NewConfigError("solver: %d costs for %d players", len(in.Costs), N)
	}
	if len(in.X0) != in.Dynamics.XDim() {
		return errs.NewConfigError("solver: initial state dim %d != dynamics XDim %d", len(in.X0), in.Dynamics.XDim())
	}
	if opts == nil {
		return errs.NewConfigError("solver: Options is required")
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	return nil
}

func linearizeAll(d dynamics.Dynamics, op *strategy.OperatingPoint, dt float64) []*strategy.LinearDynamicsApproximation {
	T := op.Horizon()
	out := make([]*strategy.LinearDynamicsApproximation, T)
	for k := 0; k < T; k++ {
		t := op.T0 + float64(k)*dt
		x := vecToSlice(op.X0[k])
		u := make([][]float64, len(op.U[k]))
		for i := range u {
			u[i] = vecToSlice(op.U[k][i])
		}
		A, B := d.Linearize(t, dt, x, u)
		out[k] = &strategy.LinearDynamicsApproximation{A: A, B: B}
	}
	return out
}

func quadraticizeAll(costs []playercost.PlayerCost, op *strategy.OperatingPoint, dt float64) [][]*strategy.QuadraticCostApproximation {
	T := op.Horizon()
	out := make([][]*strategy.QuadraticCostApproximation, T)
	for k := 0; k < T; k++ {
		t := op.T0 + float64(k)*dt
		x := vecToSlice(op.X0[k])
		u := make([][]float64, len(op.U[k]))
		for i := range u {
			u[i] = vecToSlice(op.U[k][i])
		}
		row := make([]*strategy.QuadraticCostApproximation, len(costs))
		for i, c := range costs {
			row[i] = c.Quadraticize(t, x, u)
		}
		out[k] = row
	}
	return out
}

func vecToSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}

// trajectoryCost accumulates total cost over the horizon, applying
// spec.md §4.6's risk-sensitive accumulation (sum of exp(a*c_k), then
// log(total)/a) when the cost is exponentiated.
func trajectoryCost(c playercost.PlayerCost, op *strategy.OperatingPoint, dt float64) float64 {
	a, exponentiated := c.IsExponentiated()
	total := 0.0
	for k := 0; k < op.Horizon(); k++ {
		t := op.T0 + float64(k)*dt
		x := vecToSlice(op.X0[k])
		u := make([][]float64, len(op.U[k]))
		for i := range u {
			u[i] = vecToSlice(op.U[k][i])
		}
		total += c.Evaluate(t, x, u)
	}
	if exponentiated {
		return math.Log(total) / a
	}
	return total
}

// trajectoryCostBreakdown sums the (un-exponentiated) per-step state
// and control cost subtotals across the horizon.
func trajectoryCostBreakdown(c playercost.PlayerCost, op *strategy.OperatingPoint, dt float64) (stateCost, controlCost float64) {
	for k := 0; k < op.Horizon(); k++ {
		t := op.T0 + float64(k)*dt
		x := vecToSlice(op.X0[k])
		u := make([][]float64, len(op.U[k]))
		for i := range u {
			u[i] = vecToSlice(op.U[k][i])
		}
		_, s, ctl := c.EvaluateBreakdown(t, x, u)
		stateCost += s
		controlCost += ctl
	}
	return stateCost, controlCost
}
