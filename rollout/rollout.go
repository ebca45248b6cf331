// Package rollout implements the forward-integration step (spec.md
// §4.5): applying the current affine feedback strategies through the
// true nonlinear dynamics to regenerate the operating point. Grounded
// on the teacher's fem/s_linimp.go time loop (state/rate arrays
// updated step by step, truth dynamics advanced once per step),
// generalized from an implicit FEM step to an explicit nonlinear
// integration under feedback.
package rollout

import (
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/dynamics"
	"github.com/federicomassa/ilqgames/errs"
	"github.com/federicomassa/ilqgames/strategy"
)

// Rollout produces a new operating point from lastOp (the point the
// strategies were linearized/quadraticized about), the current
// strategies, and the true initial state x0. openLoop, when true,
// forces x_delta(k) = 0 at every step (spec.md §6 "open_loop" option)
// so only the feedforward offsets act.
//
// Sign convention: u_i(k) = u_hat_last_i(k) - P_i(k)*x_delta(k) -
// alpha_i(k), mirroring lqgame.Solve's convention exactly (spec.md §9).
func Rollout(d dynamics.Dynamics, lastOp *strategy.OperatingPoint, strategies []*strategy.Strategy, x0 []float64, dt float64, openLoop bool) (*strategy.OperatingPoint, error) {
	T := lastOp.Horizon()
	N := d.NumPlayers()
	if len(strategies) != N {
		return nil, errs.NewConfigError("rollout: %d strategies for %d players", len(strategies), N)
	}
	xDim := d.XDim()
	uDims := make([]int, N)
	for i := 0; i < N; i++ {
		uDims[i] = d.UDim(i)
	}

	out := strategy.NewOperatingPoint(T, xDim, uDims, lastOp.T0)
	x := append([]float64(nil), x0...)

	for k := 0; k < T; k++ {
		t := lastOp.T0 + float64(k)*dt

		xDelta := mat.NewVecDense(xDim, nil)
		if !openLoop {
			for i := 0; i < xDim; i++ {
				xDelta.SetVec(i, x[i]-lastOp.X0[k].AtVec(i))
			}
		}

		u := make([][]float64, N)
		for i := 0; i < N; i++ {
			var pxDelta mat.VecDense
			pxDelta.MulVec(strategies[i].P[k], xDelta)

			ui := make([]float64, uDims[i])
			for r := 0; r < uDims[i]; r++ {
				ui[r] = lastOp.U[k][i].AtVec(r) - pxDelta.AtVec(r) - strategies[i].Alpha[k].AtVec(r)
			}
			u[i] = ui
		}

		for i := 0; i < xDim; i++ {
			out.X0[k].SetVec(i, x[i])
		}
		for i := 0; i < N; i++ {
			for r := 0; r < uDims[i]; r++ {
				out.U[k][i].SetVec(r, u[i][r])
			}
		}

		if k < T-1 {
			x = d.Integrate(t, dt, x, u)
		}
	}
	return out, nil
}
