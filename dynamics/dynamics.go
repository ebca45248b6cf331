// Package dynamics defines the nonlinear discrete-time dynamics
// contract the solver treats as an abstract collaborator (spec.md
// §4.1), plus a fixed-step RK4 helper and a finite-difference
// Jacobian fallback for dynamics objects without an analytic
// Linearize.
package dynamics

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// ContinuousFunc is the right-hand side of xdot = f(t, x, u_0..u_{N-1}).
type ContinuousFunc func(t float64, x []float64, u [][]float64, xdot []float64)

// Dynamics is the discrete-time integrator + linearization contract.
// Integrate must be deterministic; Linearize must return Jacobians
// that match Integrate to first order, or the LQ model used by the
// solver is inconsistent and convergence is not expected (spec.md
// §4.1 invariant).
type Dynamics interface {
	// Integrate advances the joint state one discrete step.
	Integrate(t, dt float64, x []float64, u [][]float64) []float64

	// Linearize returns discrete-time Jacobians A = dx_next/dx,
	// B_i = dx_next/du_i about (x, u).
	Linearize(t, dt float64, x []float64, u [][]float64) (A *mat.Dense, B []*mat.Dense)

	XDim() int
	UDim(i int) int
	NumPlayers() int
}

// RK4Step integrates xdot = f(t, x, u) one step of size dt using the
// classical 4-stage Runge-Kutta method. u is fixed over the step, as
// is standard for zero-order-hold discretization of continuous
// controls (matches the teacher's single-step-per-call integration
// pattern in fem/s_linimp.go's time loop, generalized from an
// implicit linear step to an explicit nonlinear one).
func RK4Step(f ContinuousFunc, t, dt float64, x []float64, u [][]float64) []float64 {
	n := len(x)
	k1 := make([]float64, n)
	k2 := make([]float64, n)
	k3 := make([]float64, n)
	k4 := make([]float64, n)
	tmp := make([]float64, n)

	f(t, x, u, k1)

	for i := range tmp {
		tmp[i] = x[i] + 0.5*dt*k1[i]
	}
	f(t+0.5*dt, tmp, u, k2)

	for i := range tmp {
		tmp[i] = x[i] + 0.5*dt*k2[i]
	}
	f(t+0.5*dt, tmp, u, k3)

	for i := range tmp {
		tmp[i] = x[i] + dt*k3[i]
	}
	f(t+dt, tmp, u, k4)

	xNext := make([]float64, n)
	for i := range xNext {
		xNext[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return xNext
}

// NumericalJacobian computes discrete-time A and B_i by central
// differencing of a step function (typically a closure over RK4Step
// or Integrate), for dynamics with no closed-form linearization.
// Accuracy is first order as required by §4.1 regardless of the
// integrator's own order, since only A, B about the current point are
// needed, not a global derivative.
func NumericalJacobian(step func(x []float64, u [][]float64) []float64, x []float64, u [][]float64) (A *mat.Dense, B []*mat.Dense) {
	xDim := len(x)
	settings := &fd.JacobianSettings{
		Formula:    fd.Central,
		Concurrent: true,
	}

	xJac := mat.NewDense(xDim, xDim, nil)
	fd.Jacobian(xJac, func(y, xp []float64) { copy(y, step(xp, u)) }, x, settings)
	A = xJac

	B = make([]*mat.Dense, len(u))
	for p := range u {
		uDim := len(u[p])
		Bp := mat.NewDense(xDim, uDim, nil)
		up := u[p]
		fd.Jacobian(Bp, func(y, up2 []float64) {
			uPerturbed := cloneControls(u)
			copy(uPerturbed[p], up2)
			copy(y, step(x, uPerturbed))
		}, up, settings)
		B[p] = Bp
	}
	return A, B
}

func cloneControls(u [][]float64) [][]float64 {
	out := make([][]float64, len(u))
	for i, ui := range u {
		out[i] = append([]float64(nil), ui...)
	}
	return out
}
