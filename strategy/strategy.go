// Package strategy holds the data model shared across the solver:
// per-player affine feedback strategies, the nominal operating point
// they are linearized about, and the per-timestep linear/quadratic
// approximations rebuilt each outer iteration.
package strategy

import "gonum.org/v1/gonum/mat"

// Strategy is player i's time-varying affine feedback law:
//
//	u_i(k) = -P_i(k)*(x - x_hat(k)) - alpha_i(k) + u_hat_i(k)
//
// P has shape uDim x xDim at every k; Alpha has length uDim at every k.
type Strategy struct {
	P     []*mat.Dense  // [T] gain, uDim x xDim
	Alpha []*mat.VecDense // [T] offset, uDim
}

// NewStrategy allocates a zero-content strategy for a horizon of T
// steps with the given control and state dimensions.
func NewStrategy(T, uDim, xDim int) *Strategy {
	s := &Strategy{
		P:     make([]*mat.Dense, T),
		Alpha: make([]*mat.VecDense, T),
	}
	for k := 0; k < T; k++ {
		s.P[k] = mat.NewDense(uDim, xDim, nil)
		s.Alpha[k] = mat.NewVecDense(uDim, nil)
	}
	return s
}

// Horizon returns T, the number of time steps this strategy covers.
func (s *Strategy) Horizon() int { return len(s.P) }

// Reset zeroes every P(k) and Alpha(k) in place without reallocating.
func (s *Strategy) Reset() {
	for k := range s.P {
		s.P[k].Zero()
		s.Alpha[k].Zero()
	}
}

// Clone returns a deep copy.
func (s *Strategy) Clone() *Strategy {
	out := &Strategy{P: make([]*mat.Dense, len(s.P)), Alpha: make([]*mat.VecDense, len(s.Alpha))}
	for k := range s.P {
		out.P[k] = mat.DenseCopyOf(s.P[k])
		out.Alpha[k] = mat.VecDenseCopyOf(s.Alpha[k])
	}
	return out
}

// OperatingPoint is the nominal joint-state/per-player-control
// trajectory that dynamics are linearized and costs quadraticized
// about.
type OperatingPoint struct {
	X0 []*mat.VecDense   // [T] joint state, length xDim
	U  [][]*mat.VecDense // [T][N] per-player control, length uDim_i
	T0 float64           // initial time
}

// NewOperatingPoint allocates a zero-content operating point for a
// horizon of T steps, N players with controls of dimension uDims[i],
// and joint state dimension xDim.
func NewOperatingPoint(T int, xDim int, uDims []int, t0 float64) *OperatingPoint {
	op := &OperatingPoint{
		X0: make([]*mat.VecDense, T),
		U:  make([][]*mat.VecDense, T),
		T0: t0,
	}
	for k := 0; k < T; k++ {
		op.X0[k] = mat.NewVecDense(xDim, nil)
		op.U[k] = make([]*mat.VecDense, len(uDims))
		for i, ud := range uDims {
			op.U[k][i] = mat.NewVecDense(ud, nil)
		}
	}
	return op
}

// Horizon returns T.
func (o *OperatingPoint) Horizon() int { return len(o.X0) }

// NumPlayers returns N, derived from the control slice at k=0.
func (o *OperatingPoint) NumPlayers() int {
	if len(o.U) == 0 {
		return 0
	}
	return len(o.U[0])
}

// Clone returns a deep copy.
func (o *OperatingPoint) Clone() *OperatingPoint {
	out := &OperatingPoint{X0: make([]*mat.VecDense, len(o.X0)), U: make([][]*mat.VecDense, len(o.U)), T0: o.T0}
	for k := range o.X0 {
		out.X0[k] = mat.VecDenseCopyOf(o.X0[k])
		out.U[k] = make([]*mat.VecDense, len(o.U[k]))
		for i := range o.U[k] {
			out.U[k][i] = mat.VecDenseCopyOf(o.U[k][i])
		}
	}
	return out
}

// LinearDynamicsApproximation holds the discrete-time Jacobians of
// the dynamics about (x_hat(k), u_hat(k)): A(k) is xDim x xDim,
// B[i](k) is xDim x uDim_i.
type LinearDynamicsApproximation struct {
	A *mat.Dense
	B []*mat.Dense
}

// NewLinearDynamicsApproximation allocates A and B_0..B_{N-1} with
// the given dimensions.
func NewLinearDynamicsApproximation(xDim int, uDims []int) *LinearDynamicsApproximation {
	l := &LinearDynamicsApproximation{
		A: mat.NewDense(xDim, xDim, nil),
		B: make([]*mat.Dense, len(uDims)),
	}
	for i, ud := range uDims {
		l.B[i] = mat.NewDense(xDim, ud, nil)
	}
	return l
}

// QuadraticCostApproximation holds player i's quadratic cost model
// about (x_hat(k), u_hat(k)): state Hessian Q and gradient l, plus
// per-controller-pair Hessian R[j] and gradient r[j] for every player
// j (including i itself).
type QuadraticCostApproximation struct {
	Q *mat.SymDense
	L *mat.VecDense
	R []*mat.Dense    // [N] R_{i,j}, uDim_j x uDim_j
	Rl []*mat.VecDense // [N] r_{i,j}, uDim_j
}

// NewQuadraticCostApproximation allocates a zero-content quadratic
// cost model for player i in a game with the given joint state
// dimension and per-player control dimensions.
func NewQuadraticCostApproximation(xDim int, uDims []int) *QuadraticCostApproximation {
	q := &QuadraticCostApproximation{
		Q:  mat.NewSymDense(xDim, nil),
		L:  mat.NewVecDense(xDim, nil),
		R:  make([]*mat.Dense, len(uDims)),
		Rl: make([]*mat.VecDense, len(uDims)),
	}
	for j, ud := range uDims {
		q.R[j] = mat.NewDense(ud, ud, nil)
		q.Rl[j] = mat.NewVecDense(ud, nil)
	}
	return q
}
