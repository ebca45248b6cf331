// Package playercost defines the per-player cost contract (spec.md
// §4.2): evaluation, quadraticization, and optional exponential
// ("risk-sensitive") reshaping. Regularization of returned Hessians
// follows the teacher's msolid eigenvalue-flooring approach
// (princstrainsup.go), generalized from principal-strain stress
// updates to arbitrary quadratic cost terms.
package playercost

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/strategy"
)

// CostTerm is one additive component of a player's cost: e.g.
// distance-to-goal, control effort, or a collision penalty that
// depends on another player's state through the joint state vector.
// Evaluate and Quadraticize both receive the joint state and every
// player's control so cross-player terms (off-diagonal R_ij) are
// representable.
type CostTerm interface {
	Evaluate(t float64, x []float64, u [][]float64) float64

	// Quadraticize accumulates this term's contribution into Q, l (w.r.t.
	// the joint state) and, for every player j, R[j], r[j] (w.r.t. u_j).
	// Implementations ADD into the provided buffers; they do not zero
	// them, so multiple terms can be summed by one pass.
	Quadraticize(t float64, x []float64, u [][]float64, Q *mat.SymDense, l *mat.VecDense, R []*mat.Dense, r []*mat.VecDense)
}

// PlayerCost is the contract the solver treats as an abstract
// collaborator.
type PlayerCost interface {
	Evaluate(t float64, x []float64, u [][]float64) float64
	Quadraticize(t float64, x []float64, u [][]float64) *strategy.QuadraticCostApproximation
	// IsExponentiated reports whether this cost is risk-sensitive; if
	// so, a is the shared exponential constant (spec.md §4.6).
	IsExponentiated() (a float64, ok bool)
	// EvaluateBreakdown returns the per-step cost split into state and
	// control subtotals (SPEC_FULL.md §C.2), un-exponentiated.
	EvaluateBreakdown(t float64, x []float64, u [][]float64) (total, stateCost, controlCost float64)
}

// Player is a concrete, term-composed PlayerCost. It sums Terms for
// Evaluate/Quadraticize, optionally wraps the result in the
// exponential ("LEQG") transform if A > 0, and floors the state and
// own-control Hessians to be PSD with a minimum eigenvalue of Eps.
type Player struct {
	Terms []CostTerm
	A     float64 // exponential constant; 0 disables risk sensitivity
	Eps   float64 // minimum eigenvalue floor for PD regularization
	index int     // this player's own index, for R_ii flooring
	xDim  int
	uDims []int
}

// NewPlayer constructs a term-composed cost for player index `index`
// in an N-player game with the given joint state dimension and
// per-player control dimensions.
func NewPlayer(index, xDim int, uDims []int, a float64) *Player {
	return &Player{A: a, Eps: 1e-8, index: index, xDim: xDim, uDims: uDims}
}

func (p *Player) Evaluate(t float64, x []float64, u [][]float64) float64 {
	c := 0.0
	for _, term := range p.Terms {
		c += term.Evaluate(t, x, u)
	}
	if p.A > 0 {
		return math.Exp(p.A * c)
	}
	return c
}

// IsExponentiated implements PlayerCost.
func (p *Player) IsExponentiated() (float64, bool) { return p.A, p.A > 0 }

// TermCategory distinguishes state-cost terms from control-cost terms
// for the per-player cost breakdown in the log (SPEC_FULL.md §C.2).
type TermCategory int

const (
	CategoryState TermCategory = iota
	CategoryControl
)

// Categorized is an optional interface a CostTerm can implement to
// report which breakdown bucket it belongs to; uncategorized terms
// are bucketed as state cost.
type Categorized interface {
	Category() TermCategory
}

// EvaluateBreakdown returns the (un-exponentiated) raw cost split into
// state-cost and control-cost subtotals alongside their sum.
func (p *Player) EvaluateBreakdown(t float64, x []float64, u [][]float64) (total, stateCost, controlCost float64) {
	for _, term := range p.Terms {
		v := term.Evaluate(t, x, u)
		total += v
		if cat, ok := term.(Categorized); ok && cat.Category() == CategoryControl {
			controlCost += v
		} else {
			stateCost += v
		}
	}
	return total, stateCost, controlCost
}

// Quadraticize implements PlayerCost. For the exponentiated case it
// first quadraticizes the underlying (un-exponentiated) cost, then
// applies the closed-form exponential reshaping from spec.md §4.6:
//
//	grad(exp(a*c))  = a*exp(a*c)*g
//	hess(exp(a*c))  = exp(a*c)*(a*H + a^2*g*g^T)
func (p *Player) Quadraticize(t float64, x []float64, u [][]float64) *strategy.QuadraticCostApproximation {
	out := strategy.NewQuadraticCostApproximation(p.xDim, p.uDims)
	for _, term := range p.Terms {
		term.Quadraticize(t, x, u, out.Q, out.L, out.R, out.Rl)
	}

	if p.A > 0 {
		c := p.Evaluate(t, x, u) // already exponentiated; recover c via log
		cRaw := math.Log(c) / p.A
		factor := math.Exp(p.A * cRaw)
		reshapeExponential(out, p.A, factor, p.xDim, p.uDims)
	}

	regularizeSym(out.Q, p.Eps)
	regularizeDense(out.R[p.index], p.Eps)
	return out
}

// reshapeExponential applies the factor/gradient-outer-product
// reshaping in place to every block of out, given the shared
// exponential constant a and exp(a*c) factor.
func reshapeExponential(out *strategy.QuadraticCostApproximation, a, factor float64, xDim int, uDims []int) {
	// state block: H' = factor*(a*Q + a^2*l*l^T), g' = factor*a*l
	var outer mat.SymDense
	outer.SymOuterK(1, out.L)
	var hNew mat.SymDense
	scaleSym(&hNew, out.Q, &outer, a, factor)
	out.Q.CopySym(&hNew)

	lNew := mat.NewVecDense(xDim, nil)
	lNew.ScaleVec(factor*a, out.L)
	out.L.CopyVec(lNew)

	for j, ud := range uDims {
		var outerU mat.SymDense
		vec := out.Rl[j]
		outerU.SymOuterK(1, vec)
		var rSym mat.SymDense
		rSym.CopySym(asSym(out.R[j], ud))
		var rNewSym mat.SymDense
		scaleSym(&rNewSym, &rSym, &outerU, a, factor)
		copySymIntoDense(out.R[j], &rNewSym)

		rlNew := mat.NewVecDense(ud, nil)
		rlNew.ScaleVec(factor*a, out.Rl[j])
		out.Rl[j].CopyVec(rlNew)
	}
}

// scaleSym computes dst = factor*(a*H + a^2*outer) for symmetric H, outer.
func scaleSym(dst, H, outer *mat.SymDense, a, factor float64) {
	n := H.Symmetric()
	*dst = *mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := factor * (a*H.At(i, j) + a*a*outer.At(i, j))
			dst.SetSym(i, j, v)
		}
	}
}

func asSym(d *mat.Dense, n int) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, d.At(i, j))
		}
	}
	return s
}

func copySymIntoDense(d *mat.Dense, s *mat.SymDense) {
	n := s.Symmetric()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d.Set(i, j, s.At(i, j))
		}
	}
}

// regularizeSym floors the eigenvalues of a symmetric matrix at eps in
// place, following the teacher's per-Hessian eigenvalue-flooring
// approach (never regularizing the full coupling system directly, per
// spec.md §9).
func regularizeSym(H *mat.SymDense, eps float64) {
	n := H.Symmetric()
	var eig mat.EigenSym
	if !eig.Factorize(H, true) {
		// fall back to a uniform diagonal bump if the factorization fails
		for i := 0; i < n; i++ {
			H.SetSym(i, i, H.At(i, i)+eps)
		}
		return
	}
	values := eig.Values(nil)
	needsFix := false
	for _, v := range values {
		if v < eps {
			needsFix = true
			break
		}
	}
	if !needsFix {
		return
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	floored := make([]float64, n)
	for i, v := range values {
		if v < eps {
			v = eps
		}
		floored[i] = v
	}
	diag := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		diag.Set(i, i, floored[i])
	}
	var tmp, result mat.Dense
	tmp.Mul(&vecs, diag)
	result.Mul(&tmp, vecs.T())
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			H.SetSym(i, j, result.At(i, j))
		}
	}
}

// regularizeDense floors the symmetric part of a square dense matrix
// (used for R_ii, which the solver requires PD but which is typed as
// *mat.Dense for uniformity with the off-diagonal R_ij blocks).
func regularizeDense(R *mat.Dense, eps float64) {
	rows, cols := R.Dims()
	if rows != cols {
		return
	}
	sym := asSym(R, rows)
	regularizeSym(sym, eps)
	copySymIntoDense(R, sym)
}
