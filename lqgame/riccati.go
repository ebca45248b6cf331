// Package lqgame implements the coupled Riccati recursion for
// N-player time-varying LQ games, the algorithmic core of the
// solver (spec.md §4.3). It is grounded on the teacher's dense
// Newton-step solve in msolid/princstrainsup.go (stack unknowns into
// one vector, factor-and-solve one Jacobian/coupling matrix per
// point), generalized here from a single per-point Newton solve into
// a per-time-step block linear solve run backward over a horizon, the
// way fem/s_linimp.go runs its time loop forward.
package lqgame

import (
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/errs"
	"github.com/federicomassa/ilqgames/strategy"
)

// regularizationFloor is added to S(k)'s diagonal when the initial
// solve fails despite each diagonal block being individually PD, a
// small regularizer on the full coupling system, tried only after
// per-block PSD regularization of the costs has already happened
// upstream (spec.md §9: "never regularize the full S(k) until
// per-block regularization has been tried").
const regularizationFloor = 1e-9

// Result holds every player's feedback gain/offset sequence, indexed
// by player.
type Result struct {
	Strategies []*strategy.Strategy // [N]
}

// Solve runs the backward coupled Riccati recursion over linearized
// dynamics lin[0..T-1] and quadraticized costs cost[0..T-1][0..N-1],
// producing affine feedback (P_i(k), alpha_i(k)) for every player.
//
// Sign convention: alpha_i(k) points in the increasing-cost direction
// and the rollout law u_i(k) = u_hat_i(k) - P_i(k)*x_delta(k) -
// alpha_i(k) subtracts it (spec.md §4.3, §4.5, §9). This function and
// rollout.Rollout must be kept mutually consistent. The single-player
// equivalence test in riccati_test.go checks the gains P against the
// classical Riccati recursion; it does not check alpha.
func Solve(lin []*strategy.LinearDynamicsApproximation, cost [][]*strategy.QuadraticCostApproximation, xDim int, uDims []int) (*Result, error) {
	T := len(lin)
	N := len(uDims)
	if T == 0 {
		return nil, errs.NewConfigError("lqgame.Solve: empty horizon")
	}
	if len(cost) != T {
		return nil, errs.NewConfigError("lqgame.Solve: cost horizon %d != dynamics horizon %d", len(cost), T)
	}

	strategies := make([]*strategy.Strategy, N)
	for i := range strategies {
		strategies[i] = strategy.NewStrategy(T, uDims[i], xDim)
	}

	// cost-to-go at k+1, initialized to zero at k=T (terminal cost
	// folded into stage T-1, per DESIGN.md's Open Question decision).
	Z := make([]*mat.SymDense, N)
	zeta := make([]*mat.VecDense, N)
	for i := 0; i < N; i++ {
		Z[i] = mat.NewSymDense(xDim, nil)
		zeta[i] = mat.NewVecDense(xDim, nil)
	}

	sumU := 0
	offsets := make([]int, N)
	for i, ud := range uDims {
		offsets[i] = sumU
		sumU += ud
	}

	for k := T - 1; k >= 0; k-- {
		A := lin[k].A
		B := lin[k].B
		ck := cost[k]

		P, alpha, err := solveCoupling(A, B, ck, Z, zeta, uDims, offsets, sumU, xDim)
		if err != nil {
			return nil, errs.NewLinAlgFailure(k, err)
		}

		for i := 0; i < N; i++ {
			strategies[i].P[k].Copy(P[i])
			strategies[i].Alpha[k].CopyVec(alpha[i])
		}

		// F(k) = A(k) - sum_i B_i(k) P_i(k)
		F := mat.DenseCopyOf(A)
		for i := 0; i < N; i++ {
			var BP mat.Dense
			BP.Mul(B[i], P[i])
			F.Sub(F, &BP)
		}

		// beta(k) = -sum_i B_i(k) alpha_i(k)
		beta := mat.NewVecDense(xDim, nil)
		for i := 0; i < N; i++ {
			var Ba mat.VecDense
			Ba.MulVec(B[i], alpha[i])
			beta.SubVec(beta, &Ba)
		}

		newZ := make([]*mat.SymDense, N)
		newZeta := make([]*mat.VecDense, N)
		for i := 0; i < N; i++ {
			newZ[i] = propagateZ(ck[i].Q, F, Z[i], ck[i].R, P)
			newZeta[i] = propagateZeta(ck[i].L, F, zeta[i], Z[i], beta, ck[i].R, ck[i].Rl, P, alpha)
		}
		Z, zeta = newZ, newZeta
	}

	return &Result{Strategies: strategies}, nil
}

// solveCoupling builds the block coupling system S(k)*[P(k) | alpha(k)]
// = [Y_P(k) | Y_alpha(k)] for all players and solves it with a single
// factorization of S(k) applied to both right-hand sides at once
// (spec.md §4.3 steps 1-2: "one Sum(u_i) x Sum(u_i) factorization per
// step"), returning per-player gain/offset blocks extracted from the
// stacked solution.
func solveCoupling(A *mat.Dense, B []*mat.Dense, ck []*strategy.QuadraticCostApproximation, Z []*mat.SymDense, zeta []*mat.VecDense, uDims []int, offsets []int, sumU, xDim int) ([]*mat.Dense, []*mat.VecDense, error) {
	N := len(uDims)

	S := mat.NewDense(sumU, sumU, nil)
	// Y stacks Y_P (columns 0..xDim-1) and Y_alpha (column xDim) so a
	// single mat.Dense.Solve factorizes S once for both unknowns.
	Y := mat.NewDense(sumU, xDim+1, nil)

	for i := 0; i < N; i++ {
		// S_ij(k) = B_i(k)^T * Z_i(k+1) * B_j(k)
		for j := 0; j < N; j++ {
			var ZiBj mat.Dense
			ZiBj.Mul(Z[i], B[j])
			var block mat.Dense
			block.Mul(B[i].T(), &ZiBj)
			if i == j {
				block.Add(&block, ck[i].R[i])
			}
			setBlock(S, offsets[i], offsets[j], &block)
		}

		// [Y_P(k)]_i = B_i(k)^T * Z_i(k+1) * A(k)
		var ZiA mat.Dense
		ZiA.Mul(Z[i], A)
		var yp mat.Dense
		yp.Mul(B[i].T(), &ZiA)
		setBlockCols(Y, offsets[i], &yp)

		// [Y_alpha(k)]_i = B_i(k)^T * zeta_i(k+1) + r_ii(k)
		var zetaTerm mat.VecDense
		zetaTerm.MulVec(B[i].T(), zeta[i])
		zetaTerm.AddVec(&zetaTerm, ck[i].Rl[i])
		setColVec(Y, offsets[i], xDim, &zetaTerm)
	}

	var sol mat.Dense
	if err := solveWithRegularization(&sol, S, Y); err != nil {
		return nil, nil, err
	}

	P := make([]*mat.Dense, N)
	alpha := make([]*mat.VecDense, N)
	for i := 0; i < N; i++ {
		P[i] = mat.NewDense(uDims[i], xDim, nil)
		P[i].Copy(sol.Slice(offsets[i], offsets[i]+uDims[i], 0, xDim))
		alpha[i] = mat.NewVecDense(uDims[i], nil)
		for r := 0; r < uDims[i]; r++ {
			alpha[i].SetVec(r, sol.At(offsets[i]+r, xDim))
		}
	}
	return P, alpha, nil
}

func setBlock(dst *mat.Dense, rowOff, colOff int, src mat.Matrix) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(rowOff+i, colOff+j, src.At(i, j))
		}
	}
}

func setBlockCols(dst *mat.Dense, rowOff int, src mat.Matrix) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(rowOff+i, j, src.At(i, j))
		}
	}
}

func setColVec(dst *mat.Dense, rowOff, colOff int, src mat.Vector) {
	n := src.Len()
	for i := 0; i < n; i++ {
		dst.Set(rowOff+i, colOff, src.AtVec(i))
	}
}

// solveWithRegularization solves S*X = Y, retrying once with a small
// diagonal regularizer if the first solve fails (spec.md §4.3 edge
// case: "a small diagonal regularizer on S(k) is permitted when
// diagonal blocks themselves are PD but the full block matrix is
// near-singular").
func solveWithRegularization(dst *mat.Dense, S, Y *mat.Dense) error {
	err := dst.Solve(S, Y)
	if err == nil {
		return err
	}
	n, _ := S.Dims()
	reg := mat.DenseCopyOf(S)
	for i := 0; i < n; i++ {
		reg.Set(i, i, reg.At(i, i)+regularizationFloor)
	}
	return dst.Solve(reg, Y)
}

// propagateZ computes Z_i(k) = Q_i(k) + F^T*Z_i(k+1)*F + sum_j P_j^T*R_ij(k)*P_j
// (spec.md §4.3 step 3).
func propagateZ(Qi *mat.SymDense, F *mat.Dense, Zi *mat.SymDense, Ri []*mat.Dense, P []*mat.Dense) *mat.SymDense {
	xDim, _ := F.Dims()
	acc := mat.NewDense(xDim, xDim, nil)

	var FtZ mat.Dense
	FtZ.Mul(F.T(), Zi)
	var FtZF mat.Dense
	FtZF.Mul(&FtZ, F)
	acc.Add(acc, &FtZF)

	for j := range P {
		var PtR mat.Dense
		PtR.Mul(P[j].T(), Ri[j])
		var PtRP mat.Dense
		PtRP.Mul(&PtR, P[j])
		acc.Add(acc, &PtRP)
	}

	out := mat.NewSymDense(xDim, nil)
	for i := 0; i < xDim; i++ {
		for j := i; j < xDim; j++ {
			v := Qi.At(i, j) + acc.At(i, j)
			out.SetSym(i, j, v)
		}
	}
	return out
}

// propagateZeta computes
//
//	zeta_i(k) = l_i(k) + F^T*(zeta_i(k+1) + Z_i(k+1)*beta(k))
//	                   + sum_j P_j^T*(R_ij(k)*alpha_j(k) - r_ij(k))
//
// (spec.md §4.3 step 3).
func propagateZeta(li *mat.VecDense, F *mat.Dense, zetai *mat.VecDense, Zi *mat.SymDense, beta *mat.VecDense, Ri []*mat.Dense, ri []*mat.VecDense, P []*mat.Dense, alpha []*mat.VecDense) *mat.VecDense {
	xDim := li.Len()
	out := mat.NewVecDense(xDim, nil)
	out.CopyVec(li)

	var Zbeta mat.VecDense
	Zbeta.MulVec(Zi, beta)
	inner := mat.NewVecDense(xDim, nil)
	inner.AddVec(zetai, &Zbeta)
	var Ftinner mat.VecDense
	Ftinner.MulVec(F.T(), inner)
	out.AddVec(out, &Ftinner)

	for j := range P {
		_, ujDim := Ri[j].Dims()
		term := mat.NewVecDense(ujDim, nil)
		term.MulVec(Ri[j], alpha[j])
		term.SubVec(term, ri[j])
		var Ptterm mat.VecDense
		Ptterm.MulVec(P[j].T(), term)
		out.AddVec(out, &Ptterm)
	}
	return out
}
