package playercost_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/playercost"
)

// quadraticTerm is a simple x^T Q x + u^T R u term used to exercise
// composition and regularization without any real dynamics/cost
// library (out of scope per spec.md §1).
type quadraticTerm struct {
	q, r float64
}

func (t quadraticTerm) Evaluate(tt float64, x []float64, u [][]float64) float64 {
	c := 0.0
	for _, xi := range x {
		c += t.q * xi * xi
	}
	for _, ui := range u[0] {
		c += t.r * ui * ui
	}
	return c
}

func (t quadraticTerm) Quadraticize(tt float64, x []float64, u [][]float64, Q *mat.SymDense, l *mat.VecDense, R []*mat.Dense, r []*mat.VecDense) {
	n, _ := Q.Dims()
	for i := 0; i < n; i++ {
		Q.SetSym(i, i, Q.At(i, i)+2*t.q)
	}
	rows, _ := R[0].Dims()
	for i := 0; i < rows; i++ {
		R[0].Set(i, i, R[0].At(i, i)+2*t.r)
	}
}

func TestPlayerQuadraticizeSumsTerms(t *testing.T) {
	p := playercost.NewPlayer(0, 2, []int{1}, 0)
	p.Terms = []playercost.CostTerm{quadraticTerm{q: 1, r: 2}, quadraticTerm{q: 3, r: 0}}
	out := p.Quadraticize(0, []float64{1, 1}, [][]float64{{1}})
	assert.InDelta(t, 8, out.Q.At(0, 0), 1e-9) // 2*1 + 2*3
	assert.InDelta(t, 4, out.R[0].At(0, 0), 1e-9)
}

func TestPlayerExponentiatedLimitMatchesRiskNeutral(t *testing.T) {
	x := []float64{1, 2}
	u := [][]float64{{0.5}}
	pNeutral := playercost.NewPlayer(0, 2, []int{1}, 0)
	pNeutral.Terms = []playercost.CostTerm{quadraticTerm{q: 1, r: 1}}
	qNeutral := pNeutral.Quadraticize(0, x, u)

	a := 1e-6
	pRisk := playercost.NewPlayer(0, 2, []int{1}, a)
	pRisk.Terms = []playercost.CostTerm{quadraticTerm{q: 1, r: 1}}
	qRisk := pRisk.Quadraticize(0, x, u)

	// The Hessian of exp(a*c) is exp(a*c)*(a*H + a^2*g*g^T); divided by
	// a it tends to the risk-neutral H as a -> 0.
	assert.InDelta(t, qNeutral.Q.At(0, 0), qRisk.Q.At(0, 0)/a, 1e-3)
}

func TestRegularizationFloorsNonPSD(t *testing.T) {
	p := playercost.NewPlayer(0, 2, []int{1}, 0)
	p.Terms = []playercost.CostTerm{quadraticTerm{q: -1, r: 1}} // concave state cost
	out := p.Quadraticize(0, []float64{1, 1}, [][]float64{{1}})
	var eig mat.EigenSym
	ok := eig.Factorize(out.Q, false)
	assert.True(t, ok)
	for _, v := range eig.Values(nil) {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}
