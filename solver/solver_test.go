package solver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/config"
	"github.com/federicomassa/ilqgames/modifier"
	"github.com/federicomassa/ilqgames/playercost"
	"github.com/federicomassa/ilqgames/solver"
)

// linearDoubleIntegrator is a single-player, linear-time-invariant
// dynamics object (x = [pos, vel], u = [accel]) used to exercise the
// full outer loop without any concrete dynamics/cost library
// (out of scope per spec.md §1).
type linearDoubleIntegrator struct{ dt float64 }

func (d linearDoubleIntegrator) Integrate(t, dt float64, x []float64, u [][]float64) []float64 {
	return []float64{x[0] + dt*x[1], x[1] + dt*u[0][0]}
}
func (d linearDoubleIntegrator) Linearize(t, dt float64, x []float64, u [][]float64) (*mat.Dense, []*mat.Dense) {
	A := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	B := mat.NewDense(2, 1, []float64{0, dt})
	return A, []*mat.Dense{B}
}
func (d linearDoubleIntegrator) XDim() int       { return 2 }
func (d linearDoubleIntegrator) UDim(i int) int  { return 1 }
func (d linearDoubleIntegrator) NumPlayers() int { return 1 }

type positionTerm struct{ weight float64 }

func (p positionTerm) Evaluate(t float64, x []float64, u [][]float64) float64 {
	return p.weight * x[0] * x[0]
}
func (p positionTerm) Quadraticize(t float64, x []float64, u [][]float64, Q *mat.SymDense, l *mat.VecDense, R []*mat.Dense, r []*mat.VecDense) {
	Q.SetSym(0, 0, Q.At(0, 0)+2*p.weight)
	l.SetVec(0, l.AtVec(0)+2*p.weight*x[0])
}

type controlTerm struct{ weight float64 }

func (c controlTerm) Category() playercost.TermCategory { return playercost.CategoryControl }
func (c controlTerm) Evaluate(t float64, x []float64, u [][]float64) float64 {
	return c.weight * u[0][0] * u[0][0]
}
func (c controlTerm) Quadraticize(t float64, x []float64, u [][]float64, Q *mat.SymDense, l *mat.VecDense, R []*mat.Dense, r []*mat.VecDense) {
	R[0].Set(0, 0, R[0].At(0, 0)+2*c.weight)
	r[0].SetVec(0, r[0].AtVec(0)+2*c.weight*u[0][0])
}

func TestSolveConvergesOnLinearQuadraticProblem(t *testing.T) {
	d := linearDoubleIntegrator{dt: 0.1}
	cost := playercost.NewPlayer(0, 2, []int{1}, 0)
	cost.Terms = []playercost.CostTerm{positionTerm{weight: 1}, controlTerm{weight: 0.1}}

	opts := &config.Options{}
	opts.SetDefaults()
	opts.TimeHorizon = 2.0
	opts.TimeStep = 0.1
	opts.PostProcess()

	mod := modifier.NewAlphaScaling(1.0)

	in := solver.Input{
		Dynamics: d,
		Costs:    []playercost.PlayerCost{cost},
		X0:       []float64{1, 0},
	}

	res, err := solver.Solve(in, opts, mod)
	require.NoError(t, err)
	assert.LessOrEqual(t, res.Iterations, opts.MaxIterations)
	finalPos := res.OperatingPoint.X0[res.OperatingPoint.Horizon()-1].AtVec(0)
	assert.Less(t, finalPos, 1.0) // LQ regulator should drive position toward 0
	assert.Len(t, res.Log.Entries, res.Iterations)
}

func TestSolveRejectsMismatchedCostCount(t *testing.T) {
	d := linearDoubleIntegrator{dt: 0.1}
	opts := &config.Options{}
	opts.SetDefaults()
	opts.PostProcess()
	mod := modifier.NewAlphaScaling(1.0)

	in := solver.Input{
		Dynamics: d,
		Costs:    []playercost.PlayerCost{},
		X0:       []float64{1, 0},
	}
	_, err := solver.Solve(in, opts, mod)
	assert.Error(t, err)
}
