package rollout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/rollout"
	"github.com/federicomassa/ilqgames/strategy"
)

// identityDynamics is a trivial single-player dynamics object with
// Integrate(x, u) = x + dt*u, used to check rollout fidelity and the
// alpha sign convention in isolation from any real dynamics library.
type identityDynamics struct{}

func (identityDynamics) Integrate(t, dt float64, x []float64, u [][]float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + dt*u[0][i]
	}
	return out
}
func (identityDynamics) Linearize(t, dt float64, x []float64, u [][]float64) (*mat.Dense, []*mat.Dense) {
	return nil, nil
}
func (identityDynamics) XDim() int        { return 2 }
func (identityDynamics) UDim(i int) int   { return 2 }
func (identityDynamics) NumPlayers() int  { return 1 }

func TestRolloutFidelityAndFeedbackConsistency(t *testing.T) {
	d := identityDynamics{}
	T := 3
	dt := 0.1
	lastOp := strategy.NewOperatingPoint(T, 2, []int{2}, 0)
	for k := 0; k < T; k++ {
		lastOp.X0[k].SetVec(0, float64(k))
		lastOp.X0[k].SetVec(1, float64(k)*2)
		lastOp.U[k][0].SetVec(0, 1)
		lastOp.U[k][0].SetVec(1, -1)
	}

	strat := strategy.NewStrategy(T, 2, 2)
	for k := 0; k < T; k++ {
		strat.P[k].Set(0, 0, 0.5)
		strat.P[k].Set(1, 1, 0.5)
		strat.Alpha[k].SetVec(0, 0.1)
		strat.Alpha[k].SetVec(1, -0.1)
	}

	x0 := []float64{0.2, -0.1}
	out, err := rollout.Rollout(d, lastOp, []*strategy.Strategy{strat}, x0, dt, false)
	require.NoError(t, err)

	// Rollout fidelity: x(k+1) = Integrate(t_k, dt, x(k), u(k)) exactly.
	for k := 0; k < T-1; k++ {
		xk := []float64{out.X0[k].AtVec(0), out.X0[k].AtVec(1)}
		uk := [][]float64{{out.U[k][0].AtVec(0), out.U[k][0].AtVec(1)}}
		expected := d.Integrate(0, dt, xk, uk)
		assert.InDelta(t, expected[0], out.X0[k+1].AtVec(0), 1e-12)
		assert.InDelta(t, expected[1], out.X0[k+1].AtVec(1), 1e-12)
	}

	// Feedback consistency: u(k) = u_last(k) - P(k)*(x(k)-x_last(k)) - alpha(k).
	for k := 0; k < T; k++ {
		xDelta0 := out.X0[k].AtVec(0) - lastOp.X0[k].AtVec(0)
		xDelta1 := out.X0[k].AtVec(1) - lastOp.X0[k].AtVec(1)
		expectedU0 := lastOp.U[k][0].AtVec(0) - strat.P[k].At(0, 0)*xDelta0 - strat.Alpha[k].AtVec(0)
		expectedU1 := lastOp.U[k][0].AtVec(1) - strat.P[k].At(1, 1)*xDelta1 - strat.Alpha[k].AtVec(1)
		assert.InDelta(t, expectedU0, out.U[k][0].AtVec(0), 1e-12)
		assert.InDelta(t, expectedU1, out.U[k][0].AtVec(1), 1e-12)
	}
}

func TestRolloutOpenLoopIgnoresGain(t *testing.T) {
	d := identityDynamics{}
	T := 2
	dt := 0.1
	lastOp := strategy.NewOperatingPoint(T, 2, []int{2}, 0)
	strat := strategy.NewStrategy(T, 2, 2)
	for k := 0; k < T; k++ {
		strat.P[k].Set(0, 0, 100) // large gain that would dominate if applied
		strat.Alpha[k].SetVec(0, 0.05)
	}
	x0 := []float64{5, 5} // far from lastOp's zero state
	out, err := rollout.Rollout(d, lastOp, []*strategy.Strategy{strat}, x0, dt, true)
	require.NoError(t, err)
	assert.InDelta(t, -0.05, out.U[0][0].AtVec(0), 1e-12)
}
