package lqgame

import "github.com/federicomassa/ilqgames/strategy"

// SolveFlat repeats a time-invariant (A, B_i) pair and a
// time-invariant per-player quadratic cost across a horizon of T
// steps and runs the coupled Riccati recursion (Solve) once over it;
// the resulting gains and offsets still vary with k. This is the
// "flat" variant spec.md §4.3 names for feedback-linearizable
// systems, where the linear model never changes between outer
// iterations. solver.Solve does not call it.
func SolveFlat(A *strategy.LinearDynamicsApproximation, cost []*strategy.QuadraticCostApproximation, T, xDim int, uDims []int) (*Result, error) {
	lin := make([]*strategy.LinearDynamicsApproximation, T)
	costs := make([][]*strategy.QuadraticCostApproximation, T)
	for k := 0; k < T; k++ {
		lin[k] = A
		costs[k] = cost
	}
	return Solve(lin, costs, xDim, uDims)
}
