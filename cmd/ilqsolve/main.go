// Command ilqsolve is the minimal example driver for the iterative LQ
// game solver: it wires config, a single-player point-mass dynamics/
// cost pair, and the solver's outer loop together, the way the
// teacher's main.go wires fem.NewFEM + analysis.Run behind a
// recover/chk.Panic top-level handler. Concrete multi-agent dynamics
// and cost libraries are out of scope (spec.md §1 Non-goals); this
// driver exists to exercise the wiring end to end.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/config"
	"github.com/federicomassa/ilqgames/modifier"
	"github.com/federicomassa/ilqgames/playercost"
	"github.com/federicomassa/ilqgames/solver"
)

// pointMass is a 2D single-integrator (x = [px, py], u = [vx, vy]),
// the simplest dynamics that gives the example flags below somewhere
// to land.
type pointMass struct{}

func (pointMass) Integrate(t, dt float64, x []float64, u [][]float64) []float64 {
	return []float64{x[0] + dt*u[0][0], x[1] + dt*u[0][1]}
}
func (pointMass) Linearize(t, dt float64, x []float64, u [][]float64) (*mat.Dense, []*mat.Dense) {
	A := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	B := mat.NewDense(2, 2, []float64{dt, 0, 0, dt})
	return A, []*mat.Dense{B}
}
func (pointMass) XDim() int       { return 2 }
func (pointMass) UDim(int) int    { return 2 }
func (pointMass) NumPlayers() int { return 1 }

// goalTerm penalizes squared distance to the origin, scaled by d0 (a
// stand-in for "distance to goal" weighting in a concrete driver).
type goalTerm struct{ weight float64 }

func (g goalTerm) Evaluate(t float64, x []float64, u [][]float64) float64 {
	return g.weight * (x[0]*x[0] + x[1]*x[1])
}
func (g goalTerm) Quadraticize(t float64, x []float64, u [][]float64, Q *mat.SymDense, l *mat.VecDense, R []*mat.Dense, r []*mat.VecDense) {
	Q.SetSym(0, 0, Q.At(0, 0)+2*g.weight)
	Q.SetSym(1, 1, Q.At(1, 1)+2*g.weight)
	l.SetVec(0, l.AtVec(0)+2*g.weight*x[0])
	l.SetVec(1, l.AtVec(1)+2*g.weight*x[1])
}

type effortTerm struct{ weight float64 }

func (e effortTerm) Category() playercost.TermCategory { return playercost.CategoryControl }
func (e effortTerm) Evaluate(t float64, x []float64, u [][]float64) float64 {
	return e.weight * (u[0][0]*u[0][0] + u[0][1]*u[0][1])
}
func (e effortTerm) Quadraticize(t float64, x []float64, u [][]float64, Q *mat.SymDense, l *mat.VecDense, R []*mat.Dense, r []*mat.VecDense) {
	R[0].Set(0, 0, R[0].At(0, 0)+2*e.weight)
	R[0].Set(1, 1, R[0].At(1, 1)+2*e.weight)
	r[0].SetVec(0, r[0].AtVec(0)+2*e.weight*u[0][0])
	r[0].SetVec(1, r[0].AtVec(1)+2*e.weight*u[0][1])
}

func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}()

	fs := pflag.NewFlagSet("ilqsolve", pflag.ExitOnError)
	config.BindFlags(fs)
	fs.Float64("px0", 1.0, "initial x position")
	fs.Float64("py0", 1.0, "initial y position")
	fs.Float64("theta0", 0.0, "initial heading (unused by the point-mass demo)")
	fs.Float64("v0", 0.0, "initial speed (unused by the point-mass demo)")
	fs.Float64("d0", 1.0, "goal-distance cost weight")
	fs.String("experiment_name", "ilqsolve", "label for the saved log directory")
	fs.Bool("save", false, "write the iteration log to ./<experiment_name>/")
	fs.Bool("noviz", true, "no-op: this driver has no visualization")
	fs.Bool("last_traj", false, "no-op: this driver does not persist a warm-start trajectory")
	if err := fs.Parse(os.Args[1:]); err != nil {
		panic(err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		panic(err)
	}

	opts, err := config.Load(v)
	if err != nil {
		panic(err)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	d := pointMass{}
	cost := playercost.NewPlayer(0, d.XDim(), []int{d.UDim(0)}, opts.ExponentialConstant)
	cost.Terms = []playercost.CostTerm{
		goalTerm{weight: v.GetFloat64("d0")},
		effortTerm{weight: opts.ControlCostWeight},
	}

	var mod modifier.Modifier
	if opts.TrustRegionSize > 0 {
		ls := modifier.NewLineSearch(opts.InitialAlphaScaling, 0.5, 1e-3)
		ls.TrustRegion = opts.TrustRegionSize
		meritMode, err := opts.MeritModeValue()
		if err != nil {
			panic(err)
		}
		ls.Mode = meritMode
		mod = ls
	} else {
		mod = modifier.NewAlphaScaling(opts.InitialAlphaScaling)
	}

	in := solver.Input{
		Dynamics: d,
		Costs:    []playercost.PlayerCost{cost},
		X0:       []float64{v.GetFloat64("px0"), v.GetFloat64("py0")},
		Logger:   &logger,
	}

	res, err := solver.Solve(in, opts, mod)
	if err != nil {
		panic(err)
	}

	logger.Info().
		Int("iterations", res.Iterations).
		Bool("timed_out", res.TimedOut).
		Msg("solve complete")

	if v.GetBool("save") {
		dir := v.GetString("experiment_name")
		if err := res.Log.Save(dir); err != nil {
			panic(err)
		}
		logger.Info().Str("dir", dir).Msg("log saved")
	}
}
