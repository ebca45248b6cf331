// Package config defines the solver configuration surface (spec.md
// §6), layered over flags/env/file via viper, the way the teacher's
// inp.SolverData layers JSON-file values over SetDefault/PostProcess
// (inp/sim.go's ReadSim). Generalized here from a single JSON file to
// viper's flag > env > file > default precedence.
package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/federicomassa/ilqgames/errs"
	"github.com/federicomassa/ilqgames/modifier"
)

// Options holds every solver-configuration row from spec.md §6.
type Options struct {
	TimeHorizon           float64 `mapstructure:"time_horizon"`
	TimeStep              float64 `mapstructure:"time_step"`
	MaxIterations          int     `mapstructure:"max_iterations"`
	ConvergenceTolerance  float64 `mapstructure:"convergence_tolerance"`
	InitialAlphaScaling   float64 `mapstructure:"initial_alpha_scaling"`
	TrustRegionSize       float64 `mapstructure:"trust_region_size"`
	ExponentialConstant   float64 `mapstructure:"exponential_constant"`
	ControlCostWeight     float64 `mapstructure:"control_cost_weight"`
	OpenLoop              bool    `mapstructure:"open_loop"`
	// MeritMode selects the LineSearch modifier's progress criterion
	// (SPEC_FULL.md §C.4): "residual_norm" or "trajectory_cost".
	MeritMode string `mapstructure:"merit_mode"`

	// derived
	Steps int `mapstructure:"-"`
}

// SetDefaults fills every option with spec.md §6/§4.8's stated
// defaults, mirroring inp.SolverData.SetDefault's role of seeding
// values before any file/flag overlay is applied.
func (o *Options) SetDefaults() {
	o.TimeHorizon = 2.0
	o.TimeStep = 0.1
	o.MaxIterations = 50
	o.ConvergenceTolerance = 0.1
	o.InitialAlphaScaling = 1.0
	o.TrustRegionSize = 0 // disabled
	o.ExponentialConstant = 0
	o.ControlCostWeight = 1.0
	o.OpenLoop = false
	o.MeritMode = "trajectory_cost"
}

// PostProcess derives Steps = ceil(horizon/dt), mirroring
// inp.SolverData.PostProcess's role of computing derived fields after
// the raw values are known.
func (o *Options) PostProcess() {
	if o.TimeStep <= 0 {
		o.Steps = 0
		return
	}
	steps := o.TimeHorizon / o.TimeStep
	o.Steps = int(steps)
	if steps-float64(o.Steps) > 1e-9 {
		o.Steps++
	}
}

// Validate checks the invariants spec.md requires before iteration
// begins; failures are ConfigErrors (spec.md §7).
func (o *Options) Validate() error {
	if o.TimeStep <= 0 {
		return errs.NewConfigError("config: time_step must be positive, got %g", o.TimeStep)
	}
	if o.TimeHorizon <= 0 {
		return errs.NewConfigError("config: time_horizon must be positive, got %g", o.TimeHorizon)
	}
	if o.MaxIterations <= 0 {
		return errs.NewConfigError("config: max_iterations must be positive, got %d", o.MaxIterations)
	}
	if o.ConvergenceTolerance <= 0 {
		return errs.NewConfigError("config: convergence_tolerance must be positive, got %g", o.ConvergenceTolerance)
	}
	if o.InitialAlphaScaling <= 0 || o.InitialAlphaScaling > 1 {
		return errs.NewConfigError("config: initial_alpha_scaling must be in (0, 1], got %g", o.InitialAlphaScaling)
	}
	if o.ExponentialConstant < 0 {
		return errs.NewConfigError("config: exponential_constant must be >= 0, got %g", o.ExponentialConstant)
	}
	if _, err := o.MeritModeValue(); err != nil {
		return err
	}
	return nil
}

// MeritModeValue parses MeritMode into the modifier.MeritMode the
// LineSearch modifier expects.
func (o *Options) MeritModeValue() (modifier.MeritMode, error) {
	switch o.MeritMode {
	case "residual_norm":
		return modifier.MeritResidualNorm, nil
	case "trajectory_cost":
		return modifier.MeritTrajectoryCost, nil
	default:
		return 0, errs.NewConfigError("config: merit_mode must be \"residual_norm\" or \"trajectory_cost\", got %q", o.MeritMode)
	}
}

// BindFlags registers the §6 option flags on fs with a "--" prefix,
// matching the CLI surface spec.md §6 describes for example drivers.
func BindFlags(fs *pflag.FlagSet) {
	fs.Float64("time_horizon", 2.0, "horizon in seconds")
	fs.Float64("time_step", 0.1, "integration step dt")
	fs.Int("max_iterations", 50, "outer-loop iteration cap")
	fs.Float64("convergence_tolerance", 0.1, "eps_x = eps_u")
	fs.Float64("initial_alpha_scaling", 1.0, "initial gamma passed to the modifier")
	fs.Float64("trust_region_size", 0, "max ||alpha||_inf cap; 0 disables")
	fs.Float64("exponential_constant", 0, "shared risk-sensitivity constant a; 0 disables")
	fs.Float64("control_cost_weight", 1.0, "uniform weight for example quadratic control costs")
	fs.Bool("open_loop", false, "rollout/evaluation variant: x_delta = 0 in rollout")
	fs.String("merit_mode", "trajectory_cost", "LineSearch progress criterion: residual_norm or trajectory_cost")
}

// Load builds Options from a viper instance that has already had
// flags bound (via BindFlags + v.BindPFlags) and, optionally, a
// config file/env layer set up by the caller, the layered
// generalization of inp.ReadSim's "defaults, then file" method.
func Load(v *viper.Viper) (*Options, error) {
	o := &Options{}
	o.SetDefaults()
	if err := v.Unmarshal(o); err != nil {
		return nil, errs.NewConfigError("config: cannot unmarshal options: %v", err)
	}
	o.PostProcess()
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}
