package config_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federicomassa/ilqgames/config"
	"github.com/federicomassa/ilqgames/modifier"
)

func TestLoadAppliesDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse(nil))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))

	opts, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 2.0, opts.TimeHorizon)
	assert.Equal(t, 0.1, opts.TimeStep)
	assert.Equal(t, 50, opts.MaxIterations)
	assert.Equal(t, 20, opts.Steps)
	assert.Equal(t, "trajectory_cost", opts.MeritMode)
}

func TestValidateRejectsUnknownMeritMode(t *testing.T) {
	o := &config.Options{}
	o.SetDefaults()
	o.MeritMode = "bogus"
	assert.Error(t, o.Validate())
}

func TestMeritModeValueResolvesKnownModes(t *testing.T) {
	o := &config.Options{}
	o.SetDefaults()
	o.MeritMode = "residual_norm"
	mode, err := o.MeritModeValue()
	require.NoError(t, err)
	assert.Equal(t, modifier.MeritResidualNorm, mode)

	o.MeritMode = "trajectory_cost"
	mode, err = o.MeritModeValue()
	require.NoError(t, err)
	assert.Equal(t, modifier.MeritTrajectoryCost, mode)
}

func TestLoadRespectsFlagOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--time_horizon=4", "--time_step=0.5"}))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))

	opts, err := config.Load(v)
	require.NoError(t, err)
	assert.Equal(t, 4.0, opts.TimeHorizon)
	assert.Equal(t, 0.5, opts.TimeStep)
	assert.Equal(t, 8, opts.Steps)
}

func TestValidateRejectsBadAlphaScaling(t *testing.T) {
	o := &config.Options{}
	o.SetDefaults()
	o.InitialAlphaScaling = 1.5
	assert.Error(t, o.Validate())
}

func TestValidateRejectsNonPositiveTimeStep(t *testing.T) {
	o := &config.Options{}
	o.SetDefaults()
	o.TimeStep = 0
	assert.Error(t, o.Validate())
}
