// Package errs defines the error taxonomy surfaced at the Solve call
// site: configuration errors detected before any iteration, linear
// algebra failures in the coupled Riccati solve, step-control
// failures in the modifier, and convergence timeout (which is a
// success condition, not an error; see solver.Result.TimedOut).
package errs

import "github.com/pkg/errors"

// ConfigError reports a dimension mismatch between strategies, the
// operating point, dynamics, or costs, detected before iteration
// begins.
type ConfigError struct {
	msg string
}

func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{msg: errors.Errorf(format, args...).Error()}
}

func (e *ConfigError) Error() string { return "config error: " + e.msg }

// LinAlgFailure reports that S(k) was effectively singular despite
// regularization, at time index K.
type LinAlgFailure struct {
	K     int
	cause error
}

func NewLinAlgFailure(k int, cause error) *LinAlgFailure {
	return &LinAlgFailure{K: k, cause: errors.Wrap(cause, "coupling system solve failed")}
}

func (e *LinAlgFailure) Error() string {
	return errors.Wrapf(e.cause, "lin alg failure at k=%d", e.K).Error()
}

func (e *LinAlgFailure) Unwrap() error { return e.cause }

// ModifierFailure reports that step control could not find a usable
// gamma above its floor.
type ModifierFailure struct {
	LastGamma float64
	Floor     float64
}

func NewModifierFailure(lastGamma, floor float64) *ModifierFailure {
	return &ModifierFailure{LastGamma: lastGamma, Floor: floor}
}

func (e *ModifierFailure) Error() string {
	return errors.Errorf("modifier failure: gamma %.3e fell below floor %.3e", e.LastGamma, e.Floor).Error()
}
