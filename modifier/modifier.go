// Package modifier implements step-size control on the LQ update
// (spec.md §4.7): fixed alpha-scaling, and a line-search/trust-region
// variant that trial-rolls-out and halves gamma on failed progress.
// Grounded on gosl's NlSolver (github.com/.../gosl/num, retrieved in
// other_examples) whose linSearch/linSchMaxIt fields and trial-step
// halving loop this generalizes from scalar Newton step control to
// vector affine-offset step control.
package modifier

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/federicomassa/ilqgames/errs"
	"github.com/federicomassa/ilqgames/strategy"
)

// Modifier produces the (P, alpha) actually used in the next rollout
// from a candidate produced by the LQ solve. Implementations must
// never change P, only alpha; must be idempotent at gamma=1; and must
// preserve lengths and dimensions (spec.md §4.7).
type Modifier interface {
	// Modify returns the damped strategies to roll out next. evaluate,
	// when non-nil, lets a line-search variant trial-rollout and score
	// candidate strategies; fixed modifiers ignore it.
	Modify(candidate []*strategy.Strategy, evaluate func([]*strategy.Strategy) (merit float64, err error)) ([]*strategy.Strategy, error)
}

// scaleAlpha returns a deep copy of candidate with every Alpha(k)
// scaled by gamma; P is left untouched.
func scaleAlpha(candidate []*strategy.Strategy, gamma float64) []*strategy.Strategy {
	out := make([]*strategy.Strategy, len(candidate))
	for i, s := range candidate {
		clone := s.Clone()
		for k := range clone.Alpha {
			clone.Alpha[k].ScaleVec(gamma, clone.Alpha[k])
		}
		out[i] = clone
	}
	return out
}

// clipAlphaNorm rescales, per time step, any alpha_i(k) whose infinity
// norm exceeds trustRegion so that it is exactly at the boundary, the
// optional hard clip spec.md §9 permits as an alternative to pure
// multiplicative scaling.
func clipAlphaNorm(strategies []*strategy.Strategy, trustRegion float64) {
	if trustRegion <= 0 {
		return
	}
	for _, s := range strategies {
		for k := range s.Alpha {
			n := infNorm(s.Alpha[k])
			if n > trustRegion {
				s.Alpha[k].ScaleVec(trustRegion/n, s.Alpha[k])
			}
		}
	}
}

func infNorm(v *mat.VecDense) float64 {
	return floats.Norm(v.RawVector().Data, math.Inf(1))
}

// AlphaScaling is the default modifier: a constant multiplicative
// damping factor gamma in (0, 1], plus an optional hard trust-region
// clip on ||alpha(k)||_inf.
type AlphaScaling struct {
	Gamma       float64
	TrustRegion float64 // 0 disables the clip
}

func NewAlphaScaling(gamma float64) *AlphaScaling {
	return &AlphaScaling{Gamma: gamma}
}

func (m *AlphaScaling) Modify(candidate []*strategy.Strategy, _ func([]*strategy.Strategy) (float64, error)) ([]*strategy.Strategy, error) {
	out := scaleAlpha(candidate, m.Gamma)
	clipAlphaNorm(out, m.TrustRegion)
	return out, nil
}

// MeritMode selects the progress criterion LineSearch uses to accept
// a trial gamma (spec.md §4.7 leaves this open; §C.4 of SPEC_FULL.md
// supplements both).
type MeritMode int

const (
	MeritResidualNorm MeritMode = iota
	MeritTrajectoryCost
)

// LineSearch implements trust-region/line-search step control: starting
// from InitialGamma, it evaluates the trial strategies via evaluate,
// accepts the first gamma along a descending schedule that improves
// the merit relative to the previous iterate's merit, and halves gamma
// on failure until Floor is reached.
type LineSearch struct {
	InitialGamma float64
	ShrinkFactor float64 // e.g. 0.5
	Floor        float64
	TrustRegion  float64 // 0 disables the clip
	Mode         MeritMode
	// lastMerit is the merit of the previously accepted iterate; nil on
	// the first call, in which case the first trial is always accepted.
	lastMerit *float64
}

func NewLineSearch(initialGamma, shrinkFactor, floor float64) *LineSearch {
	return &LineSearch{InitialGamma: initialGamma, ShrinkFactor: shrinkFactor, Floor: floor, Mode: MeritTrajectoryCost}
}

func (m *LineSearch) Modify(candidate []*strategy.Strategy, evaluate func([]*strategy.Strategy) (float64, error)) ([]*strategy.Strategy, error) {
	gamma := m.InitialGamma
	for gamma >= m.Floor {
		trial := scaleAlpha(candidate, gamma)
		clipAlphaNorm(trial, m.TrustRegion)

		merit, err := m.merit(trial, evaluate)
		if err != nil {
			gamma *= m.ShrinkFactor
			continue
		}
		if m.lastMerit == nil || merit <= *m.lastMerit {
			m.lastMerit = &merit
			return trial, nil
		}
		gamma *= m.ShrinkFactor
	}
	return nil, errs.NewModifierFailure(gamma, m.Floor)
}

// merit computes the trial's progress criterion according to m.Mode:
// MeritResidualNorm uses the magnitude of the (post-clip) alpha update
// itself, with no rollout needed; MeritTrajectoryCost defers to
// evaluate, which trial-rolls-out and sums per-player trajectory cost.
func (m *LineSearch) merit(trial []*strategy.Strategy, evaluate func([]*strategy.Strategy) (float64, error)) (float64, error) {
	if m.Mode == MeritResidualNorm {
		return residualNorm(trial), nil
	}
	return evaluate(trial)
}

// residualNorm returns max over players and time steps of ||alpha_i(k)||_inf.
func residualNorm(strategies []*strategy.Strategy) float64 {
	max := 0.0
	for _, s := range strategies {
		for k := range s.Alpha {
			if n := infNorm(s.Alpha[k]); n > max {
				max = n
			}
		}
	}
	return max
}
