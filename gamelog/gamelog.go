// Package gamelog implements the append-only iterate log (spec.md
// §3, §6) and its directory persistence format: one directory per
// iteration, zero-padded, containing xs.txt (one row per time step,
// whitespace-separated joint state) and costs.txt (one row, one
// per-player total trajectory cost). Grounded on the teacher's
// fem/summary.go (Summary.SaveDomains appending one entry per output
// time) and fem/fileio.go (zero-padded, per-timestep file naming),
// generalized from per-domain FEM result snapshots to per-iteration
// game snapshots.
package gamelog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/federicomassa/ilqgames/strategy"
)

// Entry is one iteration's logged pair, plus the supplemented
// per-player cost breakdown (SPEC_FULL.md §C.2): state-cost and
// control-cost subtotals alongside the total.
type Entry struct {
	OperatingPoint *strategy.OperatingPoint
	Strategies     []*strategy.Strategy
	TotalCost      []float64 // [N]
	StateCost      []float64 // [N]
	ControlCost    []float64 // [N]
}

// Log is the append-only sequence of iterates produced by one Solve
// call, bounded by the iteration cap.
type Log struct {
	Entries []Entry
}

// Append adds one iteration's entry. Per spec.md §3, the log is
// append-only: there is no Remove/Truncate.
func (l *Log) Append(e Entry) { l.Entries = append(l.Entries, e) }

// Save persists every entry under dir, one zero-padded subdirectory
// per iteration index, each with xs.txt and costs.txt.
func (l *Log) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "gamelog: cannot create log directory")
	}
	width := len(strconv.Itoa(len(l.Entries)))
	if width < 2 {
		width = 2
	}
	for idx, e := range l.Entries {
		sub := filepath.Join(dir, fmt.Sprintf("%0*d", width, idx))
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return errors.Wrapf(err, "gamelog: cannot create iterate directory %s", sub)
		}
		if err := writeXs(filepath.Join(sub, "xs.txt"), e.OperatingPoint); err != nil {
			return err
		}
		if err := writeCosts(filepath.Join(sub, "costs.txt"), e.TotalCost); err != nil {
			return err
		}
	}
	return nil
}

func writeXs(path string, op *strategy.OperatingPoint) error {
	var b strings.Builder
	for k := 0; k < op.Horizon(); k++ {
		n := op.X0[k].Len()
		for i := 0; i < n; i++ {
			if i > 0 {
				b.WriteByte(' ')
			}
			fmt.Fprintf(&b, "%g", op.X0[k].AtVec(i))
		}
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeCosts(path string, totals []float64) error {
	var b strings.Builder
	for i, c := range totals {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%g", c)
	}
	b.WriteByte('\n')
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
