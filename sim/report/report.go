// Package report renders experiment results as plain text.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/trace"
)

// Options selects optional report sections.
type Options struct {
	// Replications adds one line per replication.
	Replications bool
	// Trace adds the transition counts of a trace summary. Nil omits the section.
	Trace *trace.TraceSummary
}

// Write renders res to w. Wall-clock times are left out so the output only
// depends on the model, the seed and the experiment.
func Write(w io.Writer, res *sim.ExperimentResult, opts Options) error {
	p := &printer{w: w}
	p.line("=== Experiment: %s ===", res.Experiment)
	p.line("Run ID               : %s", res.RunID)
	p.line("Replications         : %d", len(res.Replications))
	p.line("Truncated            : %t", res.Truncated)
	p.line("Elements             : %d", len(res.Elements))

	if opts.Replications && len(res.Replications) > 0 {
		p.line("")
		p.line("=== Replications ===")
		p.line("%4s  %-18s %14s %10s %s", "#", "Stop reason", "End time", "Events", "Partial")
		for _, r := range res.Replications {
			p.line("%4d  %-18s %14s %10d %t", r.Number, r.StopReason, num(r.EndTime), r.EventsDispatched, r.Partial)
		}
	}

	if len(res.Summaries) > 0 {
		p.line("")
		p.line("=== Across-replication summaries ===")
		p.line("%-36s %6s %14s %14s %14s %14s %14s", "Response", "Count", "Average", "Half-width", "Std dev", "Min", "Max")
		for _, s := range res.Summaries {
			p.line("%-36s %6d %14s %14s %14s %14s %14s",
				clip(s.ElementName, 36), s.Count, num(s.Average), num(s.HalfWidth), num(s.StdDev), num(s.Min), num(s.Max))
		}
		for _, s := range res.Summaries {
			if s.Batch == nil {
				continue
			}
			b := s.Batch
			p.line("  %s batch means: %d batches of %d (%d rebatches), average %s, half-width %s",
				s.ElementName, b.NumBatches, b.BatchSize, b.NumRebatches, num(b.Average), num(b.HalfWidth))
		}
	}

	if opts.Trace != nil {
		p.line("")
		p.line("=== Trace Summary ===")
		p.line("Total transitions    : %d", opts.Trace.TotalTransitions)
		p.line("Dropped              : %d", opts.Trace.Dropped)
		p.line("Unique elements      : %d", opts.Trace.UniqueElements)
		for _, k := range sortedKeys(opts.Trace.ByTarget) {
			p.line("  %-30s %d", k, opts.Trace.ByTarget[k])
		}
		for _, k := range sortedKeys(opts.Trace.StopReasons) {
			p.line("  stop %-25s %d", k, opts.Trace.StopReasons[k])
		}
	}
	return p.err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

// num prints finite values with 4 decimals and NaN / Inf as words.
func num(v float64) string {
	switch {
	case math.IsNaN(v):
		return "n/a"
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return fmt.Sprintf("%.4f", v)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders res with default options.
func String(res *sim.ExperimentResult) string {
	var b strings.Builder
	_ = Write(&b, res, Options{})
	return b.String()
}
