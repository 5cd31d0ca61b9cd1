package report

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/internal/testutil"
	"github.com/inference-sim/simkernel/sim/stats"
	"github.com/inference-sim/simkernel/sim/trace"
)

func demoResult() *sim.ExperimentResult {
	return &sim.ExperimentResult{
		RunID:      "run-0001",
		Experiment: "demo",
		Elements:   make([]sim.ElementInfo, 5),
		Replications: []sim.ReplicationResult{
			{Number: 1, StopReason: sim.StopTimeLimit, EndTime: 100, EventsDispatched: 412},
			{Number: 2, StopReason: sim.StopWallClockBudget, Partial: true, EndTime: 57.25, EventsDispatched: 233},
		},
		Summaries: []stats.Summary{
			{ElementName: "Server:SystemTime", Count: 2, Average: 1.25, HalfWidth: 0.5, StdDev: 0.0625, Min: 1.2, Max: 1.3},
			{
				ElementName: "Server:Servers:Utilization", Count: 2, Average: 0.5, HalfWidth: math.NaN(), Min: 0.5, Max: 0.5,
				Batch: &stats.BatchSummary{
					Summary:      stats.Summary{Average: 0.5, HalfWidth: 0.01},
					NumBatches:   20,
					BatchSize:    32,
					NumRebatches: 1,
				},
			},
			{ElementName: "AVeryLongElementNameThatDoesNotFitTheColumn", Count: 1, Average: 3, HalfWidth: math.NaN(), StdDev: math.NaN(), Min: 3, Max: 3},
		},
	}
}

func TestWrite_Golden(t *testing.T) {
	tests := []struct {
		name string
		res  *sim.ExperimentResult
		opts Options
	}{
		{
			name: "full",
			res:  demoResult(),
			opts: Options{
				Replications: true,
				Trace: &trace.TraceSummary{
					TotalTransitions: 10,
					UniqueElements:   3,
					ByTarget:         map[string]int{"unit:busy": 4, "request:allocated": 4, "unit:idle": 2},
					StopReasons:      map[string]int{"time-limit": 1},
				},
			},
		},
		{
			name: "empty",
			res:  &sim.ExperimentResult{Experiment: "empty", Truncated: true},
			opts: Options{Replications: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, tt.res, tt.opts))
			testutil.AssertGolden(t, tt.name, buf.Bytes())
		})
	}
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n == 0 {
		return 0, errors.New("disk full")
	}
	w.n--
	return len(p), nil
}

func TestWrite_StopsAtFirstWriteError(t *testing.T) {
	w := &failingWriter{n: 2}
	err := Write(w, demoResult(), Options{Replications: true})
	assert.EqualError(t, err, "disk full")
	assert.Equal(t, 0, w.n)
}

func TestString_OmitsReplications(t *testing.T) {
	out := String(demoResult())
	assert.Contains(t, out, "=== Experiment: demo ===")
	assert.NotContains(t, out, "=== Replications ===")
	assert.Contains(t, out, "Server:SystemTime")
}
