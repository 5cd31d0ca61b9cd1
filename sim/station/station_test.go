package station

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/internal/testutil"
	"github.com/inference-sim/simkernel/sim/random"
	"github.com/inference-sim/simkernel/sim/resource"
	"github.com/inference-sim/simkernel/sim/trace"
)

func constant(v float64) random.DistributionSpec {
	return random.DistributionSpec{Type: "constant", Value: v}
}

func exponential(mean float64) random.DistributionSpec {
	return random.DistributionSpec{Type: "exponential", Mean: mean}
}

func TestNetwork_MM1_MatchesTheory(t *testing.T) {
	if testing.Short() {
		t.Skip("long-run M/M/1 check")
	}
	// GIVEN an M/M/1 queue with arrival mean 1 and service mean 0.5
	cfg := DefaultNetworkConfig()
	cfg.Name = "mm1"
	cfg.Seed = 42
	cfg.Experiment.NumReplications = 10
	cfg.Experiment.ReplicationLength = 20000
	cfg.Experiment.WarmUpLength = 2000
	cfg.Arrivals.TimeBetween = exponential(1)
	cfg.Stations = []Config{{Name: "Server", Servers: 1, Service: exponential(0.5)}}
	n, err := Build(cfg)
	require.NoError(t, err)

	// WHEN the experiment runs
	res, err := n.Run()
	require.NoError(t, err)
	require.Len(t, res.Replications, 10)

	// THEN utilization and time in system agree with the closed form
	rho, w := TheoreticalMM1(1, 0.5)
	util := n.Stations[0].Pool().Utilization().Across()
	assert.InDelta(t, rho, util.Average(), util.HalfWidthDefault())
	sys := n.SystemTime().Across()
	assert.InDelta(t, w, sys.Average(), math.Max(3*sys.HalfWidthDefault(), 0.05))
	// Little's law with arrival rate 1
	assert.InDelta(t, w, n.Stations[0].NumInSystem().Across().Average(), 0.1)
}

func TestNetwork_TandemDeterministic(t *testing.T) {
	// GIVEN two stations with service 2 then 3, arrivals every 10
	cfg := DefaultNetworkConfig()
	cfg.Experiment.ReplicationLength = 100
	cfg.Arrivals.TimeBetween = constant(10)
	cfg.Stations = []Config{
		{Name: "A", Servers: 1, Service: constant(2)},
		{Name: "B", Servers: 1, Service: constant(3)},
	}
	n, err := Build(cfg)
	require.NoError(t, err)

	// WHEN one replication of length 100 runs
	_, err = n.Run()
	require.NoError(t, err)

	// THEN jobs arriving 10..90 leave after 5, the one at 100 is still in service
	assert.Equal(t, 9.0, n.NumDeparted().Across().Average())
	assert.Equal(t, 5.0, n.SystemTime().Across().Average())
	assert.Equal(t, 2.0, n.Stations[0].SystemTime().Across().Average())
	assert.Equal(t, 3.0, n.Stations[1].SystemTime().Across().Average())
	assert.Equal(t, 9.0, n.Stations[0].NumServed().Across().Average())
	// station A busy from 10k to 10k+2 for k = 1..9
	assert.InDelta(t, 0.18, n.Stations[0].Pool().Utilization().Across().Average(), 1e-12)
}

func TestNetwork_TransferTimeDelaysNextStation(t *testing.T) {
	// GIVEN the deterministic tandem with a transfer of 1 after station A
	cfg := DefaultNetworkConfig()
	cfg.Experiment.ReplicationLength = 100
	cfg.Arrivals.TimeBetween = constant(10)
	transfer := constant(1)
	cfg.Stations = []Config{
		{Name: "A", Servers: 1, Service: constant(2), Transfer: &transfer},
		{Name: "B", Servers: 1, Service: constant(3)},
	}
	n, err := Build(cfg)
	require.NoError(t, err)

	// WHEN it runs
	_, err = n.Run()
	require.NoError(t, err)

	// THEN each job spends 2 + 1 + 3 in the network
	assert.Equal(t, 6.0, n.SystemTime().Across().Average())
	assert.Equal(t, 3.0, n.Stations[1].SystemTime().Across().Average())
}

func TestNetwork_UnschedulableDepartureAbortsReplication(t *testing.T) {
	// GIVEN a transfer time that draws a negative delay
	cfg := DefaultNetworkConfig()
	cfg.Experiment.NumReplications = 2
	cfg.Experiment.ReplicationLength = 100
	cfg.Arrivals.TimeBetween = constant(10)
	transfer := constant(-1)
	cfg.Stations = []Config{
		{Name: "A", Servers: 1, Service: constant(2), Transfer: &transfer},
		{Name: "B", Servers: 1, Service: constant(3)},
	}
	n, err := Build(cfg)
	require.NoError(t, err)

	// WHEN it runs
	res, err := n.Run()

	// THEN the causality error surfaces instead of the run carrying on
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrInvalidEventTime)
	var re *sim.ReplicationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1, re.Replication)
	assert.Empty(t, res.Replications)
	assert.Equal(t, 0.0, n.NumDeparted().Value())
}

func TestNetwork_FailureInterruptsService(t *testing.T) {
	// GIVEN a server failing at 12 for 3 while serving a resumable job that arrived at 10
	cfg := DefaultNetworkConfig()
	cfg.Experiment.ReplicationLength = 20
	cfg.Arrivals.TimeBetween = constant(10)
	first := constant(12)
	cfg.Stations = []Config{{
		Name:       "S",
		Servers:    1,
		Service:    constant(4),
		Preemption: resource.Resume,
		Failures: &FailureConfig{
			TimeToFirst: &first,
			TimeBetween: constant(15),
			Duration:    constant(3),
		},
	}}
	cfg.Trace.Level = trace.TraceLevelTransitions
	n, err := Build(cfg)
	require.NoError(t, err)

	// WHEN the replication runs
	_, err = n.Run()
	require.NoError(t, err)

	// THEN the job resumes at 15 and leaves at 17
	assert.Equal(t, 7.0, n.SystemTime().Across().Average())
	sum := trace.Summarize(n.Trace)
	assert.Equal(t, 1, sum.ByTarget["unit:failed"])
	assert.Equal(t, 1, sum.ByTarget["request:preempted"])
	assert.Equal(t, 1, sum.ByTarget["notice:completed"])
	assert.Equal(t, 1, sum.StopReasons[string(sim.StopTimeLimit)])
}

func TestParseConfig(t *testing.T) {
	doc := `
name: mm1
seed: 7
streams: lecuyer
experiment:
  num_replications: 2
  replication_length: 100
arrivals:
  time_between: {type: exponential, mean: 1}
stations:
  - name: Server
    servers: 2
    selection: cyclic
    service: {type: exponential, mean: 0.5}
    inactivity:
      periods: [{start: 10, duration: 5}]
      cycle_length: 50
trace:
  level: transitions
`
	cfg, err := ParseConfig(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "mm1", cfg.Name)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 2, cfg.Experiment.NumReplications)
	assert.Equal(t, 100.0, cfg.Experiment.ReplicationLength)
	assert.True(t, cfg.Experiment.ResetStartStream, "unset experiment fields keep their defaults")
	require.Len(t, cfg.Stations, 1)
	assert.Equal(t, "cyclic", cfg.Stations[0].Selection)
	require.NotNil(t, cfg.Stations[0].Inactivity)
	assert.Equal(t, 50.0, cfg.Stations[0].Inactivity.CycleLength)

	n, err := Build(cfg)
	require.NoError(t, err)
	assert.Len(t, n.Stations[0].Pool().Units(), 2)
	assert.NotNil(t, n.Trace)
	assert.Equal(t, "mm1", n.Model.Experiment().Name)
}

func TestBuild_ExperimentName(t *testing.T) {
	base := func() NetworkConfig {
		cfg := DefaultNetworkConfig()
		cfg.Name = "clinic"
		cfg.Experiment.ReplicationLength = 10
		cfg.Arrivals.TimeBetween = constant(1)
		cfg.Stations = []Config{{Name: "S", Servers: 1, Service: constant(1)}}
		return cfg
	}

	// GIVEN no experiment name THEN the network name labels the results
	n, err := Build(base())
	require.NoError(t, err)
	res, err := n.Run()
	require.NoError(t, err)
	assert.Equal(t, "clinic", res.Experiment)

	// GIVEN an explicit experiment name THEN it wins
	cfg := base()
	cfg.Experiment.Name = "baseline"
	n, err = Build(cfg)
	require.NoError(t, err)
	assert.Equal(t, "baseline", n.Model.Experiment().Name)
}

func TestNetwork_LEcuyerStreams_SameSeedSameResults(t *testing.T) {
	build := func(seed int64) *Network {
		cfg := DefaultNetworkConfig()
		cfg.Seed = seed
		cfg.Streams = "lecuyer"
		cfg.Experiment.NumReplications = 3
		cfg.Experiment.ReplicationLength = 500
		cfg.Arrivals.TimeBetween = exponential(2)
		cfg.Stations = []Config{
			{Name: "A", Servers: 2, Selection: "random", Service: exponential(1.5)},
			{Name: "B", Servers: 1, Service: exponential(1)},
		}
		n, err := Build(cfg)
		require.NoError(t, err)
		return n
	}
	run := func(n *Network) *sim.ExperimentResult {
		res, err := n.Run()
		require.NoError(t, err)
		return res
	}

	// GIVEN the same lecuyer network built twice in one process
	a, b := run(build(7)), run(build(7))

	// THEN every replication record matches (compared as text so NaN equals NaN)
	require.Len(t, a.Replications, 3)
	for i := range a.Replications {
		assert.Equal(t, fmt.Sprintf("%+v", a.Replications[i].Records), fmt.Sprintf("%+v", b.Replications[i].Records))
	}
	assert.Equal(t, fmt.Sprintf("%+v", a.Summaries), fmt.Sprintf("%+v", b.Summaries))

	// AND a different seed changes the sample path
	c := run(build(99))
	assert.NotEqual(t, fmt.Sprintf("%+v", a.Replications[0].Records), fmt.Sprintf("%+v", c.Replications[0].Records))
}

func TestParseConfig_RejectsUnknownFields(t *testing.T) {
	_, err := ParseConfig(strings.NewReader("name: x\nstatoins: []\n"))
	assert.Error(t, err)
}

func TestBuild_InvalidConfig(t *testing.T) {
	valid := func() NetworkConfig {
		cfg := DefaultNetworkConfig()
		cfg.Experiment.ReplicationLength = 10
		cfg.Arrivals.TimeBetween = constant(1)
		cfg.Stations = []Config{{Name: "S", Servers: 1, Service: constant(1)}}
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(c *NetworkConfig)
		config bool // expect a *sim.ConfigError
	}{
		{name: "no stations", mutate: func(c *NetworkConfig) { c.Stations = nil }, config: true},
		{name: "zero servers", mutate: func(c *NetworkConfig) { c.Stations[0].Servers = 0 }, config: true},
		{name: "bad streams", mutate: func(c *NetworkConfig) { c.Streams = "dice" }, config: true},
		{name: "bad trace level", mutate: func(c *NetworkConfig) { c.Trace.Level = "verbose" }, config: true},
		{name: "bad preemption", mutate: func(c *NetworkConfig) { c.Stations[0].Preemption = "sometimes" }, config: true},
		{name: "bad conflict policy", mutate: func(c *NetworkConfig) { c.Stations[0].Conflict = "shrug" }, config: true},
		{name: "bad experiment", mutate: func(c *NetworkConfig) { c.Experiment.NumReplications = 0 }, config: true},
		{name: "bad selection", mutate: func(c *NetworkConfig) { c.Stations[0].Selection = "best" }, config: true},
		{name: "bad service", mutate: func(c *NetworkConfig) { c.Stations[0].Service = random.DistributionSpec{Type: "zipf"} }},
		{name: "missing arrivals", mutate: func(c *NetworkConfig) { c.Arrivals.TimeBetween = random.DistributionSpec{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			_, err := Build(cfg)
			require.Error(t, err)
			if tt.config {
				assert.True(t, sim.IsConfigError(err), "got %v", err)
			}
		})
	}

	_, err := Build(valid())
	assert.NoError(t, err)
}

func TestTheoreticalMM1(t *testing.T) {
	rho, w := TheoreticalMM1(1, 0.5)
	assert.Equal(t, 0.5, rho)
	assert.Equal(t, 1.0, w)
	rho, w = TheoreticalMM1(4, 3)
	testutil.AssertFloat64Equal(t, "rho", 0.75, rho, 1e-12)
	testutil.AssertFloat64Equal(t, "W", 12, w, 1e-12)
	_, w = TheoreticalMM1(1, 2)
	assert.True(t, math.IsNaN(w))
}
