package station

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inference-sim/simkernel/sim"
	"github.com/inference-sim/simkernel/sim/queue"
	"github.com/inference-sim/simkernel/sim/random"
	"github.com/inference-sim/simkernel/sim/resource"
	"github.com/inference-sim/simkernel/sim/trace"
)

// NetworkConfig describes a tandem network of stations fed by one arrival process.
// All sections must be listed to satisfy KnownFields(true) strict parsing.
type NetworkConfig struct {
	Name       string         `yaml:"name"`
	Seed       int64          `yaml:"seed"`
	Streams    string         `yaml:"streams"` // "pcg" or "lecuyer"
	Experiment sim.Experiment `yaml:"experiment"`
	Arrivals   ArrivalConfig  `yaml:"arrivals"`
	Stations   []Config       `yaml:"stations"`
	Trace      TraceConfig    `yaml:"trace"`
}

// ArrivalConfig configures the job source.
type ArrivalConfig struct {
	TimeUntilFirst *random.DistributionSpec `yaml:"time_until_first,omitempty"`
	TimeBetween    random.DistributionSpec  `yaml:"time_between"`
	MaxArrivals    int64                    `yaml:"max_arrivals,omitempty"`
}

// Config configures one station.
type Config struct {
	Name         string                     `yaml:"name"`
	Servers      int                        `yaml:"servers"`
	Service      random.DistributionSpec    `yaml:"service"`
	Transfer     *random.DistributionSpec   `yaml:"transfer_time,omitempty"` // delay before the next station
	Selection    string                     `yaml:"selection,omitempty"`
	Discipline   queue.Discipline           `yaml:"discipline,omitempty"`
	Preemption   resource.PreemptionRule    `yaml:"preemption,omitempty"`
	FailureDelay *bool                      `yaml:"failure_delay,omitempty"` // default true
	Conflict     resource.ConflictPolicy    `yaml:"conflict_policy,omitempty"`
	Failures     *FailureConfig             `yaml:"failures,omitempty"`
	Inactivity   *resource.InactivityConfig `yaml:"inactivity,omitempty"`
}

// FailureConfig attaches a failure process to every server of a station.
type FailureConfig struct {
	TimeToFirst *random.DistributionSpec `yaml:"time_to_first,omitempty"`
	TimeBetween random.DistributionSpec  `yaml:"time_between"`
	Duration    random.DistributionSpec  `yaml:"duration"`
	Delayable   bool                     `yaml:"delayable"`
	// CountIgnored makes ignored failure notices count as failures.
	CountIgnored bool `yaml:"count_ignored"`
}

// TraceConfig selects transition tracing.
type TraceConfig struct {
	Level      trace.TraceLevel `yaml:"level"`
	MaxRecords int              `yaml:"max_records,omitempty"`
}

// DefaultNetworkConfig is overlaid by the parsed file. The experiment name is
// left empty so that Build labels the experiment with the network name.
func DefaultNetworkConfig() NetworkConfig {
	exp := sim.DefaultExperiment()
	exp.Name = ""
	return NetworkConfig{
		Name:       "network",
		Streams:    "pcg",
		Experiment: exp,
		Trace:      TraceConfig{Level: trace.TraceLevelNone},
	}
}

// ParseConfig decodes a network config over the defaults, rejecting unknown fields.
func ParseConfig(r io.Reader) (NetworkConfig, error) {
	cfg := DefaultNetworkConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse network config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and parses a network config file.
func LoadConfig(path string) (NetworkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NetworkConfig{}, fmt.Errorf("read network config: %w", err)
	}
	return ParseConfig(bytes.NewReader(data))
}

// Network is a built model: a source feeding stations in sequence.
type Network struct {
	Model    *sim.Model
	Source   *sim.EventGenerator
	Stations []*Station
	Trace    *trace.SimulationTrace

	systemTime *sim.Response
	departed   *sim.Counter
}

// Build validates cfg and assembles the model.
func Build(cfg NetworkConfig) (*Network, error) {
	if len(cfg.Stations) == 0 {
		return nil, &sim.ConfigError{Field: "stations", Reason: "at least one station is required"}
	}
	if !trace.IsValidTraceLevel(string(cfg.Trace.Level)) {
		return nil, &sim.ConfigError{Field: "trace.level", Reason: fmt.Sprintf("unknown trace level %q", cfg.Trace.Level)}
	}
	var streams *random.Provider
	switch cfg.Streams {
	case "", "pcg":
		streams = random.NewProvider(random.SeedKey(cfg.Seed))
	case "lecuyer":
		streams = random.NewProviderWith(random.SeedKey(cfg.Seed), random.LEcuyerFactory)
	default:
		return nil, &sim.ConfigError{Field: "streams", Reason: fmt.Sprintf("unknown stream kind %q, valid: pcg, lecuyer", cfg.Streams)}
	}
	if err := cfg.Experiment.Validate(); err != nil {
		return nil, err
	}
	if cfg.Experiment.Name == "" {
		cfg.Experiment.Name = cfg.Name
	}

	m := sim.NewModel(cfg.Name, streams)
	m.SetExperiment(cfg.Experiment)
	n := &Network{Model: m}
	if cfg.Trace.Level != trace.TraceLevelNone {
		n.Trace = trace.NewSimulationTrace(trace.TraceConfig{Level: cfg.Trace.Level, MaxRecords: cfg.Trace.MaxRecords})
		m.SetTrace(n.Trace)
	}

	for i, sc := range cfg.Stations {
		st, err := buildStation(m, sc)
		if err != nil {
			return nil, fmt.Errorf("stations[%d]: %w", i, err)
		}
		if i > 0 {
			n.Stations[i-1].SetNext(st)
		}
		n.Stations = append(n.Stations, st)
	}
	var err error
	if n.systemTime, err = sim.NewResponse(m.Element, m.Name()+":SystemTime"); err != nil {
		return nil, err
	}
	if n.departed, err = sim.NewCounter(m.Element, m.Name()+":NumDeparted"); err != nil {
		return nil, err
	}
	n.Stations[len(n.Stations)-1].SetExit(n.leave)

	between, err := cfg.Arrivals.TimeBetween.Build()
	if err != nil {
		return nil, fmt.Errorf("arrivals.time_between: %w", err)
	}
	gc := sim.GeneratorConfig{TimeBetween: between, MaxEvents: cfg.Arrivals.MaxArrivals}
	if cfg.Arrivals.TimeUntilFirst != nil {
		if gc.TimeUntilFirst, err = cfg.Arrivals.TimeUntilFirst.Build(); err != nil {
			return nil, fmt.Errorf("arrivals.time_until_first: %w", err)
		}
	}
	first := n.Stations[0]
	if n.Source, err = sim.NewEventGenerator(m.Element, "Arrivals", gc, func(g *sim.EventGenerator) error {
		return first.Arrive(&Job{ID: m.NextSequence("job"), Created: g.Time()})
	}); err != nil {
		return nil, err
	}
	return n, nil
}

func buildStation(m *sim.Model, sc Config) (*Station, error) {
	if sc.Servers < 1 {
		return nil, &sim.ConfigError{Field: "servers", Reason: fmt.Sprintf("station %q needs at least one server, got %d", sc.Name, sc.Servers)}
	}
	switch sc.Preemption {
	case "", resource.NoPreemption, resource.Resume, resource.Restart:
	default:
		return nil, &sim.ConfigError{Field: "preemption", Reason: fmt.Sprintf("unknown preemption rule %q", sc.Preemption)}
	}
	service, err := sc.Service.Build()
	if err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	st, err := New(m.Element, sc.Name, sc.Servers, service, resource.PoolConfig{Selection: sc.Selection, Discipline: sc.Discipline})
	if err != nil {
		return nil, err
	}
	if sc.Preemption != "" {
		st.SetPreemptionRule(sc.Preemption)
	}
	if sc.Transfer != nil {
		transfer, err := sc.Transfer.Build()
		if err != nil {
			return nil, fmt.Errorf("transfer_time: %w", err)
		}
		if err := st.SetTransferTime(transfer); err != nil {
			return nil, err
		}
	}

	var fc *resource.FailureConfig
	if sc.Failures != nil {
		fc = &resource.FailureConfig{Delayable: sc.Failures.Delayable}
		if fc.TimeBetween, err = sc.Failures.TimeBetween.Build(); err != nil {
			return nil, fmt.Errorf("failures.time_between: %w", err)
		}
		if fc.Duration, err = sc.Failures.Duration.Build(); err != nil {
			return nil, fmt.Errorf("failures.duration: %w", err)
		}
		if sc.Failures.TimeToFirst != nil {
			if fc.TimeToFirst, err = sc.Failures.TimeToFirst.Build(); err != nil {
				return nil, fmt.Errorf("failures.time_to_first: %w", err)
			}
		}
	}
	for _, u := range st.Pool().Units() {
		if sc.FailureDelay != nil {
			u.SetFailureDelayOption(*sc.FailureDelay)
		}
		if sc.Conflict != "" {
			if err := u.SetConflictPolicy(sc.Conflict); err != nil {
				return nil, err
			}
		}
		if fc != nil {
			u.SetCountIgnoredFailures(sc.Failures.CountIgnored)
			if _, err := resource.NewFailureProcess(u, u.Name()+":Failures", *fc); err != nil {
				return nil, err
			}
		}
		if sc.Inactivity != nil {
			if _, err := resource.NewInactivitySchedule(u, u.Name()+":Inactivity", *sc.Inactivity); err != nil {
				return nil, err
			}
		}
	}
	return st, nil
}

// SystemTime returns the end-to-end time jobs spend in the network.
func (n *Network) SystemTime() *sim.Response { return n.systemTime }

// NumDeparted returns the counter of jobs that left the network.
func (n *Network) NumDeparted() *sim.Counter { return n.departed }

func (n *Network) leave(j *Job) error {
	n.systemTime.Observe(n.Model.Time() - j.Created)
	n.departed.Increment(1)
	return nil
}

// Run executes the experiment.
func (n *Network) Run() (*sim.ExperimentResult, error) {
	return sim.NewSimulation(n.Model).Run()
}

// TheoreticalMM1 returns the steady-state utilization and mean time in
// system of an M/M/1 queue, NaN when it is unstable.
func TheoreticalMM1(arrivalMean, serviceMean float64) (rho, meanSystemTime float64) {
	rho = serviceMean / arrivalMean
	if rho >= 1 {
		return rho, math.NaN()
	}
	return rho, serviceMean / (1 - rho)
}
