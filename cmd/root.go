package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/simkernel/sim/report"
	"github.com/inference-sim/simkernel/sim/station"
	"github.com/inference-sim/simkernel/sim/trace"
)

var (
	configPath       string // Network config file
	logLevel         string // Log verbosity level
	seed             int64  // Overrides the config seed when set
	numReplications  int    // Overrides experiment.num_replications when > 0
	resultsPath      string // File to write the full result as YAML
	showReplications bool   // Print one line per replication
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "simkernel",
	Short: "Discrete-event simulation of queueing networks with unreliable servers",
}

// runCmd builds the network described by --config and runs its experiment
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an experiment",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logrus.SetLevel(level)

		cfg, err := station.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = seed
		}
		if numReplications > 0 {
			cfg.Experiment.NumReplications = numReplications
		}
		n, err := station.Build(cfg)
		if err != nil {
			return err
		}

		logrus.Infof("Starting experiment %q: %d replications of length %g, warm-up %g, seed %d",
			cfg.Name, cfg.Experiment.NumReplications, cfg.Experiment.ReplicationLength, cfg.Experiment.WarmUpLength, cfg.Seed)
		start := time.Now()
		res, err := n.Run()
		if err != nil {
			return err
		}
		logrus.Infof("Experiment complete in %v", time.Since(start))

		opts := report.Options{Replications: showReplications}
		if n.Trace != nil {
			opts.Trace = trace.Summarize(n.Trace)
		}
		if err := report.Write(cmd.OutOrStdout(), res, opts); err != nil {
			return err
		}
		if resultsPath != "" {
			return writeYAML(resultsPath, res)
		}
		return nil
	},
}

// validateCmd parses and builds a config without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a network config",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := station.LoadConfig(configPath)
		if err != nil {
			return err
		}
		n, err := station.Build(cfg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d stations, %d elements\n",
			cfg.Name, len(n.Stations), n.Model.NumElements())
		return err
	},
}

func writeYAML(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	if err := encodeYAML(f, v); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return enc.Close()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, validateCmd} {
		c.Flags().StringVarP(&configPath, "config", "c", "", "Network config file (YAML)")
		_ = c.MarkFlagRequired("config")
	}

	runCmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for the random streams, overrides the config")
	runCmd.Flags().IntVar(&numReplications, "replications", 0, "Number of replications, overrides the config")
	runCmd.Flags().StringVar(&resultsPath, "out", "", "Write the full experiment result to this YAML file")
	runCmd.Flags().BoolVar(&showReplications, "per-replication", false, "Print one line per replication")

	rootCmd.AddCommand(runCmd, validateCmd)
}
