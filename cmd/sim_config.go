package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/alloc-sim/sim"
	"github.com/inference-sim/alloc-sim/sim/trace"
)

const defaultRounds = 10

// RunConfig is the layout of a --config YAML file: the simulation config plus
// the number of rounds to run.
type RunConfig struct {
	sim.Config `yaml:",inline"`
	Rounds     int `yaml:"rounds"`
}

// defaultRunConfig returns the values used when neither file nor flag sets a field.
func defaultRunConfig() RunConfig {
	return RunConfig{Config: sim.DefaultConfig(), Rounds: defaultRounds}
}

// loadRunConfig reads path over the defaults. Unknown keys are errors so typos
// cannot silently fall back to defaults.
func loadRunConfig(path string) (RunConfig, error) {
	cfg := defaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// simFlags holds the flags shared by run and serve.
type simFlags struct {
	configPath string
	pools      int
	resources  int
	consumers  int
	rounds     int
	seed       int64
	activation string
	parallel   bool
	traceLevel string
}

func (f *simFlags) register(cmd *cobra.Command) {
	def := defaultRunConfig()
	cmd.Flags().StringVar(&f.configPath, "config", "", "YAML config file; explicit flags override its values")
	cmd.Flags().IntVar(&f.pools, "pools", def.PoolCount, "Number of resource pools")
	cmd.Flags().IntVar(&f.resources, "resources", def.ResourceCount, "Number of resources dealt round-robin over the pools")
	cmd.Flags().IntVar(&f.consumers, "consumers", def.ConsumerCount, "Number of consumers")
	cmd.Flags().IntVar(&f.rounds, "rounds", def.Rounds, "Number of rounds to run")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Master seed (default: derived from the wall clock and logged)")
	cmd.Flags().StringVar(&f.activation, "activation", def.Activation, "Activation policy (random, sequential)")
	cmd.Flags().BoolVar(&f.parallel, "parallel", false, "Compute consumer decisions concurrently")
	cmd.Flags().StringVar(&f.traceLevel, "trace", string(trace.TraceLevelNone), "Allocation trace level (none, allocations)")
}

// resolve merges defaults, the optional config file and explicitly set flags,
// in that order of increasing precedence.
func (f *simFlags) resolve(cmd *cobra.Command) (RunConfig, error) {
	cfg := defaultRunConfig()
	if f.configPath != "" {
		var err error
		if cfg, err = loadRunConfig(f.configPath); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("pools") {
		cfg.PoolCount = f.pools
	}
	if flags.Changed("resources") {
		cfg.ResourceCount = f.resources
	}
	if flags.Changed("consumers") {
		cfg.ConsumerCount = f.consumers
	}
	if flags.Changed("rounds") {
		cfg.Rounds = f.rounds
	}
	if flags.Changed("seed") {
		seed := f.seed
		cfg.Seed = &seed
	}
	if flags.Changed("activation") {
		cfg.Activation = f.activation
	}
	if flags.Changed("parallel") {
		cfg.Parallel = f.parallel
	}
	if flags.Changed("trace") {
		cfg.Trace.Level = trace.TraceLevel(f.traceLevel)
	}

	if cfg.Rounds < 0 {
		return cfg, fmt.Errorf("rounds must be >= 0, got %d", cfg.Rounds)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
