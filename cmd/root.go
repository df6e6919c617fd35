package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/alloc-sim/sim"
	"github.com/inference-sim/alloc-sim/store"
)

var (
	logLevel    string // Log verbosity level
	resultsPath string // File to save the JSON results to
	dbPath      string // SQLite run history; empty disables persistence

	runFlags simFlags
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "alloc-sim",
	Short: "Round-based resource allocation simulator",
}

// runCmd executes the simulation using parameters from CLI flags and the optional config file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the allocation simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := runFlags.resolve(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		s, err := sim.NewFromConfig(cfg.Config)
		if err != nil {
			logrus.Fatalf("Failed to build simulation: %v", err)
		}

		logrus.Infof("Starting simulation: %d rounds", cfg.Rounds)
		s.Run(cfg.Rounds)
		if err := s.CheckInvariants(); err != nil {
			logrus.Fatalf("Invariant check failed: %v", err)
		}

		sum := s.Summary()
		sum.Print(os.Stdout)

		if resultsPath != "" {
			if err := writeResults(resultsPath, s); err != nil {
				logrus.Fatalf("Failed to write results: %v", err)
			}
			logrus.Infof("Results written to %s", resultsPath)
		}

		if dbPath != "" {
			id, err := saveRun(dbPath, s)
			if err != nil {
				logrus.Fatalf("Failed to save run: %v", err)
			}
			logrus.Infof("Run saved as %s", id)
		}

		logrus.Info("Simulation complete.")
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func saveRun(path string, s *sim.Simulation) (string, error) {
	db, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	run := store.RunFromSimulation(s)
	if err := db.SaveRun(run, s.Series()); err != nil {
		return "", err
	}
	return run.ID, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runFlags.register(runCmd)
	runCmd.Flags().StringVar(&resultsPath, "results-path", "", "File to save the JSON results to")
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite file to record the run in")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
