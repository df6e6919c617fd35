package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/alloc-sim/server"
	"github.com/inference-sim/alloc-sim/sim"
	"github.com/inference-sim/alloc-sim/store"
)

var (
	serveAddr  string
	serveDB    string
	serveFlags simFlags
)

// serveCmd builds a simulation, runs the configured warm-up rounds and serves it over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a live simulation over HTTP",
	Long: "Builds a simulation, runs --rounds rounds (use --rounds 0 to start fresh) and serves\n" +
		"its snapshot, series and summary. POST /step advances it further.",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := serveFlags.resolve(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		s, err := sim.NewFromConfig(cfg.Config)
		if err != nil {
			logrus.Fatalf("Failed to build simulation: %v", err)
		}
		if cfg.Rounds > 0 {
			logrus.Infof("Running %d rounds before serving", cfg.Rounds)
			s.Run(cfg.Rounds)
		}

		var db *store.DB
		if serveDB != "" {
			if db, err = store.Open(serveDB); err != nil {
				logrus.Fatalf("Failed to open run history: %v", err)
			}
			defer db.Close()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := server.New(s, db).ListenAndServe(ctx, serveAddr); err != nil {
			logrus.Fatalf("Server error: %v", err)
		}
	},
}

func init() {
	serveFlags.register(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite run history to expose under /runs")

	rootCmd.AddCommand(serveCmd)
}
