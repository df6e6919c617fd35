package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/alloc-sim/store"
)

var (
	historyDB  string
	historyRun string
)

// historyCmd lists recorded runs, or prints the series of one run.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded simulation runs",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		db, err := store.Open(historyDB)
		if err != nil {
			logrus.Fatalf("Failed to open run history: %v", err)
		}
		defer db.Close()

		if historyRun == "" {
			err = printRuns(os.Stdout, db)
		} else {
			err = printRunSeries(os.Stdout, db, historyRun)
		}
		if err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func printRuns(w io.Writer, db *store.DB) error {
	runs, err := db.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	fmt.Fprintf(w, "%-36s  %-20s  %20s  %6s  %11s  %10s\n", "ID", "CREATED", "SEED", "ROUNDS", "UNFULFILLED", "EFFICIENCY")
	for _, r := range runs {
		created := r.CreatedAt
		if len(created) > 20 {
			created = created[:19] + "Z"
		}
		fmt.Fprintf(w, "%-36s  %-20s  %20d  %6d  %11d  %9.2f%%\n",
			r.ID, created, r.Seed, r.Rounds, r.FinalUnfulfilled, r.FinalEfficiency*100)
	}
	return nil
}

func printRunSeries(w io.Writer, db *store.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	ts, err := db.LoadSeries(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Run %s: seed=%d pools=%d resources=%d consumers=%d activation=%s\n",
		run.ID, run.Seed, run.PoolCount, run.ResourceCount, run.ConsumerCount, run.Activation)
	fmt.Fprintf(w, "%6s  %11s  %10s\n", "ROUND", "UNFULFILLED", "EFFICIENCY")
	for _, rm := range ts {
		fmt.Fprintf(w, "%6d  %11d  %9.2f%%\n", rm.Round, rm.TotalUnfulfilled, rm.Efficiency*100)
	}
	return nil
}

func init() {
	historyCmd.Flags().StringVar(&historyDB, "db", "alloc-sim.db", "SQLite run history")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "Print the series of this run id")

	rootCmd.AddCommand(historyCmd)
}
