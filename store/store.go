// Package store persists finished simulation runs to SQLite so they can be
// listed and replayed later. The simulation core never depends on it.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/inference-sim/alloc-sim/sim"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is the stored header of one simulation run.
type Run struct {
	ID               string  `db:"id" json:"id"`
	CreatedAt        string  `db:"created_at" json:"created_at"` // CreatedAtLayout, UTC
	Seed             int64   `db:"seed" json:"seed"`
	PoolCount        int     `db:"pools" json:"pools"`
	ResourceCount    int     `db:"resources" json:"resources"`
	ConsumerCount    int     `db:"consumers" json:"consumers"`
	Activation       string  `db:"activation" json:"activation"`
	Rounds           int     `db:"rounds" json:"rounds"`
	FinalUnfulfilled int     `db:"final_unfulfilled" json:"final_unfulfilled"`
	FinalEfficiency  float64 `db:"final_efficiency" json:"final_efficiency"`
}

// CreatedAtLayout is RFC 3339 with a fixed nine-digit fraction, so text order
// equals time order.
const CreatedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatCreatedAt renders t in UTC using CreatedAtLayout.
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// NewRunID returns a fresh random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunFromSimulation builds a Run header describing s as it stands now.
func RunFromSimulation(s *sim.Simulation) Run {
	last := s.Series().Last()
	activation := s.Config.Activation
	if activation == "" {
		activation = "random"
	}
	return Run{
		ID:               NewRunID(),
		CreatedAt:        FormatCreatedAt(time.Now()),
		Seed:             int64(s.RNG.Key()),
		PoolCount:        s.Config.PoolCount,
		ResourceCount:    s.InitialResourceCount(),
		ConsumerCount:    s.Config.ConsumerCount,
		Activation:       activation,
		Rounds:           s.Round(),
		FinalUnfulfilled: last.TotalUnfulfilled,
		FinalEfficiency:  last.Efficiency,
	}
}

// DB wraps a SQLite connection for run history.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		pools INTEGER NOT NULL,
		resources INTEGER NOT NULL,
		consumers INTEGER NOT NULL,
		activation TEXT NOT NULL,
		rounds INTEGER NOT NULL,
		final_unfulfilled INTEGER NOT NULL,
		final_efficiency REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS series (
		run_id TEXT NOT NULL REFERENCES runs(id),
		round INTEGER NOT NULL,
		total_unfulfilled INTEGER NOT NULL,
		efficiency REAL NOT NULL,
		PRIMARY KEY (run_id, round)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveRun writes the run header and its full time series in one transaction.
func (db *DB) SaveRun(run Run, series sim.TimeSeries) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExec(`INSERT INTO runs
		(id, created_at, seed, pools, resources, consumers, activation, rounds, final_unfulfilled, final_efficiency)
		VALUES (:id, :created_at, :seed, :pools, :resources, :consumers, :activation, :rounds, :final_unfulfilled, :final_efficiency)`,
		run); err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO series (run_id, round, total_unfulfilled, efficiency) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rm := range series {
		if _, err := stmt.Exec(run.ID, rm.Round, rm.TotalUnfulfilled, rm.Efficiency); err != nil {
			return fmt.Errorf("insert round %d: %w", rm.Round, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logrus.Debugf("saved run %s (%d rounds)", run.ID, len(series))
	return nil
}

// ListRuns returns all stored runs, newest first.
func (db *DB) ListRuns() ([]Run, error) {
	var runs []Run
	if err := db.conn.Select(&runs, `SELECT * FROM runs ORDER BY created_at DESC, id`); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the header of one run.
func (db *DB) GetRun(id string) (Run, error) {
	var run Run
	err := db.conn.Get(&run, `SELECT * FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// LoadSeries returns the stored time series of a run in round order.
func (db *DB) LoadSeries(id string) (sim.TimeSeries, error) {
	if _, err := db.GetRun(id); err != nil {
		return nil, err
	}
	var ts sim.TimeSeries
	if err := db.conn.Select(&ts, `SELECT round, total_unfulfilled, efficiency FROM series WHERE run_id = ? ORDER BY round`, id); err != nil {
		return nil, fmt.Errorf("load series %s: %w", id, err)
	}
	return ts, nil
}
