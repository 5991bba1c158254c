// Package history records the rounds of optimization runs
// in a SQLite database.
package history

import (
	"bytes"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/unixpickle/dist-gd/pgd"
)

// ErrClosed is returned when recording to a closed
// Recorder.
var ErrClosed = errors.New("history: recorder is closed")

const createRounds = `
CREATE TABLE IF NOT EXISTS rounds (
  run_id    TEXT    NOT NULL,
  iteration INTEGER NOT NULL,
  cost      REAL    NOT NULL,
  step      REAL    NOT NULL,
  converged INTEGER NOT NULL,
  vtime     REAL    NOT NULL,
  weights   BLOB    NOT NULL,
  PRIMARY KEY (run_id, iteration)
);`

// A Round is one stored row.
type Round struct {
	RunID     string
	Iteration int
	Cost      float64
	Step      float64
	Converged bool
	Time      float64
	Weights   []float64
}

// A Recorder stores every round of a single run. It
// implements pgd.RoundObserver.
type Recorder struct {
	runID string

	lock sync.Mutex
	db   *sql.DB
}

// Open opens (or creates) the database at path and
// returns a Recorder for the given run.
func Open(path, runID string) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec(createRounds); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rounds table: %w", err)
	}
	return &Recorder{runID: runID, db: db}, nil
}

// RunID returns the run this Recorder writes rows for.
func (r *Recorder) RunID() string {
	return r.runID
}

// ObserveRound stores a round report.
func (r *Recorder) ObserveRound(report *pgd.RoundReport) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(report.Weights); err != nil {
		return fmt.Errorf("encode weights: %w", err)
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if r.db == nil {
		return ErrClosed
	}
	_, err := r.db.Exec("INSERT INTO rounds VALUES(?,?,?,?,?,?,?)", r.runID, report.Iteration,
		report.Cost, report.Step, report.Converged, report.Time, buf.Bytes())
	if err != nil {
		return fmt.Errorf("insert round %d: %w", report.Iteration, err)
	}
	return nil
}

// Rounds reads back every stored round of a run in
// iteration order.
func (r *Recorder) Rounds(runID string) ([]Round, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.db == nil {
		return nil, ErrClosed
	}

	rows, err := r.db.Query("SELECT run_id, iteration, cost, step, converged, vtime, weights "+
		"FROM rounds WHERE run_id=? ORDER BY iteration", runID)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var res []Round
	for rows.Next() {
		var round Round
		var blob []byte
		err := rows.Scan(&round.RunID, &round.Iteration, &round.Cost, &round.Step,
			&round.Converged, &round.Time, &blob)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&round.Weights); err != nil {
			return nil, fmt.Errorf("decode weights of round %d: %w", round.Iteration, err)
		}
		res = append(res, round)
	}
	return res, rows.Err()
}

// Runs lists the IDs of every recorded run, ordered by
// ID.
func (r *Recorder) Runs() ([]string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.db == nil {
		return nil, ErrClosed
	}

	rows, err := r.db.Query("SELECT DISTINCT run_id FROM rounds ORDER BY run_id")
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		res = append(res, id)
	}
	return res, rows.Err()
}

// Close closes the database. Later calls are no-ops.
func (r *Recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}
