// Package store persists simulation runs in SQLite so they can be listed
// and compared after the process exits.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/epinet/internal/epidemic"
	"github.com/nvandessel/epinet/internal/simerr"
	"github.com/nvandessel/epinet/internal/simulation"
	_ "modernc.org/sqlite" // SQLite driver
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrRunNotFound is returned when a run id is unknown.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunExists is returned when importing a run whose id is taken.
	ErrRunExists = errors.New("run already exists")
)

// Run describes one stored simulation run.
type Run struct {
	ID           string     `json:"id"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	Policy       string     `json:"policy"`
	Population   int        `json:"population"`
	Edges        int        `json:"edges"`
	Transmission float64    `json:"transmission"`
	Recovery     float64    `json:"recovery"`
	Steps        int        `json:"steps"`
	Seed         uint64     `json:"seed"`
	Recorded     int        `json:"recorded"`
}

// Store is a SQLite-backed catalog of runs.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, simerr.IO(path, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Begin inserts a run in the running state and returns a recorder that
// stores every observed step under it. ID and CreatedAt are assigned here.
func (s *Store) Begin(ctx context.Context, run Run) (*Recorder, error) {
	run.ID = uuid.NewString()
	run.CreatedAt = time.Now().UTC()
	run.Status = StatusRunning

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, status, policy, population, edges, transmission, recovery, steps, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(timeLayout), run.Status, run.Policy,
		run.Population, run.Edges, run.Transmission, run.Recovery, run.Steps,
		strconv.FormatUint(run.Seed, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return &Recorder{store: s, ctx: context.WithoutCancel(ctx), id: run.ID}, nil
}

// Finish sets the final status of a run.
func (s *Store) Finish(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.finished_at, r.status, r.policy, r.population, r.edges,
		       r.transmission, r.recovery, r.steps, r.seed,
		       (SELECT COUNT(*) FROM run_counts c WHERE c.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.created_at, r.finished_at, r.status, r.policy, r.population, r.edges,
		       r.transmission, r.recovery, r.steps, r.seed,
		       (SELECT COUNT(*) FROM run_counts c WHERE c.run_id = r.id)
		FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// Counts returns the recorded series of a run in step order.
func (s *Store) Counts(ctx context.Context, id string) (simulation.Series, error) {
	if _, err := s.GetRun(ctx, id); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT s, i, r FROM run_counts WHERE run_id = ? ORDER BY step`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close()

	var series simulation.Series
	for rows.Next() {
		var c epidemic.Counts
		if err := rows.Scan(&c.S, &c.I, &c.R); err != nil {
			return nil, fmt.Errorf("failed to scan counts: %w", err)
		}
		series = append(series, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read counts: %w", err)
	}
	return series, nil
}

// DeleteRun removes a run and its counts.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// ImportRun inserts a complete run with its series, keeping the run's id,
// timestamps and status. Recorded is ignored.
func (s *Store) ImportRun(ctx context.Context, run Run, series simulation.Series) error {
	if run.ID == "" {
		return errors.New("import run: missing id")
	}
	var finished sql.NullString
	if run.FinishedAt != nil {
		finished = sql.NullString{String: run.FinishedAt.UTC().Format(timeLayout), Valid: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, run.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check run %s: %w", run.ID, err)
	}
	if exists > 0 {
		return fmt.Errorf("import run %s: %w", run.ID, ErrRunExists)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, finished_at, status, policy, population, edges, transmission, recovery, steps, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), finished, run.Status, run.Policy,
		run.Population, run.Edges, run.Transmission, run.Recovery, run.Steps,
		strconv.FormatUint(run.Seed, 10))
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_counts (run_id, step, s, i, r) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare counts insert: %w", err)
	}
	defer stmt.Close()
	for step, c := range series {
		if _, err := stmt.ExecContext(ctx, run.ID, step, c.S, c.I, c.R); err != nil {
			return fmt.Errorf("failed to insert step %d of run %s: %w", step, run.ID, err)
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run       Run
		createdAt string
		finished  sql.NullString
		seed      string
	)
	err := row.Scan(&run.ID, &createdAt, &finished, &run.Status, &run.Policy,
		&run.Population, &run.Edges, &run.Transmission, &run.Recovery, &run.Steps,
		&seed, &run.Recorded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return Run{}, fmt.Errorf("run %s: bad created_at %q: %w", run.ID, createdAt, err)
	}
	if finished.Valid {
		t, err := time.Parse(timeLayout, finished.String)
		if err != nil {
			return Run{}, fmt.Errorf("run %s: bad finished_at %q: %w", run.ID, finished.String, err)
		}
		run.FinishedAt = &t
	}
	if run.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return Run{}, fmt.Errorf("run %s: bad seed %q: %w", run.ID, seed, err)
	}
	return run, nil
}

// Recorder stores the steps of one run. It implements simulation.Observer.
type Recorder struct {
	store *Store
	ctx   context.Context
	id    string
}

// ID returns the run id.
func (r *Recorder) ID() string {
	return r.id
}

// Observe implements simulation.Observer.
func (r *Recorder) Observe(step int, pop epidemic.Population, c epidemic.Counts) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.db == nil {
		return simerr.IO(r.store.path, errors.New("store closed"))
	}
	_, err := r.store.db.ExecContext(r.ctx,
		`INSERT INTO run_counts (run_id, step, s, i, r) VALUES (?, ?, ?, ?, ?)`,
		r.id, step, c.S, c.I, c.R)
	if err != nil {
		return simerr.IO(r.store.path, fmt.Errorf("recording step %d: %w", step, err))
	}
	return nil
}

// Close implements simulation.Observer. The store stays open; the final
// status is set with Store.Finish.
func (r *Recorder) Close() error {
	return nil
}
