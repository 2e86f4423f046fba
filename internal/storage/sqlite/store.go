package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/omegac/internal/db"
	"github.com/banshee-data/omegac/internal/reco"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Schema is the reconstruction output schema.
var Schema = db.Schema{Name: "reco_schema_migrations", FS: migrationsFS, Dir: "migrations"}

const (
	candidateTable = "hf_st_ch_bars"
	generatedTable = "hf_st_ch_bar_gens"
)

var (
	candidateColumns = columnsOf(reflect.TypeOf(reco.Candidate{}))
	generatedColumns = columnsOf(reflect.TypeOf(reco.Generated{}))
)

// ErrNoRun is returned by appends before StartRun.
var ErrNoRun = errors.New("no reconstruction run started")

// Run is one invocation of the reconstruction.
type Run struct {
	RunID        string          `json:"run_id"`
	Mode         string          `json:"mode"`
	ConfigJSON   json.RawMessage `json:"config_json"`
	Inputs       []string        `json:"inputs"`
	StartedAtNs  int64           `json:"started_at_ns"`
	FinishedAtNs *int64          `json:"finished_at_ns,omitempty"`
	Candidates   int             `json:"candidates"`
	Generated    int             `json:"generated"`
}

// CandidateStore persists candidate and generated records of one run. It
// implements reco.Sink and is safe for concurrent appends.
type CandidateStore struct {
	db *db.DB

	mu         sync.Mutex
	runID      string
	candidates int
	generated  int
}

var _ reco.Sink = (*CandidateStore)(nil)

// Open opens the output database at path, creating and migrating it if
// needed.
func Open(path string) (*CandidateStore, error) {
	d, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	s, err := NewCandidateStore(d)
	if err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

// NewCandidateStore migrates d and wraps it.
func NewCandidateStore(d *db.DB) (*CandidateStore, error) {
	if err := d.MigrateUp(Schema); err != nil {
		return nil, err
	}
	return &CandidateStore{db: d}, nil
}

// Close closes the underlying database.
func (s *CandidateStore) Close() error { return s.db.Close() }

// StartRun records a new run and directs subsequent appends to it.
func (s *CandidateStore) StartRun(ctx context.Context, mode string, configJSON string, inputs []string) (string, error) {
	if inputs == nil {
		inputs = []string{}
	}
	in, err := json.Marshal(inputs)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	err = db.RetryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO reco_runs (run_id, mode, config_json, inputs_json, started_at_ns)
			VALUES (?, ?, ?, ?, ?)`,
			id, mode, configJSON, string(in), time.Now().UnixNano())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	s.mu.Lock()
	s.runID, s.candidates, s.generated = id, 0, 0
	s.mu.Unlock()
	return id, nil
}

// FinishRun stores the end time and record counts of the current run.
func (s *CandidateStore) FinishRun(ctx context.Context) error {
	s.mu.Lock()
	id, nc, ng := s.runID, s.candidates, s.generated
	s.mu.Unlock()
	if id == "" {
		return ErrNoRun
	}
	return db.RetryOnBusy(func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE reco_runs SET finished_at_ns = ?, candidates = ?, generated = ? WHERE run_id = ?`,
			time.Now().UnixNano(), nc, ng, id)
		if err != nil {
			return fmt.Errorf("finish run %s: %w", id, err)
		}
		return nil
	})
}

// RunID returns the current run, or "".
func (s *CandidateStore) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// AppendCandidate implements reco.Sink.
func (s *CandidateStore) AppendCandidate(c *reco.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == "" {
		return ErrNoRun
	}
	args := append([]interface{}{s.runID}, valuesOf(c)...)
	err := db.RetryOnBusy(func() error {
		_, err := s.db.Exec(insertQuery(candidateTable, candidateColumns), args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	s.candidates++
	return nil
}

// AppendGenerated implements reco.Sink. The returned row is the gen_id of
// the inserted record.
func (s *CandidateStore) AppendGenerated(g *reco.Generated) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runID == "" {
		return 0, ErrNoRun
	}
	args := append([]interface{}{s.runID}, valuesOf(g)...)
	var id int64
	err := db.RetryOnBusy(func() error {
		res, err := s.db.Exec(insertQuery(generatedTable, generatedColumns), args...)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("insert generated record: %w", err)
	}
	s.generated++
	return int(id), nil
}

// ListRuns returns all runs, newest first.
func (s *CandidateStore) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, mode, config_json, inputs_json, started_at_ns, finished_at_ns, candidates, generated
		FROM reco_runs
		ORDER BY started_at_ns DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var cfg, inputs string
		var finished sql.NullInt64
		if err := rows.Scan(&r.RunID, &r.Mode, &cfg, &inputs, &r.StartedAtNs, &finished, &r.Candidates, &r.Generated); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.ConfigJSON = json.RawMessage(cfg)
		if err := json.Unmarshal([]byte(inputs), &r.Inputs); err != nil {
			return nil, fmt.Errorf("run %s inputs: %w", r.RunID, err)
		}
		if finished.Valid {
			v := finished.Int64
			r.FinishedAtNs = &v
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRunID returns the most recently started run.
func (s *CandidateStore) LatestRunID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM reco_runs ORDER BY started_at_ns DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRun
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}

// ListCandidates returns the candidates of runID in insertion order.
func (s *CandidateStore) ListCandidates(ctx context.Context, runID string) ([]reco.Candidate, error) {
	var out []reco.Candidate
	err := s.list(ctx, candidateTable, "candidate_id", candidateColumns, runID, func() []interface{} {
		out = append(out, reco.Candidate{})
		return pointersOf(&out[len(out)-1])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListGenerated returns the generated records of runID in insertion order.
func (s *CandidateStore) ListGenerated(ctx context.Context, runID string) ([]reco.Generated, error) {
	var out []reco.Generated
	err := s.list(ctx, generatedTable, "gen_id", generatedColumns, runID, func() []interface{} {
		out = append(out, reco.Generated{})
		return pointersOf(&out[len(out)-1])
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// list scans every row of table for runID; next returns the scan targets of
// a freshly appended record.
func (s *CandidateStore) list(ctx context.Context, table, idCol string, cols []string, runID string, next func() []interface{}) error {
	query := "SELECT " + strings.Join(cols, ", ") + " FROM " + table + " WHERE run_id = ? ORDER BY " + idCol
	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := rows.Scan(next()...); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
	}
	return rows.Err()
}
