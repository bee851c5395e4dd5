package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"fuzzlens/internal/graph"
	"fuzzlens/internal/ir"
	"fuzzlens/internal/profile"
)

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at TEXT,
			language TEXT,
			root TEXT,
			entrypoint TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS functions (
			run_id TEXT,
			seq INTEGER,
			name TEXT,
			file TEXT,
			start_line INTEGER,
			end_line INTEGER,
			visibility TEXT,
			header INTEGER,
			arity INTEGER,
			entrypoint INTEGER,
			status TEXT,
			reached_by JSON,
			depth INTEGER,
			hits INTEGER,
			lines_hit INTEGER,
			lines_total INTEGER,
			in_degree INTEGER,
			out_degree INTEGER,
			PRIMARY KEY (run_id, name, file)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT,
			seq INTEGER,
			from_name TEXT,
			from_file TEXT,
			to_name TEXT,
			to_file TEXT,
			line INTEGER,
			confidence TEXT,
			resolver TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS entrypoints (
			run_id TEXT,
			seq INTEGER,
			name TEXT,
			file TEXT,
			log_file TEXT,
			executable TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_functions_file ON functions(run_id, file);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p *profile.Profile) (string, error) {
	snap := p.Snapshot()
	runID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, language, root, entrypoint) VALUES (?, ?, ?, ?, ?)`,
		runID, s.now().UTC().Format(time.RFC3339Nano), string(snap.Language), snap.Root, snap.Entrypoint,
	); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	// 1. Functions
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO functions (run_id, seq, name, file, start_line, end_line, visibility, header, arity,
			entrypoint, status, reached_by, depth, hits, lines_hit, lines_total, in_degree, out_degree)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for i, f := range snap.Functions {
		reachedBy, err := json.Marshal(f.ReachedBy)
		if err != nil {
			return "", err
		}
		if _, err := stmt.ExecContext(ctx, runID, i, f.Name, f.File, f.StartLine, f.EndLine, f.Visibility,
			f.Header, f.Arity, f.Entrypoint, string(f.Status), reachedBy, f.Depth, int64(f.Hits),
			f.LinesHit, f.LinesTotal, f.InDegree, f.OutDegree); err != nil {
			return "", fmt.Errorf("failed to insert function %s: %w", f.Key(), err)
		}
	}

	// 2. Edges
	edgeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO edges (run_id, seq, from_name, from_file, to_name, to_file, line, confidence, resolver)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return "", err
	}
	defer edgeStmt.Close()

	for i, e := range snap.Edges {
		if _, err := edgeStmt.ExecContext(ctx, runID, i, e.From.Name, e.From.File, e.To.Name, e.To.File,
			e.Line, string(e.Confidence), e.Resolver); err != nil {
			return "", err
		}
	}

	// 3. Entrypoints; reach counts are derived on load.
	for i, e := range snap.Entrypoints {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entrypoints (run_id, seq, name, file, log_file, executable) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, i, e.Name, e.File, e.LogFile, e.Binary,
		); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *SQLiteStore) LoadProfile(ctx context.Context, runID string) (*profile.Profile, error) {
	var snap profile.Snapshot
	var lang string
	err := s.db.QueryRowContext(ctx, "SELECT language, root, entrypoint FROM runs WHERE id = ?", runID).
		Scan(&lang, &snap.Root, &snap.Entrypoint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	snap.Language = ir.Language(lang)

	if snap.Functions, err = s.loadFunctions(ctx, runID); err != nil {
		return nil, err
	}
	if snap.Edges, err = s.loadEdges(ctx, runID); err != nil {
		return nil, err
	}
	if snap.Entrypoints, err = s.loadEntrypoints(ctx, runID); err != nil {
		return nil, err
	}
	return profile.FromSnapshot(snap), nil
}

func (s *SQLiteStore) loadFunctions(ctx context.Context, runID string) ([]profile.FunctionProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, file, start_line, end_line, visibility, header, arity, entrypoint, status, reached_by,
			depth, hits, lines_hit, lines_total, in_degree, out_degree
		FROM functions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query functions: %w", err)
	}
	defer rows.Close()

	var out []profile.FunctionProfile
	for rows.Next() {
		var f profile.FunctionProfile
		var status string
		var reachedBy []byte
		var hits int64
		if err := rows.Scan(&f.Name, &f.File, &f.StartLine, &f.EndLine, &f.Visibility, &f.Header, &f.Arity,
			&f.Entrypoint, &status, &reachedBy, &f.Depth, &hits, &f.LinesHit, &f.LinesTotal,
			&f.InDegree, &f.OutDegree); err != nil {
			return nil, fmt.Errorf("failed to scan function: %w", err)
		}
		f.Status = profile.Status(status)
		f.Hits = uint64(hits)
		if len(reachedBy) > 0 {
			if err := json.Unmarshal(reachedBy, &f.ReachedBy); err != nil {
				return nil, fmt.Errorf("failed to decode reached_by of %s: %w", f.Key(), err)
			}
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadEdges(ctx context.Context, runID string) ([]graph.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_name, from_file, to_name, to_file, line, confidence, resolver
		FROM edges WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var out []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var conf string
		if err := rows.Scan(&e.From.Name, &e.From.File, &e.To.Name, &e.To.File, &e.Line, &conf, &e.Resolver); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Confidence = ir.Confidence(conf)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) loadEntrypoints(ctx context.Context, runID string) ([]profile.EntrypointInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, file, log_file, executable FROM entrypoints WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entrypoints: %w", err)
	}
	defer rows.Close()

	var out []profile.EntrypointInfo
	for rows.Next() {
		var e profile.EntrypointInfo
		if err := rows.Scan(&e.Name, &e.File, &e.LogFile, &e.Binary); err != nil {
			return nil, fmt.Errorf("failed to scan entrypoint: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.language, r.root, r.entrypoint,
			(SELECT COUNT(*) FROM functions f WHERE f.run_id = r.id)
		FROM runs r ORDER BY r.rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var r RunInfo
		var created, lang string
		if err := rows.Scan(&r.ID, &created, &lang, &r.Root, &r.Entrypoint, &r.Functions); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Language = ir.Language(lang)
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("bad created_at for run %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
