// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed migrations/*.sql
var migrations embed.FS

// A Store persists the reports of analysis runs in a SQLite database
type Store struct {
	db *sql.DB
}

// A Run is one invocation of the analysis
type Run struct {
	ID        string
	StartedAt time.Time
	Patterns  []string
	Methods   int
}

// A ColumnRef identifies an output column of a method in a run
type ColumnRef struct {
	RunID   string
	Method  string
	Column  string
	Control bool
}

// OpenStore opens the database at path and migrates it to the latest schema. Use ":memory:" for an in-memory
// database.
func OpenStore(path string) (*Store, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	db, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// a single connection: every connection to :memory: is a distinct database
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores the reports of a run and returns the run
func (s *Store) SaveRun(ctx context.Context, patterns []string, reports []*Method) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Patterns:  patterns,
		Methods:   len(reports),
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, patterns, methods) VALUES (?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixNano(), strings.Join(patterns, " "), run.Methods,
	); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	for _, m := range reports {
		content, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize report of %s: %w", m.Method, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO method_reports (run_id, method, top, visits, fingerprint, report) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, m.Method, m.Top, m.Visits, m.Fingerprint, string(content),
		); err != nil {
			return nil, fmt.Errorf("failed to store report of %s: %w", m.Method, err)
		}
		for _, c := range m.Columns {
			if err := insertLineage(ctx, tx, run.ID, m.Method, c.Name, c.Data, false); err != nil {
				return nil, err
			}
			if err := insertLineage(ctx, tx, run.ID, m.Method, c.Name, c.Control, true); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

func insertLineage(ctx context.Context, tx *sql.Tx, runID, method, column string, traceables []string,
	control bool) error {
	for _, t := range traceables {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO column_lineage (run_id, method, column_name, traceable, control) VALUES (?, ?, ?, ?, ?)`,
			runID, method, column, t, control,
		); err != nil {
			return fmt.Errorf("failed to store lineage of %s: %w", column, err)
		}
	}
	return nil
}

// Runs returns the stored runs, most recent first
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, patterns, methods FROM runs ORDER BY started_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started int64
		var patterns string
		if err := rows.Scan(&run.ID, &started, &patterns, &run.Methods); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = time.Unix(0, started).UTC()
		run.Patterns = strings.Fields(patterns)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Reports returns the reports of a run, ordered by method
func (s *Store) Reports(ctx context.Context, runID string) ([]*Method, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT report FROM method_reports WHERE run_id = ? ORDER BY method`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports of run %s: %w", runID, err)
	}
	defer rows.Close()

	var reports []*Method
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		m := &Method{}
		if err := json.Unmarshal([]byte(content), m); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		reports = append(reports, m)
	}
	return reports, rows.Err()
}

// Dependents returns the output columns that depend on a traceable, e.g. Col(input,a), in any run
func (s *Store) Dependents(ctx context.Context, traceable string) ([]ColumnRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, method, column_name, control FROM column_lineage WHERE traceable = ?
		 ORDER BY run_id, method, column_name, control`, traceable)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependents of %s: %w", traceable, err)
	}
	defer rows.Close()

	var refs []ColumnRef
	for rows.Next() {
		var ref ColumnRef
		if err := rows.Scan(&ref.RunID, &ref.Method, &ref.Column, &ref.Control); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// Changed returns the methods whose lineage differs between two runs: methods with a different fingerprint and
// methods present in only one of the runs
func (s *Store) Changed(ctx context.Context, before, after string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT method FROM (
			SELECT COALESCE(a.method, b.method) AS method
			FROM method_reports a LEFT JOIN method_reports b ON a.method = b.method AND b.run_id = ?
			WHERE a.run_id = ? AND (b.fingerprint IS NULL OR a.fingerprint <> b.fingerprint)
			UNION
			SELECT b.method AS method
			FROM method_reports b LEFT JOIN method_reports a ON a.method = b.method AND a.run_id = ?
			WHERE b.run_id = ? AND a.method IS NULL
		) ORDER BY method`, after, before, before, after)
	if err != nil {
		return nil, fmt.Errorf("failed to compare runs %s and %s: %w", before, after, err)
	}
	defer rows.Close()

	var methods []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan method: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}
