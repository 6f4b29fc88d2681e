// Package history persists batch runs and their per-document outcomes
// in a local sqlite database so past runs can be inspected later.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sheldon123z/invoice-ocr/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	root           TEXT NOT NULL,
	provider       TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	finished_at    TIMESTAMP NOT NULL,
	document_count INTEGER NOT NULL,
	valid_count    INTEGER NOT NULL,
	grand_total    REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS run_documents (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	path       TEXT NOT NULL,
	invoice_no TEXT NOT NULL,
	issue_date TEXT NOT NULL,
	seller     TEXT NOT NULL,
	buyer      TEXT NOT NULL,
	total      REAL NOT NULL,
	status     TEXT NOT NULL,
	errors     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_documents_run_id ON run_documents(run_id);
`

// Run is one recorded batch.
type Run struct {
	ID            string
	Root          string
	Provider      string
	StartedAt     time.Time
	FinishedAt    time.Time
	DocumentCount int
	ValidCount    int
	GrandTotal    float64
}

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens or creates the history database at path; ":memory:" gives
// an ephemeral store. The pool is pinned to one connection so the
// in-memory variant sees a single database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history schema: %w", err)
	}

	logger.Debug("history.opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun writes the run header and every outcome in one transaction
// and returns the generated run ID.
func (s *Store) RecordRun(ctx context.Context, run Run, outcomes []pipeline.Outcome) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin history tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, root, provider, started_at, finished_at, document_count, valid_count, grand_total)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Root, run.Provider, run.StartedAt, run.FinishedAt,
		run.DocumentCount, run.ValidCount, run.GrandTotal,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_documents (run_id, path, invoice_no, issue_date, seller, buyer, total, status, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare document insert: %w", err)
	}
	defer stmt.Close()

	for _, out := range outcomes {
		status := "ok"
		if len(out.Errors) > 0 {
			status = "failed"
		}
		_, err := stmt.ExecContext(ctx,
			run.ID, out.Document.Path,
			out.Info.InvoiceNo, out.Info.IssueDate, out.Info.Seller, out.Info.Buyer,
			out.Info.Total, status, strings.Join(out.Errors, "; "),
		)
		if err != nil {
			return "", fmt.Errorf("insert document %q: %w", out.Document.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit history tx: %w", err)
	}

	s.logger.Info("history.run_recorded", "run_id", run.ID, "documents", len(outcomes))
	return run.ID, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, root, provider, started_at, finished_at, document_count, valid_count, grand_total
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Root, &r.Provider, &r.StartedAt, &r.FinishedAt,
			&r.DocumentCount, &r.ValidCount, &r.GrandTotal); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunDocuments returns the recorded outcomes of one run in insert order.
func (s *Store) RunDocuments(ctx context.Context, runID string) ([]RunDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, invoice_no, issue_date, seller, buyer, total, status, errors
		 FROM run_documents WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run documents: %w", err)
	}
	defer rows.Close()

	var docs []RunDocument
	for rows.Next() {
		var d RunDocument
		if err := rows.Scan(&d.Path, &d.InvoiceNo, &d.IssueDate, &d.Seller, &d.Buyer,
			&d.Total, &d.Status, &d.Errors); err != nil {
			return nil, fmt.Errorf("scan run document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// RunDocument is one persisted per-document outcome.
type RunDocument struct {
	Path      string
	InvoiceNo string
	IssueDate string
	Seller    string
	Buyer     string
	Total     float64
	Status    string
	Errors    string
}
