package optimizer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// ResultsStore is the durable key-value store keyed by (job_id,
// result_index) spec.md §6 names as a reference implementation: SQLite in
// WAL mode, batched INSERT OR REPLACE, paginated reads ordered by
// result_index. A crash loses at most the in-flight batch that had not yet
// been flushed.
type ResultsStore struct {
	db *sql.DB
}

// OpenResultsStore opens (creating if needed) a SQLite results database at
// path and ensures its schema exists.
func OpenResultsStore(path string) (*ResultsStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("optimizer: open results store: %w", err)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("optimizer: enable WAL: %w", err)
	}

	const schema = `
		CREATE TABLE IF NOT EXISTS results (
			job_id       TEXT NOT NULL,
			result_index INTEGER NOT NULL,
			parameters   TEXT NOT NULL,
			metrics      TEXT NOT NULL,
			score        REAL NOT NULL,
			error        TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (job_id, result_index)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("optimizer: create results schema: %w", err)
	}

	return &ResultsStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *ResultsStore) Close() error {
	return s.db.Close()
}

// SaveBatch flushes a completed batch's results in a single transaction
// with INSERT OR REPLACE semantics, so a retried batch (e.g. after resume)
// overwrites rather than duplicates.
func (s *ResultsStore) SaveBatch(ctx context.Context, jobID string, results []Result) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("optimizer: begin results transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO results (job_id, result_index, parameters, metrics, score, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("optimizer: prepare results insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		params, err := json.Marshal(r.Parameters)
		if err != nil {
			return fmt.Errorf("optimizer: marshal parameters: %w", err)
		}
		metrics, err := json.Marshal(r.Metrics)
		if err != nil {
			return fmt.Errorf("optimizer: marshal metrics: %w", err)
		}

		if _, err := stmt.ExecContext(ctx, jobID, r.ResultIndex, string(params), string(metrics), r.Score, r.Error); err != nil {
			return fmt.Errorf("optimizer: insert result %d: %w", r.ResultIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("optimizer: commit results batch: %w", err)
	}

	return nil
}

// ReadResults returns up to limit results for jobID ordered by
// result_index, starting after offset.
func (s *ResultsStore) ReadResults(ctx context.Context, jobID string, offset, limit int) ([]Result, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT result_index, parameters, metrics, score, error
		FROM results
		WHERE job_id = ?
		ORDER BY result_index ASC
		LIMIT ? OFFSET ?
	`, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("optimizer: query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			r           Result
			paramsJSON  string
			metricsJSON string
		)
		if err := rows.Scan(&r.ResultIndex, &paramsJSON, &metricsJSON, &r.Score, &r.Error); err != nil {
			return nil, fmt.Errorf("optimizer: scan result row: %w", err)
		}
		if err := json.Unmarshal([]byte(paramsJSON), &r.Parameters); err != nil {
			return nil, fmt.Errorf("optimizer: unmarshal parameters: %w", err)
		}
		if err := json.Unmarshal([]byte(metricsJSON), &r.Metrics); err != nil {
			return nil, fmt.Errorf("optimizer: unmarshal metrics: %w", err)
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("optimizer: iterate result rows: %w", err)
	}

	return results, nil
}

// CountResults returns the number of stored results for jobID.
func (s *ResultsStore) CountResults(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results WHERE job_id = ?`, jobID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("optimizer: count results: %w", err)
	}
	return count, nil
}
