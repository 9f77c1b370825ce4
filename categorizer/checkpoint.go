package categorizer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const checkpointSchema = `
CREATE TABLE IF NOT EXISTS pending_results (
	entity_key   TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	parent_group TEXT NOT NULL,
	category     TEXT NOT NULL,
	source       TEXT NOT NULL,
	run_id       TEXT NOT NULL,
	batch        INTEGER NOT NULL,
	created_at   INTEGER NOT NULL
);`

// Checkpoint journals completed remote batches so an interrupted run can
// resume without repeating paid calls. Entries are cleared once the ledger
// holding them has been saved.
type Checkpoint struct {
	db *sql.DB
}

// OpenCheckpoint opens or creates the journal database at path.
func OpenCheckpoint(path string) (*Checkpoint, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(checkpointSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init checkpoint schema: %w", err)
	}
	return &Checkpoint{db: db}, nil
}

// Close releases the database handle.
func (c *Checkpoint) Close() error {
	return c.db.Close()
}

// SaveBatch stores one batch's results in a single transaction: either all
// of them are journaled or none.
func (c *Checkpoint) SaveBatch(ctx context.Context, runID string, batch int, results []Record) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO pending_results
		(entity_key, name, parent_group, category, source, run_id, batch, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare checkpoint insert: %w", err)
	}
	defer stmt.Close()
	now := time.Now().Unix()
	for _, rec := range results {
		if _, err := stmt.ExecContext(ctx, string(rec.Key()), rec.Name, rec.ParentGroup,
			string(rec.Category), string(rec.Source), runID, batch, now); err != nil {
			return fmt.Errorf("insert checkpoint %q: %w", rec.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// Pending returns every journaled result not yet cleared.
func (c *Checkpoint) Pending(ctx context.Context) ([]Record, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, parent_group, category, source
		FROM pending_results ORDER BY run_id, batch, name`)
	if err != nil {
		return nil, fmt.Errorf("query checkpoint: %w", err)
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		var cat, src string
		if err := rows.Scan(&rec.Name, &rec.ParentGroup, &cat, &src); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		rec.Category = Category(cat)
		rec.Source = ParseProvenance(src)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoint: %w", err)
	}
	return out, nil
}

// Clear removes all journaled results.
func (c *Checkpoint) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM pending_results`); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}
