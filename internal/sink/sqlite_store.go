// SQLite-backed RelationalStore, grounded on the sqlite/database-sql
// usage pattern pulled from the retrieved corpus's teranos-QNTX manifest
// (mattn/go-sqlite3 as the database/sql driver of record). This is the
// durable backing for the store-and-forward buffer's "synced=false"
// rows (§4.5); schema is created on open so the buffer needs no
// external migration step for its own bookkeeping table.
package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS buffered_readings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sensor_id INTEGER NOT NULL,
	sensor_name TEXT NOT NULL,
	value REAL NOT NULL,
	raw REAL NOT NULL,
	ts INTEGER NOT NULL,
	synced INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_buffered_readings_unsynced_ts ON buffered_readings(synced, ts);
`

type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sink: open sqlite: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sink: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, r Reading) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO buffered_readings (sensor_id, sensor_name, value, raw, ts, synced) VALUES (?, ?, ?, ?, ?, 0)`,
		r.SensorID, r.SensorName, r.Value, r.Raw, r.Ts)
	if err != nil {
		return 0, fmt.Errorf("sink: append: %w", err)
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) SelectUnsynced(ctx context.Context, limit int) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sensor_id, sensor_name, value, raw, ts FROM buffered_readings
		 WHERE synced = 0 ORDER BY ts ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("sink: select unsynced: %w", err)
	}
	defer rows.Close()

	var out []Reading
	for rows.Next() {
		var r Reading
		if err := rows.Scan(&r.ID, &r.SensorID, &r.SensorName, &r.Value, &r.Raw, &r.Ts); err != nil {
			return nil, fmt.Errorf("sink: scan unsynced row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, ids []int64, syncedAt int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sink: mark synced begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `UPDATE buffered_readings SET synced = 1, synced_at = ? WHERE id = ?`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sink: mark synced prepare: %w", err)
	}
	defer stmt.Close()
	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, syncedAt, id); err != nil {
			tx.Rollback()
			return fmt.Errorf("sink: mark synced exec: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteSyncedOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM buffered_readings WHERE synced = 1 AND synced_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sink: gc: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) CountUnsynced(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM buffered_readings WHERE synced = 0`)
}

func (s *SQLiteStore) CountSynced(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM buffered_readings WHERE synced = 1`)
}

func (s *SQLiteStore) count(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("sink: count: %w", err)
	}
	return n, nil
}

var _ RelationalStore = (*SQLiteStore)(nil)
