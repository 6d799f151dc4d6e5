package editor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/kostra/pkg/table"

	_ "modernc.org/sqlite"
)

// LogStore keeps committed changes in the edit_log SQLite table. Old and new
// values are stored as text and read back as strings.
type LogStore struct {
	db *sql.DB
}

// OpenLogStore opens (or creates) the SQLite database at path and ensures
// the edit_log table exists.
func OpenLogStore(path string) (*LogStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open edit log: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS edit_log (
		id          TEXT PRIMARY KEY,
		session     TEXT NOT NULL,
		ts          INTEGER NOT NULL,
		user_name   TEXT NOT NULL,
		row_id      INTEGER NOT NULL,
		column_name TEXT NOT NULL,
		old_value   TEXT,
		new_value   TEXT,
		reason      TEXT NOT NULL,
		keys        TEXT NOT NULL DEFAULT '{}'
	)`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create edit_log table: %w", err)
	}
	return &LogStore{db: db}, nil
}

// Close closes the database.
func (s *LogStore) Close() error {
	return s.db.Close()
}

// Append stores changes in one transaction.
func (s *LogStore) Append(ctx context.Context, changes []Change) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin edit log: %w", err)
	}
	const q = `INSERT INTO edit_log
		(id, session, ts, user_name, row_id, column_name, old_value, new_value, reason, keys)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, c := range changes {
		keys, err := json.Marshal(c.Keys)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode keys of %s: %w", c.ID, err)
		}
		if _, err := tx.ExecContext(ctx, q, c.ID, c.Session, c.Time.UnixNano(), c.User, c.RowID,
			c.Column, nullable(c.Old), nullable(c.New), c.Reason, string(keys)); err != nil {
			tx.Rollback()
			return fmt.Errorf("store change %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edit log: %w", err)
	}
	return nil
}

// List returns the stored changes in commit order; an empty session lists
// every session.
func (s *LogStore) List(ctx context.Context, session string) ([]Change, error) {
	q := `SELECT id, session, ts, user_name, row_id, column_name, old_value, new_value, reason, keys
		FROM edit_log`
	var args []any
	if session != "" {
		q += ` WHERE session = ?`
		args = append(args, session)
	}
	q += ` ORDER BY ts, rowid`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list edit log: %w", err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var (
			c        Change
			ts       int64
			old, nw  sql.NullString
			keysJSON string
		)
		if err := rows.Scan(&c.ID, &c.Session, &ts, &c.User, &c.RowID, &c.Column,
			&old, &nw, &c.Reason, &keysJSON); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.Time = time.Unix(0, ts)
		if old.Valid {
			c.Old = old.String
		}
		if nw.Valid {
			c.New = nw.String
		}
		if err := json.Unmarshal([]byte(keysJSON), &c.Keys); err != nil {
			return nil, fmt.Errorf("decode keys of %s: %w", c.ID, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullable(v any) any {
	if v == nil {
		return nil
	}
	return table.FormatValue(v)
}
