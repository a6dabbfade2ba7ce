//go:build !sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses LIKE fallback on the
	// notes table.
	return nil
}

func (db *DB) ftsReplace(_ noteRow) error {
	// Fields are already stored in the notes table; nothing extra to do.
	return nil
}

func (db *DB) ftsDelete(_ string) {}

func (db *DB) ftsClear() {}

// queryIDs performs a LIKE-based search (fallback when FTS5 is not
// compiled in).
func (db *DB) queryIDs(query string, limit int) ([]string, error) {
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT id
		FROM notes
		WHERE title LIKE ? OR body LIKE ? OR tags LIKE ?
		ORDER BY updated_at DESC
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search: query: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
