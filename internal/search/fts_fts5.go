//go:build sqlite_fts5

package search

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS notes_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func (db *DB) ftsReplace(n noteRow) error {
	_, _ = db.conn.Exec(`DELETE FROM notes_fts WHERE id = ?`, n.ID)
	_, err := db.conn.Exec(`INSERT INTO notes_fts (id, title, body, tags) VALUES (?, ?, ?, ?)`,
		n.ID, n.Title, n.Body, joinTags(n.Tags))
	if err != nil {
		return fmt.Errorf("search: upsert fts: %w", err)
	}
	return nil
}

func (db *DB) ftsDelete(id string) {
	_, _ = db.conn.Exec(`DELETE FROM notes_fts WHERE id = ?`, id)
}

func (db *DB) ftsClear() {
	_, _ = db.conn.Exec(`DELETE FROM notes_fts`)
}

// queryIDs performs an FTS5 match and returns matching note ids ranked by
// relevance.
func (db *DB) queryIDs(query string, limit int) ([]string, error) {
	rows, err := db.conn.Query(`
		SELECT id
		FROM notes_fts
		WHERE notes_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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
