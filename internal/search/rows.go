package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// noteRow is the indexed projection of a note.
type noteRow struct {
	ID        string
	Title     string
	Tags      []string
	Body      string
	UpdatedAt time.Time
}

// insertOnce inserts a note row only if the id is not yet indexed
// (first-write-wins). It reports whether a row was written.
func (db *DB) insertOnce(n noteRow) (bool, error) {
	tagsJSON, _ := json.Marshal(n.Tags)
	res, err := db.conn.Exec(`
		INSERT OR IGNORE INTO notes (id, title, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, n.ID, n.Title, string(tagsJSON), n.Body, n.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("search: insert note: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return false, nil
	}
	if err := db.ftsReplace(n); err != nil {
		return false, err
	}
	return true, nil
}

// upsert inserts or replaces a note row and its FTS entry.
func (db *DB) upsert(n noteRow) error {
	tagsJSON, _ := json.Marshal(n.Tags)
	_, err := db.conn.Exec(`
		INSERT INTO notes (id, title, tags, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title      = excluded.title,
			tags       = excluded.tags,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, n.ID, n.Title, string(tagsJSON), n.Body, n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("search: upsert note: %w", err)
	}
	return db.ftsReplace(n)
}

// delete removes a note row and its FTS entry.
func (db *DB) delete(id string) error {
	db.ftsDelete(id)
	if _, err := db.conn.Exec(`DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("search: delete note: %w", err)
	}
	return nil
}

// clear empties the index; used before a full rebuild.
func (db *DB) clear() error {
	if _, err := db.conn.Exec(`DELETE FROM notes`); err != nil {
		return fmt.Errorf("search: clear: %w", err)
	}
	db.ftsClear()
	return nil
}

// allIDs returns every indexed note id.
func (db *DB) allIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("search: all ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

func joinTags(tags []string) string {
	return strings.Join(tags, " ")
}
