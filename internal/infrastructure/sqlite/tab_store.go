package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/sleuth/internal/session"
)

// TabStore persists tab identities. It implements session.Storage.
type TabStore struct {
	db  *sql.DB
	now func() time.Time
}

func newTabStore(db *sql.DB) *TabStore {
	return &TabStore{db: db, now: time.Now}
}

// Ensure TabStore implements session.Storage.
var _ session.Storage = (*TabStore)(nil)

// Load returns the tab id stored for scope and refreshes its last-seen time.
func (s *TabStore) Load(scope string) (string, bool, error) {
	var id string
	err := s.db.QueryRow("SELECT tab_id FROM tabs WHERE scope = ?", scope).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load tab: %w", err)
	}

	if _, err := s.db.Exec("UPDATE tabs SET last_seen_at = ? WHERE scope = ?", s.now().Unix(), scope); err != nil {
		return "", false, fmt.Errorf("failed to touch tab: %w", err)
	}
	return id, true, nil
}

// Store upserts the tab id for scope.
func (s *TabStore) Store(scope, id string) error {
	now := s.now().Unix()
	_, err := s.db.Exec(
		`INSERT INTO tabs (scope, tab_id, created_at, last_seen_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET tab_id = excluded.tab_id, created_at = excluded.created_at,
			last_seen_at = excluded.last_seen_at`,
		scope, id, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store tab: %w", err)
	}
	return nil
}

// Remove deletes the tab stored for scope.
func (s *TabStore) Remove(scope string) error {
	if _, err := s.db.Exec("DELETE FROM tabs WHERE scope = ?", scope); err != nil {
		return fmt.Errorf("failed to remove tab: %w", err)
	}
	return nil
}

// List returns every stored tab, most recently seen first.
func (s *TabStore) List() ([]TabModel, error) {
	rows, err := s.db.Query(
		"SELECT scope, tab_id, created_at, last_seen_at FROM tabs ORDER BY last_seen_at DESC, scope",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tabs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tabs []TabModel
	for rows.Next() {
		var m TabModel
		if err := rows.Scan(&m.Scope, &m.TabID, &m.CreatedAt, &m.LastSeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan tab: %w", err)
		}
		tabs = append(tabs, m)
	}
	return tabs, rows.Err()
}

// Prune removes tabs not seen since before cutoff and returns how many
// were deleted.
func (s *TabStore) Prune(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM tabs WHERE last_seen_at < ?", cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune tabs: %w", err)
	}
	return result.RowsAffected()
}
