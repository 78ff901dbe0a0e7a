package store

import (
	"database/sql"
	"encoding/json"
	"log"
	"time"

	"github.com/xArmad/reposter/internal/types"
)

// AutoFilter is a saved per-account filter used unattended by the
// auto-repost loop.
type AutoFilter struct {
	AccountID string       `json:"account_id"`
	Filter    types.Filter `json:"filter"`
	Enabled   bool         `json:"enabled"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// SaveAutoFilter inserts or updates the auto-filter for an account
func (s *Store) SaveAutoFilter(af AutoFilter) error {
	typesJSON, _ := json.Marshal(af.Filter.Types)

	_, err := s.db.Exec(`
		INSERT INTO auto_filters (account_id, media_types, search, enabled, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			media_types = excluded.media_types,
			search = excluded.search,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`, af.AccountID, string(typesJSON), af.Filter.Search, af.Enabled, time.Now())

	return err
}

// AutoFilter returns the saved auto-filter for an account, or nil if none
// has been configured.
func (s *Store) AutoFilter(accountID string) (*AutoFilter, error) {
	row := s.db.QueryRow(`
		SELECT account_id, media_types, search, enabled, updated_at
		FROM auto_filters
		WHERE account_id = ?
	`, accountID)

	af, err := scanAutoFilter(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return af, nil
}

// EnabledAutoFilters returns every account's auto-filter that is switched
// on; these accounts are the ones the auto-repost loop monitors.
func (s *Store) EnabledAutoFilters() ([]AutoFilter, error) {
	rows, err := s.db.Query(`
		SELECT account_id, media_types, search, enabled, updated_at
		FROM auto_filters
		WHERE enabled = 1
		ORDER BY account_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []AutoFilter
	for rows.Next() {
		af, err := scanAutoFilter(rows)
		if err != nil {
			return nil, err
		}
		// A filter whose row failed to decode has been switched off by the
		// scanner; the loop must not run it.
		if !af.Enabled {
			continue
		}
		filters = append(filters, *af)
	}
	return filters, rows.Err()
}

func scanAutoFilter(r rowScanner) (*AutoFilter, error) {
	var af AutoFilter
	var typesJSON string

	err := r.Scan(&af.AccountID, &typesJSON, &af.Filter.Search, &af.Enabled, &af.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(typesJSON), &af.Filter.Types); err != nil {
		// A nil type list would pass everything; unattended that means
		// reposting the whole feed. Disable the filter instead.
		log.Printf("[store] Corrupt media-type list in %s's auto-filter, disabling it: %v", af.AccountID, err)
		af.Filter.Types = nil
		af.Enabled = false
	}
	// An auto-filter is always scoped to its own account's feed.
	af.Filter.Accounts = nil
	return &af, nil
}
