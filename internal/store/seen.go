package store

import (
	"time"

	"github.com/xArmad/reposter/internal/types"
)

// MarkSeen records media ids as processed by the auto-repost loop for an
// account. The set is append-only; marking an already-seen id is a no-op,
// which is what gives the loop at-most-once delivery across restarts.
func (s *Store) MarkSeen(accountID string, mediaIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range mediaIDs {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO seen (account_id, media_id, seen_at)
			VALUES (?, ?, ?)
		`, accountID, id, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Seen checks if a media id has already been processed for an account.
func (s *Store) Seen(accountID, mediaID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM seen WHERE account_id = ? AND media_id = ?)
	`, accountID, mediaID).Scan(&exists)
	return exists, err
}

// FilterUnseen returns the subset of posts whose media ids have not been
// processed yet, preserving input order.
func (s *Store) FilterUnseen(accountID string, posts []types.Post) ([]types.Post, error) {
	var out []types.Post
	for _, p := range posts {
		seen, err := s.Seen(accountID, p.MediaID)
		if err != nil {
			return nil, err
		}
		if !seen {
			out = append(out, p)
		}
	}
	return out, nil
}
