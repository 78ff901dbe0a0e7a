package store

import (
	"database/sql"

	"github.com/xArmad/reposter/internal/types"
)

// SavePosts inserts or updates the given posts. Insertion is idempotent by
// (account_id, media_id): re-fetching the same post refreshes its metadata
// without duplicating the row and without clobbering local_path.
func (s *Store) SavePosts(accountID string, posts []types.Post) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO posts (account_id, media_id, media_type, caption, taken_at,
			media_url, thumbnail_url, local_path, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, media_id) DO UPDATE SET
			media_type = excluded.media_type,
			caption = excluded.caption,
			media_url = excluded.media_url,
			thumbnail_url = excluded.thumbnail_url,
			fetched_at = excluded.fetched_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range posts {
		if _, err := stmt.Exec(accountID, p.MediaID, string(p.Type), p.Caption,
			p.TakenAt, p.MediaURL, p.ThumbnailURL, p.LocalPath, p.FetchedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Posts returns the cached posts for an account, most recent first.
func (s *Store) Posts(accountID string) ([]types.Post, error) {
	rows, err := s.db.Query(`
		SELECT account_id, media_id, media_type, caption, taken_at,
			media_url, thumbnail_url, local_path, fetched_at
		FROM posts
		WHERE account_id = ?
		ORDER BY taken_at DESC, media_id DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPosts(rows)
}

// Post looks up a single cached post.
func (s *Store) Post(accountID, mediaID string) (*types.Post, error) {
	row := s.db.QueryRow(`
		SELECT account_id, media_id, media_type, caption, taken_at,
			media_url, thumbnail_url, local_path, fetched_at
		FROM posts
		WHERE account_id = ? AND media_id = ?
	`, accountID, mediaID)

	p, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetLocalPath records the downloaded media path for a cached post. This is
// the only field of a cached post that changes after fetch.
func (s *Store) SetLocalPath(accountID, mediaID, path string) error {
	_, err := s.db.Exec(`
		UPDATE posts SET local_path = ? WHERE account_id = ? AND media_id = ?
	`, path, accountID, mediaID)
	return err
}

// Invalidate evicts all cached posts for an account. Eviction is always
// explicit: a manual refresh or account removal, never a TTL.
func (s *Store) Invalidate(accountID string) error {
	_, err := s.db.Exec(`DELETE FROM posts WHERE account_id = ?`, accountID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (*types.Post, error) {
	var p types.Post
	var mediaType string
	var localPath sql.NullString

	err := r.Scan(&p.AccountID, &p.MediaID, &mediaType, &p.Caption, &p.TakenAt,
		&p.MediaURL, &p.ThumbnailURL, &localPath, &p.FetchedAt)
	if err != nil {
		return nil, err
	}

	p.Type = types.MediaType(mediaType)
	p.LocalPath = localPath.String
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]types.Post, error) {
	var posts []types.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}
