package store

import (
	"database/sql"
	"time"

	"github.com/xArmad/reposter/internal/types"
)

// SaveJob persists a new repost job with all targets pending.
func (s *Store) SaveJob(job *types.RepostJob) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO jobs (id, account_id, media_id, caption_override, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, job.ID, job.Post.AccountID, job.Post.MediaID, job.CaptionOverride, job.CreatedAt); err != nil {
		return err
	}

	now := time.Now()
	for i, r := range job.Results {
		if _, err := tx.Exec(`
			INSERT INTO job_targets (job_id, target, position, status, reason, attempts, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, job.ID, r.Target, i, string(r.Status), r.Reason, r.Attempts, now); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// UpdateTarget records a target's status transition.
func (s *Store) UpdateTarget(jobID, target string, status types.TargetStatus, reason string, attempts int) error {
	_, err := s.db.Exec(`
		UPDATE job_targets
		SET status = ?, reason = ?, attempts = ?, updated_at = ?
		WHERE job_id = ? AND target = ?
	`, string(status), reason, attempts, time.Now(), jobID, target)
	return err
}

// CompleteJob stamps the job's completion time.
func (s *Store) CompleteJob(jobID string, at time.Time) error {
	_, err := s.db.Exec(`UPDATE jobs SET completed_at = ? WHERE id = ?`, at, jobID)
	return err
}

// RecentJobs returns the most recent repost jobs with their per-target
// results, newest first.
func (s *Store) RecentJobs(limit int) ([]types.RepostJob, error) {
	rows, err := s.db.Query(`
		SELECT id, account_id, media_id, caption_override, created_at, completed_at
		FROM jobs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []types.RepostJob
	for rows.Next() {
		var j types.RepostJob
		var completedAt sql.NullTime

		if err := rows.Scan(&j.ID, &j.Post.AccountID, &j.Post.MediaID,
			&j.CaptionOverride, &j.CreatedAt, &completedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			j.CompletedAt = completedAt.Time
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range jobs {
		if err := s.loadTargets(&jobs[i]); err != nil {
			return nil, err
		}
	}

	return jobs, nil
}

func (s *Store) loadTargets(job *types.RepostJob) error {
	rows, err := s.db.Query(`
		SELECT target, status, reason, attempts
		FROM job_targets
		WHERE job_id = ?
		ORDER BY position
	`, job.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var r types.TargetResult
		var status string
		var reason sql.NullString

		if err := rows.Scan(&r.Target, &status, &reason, &r.Attempts); err != nil {
			return err
		}
		r.Status = types.TargetStatus(status)
		r.Reason = reason.String

		job.Targets = append(job.Targets, r.Target)
		job.Results = append(job.Results, r)
	}
	return rows.Err()
}
