// Package repost executes repost jobs against the platform.
//
// Each job walks a small state machine: download the source media if it is
// not cached, then upload to each target account strictly in order. Targets
// are never processed in parallel; hammering the platform from several
// accounts at once is what trips its abuse detection. One job is in flight
// at a time for the same reason.
package repost

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/xArmad/reposter/internal/platform"
	"github.com/xArmad/reposter/internal/store"
	"github.com/xArmad/reposter/internal/types"
)

// SessionProvider yields an authenticated session for an account. The auth
// manager implements this; tests substitute a fake.
type SessionProvider interface {
	Session(ctx context.Context, username string) (*platform.Session, error)
}

// Config tunes the retry policy.
type Config struct {
	// MaxAttempts bounds tries per target for retryable errors.
	MaxAttempts int
	// BaseBackoff is the first retry delay; it doubles per retry up to
	// MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// CleanupMedia removes the downloaded file once the job completes.
	CleanupMedia bool
}

// DefaultConfig returns the policy used when fields are left zero.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 30 * time.Second,
		MaxBackoff:  5 * time.Minute,
	}
}

// Orchestrator processes repost jobs one at a time.
type Orchestrator struct {
	client   platform.Client
	sessions SessionProvider
	store    *store.Store
	cfg      Config

	mu sync.Mutex // serializes jobs
}

// New creates an orchestrator. Zero config fields fall back to defaults.
func New(client platform.Client, sessions SessionProvider, st *store.Store, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}

	return &Orchestrator{
		client:   client,
		sessions: sessions,
		store:    st,
		cfg:      cfg,
	}
}

// Run executes the job to completion. It never returns a platform error:
// per-target outcomes are recorded on the job itself and persisted, and a
// failure on one target never aborts the remaining targets. The returned
// error covers only persistence problems.
//
// Cancelling ctx stops the job before the next upload starts; an upload
// already in flight runs to completion or failure.
func (o *Orchestrator) Run(ctx context.Context, job *types.RepostJob) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.store.SaveJob(job); err != nil {
		return fmt.Errorf("failed to persist job %s: %w", job.ID, err)
	}

	log.Printf("[repost] Starting job %s: media %s from %s to %d target(s)",
		job.ID, job.Post.MediaID, job.Post.AccountID, len(job.Targets))

	if o.download(ctx, job) {
		for _, target := range job.Targets {
			if ctx.Err() != nil {
				o.mark(job, target, types.TargetFailed, "cancelled", 0)
				continue
			}
			o.uploadTarget(ctx, job, target)
		}
	}

	job.CompletedAt = time.Now()
	if err := o.store.CompleteJob(job.ID, job.CompletedAt); err != nil {
		return fmt.Errorf("failed to complete job %s: %w", job.ID, err)
	}

	log.Printf("[repost] Job %s done: %d succeeded, %d failed",
		job.ID, job.Succeeded(), job.Failed())

	if o.cfg.CleanupMedia && job.Post.LocalPath != "" {
		if err := os.Remove(job.Post.LocalPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[repost] Failed to clean up %s: %v", job.Post.LocalPath, err)
		}
	}

	return nil
}

// download makes sure the job's media is on local disk. It reports whether
// the job may proceed to uploads; on an unrecoverable download failure every
// target is marked failed and no upload is ever attempted.
func (o *Orchestrator) download(ctx context.Context, job *types.RepostJob) bool {
	if job.Post.LocalPath != "" {
		return true
	}

	r := newRetryState(o.cfg.MaxAttempts, o.cfg.BaseBackoff, o.cfg.MaxBackoff)
	for {
		r.Attempt()

		sess, err := o.sessions.Session(ctx, job.Post.AccountID)
		if err == nil {
			var path string
			path, err = o.client.DownloadMedia(ctx, sess, job.Post)
			if err == nil {
				job.Post.LocalPath = path
				if serr := o.store.SetLocalPath(job.Post.AccountID, job.Post.MediaID, path); serr != nil {
					log.Printf("[repost] Failed to record media path: %v", serr)
				}
				return true
			}
		}

		if !platform.Retryable(err) || r.Exhausted() {
			log.Printf("[repost] Download failed for media %s: %v", job.Post.MediaID, err)
			o.failAll(job, fmt.Sprintf("download failed: %v", err))
			return false
		}

		if !o.wait(ctx, r.Backoff()) {
			o.failAll(job, "cancelled")
			return false
		}
	}
}

// uploadTarget runs the bounded-retry upload state machine for one target.
func (o *Orchestrator) uploadTarget(ctx context.Context, job *types.RepostJob, target string) {
	payload := platform.MediaPayload{Path: job.Post.LocalPath, Type: job.Post.Type}
	r := newRetryState(o.cfg.MaxAttempts, o.cfg.BaseBackoff, o.cfg.MaxBackoff)

	// Cancellation is honored between targets and between attempts, never
	// mid-upload: an upload that has started runs to completion or failure
	// under the client's own timeouts.
	uploadCtx := context.WithoutCancel(ctx)

	for {
		attempt := r.Attempt()

		sess, err := o.sessions.Session(uploadCtx, target)
		if err == nil {
			_, err = o.client.Repost(uploadCtx, sess, payload, job.Caption())
		}

		if err == nil {
			log.Printf("[repost] Reposted media %s to %s (attempt %d)", job.Post.MediaID, target, attempt)
			o.mark(job, target, types.TargetSucceeded, "", attempt)
			return
		}

		// AuthError and UploadError are terminal for this target; rate
		// limits and network failures earn a backoff and another try
		// until attempts run out.
		if !platform.Retryable(err) || r.Exhausted() {
			log.Printf("[repost] Repost of media %s to %s failed after %d attempt(s): %v",
				job.Post.MediaID, target, attempt, err)
			o.mark(job, target, types.TargetFailed, err.Error(), attempt)
			return
		}

		delay := r.Backoff()
		log.Printf("[repost] Retrying %s in %v (attempt %d/%d): %v",
			target, delay.Round(time.Millisecond), attempt, o.cfg.MaxAttempts, err)
		if !o.wait(ctx, delay) {
			o.mark(job, target, types.TargetFailed, "cancelled", attempt)
			return
		}
	}
}

// wait sleeps for d unless ctx is cancelled first.
func (o *Orchestrator) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// mark records a target transition on the job and in the database.
func (o *Orchestrator) mark(job *types.RepostJob, target string, status types.TargetStatus, reason string, attempts int) {
	if !job.Mark(target, status, reason, attempts) {
		return
	}
	if err := o.store.UpdateTarget(job.ID, target, status, reason, attempts); err != nil {
		log.Printf("[repost] Failed to persist status for %s/%s: %v", job.ID, target, err)
	}
}

// failAll marks every still-pending target failed with the given reason.
func (o *Orchestrator) failAll(job *types.RepostJob, reason string) {
	for _, target := range job.Targets {
		o.mark(job, target, types.TargetFailed, reason, 0)
	}
}
