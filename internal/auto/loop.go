// Package auto implements the unattended repost pass.
//
// One pass scans every account with an enabled auto-filter: fetch the
// latest feed page, apply the saved filter, drop media ids that were
// already processed, and submit the survivors as repost jobs targeting the
// other connected accounts. New ids are marked seen before any job is
// submitted, so a crash mid-pass re-reposts nothing: delivery is at most
// once per post, across restarts included.
package auto

import (
	"context"
	"fmt"
	"log"

	"github.com/xArmad/reposter/internal/accounts"
	"github.com/xArmad/reposter/internal/filter"
	"github.com/xArmad/reposter/internal/platform"
	"github.com/xArmad/reposter/internal/repost"
	"github.com/xArmad/reposter/internal/store"
	"github.com/xArmad/reposter/internal/types"
)

// Loop runs auto-repost passes. It is driven externally by the scheduler
// (or the CLI's scan command); Run executes exactly one pass.
type Loop struct {
	accounts *accounts.Store
	store    *store.Store
	client   platform.Client
	sessions repost.SessionProvider
	orch     *repost.Orchestrator
}

// New creates an auto-repost loop.
func New(accts *accounts.Store, st *store.Store, client platform.Client, sessions repost.SessionProvider, orch *repost.Orchestrator) *Loop {
	return &Loop{
		accounts: accts,
		store:    st,
		client:   client,
		sessions: sessions,
		orch:     orch,
	}
}

// Run executes one pass over all monitored accounts. Per-account failures
// are logged and skipped; the pass only aborts on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	monitored, err := l.store.EnabledAutoFilters()
	if err != nil {
		return fmt.Errorf("failed to load auto-filters: %w", err)
	}

	if len(monitored) == 0 {
		log.Println("[auto] No accounts with auto-repost enabled")
		return nil
	}

	for _, af := range monitored {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := l.scanAccount(ctx, af); err != nil {
			log.Printf("[auto] Scan of %s failed: %v", af.AccountID, err)
		}
	}

	return nil
}

func (l *Loop) scanAccount(ctx context.Context, af store.AutoFilter) error {
	sess, err := l.sessions.Session(ctx, af.AccountID)
	if err != nil {
		return fmt.Errorf("no session: %w", err)
	}

	posts, _, err := l.client.FetchFeed(ctx, sess, "")
	if err != nil {
		return fmt.Errorf("feed fetch failed: %w", err)
	}

	if err := l.store.SavePosts(af.AccountID, posts); err != nil {
		return fmt.Errorf("failed to cache posts: %w", err)
	}

	matched := filter.Apply(af.Filter, posts)
	fresh, err := l.store.FilterUnseen(af.AccountID, matched)
	if err != nil {
		return fmt.Errorf("failed to check seen set: %w", err)
	}

	if len(fresh) == 0 {
		log.Printf("[auto] %s: %d post(s) fetched, nothing new matches", af.AccountID, len(posts))
		return nil
	}

	// Mark before submitting: a post is auto-reposted at most once even if
	// the process dies between here and job completion.
	ids := make([]string, len(fresh))
	for i, p := range fresh {
		ids[i] = p.MediaID
	}
	if err := l.store.MarkSeen(af.AccountID, ids); err != nil {
		return fmt.Errorf("failed to mark posts seen: %w", err)
	}

	targets := l.accounts.Others(af.AccountID)
	if len(targets) == 0 {
		log.Printf("[auto] %s: %d new match(es) but no target accounts connected", af.AccountID, len(fresh))
		return nil
	}

	log.Printf("[auto] %s: submitting %d new match(es) to %d target(s)", af.AccountID, len(fresh), len(targets))

	for _, p := range fresh {
		job, err := types.NewRepostJob(p, targets, "")
		if err != nil {
			return err
		}
		if err := l.orch.Run(ctx, job); err != nil {
			return err
		}
	}

	return nil
}
