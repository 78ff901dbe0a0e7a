package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"

	"github.com/xArmad/reposter/internal/accounts"
	"github.com/xArmad/reposter/internal/auth"
	"github.com/xArmad/reposter/internal/auto"
	"github.com/xArmad/reposter/internal/config"
	"github.com/xArmad/reposter/internal/filter"
	"github.com/xArmad/reposter/internal/notifier"
	"github.com/xArmad/reposter/internal/platform"
	"github.com/xArmad/reposter/internal/platform/web"
	"github.com/xArmad/reposter/internal/report"
	"github.com/xArmad/reposter/internal/repost"
	"github.com/xArmad/reposter/internal/scheduler"
	"github.com/xArmad/reposter/internal/store"
	"github.com/xArmad/reposter/internal/types"
)

// App holds the application state.
type App struct {
	mu sync.RWMutex

	// Immutable after creation.
	accounts  *accounts.Store
	auth      *auth.Manager
	store     *store.Store
	sched     *scheduler.Scheduler
	mediaDir  string
	reportDir string

	// Mutable fields - use getSnapshot() for concurrent access.
	config *config.Config
	client platform.Client
	orch   *repost.Orchestrator
	loop   *auto.Loop

	// Cancellation handle for the job currently in flight, if any.
	jobMu     sync.Mutex
	cancelJob context.CancelFunc
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config *config.Config
	client platform.Client
	orch   *repost.Orchestrator
	loop   *auto.Loop
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config: a.config,
		client: a.client,
		orch:   a.orch,
		loop:   a.loop,
	}
}

// New creates a new App instance.
func New(cfg *config.Config, accts *accounts.Store, authMgr *auth.Manager, st *store.Store, sched *scheduler.Scheduler) (*App, error) {
	cacheDir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}

	a := &App{
		accounts:  accts,
		auth:      authMgr,
		store:     st,
		sched:     sched,
		mediaDir:  filepath.Join(cacheDir, "media"),
		reportDir: filepath.Join(cacheDir, "reports"),
	}
	a.rebuild(cfg)
	return a, nil
}

// rebuild replaces the config-derived components. Called at startup and on
// config reload, with a.mu held by the caller in the reload case.
func (a *App) rebuild(cfg *config.Config) {
	client := web.New(cfg.Feed.Headless, a.mediaDir)
	orch := repost.New(client, a.auth, a.store, repost.Config{
		MaxAttempts:  cfg.Repost.MaxAttempts,
		BaseBackoff:  time.Duration(cfg.Repost.BackoffSeconds) * time.Second,
		MaxBackoff:   time.Duration(cfg.Repost.MaxBackoffSeconds) * time.Second,
		CleanupMedia: cfg.Repost.CleanupMedia,
	})

	a.config = cfg
	a.client = client
	a.orch = orch
	a.loop = auto.New(a.accounts, a.store, client, a.auth, orch)
}

// IsAuthenticated checks if a valid session is stored for username.
func (a *App) IsAuthenticated(username string) bool {
	return a.auth.IsAuthenticated(username)
}

// Accounts returns all connected accounts.
func (a *App) Accounts() []types.Account {
	return a.accounts.List()
}

// ConnectAccount runs the interactive login flow and registers the account
// that logged in, if it is new. Returns the username.
func (a *App) ConnectAccount() (string, error) {
	log.Println("Connect triggered - opening browser for platform login")

	username, err := a.auth.Connect(context.Background())
	if err != nil {
		log.Printf("Login failed: %v", err)
		return "", err
	}

	if _, ok := a.accounts.Get(username); !ok {
		if err := a.accounts.Add(username, username); err != nil {
			return "", err
		}
	}

	log.Printf("Login successful for %s - session saved", username)
	return username, nil
}

// Relogin re-runs the interactive login for a specific account whose
// session has expired.
func (a *App) Relogin(username string) error {
	return a.auth.Login(context.Background(), username)
}

// MainAccount returns the main account's username, if one is set.
func (a *App) MainAccount() (string, bool) {
	main, ok := a.accounts.Main()
	if !ok {
		return "", false
	}
	return main.Username, true
}

// RemoveAccount disconnects username: session cleared, account dropped,
// cached posts evicted.
func (a *App) RemoveAccount(username string) error {
	log.Printf("Removing account %s", username)

	if err := a.auth.Logout(username); err != nil {
		log.Printf("Failed to clear session for %s: %v", username, err)
	}
	if err := a.accounts.Remove(username); err != nil {
		return err
	}
	return a.store.Invalidate(username)
}

// SetMainAccount designates username as the main account.
func (a *App) SetMainAccount(username string) error {
	return a.accounts.SetMain(username)
}

// RefreshFeed re-fetches username's recent posts, replacing the cached
// feed. Manual refresh is the only implicit eviction the cache has.
func (a *App) RefreshFeed(username string) error {
	s := a.getSnapshot()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sess, err := a.auth.Session(ctx, username)
	if err != nil {
		return err
	}

	log.Printf("Fetching up to %d posts for %s...", s.config.Feed.PostsPerFetch, username)

	var posts []types.Post
	cursor := ""
	for len(posts) < s.config.Feed.PostsPerFetch {
		page, next, err := s.client.FetchFeed(ctx, sess, cursor)
		if err != nil {
			return err
		}
		posts = append(posts, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	if len(posts) > s.config.Feed.PostsPerFetch {
		posts = posts[:s.config.Feed.PostsPerFetch]
	}

	if err := a.store.Invalidate(username); err != nil {
		return err
	}
	if err := a.store.SavePosts(username, posts); err != nil {
		return err
	}

	log.Printf("Cached %d posts for %s", len(posts), username)
	return nil
}

// Posts returns the cached posts across all accounts that match f, most
// recent first.
func (a *App) Posts(f types.Filter) ([]types.Post, error) {
	var all []types.Post
	for _, acct := range a.accounts.List() {
		posts, err := a.store.Posts(acct.Username)
		if err != nil {
			// Cache problems degrade to an empty feed, never a crash.
			log.Printf("Failed to read cached posts for %s: %v", acct.Username, err)
			continue
		}
		all = append(all, posts...)
	}

	// Posts() is already sorted per account; merge ordering across
	// accounts by fetch-time recency.
	sortPostsByRecency(all)

	return filter.Apply(f, all), nil
}

// SubmitRepost builds and runs a repost job for one cached post. It blocks
// until the job completes; the tray runs it on a background goroutine.
func (a *App) SubmitRepost(source, mediaID string, targets []string, captionOverride string) (*types.RepostJob, error) {
	s := a.getSnapshot()

	post, err := a.store.Post(source, mediaID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, fmt.Errorf("media %s is not in the cache for %s", mediaID, source)
	}

	caption := captionOverride
	if s.config.Repost.CreditOriginal {
		if caption == "" {
			caption = post.Caption
		}
		caption = strings.TrimSpace(caption + "\n\ncredit: @" + source)
	}

	job, err := types.NewRepostJob(*post, targets, caption)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.jobMu.Lock()
	a.cancelJob = cancel
	a.jobMu.Unlock()
	defer func() {
		cancel()
		a.jobMu.Lock()
		a.cancelJob = nil
		a.jobMu.Unlock()
	}()

	if err := s.orch.Run(ctx, job); err != nil {
		return job, err
	}
	return job, nil
}

// CancelRepost cancels the in-flight job, if any. The orchestrator honors
// the cancellation before the next upload starts; an upload already running
// finishes or fails on its own.
func (a *App) CancelRepost() {
	a.jobMu.Lock()
	defer a.jobMu.Unlock()
	if a.cancelJob != nil {
		log.Println("Cancelling in-flight repost job")
		a.cancelJob()
	}
}

// RepostLatest reposts the main account's newest cached post to every other
// connected account. Refreshes the feed first if the cache is empty.
func (a *App) RepostLatest() error {
	main, ok := a.accounts.Main()
	if !ok {
		return fmt.Errorf("no main account connected")
	}

	posts, err := a.store.Posts(main.Username)
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		if err := a.RefreshFeed(main.Username); err != nil {
			return err
		}
		if posts, err = a.store.Posts(main.Username); err != nil {
			return err
		}
		if len(posts) == 0 {
			return fmt.Errorf("no posts found for %s", main.Username)
		}
	}

	targets := a.accounts.Others(main.Username)
	if len(targets) == 0 {
		return fmt.Errorf("no target accounts connected")
	}

	job, err := a.SubmitRepost(main.Username, posts[0].MediaID, targets, "")
	if err != nil {
		return err
	}

	log.Printf("Repost latest finished: %d succeeded, %d failed", job.Succeeded(), job.Failed())
	return nil
}

// SetAutoFilter saves the per-account filter used by the auto-repost loop.
func (a *App) SetAutoFilter(accountID string, f types.Filter, enabled bool) error {
	return a.store.SaveAutoFilter(store.AutoFilter{
		AccountID: accountID,
		Filter:    f,
		Enabled:   enabled,
	})
}

// AutoFilter returns the saved auto-filter for an account, or nil.
func (a *App) AutoFilter(accountID string) (*store.AutoFilter, error) {
	return a.store.AutoFilter(accountID)
}

// EnableAutoRepost schedules the recurring auto-repost scan.
func (a *App) EnableAutoRepost() error {
	s := a.getSnapshot()
	if a.sched.HasJob("auto-scan") {
		return nil
	}
	return a.sched.AddScanJob(s.config.Auto.IntervalMinutes, a.runScan)
}

// DisableAutoRepost removes the recurring scan.
func (a *App) DisableAutoRepost() {
	a.sched.RemoveJob("auto-scan")
}

// AutoRepostEnabled reports whether the recurring scan is scheduled.
func (a *App) AutoRepostEnabled() bool {
	return a.sched.HasJob("auto-scan")
}

// RunScan executes one auto-repost pass immediately.
func (a *App) RunScan() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	return a.runScan(ctx)
}

// runScan is the scheduled pass: run the loop, then email an activity
// report if anything failed and email delivery is configured.
func (a *App) runScan(ctx context.Context) error {
	s := a.getSnapshot()
	start := time.Now()

	if err := s.loop.Run(ctx); err != nil {
		return err
	}

	if !s.config.Email.Enabled {
		return nil
	}

	jobs, err := a.store.RecentJobs(s.config.Report.MaxJobs)
	if err != nil {
		return err
	}

	var fromThisPass []types.RepostJob
	failures := 0
	for _, j := range jobs {
		if j.CreatedAt.Before(start) {
			continue
		}
		fromThisPass = append(fromThisPass, j)
		failures += j.Failed()
	}
	if failures == 0 || len(fromThisPass) == 0 {
		return nil
	}

	builder, err := report.New(a.reportDir, s.config.Report.MaxJobs)
	if err != nil {
		return err
	}
	r, err := builder.Build(fromThisPass)
	if err != nil {
		return err
	}

	n, err := notifier.NewFromConfig(s.config.Email)
	if err != nil {
		return err
	}
	if err := n.SendReport(r, s.config.Email.ToAddr); err != nil {
		log.Printf("Failed to email activity report: %v", err)
		return err
	}

	log.Printf("Emailed activity report (%d job(s), %d failure(s))", r.JobCount, failures)
	return nil
}

// BuildReport renders an activity report for recent jobs and returns its
// path.
func (a *App) BuildReport() (string, error) {
	s := a.getSnapshot()

	jobs, err := a.store.RecentJobs(s.config.Report.MaxJobs)
	if err != nil {
		return "", err
	}

	builder, err := report.New(a.reportDir, s.config.Report.MaxJobs)
	if err != nil {
		return "", err
	}

	r, err := builder.Build(jobs)
	if err != nil {
		return "", err
	}
	return r.FilePath, nil
}

// ViewLastReport opens the most recent activity report.
func (a *App) ViewLastReport() error {
	path, err := report.Latest(a.reportDir)
	if err != nil {
		// Nothing rendered yet; build one from history.
		path, err = a.BuildReport()
		if err != nil {
			log.Printf("No report available: %v", err)
			return err
		}
	}

	log.Printf("Opening report: %s", path)
	return browser.OpenFile(path)
}

// ReloadConfig reloads the configuration from disk.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.rebuild(cfg)
	a.mu.Unlock()

	log.Println("Configuration reloaded")
	return nil
}

// sortPostsByRecency orders posts newest first by taken-at, breaking ties
// by fetch time.
func sortPostsByRecency(posts []types.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].TakenAt.Equal(posts[j].TakenAt) {
			return posts[i].TakenAt.After(posts[j].TakenAt)
		}
		return posts[i].FetchedAt.After(posts[j].FetchedAt)
	})
}
