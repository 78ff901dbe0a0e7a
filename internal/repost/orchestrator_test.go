package repost

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xArmad/reposter/internal/platform"
	"github.com/xArmad/reposter/internal/store"
	"github.com/xArmad/reposter/internal/types"
)

// fakeSessions hands out sessions for every account without real auth.
type fakeSessions struct{}

func (fakeSessions) Session(ctx context.Context, username string) (*platform.Session, error) {
	return &platform.Session{Username: username}, nil
}

// fakeClient scripts per-call outcomes. Repost errors are consumed in order
// per target; a nil entry (or an exhausted script) means success.
type fakeClient struct {
	mu sync.Mutex

	downloadErr  error
	downloadPath string

	repostErrs  map[string][]error
	repostCalls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		downloadPath: "/tmp/fake-media.jpg",
		repostErrs:   make(map[string][]error),
		repostCalls:  make(map[string]int),
	}
}

func (f *fakeClient) FetchFeed(ctx context.Context, sess *platform.Session, cursor string) ([]types.Post, string, error) {
	return nil, "", nil
}

func (f *fakeClient) DownloadMedia(ctx context.Context, sess *platform.Session, post types.Post) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	return f.downloadPath, nil
}

func (f *fakeClient) Repost(ctx context.Context, sess *platform.Session, payload platform.MediaPayload, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.repostCalls[sess.Username]++
	errs := f.repostErrs[sess.Username]
	if len(errs) == 0 {
		return "new-post-id", nil
	}
	err := errs[0]
	f.repostErrs[sess.Username] = errs[1:]
	if err != nil {
		return "", err
	}
	return "new-post-id", nil
}

func (f *fakeClient) calls(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.repostCalls[target]
}

func newTestOrchestrator(t *testing.T, client platform.Client) (*Orchestrator, *store.Store) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	orch := New(client, fakeSessions{}, st, Config{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	})
	return orch, st
}

func newJob(t *testing.T, targets ...string) *types.RepostJob {
	t.Helper()
	job, err := types.NewRepostJob(types.Post{
		AccountID: "main",
		MediaID:   "m1",
		Type:      types.MediaImage,
		Caption:   "hello",
		TakenAt:   time.Now(),
		FetchedAt: time.Now(),
	}, targets, "")
	require.NoError(t, err)
	return job
}

func TestRunAllTargetsSucceed(t *testing.T) {
	client := newFakeClient()
	orch, st := newTestOrchestrator(t, client)

	job := newJob(t, "beta", "gamma")
	require.NoError(t, orch.Run(context.Background(), job))

	assert.True(t, job.Done())
	assert.Equal(t, 2, job.Succeeded())
	assert.Equal(t, 0, job.Failed())
	assert.Equal(t, "/tmp/fake-media.jpg", job.Post.LocalPath)

	jobs, err := st.RecentJobs(1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, types.TargetSucceeded, jobs[0].Results[0].Status)
	assert.Equal(t, types.TargetSucceeded, jobs[0].Results[1].Status)
	assert.False(t, jobs[0].CompletedAt.IsZero())
}

func TestRunRateLimitRetriesThenSucceeds(t *testing.T) {
	client := newFakeClient()
	client.repostErrs["beta"] = []error{
		&platform.RateLimitError{Err: errors.New("throttled")},
		&platform.RateLimitError{Err: errors.New("throttled")},
	}
	orch, _ := newTestOrchestrator(t, client)

	job := newJob(t, "beta")
	require.NoError(t, orch.Run(context.Background(), job))

	r := job.Result("beta")
	assert.Equal(t, types.TargetSucceeded, r.Status)
	assert.Equal(t, 3, r.Attempts)
	assert.Equal(t, 3, client.calls("beta"))
}

func TestRunRateLimitExhaustsAttempts(t *testing.T) {
	client := newFakeClient()
	rl := &platform.RateLimitError{Err: errors.New("throttled")}
	client.repostErrs["beta"] = []error{rl, rl, rl}
	orch, st := newTestOrchestrator(t, client)

	job := newJob(t, "beta", "gamma")
	require.NoError(t, orch.Run(context.Background(), job))

	// Exactly MaxAttempts tries, then terminal failure; the next target is
	// still processed.
	beta := job.Result("beta")
	assert.Equal(t, types.TargetFailed, beta.Status)
	assert.Equal(t, 3, beta.Attempts)
	assert.Contains(t, beta.Reason, "rate limited")
	assert.Equal(t, 3, client.calls("beta"))

	gamma := job.Result("gamma")
	assert.Equal(t, types.TargetSucceeded, gamma.Status)

	jobs, err := st.RecentJobs(1)
	require.NoError(t, err)
	assert.Equal(t, 3, jobs[0].Results[0].Attempts)
}

func TestRunAuthErrorIsTerminalForTarget(t *testing.T) {
	client := newFakeClient()
	client.repostErrs["beta"] = []error{&platform.AuthError{Username: "beta"}}
	orch, _ := newTestOrchestrator(t, client)

	job := newJob(t, "beta", "gamma")
	require.NoError(t, orch.Run(context.Background(), job))

	// No retry on auth failures.
	assert.Equal(t, 1, client.calls("beta"))
	assert.Equal(t, types.TargetFailed, job.Result("beta").Status)
	assert.Equal(t, types.TargetSucceeded, job.Result("gamma").Status)
}

func TestRunMediaErrorFailsAllTargetsWithoutUploads(t *testing.T) {
	client := newFakeClient()
	client.downloadErr = &platform.MediaError{MediaID: "m1", Err: errors.New("gone")}
	orch, _ := newTestOrchestrator(t, client)

	job := newJob(t, "beta", "gamma")
	require.NoError(t, orch.Run(context.Background(), job))

	assert.True(t, job.Done())
	assert.Equal(t, 2, job.Failed())
	for _, target := range job.Targets {
		assert.Contains(t, job.Result(target).Reason, "download failed")
	}

	// The media never arrived, so no upload was ever attempted.
	assert.Equal(t, 0, client.calls("beta"))
	assert.Equal(t, 0, client.calls("gamma"))
}

func TestRunSkipsDownloadWhenMediaIsLocal(t *testing.T) {
	client := newFakeClient()
	client.downloadErr = fmt.Errorf("download must not be called")
	orch, _ := newTestOrchestrator(t, client)

	job := newJob(t, "beta")
	job.Post.LocalPath = "/tmp/already-here.jpg"

	require.NoError(t, orch.Run(context.Background(), job))
	assert.Equal(t, types.TargetSucceeded, job.Result("beta").Status)
}

func TestRunCancellationMarksRemainingTargets(t *testing.T) {
	client := newFakeClient()
	orch, _ := newTestOrchestrator(t, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := newJob(t, "beta", "gamma")
	require.NoError(t, orch.Run(ctx, job))

	// All targets reach a terminal status even on cancellation.
	assert.True(t, job.Done())
	assert.Equal(t, 2, job.Failed())
	assert.Equal(t, "cancelled", job.Result("beta").Reason)
	assert.Equal(t, "cancelled", job.Result("gamma").Reason)
}

// blockingClient parks every upload until released and fails it if the
// passed-in context has been cancelled by then.
type blockingClient struct {
	*fakeClient
	started chan struct{}
	release chan struct{}
}

func (b *blockingClient) Repost(ctx context.Context, sess *platform.Session, payload platform.MediaPayload, caption string) (string, error) {
	b.started <- struct{}{}
	<-b.release
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return b.fakeClient.Repost(ctx, sess, payload, caption)
}

func TestRunCancelDoesNotAbortInFlightUpload(t *testing.T) {
	client := &blockingClient{
		fakeClient: newFakeClient(),
		started:    make(chan struct{}, 2),
		release:    make(chan struct{}),
	}
	orch, _ := newTestOrchestrator(t, client)

	job := newJob(t, "beta", "gamma")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx, job) }()

	// Wait until the upload to the first target is in flight, then cancel.
	<-client.started
	cancel()
	close(client.release)
	require.NoError(t, <-done)

	// The started upload ran to completion despite the cancellation.
	beta := job.Result("beta")
	assert.Equal(t, types.TargetSucceeded, beta.Status)
	assert.Equal(t, 1, beta.Attempts)

	// The next target never started; it was cancelled before its upload.
	gamma := job.Result("gamma")
	assert.Equal(t, types.TargetFailed, gamma.Status)
	assert.Equal(t, "cancelled", gamma.Reason)
	assert.Equal(t, 1, client.calls("beta"))
	assert.Equal(t, 0, client.calls("gamma"))
}

func TestRetryStateBackoffDoublesWithCap(t *testing.T) {
	r := newRetryState(5, 100*time.Millisecond, 300*time.Millisecond)

	assert.Equal(t, 1, r.Attempt())
	assert.False(t, r.Exhausted())

	// Jitter is +-10%, so check windows rather than exact values.
	d := r.Backoff()
	assert.InDelta(t, 100*time.Millisecond, d, float64(10*time.Millisecond))

	d = r.Backoff()
	assert.InDelta(t, 200*time.Millisecond, d, float64(20*time.Millisecond))

	// Capped from here on.
	d = r.Backoff()
	assert.InDelta(t, 300*time.Millisecond, d, float64(30*time.Millisecond))
	d = r.Backoff()
	assert.InDelta(t, 300*time.Millisecond, d, float64(30*time.Millisecond))
}

func TestRetryStateExhaustion(t *testing.T) {
	r := newRetryState(3, time.Millisecond, time.Millisecond)

	r.Attempt()
	r.Attempt()
	assert.False(t, r.Exhausted())
	r.Attempt()
	assert.True(t, r.Exhausted())
}
