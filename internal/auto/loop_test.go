package auto

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xArmad/reposter/internal/accounts"
	"github.com/xArmad/reposter/internal/platform"
	"github.com/xArmad/reposter/internal/repost"
	"github.com/xArmad/reposter/internal/store"
	"github.com/xArmad/reposter/internal/types"
)

type fakeSessions struct{}

func (fakeSessions) Session(ctx context.Context, username string) (*platform.Session, error) {
	return &platform.Session{Username: username}, nil
}

// fakeClient serves a fixed feed and counts uploads per target.
type fakeClient struct {
	mu    sync.Mutex
	feed  []types.Post
	posts map[string]int
}

func newFakeClient(feed []types.Post) *fakeClient {
	return &fakeClient{feed: feed, posts: make(map[string]int)}
}

func (f *fakeClient) FetchFeed(ctx context.Context, sess *platform.Session, cursor string) ([]types.Post, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feed, "", nil
}

func (f *fakeClient) DownloadMedia(ctx context.Context, sess *platform.Session, post types.Post) (string, error) {
	return "/tmp/" + post.MediaID + ".jpg", nil
}

func (f *fakeClient) Repost(ctx context.Context, sess *platform.Session, payload platform.MediaPayload, caption string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts[sess.Username]++
	return "new-id", nil
}

func (f *fakeClient) uploads(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[target]
}

func feedPost(mediaID string, mt types.MediaType, caption string) types.Post {
	return types.Post{
		AccountID: "main",
		MediaID:   mediaID,
		Type:      mt,
		Caption:   caption,
		TakenAt:   time.Now(),
		FetchedAt: time.Now(),
	}
}

type fixture struct {
	dbPath string
	accts  *accounts.Store
	st     *store.Store
	client *fakeClient
	loop   *Loop
}

func newFixture(t *testing.T, feed []types.Post) *fixture {
	t.Helper()
	dir := t.TempDir()
	return openFixture(t, filepath.Join(dir, "test.db"), filepath.Join(dir, "accounts.json"), feed)
}

func openFixture(t *testing.T, dbPath, acctsPath string, feed []types.Post) *fixture {
	t.Helper()

	st, err := store.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	accts, err := accounts.New(acctsPath)
	require.NoError(t, err)

	client := newFakeClient(feed)
	orch := repost.New(client, fakeSessions{}, st, repost.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	})

	return &fixture{
		dbPath: dbPath,
		accts:  accts,
		st:     st,
		client: client,
		loop:   New(accts, st, client, fakeSessions{}, orch),
	}
}

func (f *fixture) connect(t *testing.T, usernames ...string) {
	t.Helper()
	for _, u := range usernames {
		require.NoError(t, f.accts.Add(u, u))
	}
}

func (f *fixture) monitor(t *testing.T, accountID string, filter types.Filter) {
	t.Helper()
	require.NoError(t, f.st.SaveAutoFilter(store.AutoFilter{
		AccountID: accountID,
		Filter:    filter,
		Enabled:   true,
	}))
}

func TestRunRepostsNewMatchesOnce(t *testing.T) {
	f := newFixture(t, []types.Post{
		feedPost("vid1", types.MediaVideo, "beach day"),
		feedPost("img1", types.MediaImage, "coffee"),
	})
	f.connect(t, "main", "beta", "gamma")
	f.monitor(t, "main", types.Filter{Types: []types.MediaType{types.MediaVideo}})

	require.NoError(t, f.loop.Run(context.Background()))

	// Only the matching post went out, to both other accounts.
	assert.Equal(t, 1, f.client.uploads("beta"))
	assert.Equal(t, 1, f.client.uploads("gamma"))
	assert.Equal(t, 0, f.client.uploads("main"))

	// The same pass again reposts nothing.
	require.NoError(t, f.loop.Run(context.Background()))
	assert.Equal(t, 1, f.client.uploads("beta"))
	assert.Equal(t, 1, f.client.uploads("gamma"))
}

func TestRunAtMostOnceAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	acctsPath := filepath.Join(dir, "accounts.json")
	feed := []types.Post{feedPost("vid1", types.MediaVideo, "clip")}

	f := openFixture(t, dbPath, acctsPath, feed)
	f.connect(t, "main", "beta")
	f.monitor(t, "main", types.Filter{})

	require.NoError(t, f.loop.Run(context.Background()))
	assert.Equal(t, 1, f.client.uploads("beta"))

	// Fresh process, same database: the seen set survives.
	f2 := openFixture(t, dbPath, acctsPath, feed)
	require.NoError(t, f2.loop.Run(context.Background()))
	assert.Equal(t, 0, f2.client.uploads("beta"))
}

func TestRunNoMonitoredAccounts(t *testing.T) {
	f := newFixture(t, []types.Post{feedPost("vid1", types.MediaVideo, "clip")})
	f.connect(t, "main", "beta")

	require.NoError(t, f.loop.Run(context.Background()))
	assert.Equal(t, 0, f.client.uploads("beta"))
}

func TestRunMarksSeenEvenWithoutTargets(t *testing.T) {
	f := newFixture(t, []types.Post{feedPost("vid1", types.MediaVideo, "clip")})
	f.connect(t, "main")
	f.monitor(t, "main", types.Filter{})

	require.NoError(t, f.loop.Run(context.Background()))

	seen, err := f.st.Seen("main", "vid1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Connecting a target later does not replay old posts.
	require.NoError(t, f.accts.Add("beta", "beta"))
	require.NoError(t, f.loop.Run(context.Background()))
	assert.Equal(t, 0, f.client.uploads("beta"))
}

func TestRunCachesFetchedPosts(t *testing.T) {
	f := newFixture(t, []types.Post{
		feedPost("vid1", types.MediaVideo, "clip"),
		feedPost("img1", types.MediaImage, "photo"),
	})
	f.connect(t, "main", "beta")
	f.monitor(t, "main", types.Filter{Search: "no such caption"})

	require.NoError(t, f.loop.Run(context.Background()))

	// Even when nothing matches the filter, the fetch lands in the cache.
	posts, err := f.st.Posts("main")
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, 0, f.client.uploads("beta"))
}

func TestRunHonorsCancellation(t *testing.T) {
	f := newFixture(t, []types.Post{feedPost("vid1", types.MediaVideo, "clip")})
	f.connect(t, "main", "beta")
	f.monitor(t, "main", types.Filter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.loop.Run(ctx), context.Canceled)
	assert.Equal(t, 0, f.client.uploads("beta"))
}
