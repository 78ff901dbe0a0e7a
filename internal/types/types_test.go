package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepostJob(t *testing.T) {
	post := Post{AccountID: "main", MediaID: "m1", Caption: "hello"}

	job, err := NewRepostJob(post, []string{"a", "b"}, "")
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, []string{"a", "b"}, job.Targets)
	require.Len(t, job.Results, 2)
	for _, r := range job.Results {
		assert.Equal(t, TargetPending, r.Status)
	}
	assert.False(t, job.Done())
}

func TestNewRepostJobRequiresTargets(t *testing.T) {
	_, err := NewRepostJob(Post{MediaID: "m1"}, nil, "")
	assert.Error(t, err)
}

func TestCaptionOverride(t *testing.T) {
	post := Post{MediaID: "m1", Caption: "original"}

	job, err := NewRepostJob(post, []string{"a"}, "")
	require.NoError(t, err)
	assert.Equal(t, "original", job.Caption())

	job, err = NewRepostJob(post, []string{"a"}, "replaced")
	require.NoError(t, err)
	assert.Equal(t, "replaced", job.Caption())
}

func TestMarkIsMonotonic(t *testing.T) {
	job, err := NewRepostJob(Post{MediaID: "m1"}, []string{"a", "b"}, "")
	require.NoError(t, err)

	assert.True(t, job.Mark("a", TargetSucceeded, "", 1))

	// A terminal status never changes again.
	assert.False(t, job.Mark("a", TargetFailed, "late failure", 2))
	assert.Equal(t, TargetSucceeded, job.Result("a").Status)
	assert.Equal(t, 1, job.Result("a").Attempts)

	// Unknown targets are rejected.
	assert.False(t, job.Mark("nobody", TargetFailed, "", 1))

	assert.False(t, job.Done())
	assert.True(t, job.Mark("b", TargetFailed, "rate limited", 3))
	assert.True(t, job.Done())
	assert.Equal(t, 1, job.Succeeded())
	assert.Equal(t, 1, job.Failed())
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{Types: []MediaType{MediaVideo}}.IsZero())
	assert.False(t, Filter{Accounts: []string{"a"}}.IsZero())
	assert.False(t, Filter{Search: "x"}.IsZero())
}

func TestJobTargetsAreCopied(t *testing.T) {
	targets := []string{"a", "b"}
	job, err := NewRepostJob(Post{MediaID: "m1", TakenAt: time.Now()}, targets, "")
	require.NoError(t, err)

	targets[0] = "mutated"
	assert.Equal(t, "a", job.Targets[0])
}
