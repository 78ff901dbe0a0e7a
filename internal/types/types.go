package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MediaType classifies a post's media.
type MediaType string

const (
	MediaImage    MediaType = "image"
	MediaVideo    MediaType = "video"
	MediaCarousel MediaType = "carousel"
)

// AccountRole distinguishes the main account from secondary accounts.
type AccountRole string

const (
	RoleMain      AccountRole = "main"
	RoleSecondary AccountRole = "secondary"
)

// Account is a connected platform account. The session itself lives in a
// per-username cookie file managed by the auth package; Account never holds
// credentials.
type Account struct {
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Role        AccountRole `json:"role"`
	AddedAt     time.Time   `json:"added_at"`
}

// Post is one cached feed item. Immutable once fetched except for LocalPath,
// which is set after the media has been downloaded.
type Post struct {
	AccountID    string    `json:"account_id"`
	MediaID      string    `json:"media_id"`
	Type         MediaType `json:"type"`
	Caption      string    `json:"caption"`
	TakenAt      time.Time `json:"taken_at"`
	MediaURL     string    `json:"media_url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	LocalPath    string    `json:"local_path,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Filter selects a subset of cached posts. An unset predicate passes
// everything; set predicates are ANDed.
type Filter struct {
	Types    []MediaType `json:"types,omitempty"`
	Accounts []string    `json:"accounts,omitempty"`
	Search   string      `json:"search,omitempty"`
}

// IsZero reports whether no predicate is set.
func (f Filter) IsZero() bool {
	return len(f.Types) == 0 && len(f.Accounts) == 0 && f.Search == ""
}

// TargetStatus is the per-target outcome of a repost job.
type TargetStatus string

const (
	TargetPending   TargetStatus = "pending"
	TargetSucceeded TargetStatus = "succeeded"
	TargetFailed    TargetStatus = "failed"
)

// TargetResult records the outcome of reposting to a single target account.
type TargetResult struct {
	Target   string       `json:"target"`
	Status   TargetStatus `json:"status"`
	Reason   string       `json:"reason,omitempty"`
	Attempts int          `json:"attempts"`
}

// RepostJob is a request to repost one post to an ordered list of target
// accounts. Targets are processed strictly in order; each result moves from
// pending to exactly one terminal status.
type RepostJob struct {
	ID              string         `json:"id"`
	Post            Post           `json:"post"`
	Targets         []string       `json:"targets"`
	CaptionOverride string         `json:"caption_override,omitempty"`
	Results         []TargetResult `json:"results"`
	CreatedAt       time.Time      `json:"created_at"`
	CompletedAt     time.Time      `json:"completed_at,omitempty"`
}

// NewRepostJob creates a job for post with the given targets. The target
// list must not be empty.
func NewRepostJob(post Post, targets []string, captionOverride string) (*RepostJob, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("repost job for media %s has no targets", post.MediaID)
	}

	results := make([]TargetResult, len(targets))
	for i, t := range targets {
		results[i] = TargetResult{Target: t, Status: TargetPending}
	}

	return &RepostJob{
		ID:              uuid.NewString(),
		Post:            post,
		Targets:         append([]string(nil), targets...),
		CaptionOverride: captionOverride,
		Results:         results,
		CreatedAt:       time.Now(),
	}, nil
}

// Caption returns the caption to publish: the override if set, otherwise the
// source post's caption.
func (j *RepostJob) Caption() string {
	if j.CaptionOverride != "" {
		return j.CaptionOverride
	}
	return j.Post.Caption
}

// Result returns the result entry for target, or nil if target is not part
// of this job.
func (j *RepostJob) Result(target string) *TargetResult {
	for i := range j.Results {
		if j.Results[i].Target == target {
			return &j.Results[i]
		}
	}
	return nil
}

// Mark records a terminal status for target. Transitions are monotonic: once
// a target is succeeded or failed it never changes again, so late or
// duplicate updates are dropped.
func (j *RepostJob) Mark(target string, status TargetStatus, reason string, attempts int) bool {
	r := j.Result(target)
	if r == nil || r.Status != TargetPending {
		return false
	}
	r.Status = status
	r.Reason = reason
	r.Attempts = attempts
	return true
}

// Done reports whether every target has reached a terminal status.
func (j *RepostJob) Done() bool {
	for i := range j.Results {
		if j.Results[i].Status == TargetPending {
			return false
		}
	}
	return true
}

// Succeeded and Failed count terminal outcomes.
func (j *RepostJob) Succeeded() int { return j.count(TargetSucceeded) }
func (j *RepostJob) Failed() int    { return j.count(TargetFailed) }

func (j *RepostJob) count(s TargetStatus) int {
	n := 0
	for i := range j.Results {
		if j.Results[i].Status == s {
			n++
		}
	}
	return n
}
