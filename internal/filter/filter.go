// Package filter evaluates user-defined filters against cached posts.
package filter

import (
	"strings"

	"github.com/xArmad/reposter/internal/types"
)

// Apply returns the posts matching f, preserving input order. A filter with
// no predicates set returns the input unchanged.
func Apply(f types.Filter, posts []types.Post) []types.Post {
	if f.IsZero() {
		return posts
	}

	out := make([]types.Post, 0, len(posts))
	for _, p := range posts {
		if Matches(f, p) {
			out = append(out, p)
		}
	}
	return out
}

// Matches reports whether a single post passes every set predicate. The
// media-type and account predicates are set-membership tests; the search
// term is a case-insensitive substring match on the caption.
func Matches(f types.Filter, p types.Post) bool {
	if len(f.Types) > 0 && !containsType(f.Types, p.Type) {
		return false
	}

	if len(f.Accounts) > 0 && !contains(f.Accounts, p.AccountID) {
		return false
	}

	if f.Search != "" {
		if !strings.Contains(strings.ToLower(p.Caption), strings.ToLower(f.Search)) {
			return false
		}
	}

	return true
}

func containsType(set []types.MediaType, t types.MediaType) bool {
	for _, s := range set {
		if s == t {
			return true
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
