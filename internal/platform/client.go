// Package platform defines the contract for talking to the media platform.
// All network traffic to the platform flows through a Client implementation;
// the rest of the application never touches the platform directly.
package platform

import (
	"context"

	"github.com/chromedp/cdproto/network"

	"github.com/xArmad/reposter/internal/types"
)

// Session is an authenticated browser session for one account. The cookie
// bundle is opaque to callers; it is produced by the auth package and
// consumed by Client implementations.
type Session struct {
	Username string
	Cookies  []*network.Cookie
}

// MediaPayload describes local media ready for upload.
type MediaPayload struct {
	Path string
	Type types.MediaType
}

// Client is the gateway to the platform. Implementations do not retry on
// their own; retry policy is the repost orchestrator's decision.
type Client interface {
	// FetchFeed returns one page of the session account's recent posts,
	// most recent first, plus an opaque cursor for the next page (empty
	// when the feed is exhausted). An empty cursor requests the first page.
	FetchFeed(ctx context.Context, sess *Session, cursor string) ([]types.Post, string, error)

	// DownloadMedia fetches the post's media to local disk and returns the
	// local path.
	DownloadMedia(ctx context.Context, sess *Session, post types.Post) (string, error)

	// Repost publishes the media in payload to the session's account with
	// the given caption and returns the new post's id when the platform
	// exposes one.
	Repost(ctx context.Context, sess *Session, payload MediaPayload, caption string) (string, error)
}
