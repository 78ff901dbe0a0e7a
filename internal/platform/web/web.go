// Package web implements platform.Client by driving instagram.com through
// chromedp. All protocol complexity stays inside the browser; this package
// only navigates, extracts, and classifies failures into the platform error
// taxonomy.
package web

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/xArmad/reposter/internal/browser"
	"github.com/xArmad/reposter/internal/platform"
	"github.com/xArmad/reposter/internal/types"
)

const (
	baseURL = "https://www.instagram.com"

	// A feed page is one screenful of grid items.
	pageSize = 12

	fetchTimeout  = 3 * time.Minute
	uploadTimeout = 4 * time.Minute
)

// Client drives the platform through a browser. It satisfies
// platform.Client.
type Client struct {
	headless bool
	mediaDir string
}

// New creates a web client. Downloaded media is written under mediaDir.
func New(headless bool, mediaDir string) *Client {
	return &Client{headless: headless, mediaDir: mediaDir}
}

// newBrowser builds a browser context with stealth options and a bounded
// lifetime. The returned cancel funcs must all be called.
func (c *Client) newBrowser(ctx context.Context, timeout time.Duration) (context.Context, func()) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browser.Options(c.headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, timeout)

	cancel := func() {
		timeoutCancel()
		browserCancel()
		allocCancel()
	}
	return browserCtx, cancel
}

// injectCookies sets session cookies in the browser context
func (c *Client) injectCookies(ctx context.Context, sess *platform.Session) error {
	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, ck := range sess.Cookies {
				err := network.SetCookie(ck.Name, ck.Value).
					WithDomain(ck.Domain).
					WithPath(ck.Path).
					WithSecure(ck.Secure).
					WithHTTPOnly(ck.HTTPOnly).
					WithSameSite(ck.SameSite).
					Do(ctx)
				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

// FetchFeed loads the session account's profile grid and extracts one page
// of posts starting at cursor (an offset into the grid; empty means the
// first page).
func (c *Client) FetchFeed(ctx context.Context, sess *platform.Session, cursor string) ([]types.Post, string, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid feed cursor %q: %w", cursor, err)
		}
		offset = n
	}

	browserCtx, cancel := c.newBrowser(ctx, fetchTimeout)
	defer cancel()

	if err := c.injectCookies(browserCtx, sess); err != nil {
		return nil, "", classify("inject cookies", sess.Username, err)
	}

	profileURL := fmt.Sprintf("%s/%s/", baseURL, sess.Username)
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(profileURL),
	); err != nil {
		return nil, "", classify("load profile", sess.Username, err)
	}

	if loggedOut, err := c.onLoginPage(browserCtx); err == nil && loggedOut {
		return nil, "", &platform.AuthError{Username: sess.Username}
	}

	if err := chromedp.Run(browserCtx,
		chromedp.WaitVisible(WaitForProfile, chromedp.ByQuery),
	); err != nil {
		return nil, "", classify("wait for profile grid", sess.Username, err)
	}

	posts, err := c.extractPosts(browserCtx, sess.Username, offset+pageSize)
	if err != nil {
		return nil, "", classify("extract posts", sess.Username, err)
	}

	// Drop the rows before the cursor.
	if offset >= len(posts) {
		return nil, "", nil
	}
	page := posts[offset:]

	next := ""
	if len(page) == pageSize {
		next = strconv.Itoa(offset + pageSize)
	}
	return page, next, nil
}

// onLoginPage checks whether the browser was bounced to the login form.
func (c *Client) onLoginPage(ctx context.Context) (bool, error) {
	var url string
	if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
		return false, err
	}
	return strings.Contains(url, "/accounts/login"), nil
}

// rawPost represents the raw data extracted from the profile grid via JavaScript
type rawPost struct {
	MediaID      string `json:"mediaId"`
	Kind         string `json:"kind"`
	Caption      string `json:"caption"`
	MediaURL     string `json:"mediaUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// extractPosts scrolls the profile grid until count items are visible and
// extracts them in display order (most recent first).
func (c *Client) extractPosts(ctx context.Context, username string, count int) ([]types.Post, error) {
	var raws []rawPost
	scrollAttempts := 0
	maxScrollAttempts := count/pageSize + 2

	for len(raws) < count && scrollAttempts <= maxScrollAttempts {
		if err := chromedp.Run(ctx, chromedp.Evaluate(extractJS, &raws)); err != nil {
			return nil, fmt.Errorf("failed to extract posts from DOM: %w", err)
		}

		if len(raws) >= count {
			break
		}

		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil),
		); err != nil {
			return nil, err
		}

		// Wait for new grid rows to load
		time.Sleep(time.Duration(500+scrollAttempts*100) * time.Millisecond)
		scrollAttempts++
	}

	now := time.Now()
	posts := make([]types.Post, 0, len(raws))
	seen := make(map[string]bool)

	for _, rp := range raws {
		if rp.MediaID == "" || seen[rp.MediaID] {
			continue
		}
		seen[rp.MediaID] = true

		posts = append(posts, types.Post{
			AccountID:    username,
			MediaID:      rp.MediaID,
			Type:         mediaType(rp.Kind),
			Caption:      rp.Caption,
			TakenAt:      now, // grid tiles carry no timestamp; fetch order stands in
			MediaURL:     rp.MediaURL,
			ThumbnailURL: rp.ThumbnailURL,
			FetchedAt:    now,
		})
	}

	if len(posts) > count {
		posts = posts[:count]
	}
	return posts, nil
}

func mediaType(kind string) types.MediaType {
	switch kind {
	case "video":
		return types.MediaVideo
	case "carousel":
		return types.MediaCarousel
	default:
		return types.MediaImage
	}
}

// extractJS pulls grid items out of the profile page. The shortcode in the
// item link is the media id; the tile image's alt text is the closest thing
// to a caption the grid exposes.
var extractJS = fmt.Sprintf(`
	(function() {
		const items = document.querySelectorAll(%q);
		const results = [];

		items.forEach(el => {
			try {
				const m = el.href.match(/\/(?:p|reel)\/([^\/]+)/);
				const mediaId = m ? m[1] : '';
				if (!mediaId) return;

				let kind = 'image';
				if (el.href.includes('/reel/')) kind = 'video';
				// Carousel tiles carry a stacked-squares icon
				if (el.querySelector('svg[aria-label="Carousel"]')) kind = 'carousel';
				if (el.querySelector('svg[aria-label="Clip"]')) kind = 'video';

				const img = el.querySelector('img');
				const caption = img?.alt || '';
				const thumbnailUrl = img?.src || '';
				const video = el.querySelector('video');
				const mediaUrl = video?.src || thumbnailUrl;

				results.push({ mediaId, kind, caption, mediaUrl, thumbnailUrl });
			} catch (e) {
				console.error('Error extracting grid item:', e);
			}
		});

		return results;
	})()
`, GridItem)

// Repost publishes local media to the session's account through the
// create-post flow.
func (c *Client) Repost(ctx context.Context, sess *platform.Session, payload platform.MediaPayload, caption string) (string, error) {
	browserCtx, cancel := c.newBrowser(ctx, uploadTimeout)
	defer cancel()

	if err := c.injectCookies(browserCtx, sess); err != nil {
		return "", classify("inject cookies", sess.Username, err)
	}

	if err := chromedp.Run(browserCtx, chromedp.Navigate(baseURL)); err != nil {
		return "", classify("load home", sess.Username, err)
	}

	if loggedOut, err := c.onLoginPage(browserCtx); err == nil && loggedOut {
		return "", &platform.AuthError{Username: sess.Username}
	}

	// Open the create flow and attach the media file.
	if err := chromedp.Run(browserCtx,
		chromedp.WaitVisible(HomeIndicator, chromedp.ByQuery),
		chromedp.Click(NewPostButton, chromedp.ByQuery),
		chromedp.WaitVisible(ShareDialog, chromedp.ByQuery),
		chromedp.SetUploadFiles(FileInput, []string{payload.Path}, chromedp.ByQuery),
	); err != nil {
		return "", c.classifyUpload(browserCtx, sess.Username, err)
	}

	// Crop step, then filters/trim step.
	for i := 0; i < 2; i++ {
		if err := c.clickByText(browserCtx, NextLabel); err != nil {
			return "", c.classifyUpload(browserCtx, sess.Username, err)
		}
	}

	if caption != "" {
		if err := chromedp.Run(browserCtx,
			chromedp.WaitVisible(CaptionBox, chromedp.ByQuery),
			chromedp.Click(CaptionBox, chromedp.ByQuery),
			chromedp.SendKeys(CaptionBox, caption, chromedp.ByQuery),
		); err != nil {
			return "", c.classifyUpload(browserCtx, sess.Username, err)
		}
	}

	if err := c.clickByText(browserCtx, ShareLabel); err != nil {
		return "", c.classifyUpload(browserCtx, sess.Username, err)
	}

	// Wait for the shared confirmation; video processing can take a while.
	if err := chromedp.Run(browserCtx,
		chromedp.WaitVisible(SharedIndicator, chromedp.ByQuery),
	); err != nil {
		return "", c.classifyUpload(browserCtx, sess.Username, err)
	}

	// The confirmation dialog does not expose the new post's id.
	return "", nil
}

// clickByText clicks the first dialog button whose text matches label.
func (c *Client) clickByText(ctx context.Context, label string) error {
	js := fmt.Sprintf(`
		(function() {
			const buttons = document.querySelectorAll(%q);
			for (const b of buttons) {
				if (b.textContent.trim() === %q) { b.click(); return true; }
			}
			return false;
		})()
	`, DialogButtons, label)

	var clicked bool
	if err := chromedp.Run(ctx, chromedp.Evaluate(js, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("button %q not found in dialog", label)
	}
	return nil
}

// classifyUpload inspects the page for throttle/block banners before falling
// back to generic classification.
func (c *Client) classifyUpload(ctx context.Context, username string, err error) error {
	var body string
	if jsErr := chromedp.Run(ctx,
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &body),
	); jsErr == nil {
		if strings.Contains(body, RateLimitText) || strings.Contains(body, ActionBlockedText) {
			return &platform.RateLimitError{Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &platform.NetworkError{Op: "upload", Err: err}
	}
	if platform.IsAuth(err) {
		return err
	}
	return &platform.UploadError{Username: username, Err: err}
}

// classify maps browser/transport failures onto the platform taxonomy.
// Timeouts are network errors (retryable), never auth errors.
func classify(op, username string, err error) error {
	switch {
	case err == nil:
		return nil
	case platform.IsAuth(err) || platform.IsRateLimit(err):
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return &platform.NetworkError{Op: op, Err: err}
	default:
		return &platform.NetworkError{Op: op, Err: err}
	}
}
