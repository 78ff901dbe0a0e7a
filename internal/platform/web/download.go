package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/xArmad/reposter/internal/browser"
	"github.com/xArmad/reposter/internal/platform"
	"github.com/xArmad/reposter/internal/types"
)

const downloadTimeout = 2 * time.Minute

// DownloadMedia fetches the post's media over HTTP using the session's
// cookies and writes it under the client's media directory.
func (c *Client) DownloadMedia(ctx context.Context, sess *platform.Session, post types.Post) (string, error) {
	if post.MediaURL == "" {
		return "", &platform.MediaError{MediaID: post.MediaID, Err: fmt.Errorf("post has no media URL")}
	}

	reqCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, post.MediaURL, nil)
	if err != nil {
		return "", &platform.MediaError{MediaID: post.MediaID, Err: err}
	}

	req.Header.Set("User-Agent", browser.DefaultUserAgent)
	req.Header.Set("Referer", baseURL+"/")
	for _, ck := range sess.Cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", &platform.NetworkError{Op: "download media", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &platform.RateLimitError{Err: fmt.Errorf("media download got %s", resp.Status)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &platform.AuthError{Username: sess.Username, Err: fmt.Errorf("media download got %s", resp.Status)}
	case resp.StatusCode >= 500:
		return "", &platform.NetworkError{Op: "download media", Err: fmt.Errorf("media download got %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return "", &platform.MediaError{MediaID: post.MediaID, Err: fmt.Errorf("media download got %s", resp.Status)}
	}

	if err := os.MkdirAll(c.mediaDir, 0755); err != nil {
		return "", &platform.MediaError{MediaID: post.MediaID, Err: err}
	}

	name := fmt.Sprintf("%s_%s%s", post.AccountID, post.MediaID, mediaExt(post.Type, resp.Header.Get("Content-Type")))
	path := filepath.Join(c.mediaDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", &platform.MediaError{MediaID: post.MediaID, Err: err}
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(path)
		return "", &platform.NetworkError{Op: "download media", Err: err}
	}

	return path, nil
}

// mediaExt picks a file extension from the content type, falling back on the
// media type when the header is missing.
func mediaExt(t types.MediaType, contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	}

	if t == types.MediaVideo {
		return ".mp4"
	}
	return ".jpg"
}
