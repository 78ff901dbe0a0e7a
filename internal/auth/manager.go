package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"

	"github.com/xArmad/reposter/internal/browser"
	"github.com/xArmad/reposter/internal/platform"
)

const (
	loginURL = "https://www.instagram.com/accounts/login/"
	homeURL  = "https://www.instagram.com/"

	// How long the user gets to complete the interactive login, including
	// any checkpoint/verification the platform throws at them.
	loginTimeout = 5 * time.Minute
)

// Manager handles per-account platform authentication. Login is always
// interactive: a visible browser window is opened and the user signs in
// there, so credentials never pass through this process. Only the resulting
// session cookies are persisted.
type Manager struct{}

// NewManager creates a new auth manager
func NewManager() *Manager {
	return &Manager{}
}

// IsAuthenticated checks if a valid session is stored for username
func (m *Manager) IsAuthenticated(username string) bool {
	path, err := SessionPath(username)
	if err != nil {
		return false
	}
	return NewCookieStore(path).IsValid()
}

// Connect opens a browser window for the user to log in to any account.
// The logged-in username is detected from the page, the captured session
// cookies are saved under it, and it is returned.
func (m *Manager) Connect(ctx context.Context) (string, error) {
	opts := append(browser.Options(false),
		chromedp.Flag("start-maximized", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx, chromedp.Navigate(loginURL)); err != nil {
		return "", fmt.Errorf("failed to navigate to login page: %w", err)
	}

	if err := m.waitForLogin(browserCtx); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}

	username, err := m.detectUsername(browserCtx)
	if err != nil {
		return "", fmt.Errorf("failed to detect logged-in username: %w", err)
	}

	cookies, err := m.extractCookies(browserCtx)
	if err != nil {
		return "", fmt.Errorf("failed to extract cookies: %w", err)
	}

	path, err := SessionPath(username)
	if err != nil {
		return "", err
	}
	if err := NewCookieStore(path).Save(username, cookies); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	return username, nil
}

// Login runs the interactive Connect flow and verifies the user signed in
// as the expected account.
func (m *Manager) Login(ctx context.Context, username string) error {
	detected, err := m.Connect(ctx)
	if err != nil {
		return err
	}
	if detected != username {
		return fmt.Errorf("logged in as %s, expected %s", detected, username)
	}
	return nil
}

// waitForLogin polls until the user has successfully logged in
func (m *Manager) waitForLogin(ctx context.Context) error {
	timeout := time.After(loginTimeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return fmt.Errorf("login timeout exceeded")
		case <-ticker.C:
			var url string
			if err := chromedp.Run(ctx, chromedp.Location(&url)); err != nil {
				continue
			}

			// Still on the login or checkpoint flow
			if strings.Contains(url, "/accounts/login") || strings.Contains(url, "/challenge") {
				continue
			}

			// On the home page: verify the session cookie exists
			cookies, err := m.extractCookies(ctx)
			if err != nil {
				continue
			}
			for _, c := range cookies {
				if c.Name == "sessionid" && c.Value != "" {
					return nil
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// detectUsername reads the logged-in account name off the home page. The
// nav avatar's alt text carries it.
func (m *Manager) detectUsername(ctx context.Context) (string, error) {
	const js = `(() => {
		const img = document.querySelector('img[alt$="profile picture"]');
		if (!img) return "";
		return img.alt.replace(/'s profile picture$/, "");
	})()`

	deadline := time.After(30 * time.Second)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var username string
		if err := chromedp.Run(ctx,
			chromedp.Navigate(homeURL),
			chromedp.Evaluate(js, &username),
		); err == nil && username != "" {
			return strings.TrimSpace(username), nil
		}

		select {
		case <-deadline:
			return "", fmt.Errorf("could not find the account name on the page")
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// extractCookies gets all cookies from the browser
func (m *Manager) extractCookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

// Logout clears the stored session for username
func (m *Manager) Logout(username string) error {
	path, err := SessionPath(username)
	if err != nil {
		return err
	}
	return NewCookieStore(path).Clear()
}

// Session returns an authenticated platform session for username. It
// returns a platform.AuthError if no valid session is stored; callers must
// trigger an interactive Login to recover.
func (m *Manager) Session(ctx context.Context, username string) (*platform.Session, error) {
	path, err := SessionPath(username)
	if err != nil {
		return nil, err
	}

	cs := NewCookieStore(path)
	if !cs.IsValid() {
		return nil, &platform.AuthError{Username: username}
	}

	cookies, err := cs.SessionCookies()
	if err != nil {
		return nil, &platform.AuthError{Username: username, Err: err}
	}

	return &platform.Session{Username: username, Cookies: cookies}, nil
}
