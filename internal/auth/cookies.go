package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/xArmad/reposter/internal/config"
)

// CookieStore handles storage of one account's session cookies
type CookieStore struct {
	path string
}

// StoredSession represents the persisted session data for one account
type StoredSession struct {
	Username   string            `json:"username"`
	Cookies    []*network.Cookie `json:"cookies"`
	CapturedAt time.Time         `json:"captured_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// NewCookieStore creates a cookie store at the given path
func NewCookieStore(path string) *CookieStore {
	return &CookieStore{path: path}
}

// SessionPath returns the cookie file path for a username
func SessionPath(username string) (string, error) {
	configDir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "sessions", username+".json"), nil
}

// Save persists cookies to disk
// TODO: Encrypt cookies at rest
func (cs *CookieStore) Save(username string, cookies []*network.Cookie) error {
	dir := filepath.Dir(cs.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Find the earliest expiration among auth-related cookies
	var earliestExpiry time.Time
	for _, c := range cookies {
		if c.Name == "sessionid" || c.Name == "csrftoken" {
			exp := time.Unix(int64(c.Expires), 0)
			if earliestExpiry.IsZero() || exp.Before(earliestExpiry) {
				earliestExpiry = exp
			}
		}
	}

	stored := StoredSession{
		Username:   username,
		Cookies:    cookies,
		CapturedAt: time.Now(),
		ExpiresAt:  earliestExpiry,
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(cs.path, data, 0600)
}

// Load retrieves the stored session from disk
func (cs *CookieStore) Load() (*StoredSession, error) {
	data, err := os.ReadFile(cs.path)
	if err != nil {
		return nil, err
	}

	var stored StoredSession
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}

	return &stored, nil
}

// IsValid checks if the stored session is still usable
func (cs *CookieStore) IsValid() bool {
	stored, err := cs.Load()
	if err != nil {
		return false
	}

	if time.Now().After(stored.ExpiresAt) {
		return false
	}

	for _, c := range stored.Cookies {
		if c.Name == "sessionid" && c.Value != "" {
			return true
		}
	}
	return false
}

// Clear removes the stored session
func (cs *CookieStore) Clear() error {
	err := os.Remove(cs.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// SessionCookies returns only the platform cookies for use in requests
func (cs *CookieStore) SessionCookies() ([]*network.Cookie, error) {
	stored, err := cs.Load()
	if err != nil {
		return nil, err
	}

	var out []*network.Cookie
	for _, c := range stored.Cookies {
		if c.Domain == ".instagram.com" || c.Domain == "instagram.com" || c.Domain == "www.instagram.com" {
			out = append(out, c)
		}
	}

	return out, nil
}
