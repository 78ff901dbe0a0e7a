// Package accounts persists the set of connected platform accounts.
//
// The store is the single owner of Account records: the UI, the repost
// orchestrator, and the auto-repost loop all read through it, and every
// mutation goes through its mutex so the foreground flow and the background
// loop never race on account state.
package accounts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xArmad/reposter/internal/config"
	"github.com/xArmad/reposter/internal/types"
)

// Store holds connected accounts, backed by a JSON file.
type Store struct {
	path string

	mu       sync.Mutex
	accounts []types.Account
}

// DefaultPath returns the default location of the accounts file.
func DefaultPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "accounts.json"), nil
}

// New creates a store backed by the file at path, loading any existing
// accounts from disk.
func New(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.accounts)
}

// save must be called with s.mu held.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.accounts, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// List returns a copy of all connected accounts.
func (s *Store) List() []types.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Account(nil), s.accounts...)
}

// Get looks up an account by username.
func (s *Store) Get(username string) (types.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Username == username {
			return a, true
		}
	}
	return types.Account{}, false
}

// Add connects a new account. The first account added becomes the main
// account; later ones are secondary.
func (s *Store) Add(username, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Username == username {
			return fmt.Errorf("account %s is already connected", username)
		}
	}

	role := types.RoleSecondary
	if len(s.accounts) == 0 {
		role = types.RoleMain
	}

	s.accounts = append(s.accounts, types.Account{
		Username:    username,
		DisplayName: displayName,
		Role:        role,
		AddedAt:     time.Now(),
	})

	return s.save()
}

// Remove disconnects an account. If the main account is removed, the oldest
// remaining account is promoted.
func (s *Store) Remove(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, a := range s.accounts {
		if a.Username == username {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("account %s is not connected", username)
	}

	wasMain := s.accounts[idx].Role == types.RoleMain
	s.accounts = append(s.accounts[:idx], s.accounts[idx+1:]...)

	if wasMain && len(s.accounts) > 0 {
		s.accounts[0].Role = types.RoleMain
	}

	return s.save()
}

// SetMain marks username as the main account and demotes the previous one.
func (s *Store) SetMain(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for i := range s.accounts {
		if s.accounts[i].Username == username {
			s.accounts[i].Role = types.RoleMain
			found = true
		} else {
			s.accounts[i].Role = types.RoleSecondary
		}
	}
	if !found {
		return fmt.Errorf("account %s is not connected", username)
	}

	return s.save()
}

// Main returns the main account, if any.
func (s *Store) Main() (types.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.Role == types.RoleMain {
			return a, true
		}
	}
	return types.Account{}, false
}

// Others returns the usernames of every connected account except username,
// in the order they were added. This is the default target list for reposts
// sourced from username.
func (s *Store) Others(username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, a := range s.accounts {
		if a.Username != username {
			out = append(out, a.Username)
		}
	}
	return out
}
