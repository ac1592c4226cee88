// Package auth owns the client's session: the access/refresh token pair, the
// cached user profile, and their durable storage. The Manager is the sole
// writer of session state; everything else reads through accessors.
package auth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// User is the cached profile returned by the current-user endpoint.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// tokenFile is the on-disk layout: exactly the two token entries under
// fixed names. A missing access token means an anonymous session.
type tokenFile struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Store holds the current credentials in memory and persists every token
// mutation so a restarted process rehydrates an active session.
type Store struct {
	mu      sync.RWMutex
	path    string
	access  string
	refresh string
	user    *User
}

// NewStore opens the token storage at path and rehydrates any persisted
// session. A missing or unreadable file yields an anonymous store.
func NewStore(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return s
	}
	s.access = tf.AccessToken
	s.refresh = tf.RefreshToken
	return s
}

// SetTokens replaces both tokens, as on login.
func (s *Store) SetTokens(access, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.refresh = refresh
	return s.persistLocked()
}

// SetAccessToken replaces only the access token, as on refresh. The refresh
// token is retained.
func (s *Store) SetAccessToken(access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	return s.persistLocked()
}

// SetUser caches the profile fetched after login.
func (s *Store) SetUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// Clear wipes the session from memory and disk. Safe to call in any state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
	s.user = nil
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Authenticated is derived: true iff an access token is present.
func (s *Store) Authenticated() bool {
	return s.AccessToken() != ""
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokenFile{
		AccessToken:  s.access,
		RefreshToken: s.refresh,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
