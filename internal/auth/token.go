package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/soundwave/internal/shared"
	"golang.org/x/oauth2"
)

// expiryMargin treats tokens as expired this long before their actual
// expiry so an in-flight request never crosses the boundary.
const expiryMargin = 60 * time.Second

// TokenStore holds the current OAuth token in memory and mirrors it to disk.
type TokenStore struct {
	mu    sync.Mutex
	path  string
	token *oauth2.Token
}

// NewTokenStore creates a store rooted at dir and loads any persisted token.
func NewTokenStore(dir string) *TokenStore {
	s := &TokenStore{path: filepath.Join(dir, "token.json")}
	s.load()
	return s
}

func (s *TokenStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return
	}

	s.token = &token
}

// Save stores the token in memory and persists it to disk.
func (s *TokenStore) Save(token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}

	return nil
}

// Token returns the stored token or [shared.ErrNotAuthenticated].
func (s *TokenStore) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil || s.token.AccessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}

	return s.token, nil
}

// Valid reports whether a usable access token is present. Tokens within
// sixty seconds of expiry are considered invalid.
func (s *TokenStore) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil || s.token.AccessToken == "" {
		return false
	}

	if s.token.Expiry.IsZero() {
		return true
	}

	return time.Now().Before(s.token.Expiry.Add(-expiryMargin))
}

// Invalidate discards the stored token, in memory and on disk. Used when the
// API rejects a request with an authentication error.
func (s *TokenStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	os.Remove(s.path)
}
