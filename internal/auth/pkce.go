package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/soundwave/internal/shared"
)

// GenerateState returns a random hex token for CSRF protection.
func GenerateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Artifacts are the transient values generated at the start of an
// authorization attempt and consumed at its completion.
type Artifacts struct {
	Verifier string `json:"verifier"`
	State    string `json:"state"`
}

// ArtifactStore persists pending authorization artifacts to disk so the
// callback can be completed by a later process invocation.
type ArtifactStore struct {
	path string
}

// NewArtifactStore creates a store rooted at dir.
func NewArtifactStore(dir string) *ArtifactStore {
	return &ArtifactStore{path: filepath.Join(dir, "auth_pending.json")}
}

// Save writes the pending artifacts, replacing any previous attempt.
func (s *ArtifactStore) Save(a Artifacts) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create auth directory: %w", err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode auth artifacts: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write auth artifacts: %w", err)
	}

	return nil
}

// Load reads the pending artifacts. Returns [shared.ErrMissingVerifier] when
// no authorization attempt is pending.
func (s *ArtifactStore) Load() (Artifacts, error) {
	var a Artifacts

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return a, shared.ErrMissingVerifier
	}
	if err != nil {
		return a, fmt.Errorf("failed to read auth artifacts: %w", err)
	}

	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("failed to decode auth artifacts: %w", err)
	}

	if a.Verifier == "" {
		return a, shared.ErrMissingVerifier
	}

	return a, nil
}

// Clear removes any pending artifacts. Missing files are not an error.
func (s *ArtifactStore) Clear() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear auth artifacts: %w", err)
	}
	return nil
}
