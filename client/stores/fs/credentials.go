// Package fs provides a file system-based credential store for the identity
// provider's persisted session.
package fs

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/pinged/authkit/client"
)

const nonceSize = 24

// ErrSealedFile is returned when a sealed credentials file cannot be opened with the
// configured key.
var ErrSealedFile = errors.New("credentials file cannot be opened with this key")

// FSCredentialStore stores sessions as a JSON file on the filesystem, optionally
// sealed with a secret key.
type FSCredentialStore struct {
	mu       sync.RWMutex
	path     string
	key      *[32]byte
	sessions map[string]*client.StoredSession
	modified bool
}

// credentialFile is the JSON structure stored on disk
type credentialFile struct {
	Projects map[string]*client.StoredSession `json:"projects"`
}

// Option configures an FSCredentialStore
type Option func(*FSCredentialStore)

// WithSealKey seals the file at rest with NaCl secretbox.
func WithSealKey(key *[32]byte) Option {
	return func(s *FSCredentialStore) {
		s.key = key
	}
}

// NewFSCredentialStore creates a new FS-based credential store.
// If path is empty, defaults to ~/.config/<appName>/session.json
func NewFSCredentialStore(path string, appName string, opts ...Option) (*FSCredentialStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "pinged"
		}
		path = filepath.Join(configDir, appName, "session.json")
	}

	store := &FSCredentialStore{
		path:     path,
		sessions: make(map[string]*client.StoredSession),
	}
	for _, opt := range opts {
		opt(store)
	}

	// Load existing sessions if file exists
	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return store, nil
}

// load reads sessions from disk
func (s *FSCredentialStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	if s.key != nil {
		if len(data) < nonceSize {
			return ErrSealedFile
		}
		var nonce [nonceSize]byte
		copy(nonce[:], data[:nonceSize])
		opened, ok := secretbox.Open(nil, data[nonceSize:], &nonce, s.key)
		if !ok {
			return ErrSealedFile
		}
		data = opened
	}

	var file credentialFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}

	s.sessions = file.Projects
	if s.sessions == nil {
		s.sessions = make(map[string]*client.StoredSession)
	}

	return nil
}

func normalizeProject(projectID string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(projectID))
	if key == "" {
		return "", fmt.Errorf("project id required")
	}
	return key, nil
}

// GetCredential retrieves the session for a project
func (s *FSCredentialStore) GetCredential(projectID string) (*client.StoredSession, error) {
	key, err := normalizeProject(projectID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, nil
	}

	return sess, nil
}

// SetCredential stores the session for a project
func (s *FSCredentialStore) SetCredential(projectID string, sess *client.StoredSession) error {
	key, err := normalizeProject(projectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[key] = sess
	s.modified = true

	return nil
}

// RemoveCredential removes the session for a project
func (s *FSCredentialStore) RemoveCredential(projectID string) error {
	key, err := normalizeProject(projectID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
	s.modified = true

	return nil
}

// ListProjects returns all projects with a stored session
func (s *FSCredentialStore) ListProjects() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]string, 0, len(s.sessions))
	for k := range s.sessions {
		projects = append(projects, k)
	}

	return projects, nil
}

// Save persists sessions to disk
func (s *FSCredentialStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.modified {
		return nil
	}

	// Ensure directory exists with restricted permissions
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := credentialFile{Projects: s.sessions}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize credentials: %w", err)
	}

	if s.key != nil {
		var nonce [nonceSize]byte
		if _, err := rand.Read(nonce[:]); err != nil {
			return fmt.Errorf("failed to generate nonce: %w", err)
		}
		data = secretbox.Seal(nonce[:], data, &nonce, s.key)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}

	s.modified = false
	return nil
}

// Path returns the path to the credentials file
func (s *FSCredentialStore) Path() string {
	return s.path
}
