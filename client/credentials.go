// Package client holds the identity provider's persisted session and helpers for
// making authenticated calls on behalf of the signed-in user.
package client

import (
	"sync"
	"time"
)

// StoredSession is what the provider persists about a signed-in user so that a
// restarted process can restore the session without asking for credentials again.
type StoredSession struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	ProviderID   string    `json:"provider_id,omitempty"`
	IDToken      string    `json:"id_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsExpired returns true if the ID token has expired
func (c *StoredSession) IsExpired() bool {
	return c.ExpiredAt(time.Now())
}

// ExpiredAt reports whether the ID token is expired at now.
func (c *StoredSession) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CredentialStore persists sessions per identity project
type CredentialStore interface {
	// GetCredential retrieves the session for a project
	// Returns nil, nil if nobody is signed in
	GetCredential(projectID string) (*StoredSession, error)

	// SetCredential stores the session for a project
	SetCredential(projectID string, sess *StoredSession) error

	// RemoveCredential removes the session for a project
	RemoveCredential(projectID string) error

	// ListProjects returns all projects with a stored session
	ListProjects() ([]string, error)

	// Save persists any pending changes (for stores that batch writes)
	Save() error
}

// MemoryStore is a CredentialStore that keeps nothing across restarts.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*StoredSession
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*StoredSession)}
}

func (m *MemoryStore) GetCredential(projectID string) (*StoredSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[projectID], nil
}

func (m *MemoryStore) SetCredential(projectID string, sess *StoredSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[projectID] = sess
	return nil
}

func (m *MemoryStore) RemoveCredential(projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, projectID)
	return nil
}

func (m *MemoryStore) ListProjects() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		out = append(out, k)
	}
	return out, nil
}

func (m *MemoryStore) Save() error { return nil }
