//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"

	"github.com/pinged/authkit/client"
)

// KindStoredSession is the Datastore kind for persisted sessions
const KindStoredSession = "StoredSession"

// storedSessionEntity is the Datastore representation of client.StoredSession
type storedSessionEntity struct {
	UserID       string    `datastore:"user_id"`
	Email        string    `datastore:"email,noindex"`
	ProviderID   string    `datastore:"provider_id,noindex"`
	IDToken      string    `datastore:"id_token,noindex"`
	RefreshToken string    `datastore:"refresh_token,noindex"`
	ExpiresAt    time.Time `datastore:"expires_at"`
	CreatedAt    time.Time `datastore:"created_at"`
}

// CredentialStore implements client.CredentialStore using Google Cloud Datastore
type CredentialStore struct {
	client    *datastore.Client
	namespace string
	ctx       context.Context
}

// NewCredentialStore creates a new Datastore-backed CredentialStore
func NewCredentialStore(client *datastore.Client, namespace string) *CredentialStore {
	return &CredentialStore{
		client:    client,
		namespace: namespace,
		ctx:       context.Background(),
	}
}

// WithContext returns a copy of the store with the given context
func (s *CredentialStore) WithContext(ctx context.Context) *CredentialStore {
	return &CredentialStore{
		client:    s.client,
		namespace: s.namespace,
		ctx:       ctx,
	}
}

func (s *CredentialStore) key(projectID string) *datastore.Key {
	key := datastore.NameKey(KindStoredSession, projectID, nil)
	key.Namespace = s.namespace
	return key
}

func (s *CredentialStore) GetCredential(projectID string) (*client.StoredSession, error) {
	var e storedSessionEntity
	if err := s.client.Get(s.ctx, s.key(projectID), &e); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session for %s: %w", projectID, err)
	}
	return &client.StoredSession{
		UserID:       e.UserID,
		Email:        e.Email,
		ProviderID:   e.ProviderID,
		IDToken:      e.IDToken,
		RefreshToken: e.RefreshToken,
		ExpiresAt:    e.ExpiresAt,
		CreatedAt:    e.CreatedAt,
	}, nil
}

func (s *CredentialStore) SetCredential(projectID string, sess *client.StoredSession) error {
	e := &storedSessionEntity{
		UserID:       sess.UserID,
		Email:        sess.Email,
		ProviderID:   sess.ProviderID,
		IDToken:      sess.IDToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		CreatedAt:    sess.CreatedAt,
	}
	_, err := s.client.Put(s.ctx, s.key(projectID), e)
	return err
}

func (s *CredentialStore) RemoveCredential(projectID string) error {
	return s.client.Delete(s.ctx, s.key(projectID))
}

func (s *CredentialStore) ListProjects() ([]string, error) {
	q := datastore.NewQuery(KindStoredSession).Namespace(s.namespace).KeysOnly()
	keys, err := s.client.GetAll(s.ctx, q, nil)
	if err != nil {
		return nil, err
	}
	projects := make([]string, len(keys))
	for i, k := range keys {
		projects[i] = k.Name
	}
	return projects, nil
}

// Save is a no-op; Datastore writes are immediate
func (s *CredentialStore) Save() error { return nil }
