//go:build !wasm
// +build !wasm

package gorm

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pinged/authkit/client"
)

// StoredSessionModel is the GORM model for a persisted session
type StoredSessionModel struct {
	ProjectID    string `gorm:"primaryKey;size:128"`
	UserID       string `gorm:"size:128;not null"`
	Email        string `gorm:"size:255"`
	ProviderID   string `gorm:"size:64"`
	IDToken      string `gorm:"type:text"`
	RefreshToken string `gorm:"type:text"`
	ExpiresAt    time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (StoredSessionModel) TableName() string { return "stored_sessions" }

// AutoMigrate runs database migrations for the session table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&StoredSessionModel{})
}

// CredentialStore implements client.CredentialStore using GORM.
// Writes go straight to the database, so Save is a no-op.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

func (s *CredentialStore) GetCredential(projectID string) (*client.StoredSession, error) {
	var model StoredSessionModel
	if err := s.db.First(&model, "project_id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session for %s: %w", projectID, err)
	}
	return &client.StoredSession{
		UserID:       model.UserID,
		Email:        model.Email,
		ProviderID:   model.ProviderID,
		IDToken:      model.IDToken,
		RefreshToken: model.RefreshToken,
		ExpiresAt:    model.ExpiresAt,
		CreatedAt:    model.CreatedAt,
	}, nil
}

func (s *CredentialStore) SetCredential(projectID string, sess *client.StoredSession) error {
	model := &StoredSessionModel{
		ProjectID:    projectID,
		UserID:       sess.UserID,
		Email:        sess.Email,
		ProviderID:   sess.ProviderID,
		IDToken:      sess.IDToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.ExpiresAt,
		CreatedAt:    sess.CreatedAt,
	}
	return s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(model).Error
}

func (s *CredentialStore) RemoveCredential(projectID string) error {
	return s.db.Delete(&StoredSessionModel{}, "project_id = ?", projectID).Error
}

func (s *CredentialStore) ListProjects() ([]string, error) {
	var projects []string
	if err := s.db.Model(&StoredSessionModel{}).Pluck("project_id", &projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *CredentialStore) Save() error { return nil }
