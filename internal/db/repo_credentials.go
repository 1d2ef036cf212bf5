package db

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stravist/server/pkg/stravaapi"
)

// The single credential row. One deployment serves one athlete.
const credentialRowID = 1

// CredentialStore persists the Strava credential snapshot encrypted at rest.
// Implements stravaapi.TokenStore so refreshed tokens survive restarts.
type CredentialStore struct {
	db *gorm.DB
}

func NewCredentialStore(db *gorm.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Save upserts the encrypted credential snapshot.
func (s *CredentialStore) Save(ctx context.Context, creds stravaapi.Credentials) error {
	enc, err := encryptCredentials(creds)
	if err != nil {
		return err
	}

	row := StoredCredential{
		ID:                   credentialRowID,
		EncryptedCredentials: enc,
		ExpiresAt:            creds.ExpiresAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"encrypted_credentials", "expires_at", "updated_at"}),
	}).Create(&row).Error
}

// Load reads and decrypts the stored snapshot. Returns gorm.ErrRecordNotFound
// when no snapshot has been saved yet.
func (s *CredentialStore) Load(ctx context.Context) (stravaapi.Credentials, error) {
	var row StoredCredential
	if err := s.db.WithContext(ctx).First(&row, credentialRowID).Error; err != nil {
		return stravaapi.Credentials{}, err
	}
	return decryptCredentials(row.EncryptedCredentials)
}

func encryptCredentials(creds stravaapi.Credentials) (string, error) {
	plain, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credentials: %w", err)
	}
	enc, err := encrypt(plain)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	return enc, nil
}

func decryptCredentials(ciphertext string) (stravaapi.Credentials, error) {
	plain, err := decrypt(ciphertext)
	if err != nil {
		return stravaapi.Credentials{}, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	var creds stravaapi.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return stravaapi.Credentials{}, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return creds, nil
}
