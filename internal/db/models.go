package db

import "time"

// StoredCredential is the persisted Strava credential snapshot. A single
// deployment serves one athlete, so the table holds one row keyed by ID 1.
type StoredCredential struct {
	ID                   int64  `gorm:"primaryKey"`
	EncryptedCredentials string `gorm:"type:text;not null"`
	ExpiresAt            int64  `gorm:"not null"` // unix seconds, duplicated outside the ciphertext for inspection
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (StoredCredential) TableName() string { return "stravist.credentials" }
