package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuthToken is a cached processor access token. Rows are append-only; the
// newest unexpired row wins.
type AuthToken struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Token     string    `gorm:"column:token;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (AuthToken) TableName() string { return "auth_tokens" }

func (a *AuthToken) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
