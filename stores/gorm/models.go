// Package gorm implements the Adapter on a GORM-managed database. Bring any
// GORM dialector; run AutoMigrate once at startup.
package gorm

import (
	"time"

	nextauth "github.com/nextauthjs/next-auth-sub011"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the adapter's tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&AccountModel{},
		&SessionModel{},
		&VerificationTokenModel{},
	)
}

// UserModel is the users table.
type UserModel struct {
	ID            string `gorm:"primaryKey;size:64"`
	Name          string `gorm:"size:255"`
	Email         string `gorm:"size:255;uniqueIndex"`
	EmailVerified *time.Time
	Image         string `gorm:"size:1024"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (m *UserModel) toUser() *nextauth.User {
	return &nextauth.User{
		ID:            m.ID,
		Name:          m.Name,
		Email:         m.Email,
		EmailVerified: m.EmailVerified,
		Image:         m.Image,
	}
}

// AccountModel links provider identities to users. The composite primary
// key is what makes LinkAccount idempotent.
type AccountModel struct {
	Provider          string `gorm:"primaryKey;size:128"`
	ProviderAccountID string `gorm:"primaryKey;size:255"`
	UserID            string `gorm:"size:64;index"`
	Type              string `gorm:"size:32"`
	CreatedAt         time.Time
}

// SessionModel is the sessions table for the database strategy.
type SessionModel struct {
	SessionToken string `gorm:"primaryKey;size:255"`
	UserID       string `gorm:"size:64;index"`
	Expires      time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m *SessionModel) toSession() *nextauth.Session {
	return &nextauth.Session{
		SessionToken: m.SessionToken,
		UserID:       m.UserID,
		Expires:      m.Expires,
	}
}

// VerificationTokenModel stores hashed one-time tokens.
type VerificationTokenModel struct {
	Identifier string `gorm:"primaryKey;size:255"`
	Token      string `gorm:"primaryKey;size:255"`
	Expires    time.Time
	CreatedAt  time.Time
}
