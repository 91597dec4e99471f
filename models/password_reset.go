package models

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ResetTokenTTL lifetime of a password reset token
const ResetTokenTTL = 30 * time.Minute

// PasswordReset single-use password reset token
type PasswordReset struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"userId" gorm:"index;not null"`
	Token     string    `json:"-" gorm:"uniqueIndex;size:64;not null"`
	Email     string    `json:"email" gorm:"size:100;not null"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null"`
	Used      bool      `json:"used" gorm:"not null"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName table name
func (PasswordReset) TableName() string {
	return "password_resets"
}

// NewPasswordReset issues a fresh token for user valid for ResetTokenTTL from now
func NewPasswordReset(user *User, now time.Time) (*PasswordReset, error) {
	token, err := GenerateResetToken()
	if err != nil {
		return nil, err
	}
	return &PasswordReset{
		UserID:    user.ID,
		Token:     token,
		Email:     user.Email,
		ExpiresAt: now.Add(ResetTokenTTL),
	}, nil
}

// GenerateResetToken 32 random bytes, hex encoded
func GenerateResetToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// IsExpired reports whether the token is past its expiry
func (p *PasswordReset) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}

// IsValid unused and not expired
func (p *PasswordReset) IsValid() bool {
	return !p.Used && !p.IsExpired()
}
