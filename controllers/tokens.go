package controllers

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/coralcommerce/dispatcher/models"
	"github.com/coralcommerce/dispatcher/tools"

	"github.com/jinzhu/gorm"
)

const refreshTokenBytes = 32

// refreshTokenTTL is how long an issued refresh token stays valid before
// it must be exchanged via Refresh.
func refreshTokenTTL() time.Duration {
	days := getenvInt("JWT_REFRESH_TTL_DAYS", 30)
	return time.Duration(days) * 24 * time.Hour
}

// issueRefreshToken generates a new opaque refresh token, stores only its
// hash, and returns the raw value to hand back to the caller.
func issueRefreshToken(db *gorm.DB, userID int64, now time.Time) (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	token := hex.EncodeToString(raw)

	exp := now.Add(refreshTokenTTL())
	record := models.RefreshToken{
		UserID:    userID,
		TokenHash: tools.EncryptTextSHA512(token),
		ExpiresAt: &exp,
	}
	if err := db.Create(&record).Error; err != nil {
		return "", err
	}
	return token, nil
}

// revokeAllUserRefreshTokens marks every active refresh token for a user as
// revoked, enforcing the single-session policy on login and refresh.
func revokeAllUserRefreshTokens(db *gorm.DB, userID int64, now time.Time) error {
	return db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now).Error
}
