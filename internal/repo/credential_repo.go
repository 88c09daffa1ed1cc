// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Credential
// model: one immutable account record per completed session.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/domain"
)

// ErrDuplicate indicates that a credential record already exists for the
// session (the 1:1 unique index fired).
var ErrDuplicate = errors.New("duplicate")

// CreateCredential inserts a credential record and returns ErrDuplicate when
// the owning session already has one. Credentials are append-only; there is
// deliberately no update or delete helper.
func CreateCredential(ctx context.Context, db *gorm.DB, sessionID, userID, username, password, resetToken string) (*domain.Credential, error) {
	rec := &domain.Credential{
		ID:              uuid.NewString(),
		SessionID:       sessionID,
		UserID:          userID,
		Username:        username,
		OneTimePassword: password,
		ResetToken:      resetToken,
		CreatedAt:       time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// GetCredentialBySession fetches the credential provisioned for a session,
// or ErrNotFound.
func GetCredentialBySession(ctx context.Context, db *gorm.DB, sessionID string) (*domain.Credential, error) {
	var rec domain.Credential
	err := db.WithContext(ctx).Where("session_id = ?", sessionID).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
