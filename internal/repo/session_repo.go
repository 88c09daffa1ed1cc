// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Session
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. State-machine rules (legal transitions,
// single active session per user) are enforced by the session store, not
// here.
//
// Error semantics:
//   - When a session is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the store layer and command handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateSession inserts a new session row. The caller supplies a fully
// populated session (ID derived via domain.NewSessionID, TimeoutAt already
// fixed); timestamps default to UTC now when zero.
func CreateSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.LastActivityAt.IsZero() {
		s.LastActivityAt = s.CreatedAt
	}
	return db.WithContext(ctx).Create(s).Error
}

// GetSession fetches a session by primary key, or ErrNotFound.
func GetSession(ctx context.Context, db *gorm.DB, id string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetActiveSessionByUser returns the user's current non-terminal session, or
// ErrNotFound. The store relies on there being at most one.
func GetActiveSessionByUser(ctx context.Context, db *gorm.DB, userID string) (*domain.Session, error) {
	var s domain.Session
	err := db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID,
			[]domain.SessionStatus{domain.StatusPendingIntroduction, domain.StatusPendingApproval}).
		Order("request_timestamp desc").
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListActiveSessions returns all non-terminal sessions ordered by the
// nearest deadline first. Used to rebuild the in-memory index at startup and
// by the sweeper.
func ListActiveSessions(ctx context.Context, db *gorm.DB) ([]domain.Session, error) {
	var out []domain.Session
	err := db.WithContext(ctx).
		Where("status IN ?",
			[]domain.SessionStatus{domain.StatusPendingIntroduction, domain.StatusPendingApproval}).
		Order("timeout_at asc").
		Find(&out).Error
	return out, err
}

// SaveSession persists the full current state of a session row. If no row
// was updated (session missing), it returns ErrNotFound.
func SaveSession(ctx context.Context, db *gorm.DB, s *domain.Session) error {
	s.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).Save(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
