// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the append-only
// audit trail. There are intentionally no update or delete functions.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/domain"
)

// AppendAudit inserts one audit entry. Failures are returned to the caller;
// audit writes are best-effort at call sites (a failed audit write must
// never fail the action it describes).
func AppendAudit(ctx context.Context, db *gorm.DB, action, actor, target, detail string) (*domain.AuditEntry, error) {
	e := &domain.AuditEntry{
		ID:        uuid.NewString(),
		Action:    action,
		Actor:     actor,
		Target:    target,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// CountAudit returns the total number of audit entries, for pagination.
func CountAudit(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.AuditEntry{}).Count(&total).Error
	return total, err
}

// ListAuditPage returns a page of audit entries, newest first. The caller is
// responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListAuditPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	err := db.WithContext(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
