package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/communitykit/onboardbot/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:sessrepo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedSession(t *testing.T, db *gorm.DB, userID string, status domain.SessionStatus, start time.Time) *domain.Session {
	t.Helper()
	s := &domain.Session{
		ID:               domain.NewSessionID(userID, start),
		UserID:           userID,
		Status:           status,
		RequestTimestamp: start,
		TimeoutAt:        start.Add(domain.OnboardingWindow),
	}
	if err := CreateSession(context.Background(), db, s); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return s
}

func TestSession_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := seedSession(t, db, "+15550001111", domain.StatusPendingIntroduction, start)

	got, err := GetSession(context.Background(), db, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.UserID != "+15550001111" {
		t.Fatalf("user id = %q", got.UserID)
	}
	if !got.TimeoutAt.Equal(start.Add(24 * time.Hour)) {
		t.Fatalf("timeout_at = %v, want start+24h", got.TimeoutAt)
	}
}

func TestSession_GetMissing(t *testing.T) {
	db := newTestDB(t)
	_, err := GetSession(context.Background(), db, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_GetActiveByUser(t *testing.T) {
	db := newTestDB(t)
	start := time.Now().UTC().Truncate(time.Second)

	// Terminal session should be invisible to the active lookup.
	old := seedSession(t, db, "u1", domain.StatusTimedOut, start.Add(-48*time.Hour))
	_ = old
	active := seedSession(t, db, "u1", domain.StatusPendingApproval, start)

	got, err := GetActiveSessionByUser(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("GetActiveSessionByUser: %v", err)
	}
	if got.ID != active.ID {
		t.Fatalf("got session %q, want %q", got.ID, active.ID)
	}
}

func TestSession_GetActiveByUser_NoneActive(t *testing.T) {
	db := newTestDB(t)
	seedSession(t, db, "u2", domain.StatusCompleted, time.Now().UTC().Add(-time.Hour))

	_, err := GetActiveSessionByUser(context.Background(), db, "u2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSession_ListActive_OrderedByDeadline(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC().Truncate(time.Second)

	late := seedSession(t, db, "u-late", domain.StatusPendingIntroduction, now)
	early := seedSession(t, db, "u-early", domain.StatusPendingApproval, now.Add(-10*time.Hour))
	seedSession(t, db, "u-done", domain.StatusCompleted, now.Add(-20*time.Hour))

	out, err := ListActiveSessions(context.Background(), db)
	if err != nil {
		t.Fatalf("ListActiveSessions: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].ID != early.ID || out[1].ID != late.ID {
		t.Fatalf("order = [%s %s], want earliest deadline first", out[0].ID, out[1].ID)
	}
}

func TestSession_Save_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	s := seedSession(t, db, "u3", domain.StatusPendingIntroduction, time.Now().UTC())

	s.Status = domain.StatusPendingApproval
	s.IntroPosted = true
	s.Intro = domain.Introduction{Name: "Alice", Organization: "ACME", Inviter: "bob", Interests: "security, golang"}
	if err := SaveSession(context.Background(), db, s); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}

	got, err := GetSession(context.Background(), db, s.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Status != domain.StatusPendingApproval || !got.IntroPosted {
		t.Fatalf("status=%s introPosted=%v after save", got.Status, got.IntroPosted)
	}
	if got.Intro.Name != "Alice" || got.Intro.Interests != "security, golang" {
		t.Fatalf("intro not persisted: %+v", got.Intro)
	}
}
