package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/communitykit/onboardbot/internal/domain"
)

func TestCredential_CreateAndFetch(t *testing.T) {
	db := newTestDB(t)
	s := seedSession(t, db, "u1", domain.StatusCompleted, time.Now().UTC())

	rec, err := CreateCredential(context.Background(), db, s.ID, s.UserID, "alice.smith", "pw", "tok")
	if err != nil {
		t.Fatalf("CreateCredential: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected generated credential id")
	}

	got, err := GetCredentialBySession(context.Background(), db, s.ID)
	if err != nil {
		t.Fatalf("GetCredentialBySession: %v", err)
	}
	if got.Username != "alice.smith" || got.UserID != "u1" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestCredential_DuplicateSession(t *testing.T) {
	db := newTestDB(t)
	s := seedSession(t, db, "u2", domain.StatusCompleted, time.Now().UTC())

	if _, err := CreateCredential(context.Background(), db, s.ID, s.UserID, "bob", "pw1", "t1"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := CreateCredential(context.Background(), db, s.ID, s.UserID, "bob2", "pw2", "t2")
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestCredential_MissingSession(t *testing.T) {
	db := newTestDB(t)
	_, err := GetCredentialBySession(context.Background(), db, "absent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
