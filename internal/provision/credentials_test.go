package provision

import (
	"strings"
	"testing"
	"time"

	"github.com/communitykit/onboardbot/internal/domain"
)

func TestUsernameFromName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Ada Lovelace", "ada.lovelace"},
		{"ada LOVELACE", "ada.lovelace"},
		{"  Grace   Hopper  ", "grace.hopper"},
		{"Jean-Luc Picard", "jeanluc.picard"},
		{"O'Brien", "obrien"},
		{"R2 D2", "r2.d2"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := UsernameFromName(tc.name); got != tc.want {
			t.Errorf("UsernameFromName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNewCredential(t *testing.T) {
	sess := &domain.Session{
		ID:     "u1-100",
		UserID: "u1",
		Intro:  domain.Introduction{Name: "Ada Lovelace"},
	}

	cred, err := NewCredential(sess)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	if cred.Username != "ada.lovelace" {
		t.Fatalf("username = %q", cred.Username)
	}
	if cred.SessionID != sess.ID || cred.UserID != sess.UserID {
		t.Fatalf("session linkage wrong: %+v", cred)
	}
	if len(cred.OneTimePassword) != passwordLength {
		t.Fatalf("password length = %d", len(cred.OneTimePassword))
	}
	for _, r := range cred.OneTimePassword {
		if !strings.ContainsRune(passwordAlphabet, r) {
			t.Fatalf("password contains %q outside alphabet", r)
		}
	}
	if len(cred.ResetToken) != resetTokenLength*2 {
		t.Fatalf("reset token length = %d", len(cred.ResetToken))
	}
	if cred.CreatedAt.IsZero() || time.Since(cred.CreatedAt) > time.Minute {
		t.Fatalf("created_at = %v", cred.CreatedAt)
	}
}

func TestNewCredential_UnusableName(t *testing.T) {
	sess := &domain.Session{ID: "u1-100", UserID: "u1"}
	if _, err := NewCredential(sess); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestNewCredential_Randomness(t *testing.T) {
	sess := &domain.Session{ID: "u1-100", UserID: "u1", Intro: domain.Introduction{Name: "Ada"}}
	a, err := NewCredential(sess)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	b, err := NewCredential(sess)
	if err != nil {
		t.Fatalf("NewCredential: %v", err)
	}
	if a.OneTimePassword == b.OneTimePassword || a.ResetToken == b.ResetToken {
		t.Fatal("credentials must not repeat")
	}
}

func TestResetLink(t *testing.T) {
	got := ResetLink("https://sso.example.org/", "abc123")
	if got != "https://sso.example.org/reset?token=abc123" {
		t.Fatalf("link = %q", got)
	}
}
