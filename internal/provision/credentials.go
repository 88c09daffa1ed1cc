package provision

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/communitykit/onboardbot/internal/domain"
)

// passwordAlphabet avoids visually ambiguous characters so a one-time
// password survives being read aloud or retyped from a phone screen.
const passwordAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	passwordLength   = 16
	resetTokenLength = 32 // bytes before hex encoding
)

var titleCaser = cases.Title(language.English)

// NewCredential derives a login from the candidate's introduced name and
// generates a fresh one-time password and reset token.
func NewCredential(sess *domain.Session) (*domain.Credential, error) {
	username := UsernameFromName(sess.Intro.Name)
	if username == "" {
		return nil, fmt.Errorf("cannot derive username from name %q", sess.Intro.Name)
	}

	otp, err := randomPassword(passwordLength)
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}
	token, err := randomToken(resetTokenLength)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}

	return &domain.Credential{
		ID:              uuid.NewString(),
		SessionID:       sess.ID,
		UserID:          sess.UserID,
		Username:        username,
		OneTimePassword: otp,
		ResetToken:      token,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// UsernameFromName turns a free-form introduced name into a lowercase
// dot-separated login: "ada LOVELACE" → "ada.lovelace". Characters outside
// [a-z0-9] are dropped per word; empty input yields "".
func UsernameFromName(name string) string {
	// Title-case first so single-word all-caps names normalize predictably.
	words := strings.Fields(titleCaser.String(name))
	parts := make([]string, 0, len(words))
	for _, w := range words {
		var b strings.Builder
		for _, r := range strings.ToLower(w) {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			parts = append(parts, b.String())
		}
	}
	return strings.Join(parts, ".")
}

func randomPassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = passwordAlphabet[int(b)%len(passwordAlphabet)]
	}
	return string(out), nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ResetLink renders the password-reset URL handed over in the welcome DM.
func ResetLink(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/reset?token=" + token
}
