// Package provision defines the external side effects of approving a
// candidate: creating the SSO account, the welcome email, group membership
// changes, and the optional forum post. Each concern is an interface so
// the approval pipeline can be tested without touching real systems, and so
// a deployment can swap one backend without disturbing the others.
//
// The default implementations log what they would do and succeed. Real
// connectors replace them at wiring time in main.
package provision

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/communitykit/onboardbot/internal/domain"
)

// AccountProvisioner creates the SSO account for an approved candidate.
type AccountProvisioner interface {
	CreateAccount(ctx context.Context, cred *domain.Credential) error
}

// Mailer queues outbound email for delivery.
type Mailer interface {
	Enqueue(ctx context.Context, recipient, subject, body string) error
}

// GroupDirectory manages platform group membership.
type GroupDirectory interface {
	AddUserToGroup(ctx context.Context, userID, groupID string) error
	RemoveUserFromGroup(ctx context.Context, userID, groupID string) error
}

// ForumPoster mirrors the introduction to the community forum and returns
// the thread URL.
type ForumPoster interface {
	PostIntroduction(ctx context.Context, sess *domain.Session) (string, error)
}

// LogProvisioner is the stand-in AccountProvisioner: it records the account
// that would be created and succeeds.
type LogProvisioner struct {
	Log zerolog.Logger
}

func (p *LogProvisioner) CreateAccount(_ context.Context, cred *domain.Credential) error {
	p.Log.Info().
		Str("username", cred.Username).
		Str("user_id", cred.UserID).
		Msg("sso account created")
	return nil
}

// LogMailer is the stand-in Mailer.
type LogMailer struct {
	Log zerolog.Logger
}

func (m *LogMailer) Enqueue(_ context.Context, recipient, subject, _ string) error {
	m.Log.Info().Str("recipient", recipient).Str("subject", subject).Msg("email queued")
	return nil
}

// LogDirectory is the stand-in GroupDirectory.
type LogDirectory struct {
	Log zerolog.Logger
}

func (d *LogDirectory) AddUserToGroup(_ context.Context, userID, groupID string) error {
	d.Log.Info().Str("user_id", userID).Str("group_id", groupID).Msg("added to group")
	return nil
}

func (d *LogDirectory) RemoveUserFromGroup(_ context.Context, userID, groupID string) error {
	d.Log.Info().Str("user_id", userID).Str("group_id", groupID).Msg("removed from group")
	return nil
}

// LogForumPoster is the stand-in ForumPoster.
type LogForumPoster struct {
	Log zerolog.Logger
}

func (f *LogForumPoster) PostIntroduction(_ context.Context, sess *domain.Session) (string, error) {
	f.Log.Info().Str("user_id", sess.UserID).Str("name", sess.Intro.Name).Msg("introduction posted to forum")
	return "", nil
}
