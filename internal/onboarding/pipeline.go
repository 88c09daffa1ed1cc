package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/communitykit/onboardbot/internal/domain"
	"github.com/communitykit/onboardbot/internal/provision"
	"github.com/communitykit/onboardbot/internal/repo"
)

// stepResult is one line of the approval report.
type stepResult struct {
	label string
	err   error
}

// approve marks the session completed, then runs the provisioning pipeline
// and returns the human-readable report posted back to the approving admin.
// Completion comes first so the terminal state is pinned before any slow
// connector call: a sweeper tick firing mid-pipeline finds the session
// already terminal and cannot steal it into timed_out. Every external call
// is bounded by its own timeout and caught individually: one failing
// connector degrades the result, it never aborts the rest.
func (p *Plugin) approve(ctx context.Context, sess *domain.Session, actor string) string {
	if _, err := p.store.Complete(ctx, sess.UserID, p.now()); err != nil {
		p.log.Error().Err(err).Str("user_id", sess.UserID).Msg("completing session failed")
		return fmt.Sprintf("Could not approve %s: %v", sess.UserID, err)
	}

	var results []stepResult
	record := func(label string, err error) {
		results = append(results, stepResult{label: label, err: err})
		if err != nil {
			p.log.Error().Err(err).Str("user_id", sess.UserID).Str("step", label).Msg("provisioning step failed")
		}
		p.audit(ctx, domain.AuditProvisionStep, actor, sess.UserID, stepDetail(label, err))
	}

	cred := p.provisionAccount(ctx, sess, record)

	record("Welcome DM sent", p.step(ctx, func(c context.Context) error {
		return p.sender.Send(c, sess.UserID, p.welcomeText(sess, cred))
	}))

	if p.opts.ForumPostEnabled && !sess.Intro.Empty() {
		record("Forum introduction post", p.step(ctx, func(c context.Context) error {
			_, err := p.svcs.Forum.PostIntroduction(c, sess)
			return err
		}))
	}

	if sess.Intro.Email != "" {
		subject, body := p.welcomeEmail(sess, cred)
		record("Welcome email queued", p.step(ctx, func(c context.Context) error {
			return p.svcs.Mailer.Enqueue(c, sess.Intro.Email, subject, body)
		}))
	}

	if rooms := p.rec.Recommend(sess.Intro.Interests); len(rooms) > 0 {
		var errs []string
		for _, room := range rooms {
			if err := p.step(ctx, func(c context.Context) error {
				return p.svcs.Directory.AddUserToGroup(c, sess.UserID, room)
			}); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", room, err))
			}
		}
		if len(errs) > 0 {
			record(fmt.Sprintf("Group invitations (%d)", len(rooms)), errors.New(strings.Join(errs, "; ")))
		} else {
			record(fmt.Sprintf("Group invitations (%d)", len(rooms)), nil)
		}
	}

	if p.opts.EntryRoomID != "" {
		record("Removed from entry room", p.step(ctx, func(c context.Context) error {
			return p.svcs.Directory.RemoveUserFromGroup(c, sess.UserID, p.opts.EntryRoomID)
		}))
	}

	p.audit(ctx, domain.AuditSessionApproved, actor, sess.UserID, approvalDetail(results))

	return p.report(sess, results)
}

// provisionAccount generates credentials, persists them, and drives the SSO
// connector. Returns nil when the account step failed; the welcome DM then
// goes out without credentials.
func (p *Plugin) provisionAccount(ctx context.Context, sess *domain.Session, record func(string, error)) *domain.Credential {
	const label = "SSO account created"

	cred, err := provision.NewCredential(sess)
	if err != nil {
		record(label, err)
		return nil
	}

	saved, err := repo.CreateCredential(ctx, p.db, sess.ID, sess.UserID, cred.Username, cred.OneTimePassword, cred.ResetToken)
	if errors.Is(err, repo.ErrDuplicate) {
		// A retried approval reuses the credentials provisioned the first time.
		saved, err = repo.GetCredentialBySession(ctx, p.db, sess.ID)
	}
	if err != nil {
		record(label, err)
		return nil
	}

	if err := p.step(ctx, func(c context.Context) error {
		return p.svcs.Accounts.CreateAccount(c, saved)
	}); err != nil {
		record(label, err)
		return nil
	}
	record(label, nil)
	return saved
}

// step runs one external call under the per-step timeout.
func (p *Plugin) step(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, p.opts.ProvisionTimeout)
	defer cancel()
	return fn(c)
}

// welcomeText renders the DM handed to the new member. Credentials are
// included only when the account step succeeded.
func (p *Plugin) welcomeText(sess *domain.Session, cred *domain.Credential) string {
	var b strings.Builder
	name := sess.Intro.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Welcome to the community, %s!\n", name)
	if cred != nil {
		fmt.Fprintf(&b, "Your account is ready:\n  username: %s\n  one-time password: %s\n", cred.Username, cred.OneTimePassword)
		fmt.Fprintf(&b, "Please change it here: %s\n", provision.ResetLink(p.opts.SSOBaseURL, cred.ResetToken))
	} else {
		b.WriteString("Your account could not be created automatically; an admin will follow up with credentials.\n")
	}
	b.WriteString("See !help for what I can do.")
	return b.String()
}

// welcomeEmail renders the message queued to the captured address. The body
// repeats the credentials so a member who loses the DM still has them.
func (p *Plugin) welcomeEmail(sess *domain.Session, cred *domain.Credential) (subject, body string) {
	return "Welcome to the community", p.welcomeText(sess, cred)
}

// report renders the approval outcome for the admin room.
func (p *Plugin) report(sess *domain.Session, results []stepResult) string {
	var b strings.Builder
	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
		}
	}
	switch failed {
	case 0:
		fmt.Fprintf(&b, "%s is good to go!\n", sess.UserID)
	default:
		fmt.Fprintf(&b, "%s approved, but %d step(s) need manual follow-up:\n", sess.UserID, failed)
	}
	for _, r := range results {
		if r.err != nil {
			fmt.Fprintf(&b, "  ✗ %s — %v\n", r.label, r.err)
		} else {
			fmt.Fprintf(&b, "  ✓ %s\n", r.label)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func stepDetail(label string, err error) string {
	if err != nil {
		return fmt.Sprintf("%s: failed: %v", label, err)
	}
	return label + ": ok"
}

func approvalDetail(results []stepResult) string {
	ok, failed := 0, 0
	for _, r := range results {
		if r.err != nil {
			failed++
		} else {
			ok++
		}
	}
	return fmt.Sprintf("%d step(s) ok, %d failed", ok, failed)
}
