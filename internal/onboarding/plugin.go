// Package onboarding implements the community onboarding workflow: opening
// a session with !request, capturing the numbered introduction posted in the
// entry room, admin approval with !gtg, the provisioning pipeline that runs
// on approval, and the operator reports !pending and !timeout check.
//
// Sessions move strictly forward (pending_introduction → pending_approval →
// completed); the 24-hour failure path belongs to the sweeper, not to this
// package.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/bot"
	"github.com/communitykit/onboardbot/internal/domain"
	"github.com/communitykit/onboardbot/internal/groups"
	"github.com/communitykit/onboardbot/internal/provision"
	"github.com/communitykit/onboardbot/internal/repo"
	"github.com/communitykit/onboardbot/internal/store"
	"github.com/communitykit/onboardbot/internal/transport"
)

// Logical room names registered on the groups.Matcher at startup.
const (
	RoomEntry = "entry"
	RoomTest  = "test"
)

// Services bundles the external connectors the approval pipeline drives.
type Services struct {
	Accounts  provision.AccountProvisioner
	Mailer    provision.Mailer
	Directory provision.GroupDirectory
	Forum     provision.ForumPoster
}

// Options carries the tunables the plugin needs from configuration.
type Options struct {
	// ProvisionTimeout bounds each external call in the approval pipeline.
	ProvisionTimeout time.Duration
	// ForumPostEnabled gates the introduction forum mirror.
	ForumPostEnabled bool
	// SSOBaseURL is the base for the password-reset link in the welcome DM.
	SSOBaseURL string
	// EntryRoomID is the group the candidate is removed from after approval.
	// Empty disables the removal step.
	EntryRoomID string
}

// Plugin is the onboarding command bundle. It also implements bot.RawHandler
// to watch the entry room for introduction posts.
type Plugin struct {
	store   *store.Store
	db      *gorm.DB
	sender  *transport.Sender
	matcher *groups.Matcher
	rec     *Recommender
	svcs    Services
	opts    Options
	log     zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New builds the onboarding plugin.
func New(st *store.Store, db *gorm.DB, sender *transport.Sender, matcher *groups.Matcher, rec *Recommender, svcs Services, opts Options, log zerolog.Logger) *Plugin {
	if opts.ProvisionTimeout <= 0 {
		opts.ProvisionTimeout = 15 * time.Second
	}
	return &Plugin{
		store:   st,
		db:      db,
		sender:  sender,
		matcher: matcher,
		rec:     rec,
		svcs:    svcs,
		opts:    opts,
		log:     log.With().Str("component", "onboarding").Logger(),
		now:     time.Now,
	}
}

// Name implements bot.Plugin.
func (p *Plugin) Name() string { return "onboarding" }

// Commands implements bot.Plugin.
func (p *Plugin) Commands() []bot.Command {
	return []bot.Command{
		{
			Name:        "request",
			Description: "Open an onboarding session for a mentioned user.",
			Usage:       "!request @user",
			GroupOnly:   true,
			Handler:     p.handleRequest,
		},
		{
			Name:        "gtg",
			Description: "Approve a candidate (reply to their introduction).",
			Usage:       "!gtg (as a reply to the introduction)",
			AdminOnly:   true,
			GroupOnly:   true,
			Handler:     p.handleGTG,
		},
		{
			Name:        "pending",
			Description: "List sessions waiting for introduction or approval.",
			Usage:       "!pending",
			Handler:     p.handlePending,
		},
		{
			Name:        "timeout check",
			Description: "Early warning: sessions close to their 24h deadline.",
			Usage:       "!timeout check [@user]",
			Handler:     p.handleTimeoutCheck,
		},
	}
}

const introInstructions = "please introduce yourself here with a numbered message:\n" +
	"1. your name\n" +
	"2. your organization or affiliation\n" +
	"3. who invited you\n" +
	"4. your email (optional)\n" +
	"5. your interests\n" +
	"6. a social handle, or \"skip\""

// handleRequest opens a session for the mentioned user. Restricted to the
// entry room (and the optional test room) so onboarding state cannot be
// created from arbitrary rooms.
func (p *Plugin) handleRequest(ctx context.Context, env *transport.Envelope, args string) (string, error) {
	if !p.inOnboardingRoom(env.GroupID) {
		return "This command only works in the welcome room.", nil
	}
	target := transport.FirstMention(env)
	if target == "" {
		return "Usage: !request @user — mention the person you want to onboard.", nil
	}

	now := p.now()
	sess, err := p.store.Create(ctx, target, env.Source, domain.StatusPendingIntroduction, now)
	if errors.Is(err, store.ErrActiveSessionExists) {
		return fmt.Sprintf("There is already an onboarding session for that user (%.0f hours remaining).",
			sess.HoursRemaining(now)), nil
	}
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	// Free text after the mention rides along into the audit trail
	// ("!request @user referred by ...").
	detail := "requested via command"
	if note := transport.StripMentionTokens(args); note != "" {
		detail += ": " + note
	}
	p.audit(ctx, domain.AuditSessionRequested, env.Source, target, detail)
	p.log.Info().Str("user_id", target).Str("initiated_by", env.Source).Msg("onboarding session opened")

	return fmt.Sprintf("Welcome! An onboarding session is now open for %s — %s\n"+
		"The session stays open for 24 hours.", target, introInstructions), nil
}

// handleGTG approves a candidate. The command must be sent as a reply to the
// introduction; the target is the quoted author. When that author has no
// session — someone who introduced themselves before the bot was watching —
// a session is synthesized from the quote so approval still works.
func (p *Plugin) handleGTG(ctx context.Context, env *transport.Envelope, _ string) (string, error) {
	if !p.inOnboardingRoom(env.GroupID) {
		return "This command only works in the welcome room.", nil
	}

	target, quoteText, isReply := transport.ReplyContext(env)
	if !isReply || target == "" {
		return "Usage: reply to the candidate's introduction with !gtg.", nil
	}

	now := p.now()
	sess, err := p.store.ActiveByUser(ctx, target)
	switch {
	case errors.Is(err, store.ErrNoActiveSession):
		sess, err = p.synthesizeFromQuote(ctx, target, quoteText, now)
		if err != nil {
			return "", err
		}
	case err != nil:
		return "", fmt.Errorf("lookup session: %w", err)
	}

	// Approving a session that never saw an introduction: take it from the
	// quoted message when possible.
	if sess.Status == domain.StatusPendingIntroduction {
		intro, ok := ParseIntroduction(quoteText)
		if !ok {
			return fmt.Sprintf("%s has not introduced themselves yet; nothing to approve.", target), nil
		}
		sess, err = p.store.RecordIntroduction(ctx, target, intro, now)
		if err != nil {
			return "", fmt.Errorf("record introduction: %w", err)
		}
	}

	report := p.approve(ctx, sess, env.Source)
	return report, nil
}

// synthesizeFromQuote builds a pending_approval session for a user who
// introduced themselves without a session being opened first.
func (p *Plugin) synthesizeFromQuote(ctx context.Context, target, quoteText string, now time.Time) (*domain.Session, error) {
	intro, ok := ParseIntroduction(quoteText)
	if !ok {
		// Approve on the admin's word even when the quoted text does not
		// parse; the introduction fields just stay empty.
		p.log.Warn().Str("user_id", target).Msg("quoted text is not a parseable introduction; synthesizing bare session")
	}
	sess, err := p.store.Create(ctx, target, "", domain.StatusPendingIntroduction, now)
	if err != nil {
		return nil, fmt.Errorf("synthesize session: %w", err)
	}
	sess, err = p.store.RecordIntroduction(ctx, target, intro, now)
	if err != nil {
		return nil, fmt.Errorf("record synthesized introduction: %w", err)
	}
	p.audit(ctx, domain.AuditIntroductionSeen, target, target, "synthesized from approval reply")
	return sess, nil
}

// handlePending lists every active session, nearest deadline first.
func (p *Plugin) handlePending(ctx context.Context, _ *transport.Envelope, _ string) (string, error) {
	sessions, err := p.store.ActiveSessions(ctx)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return "No onboarding sessions are pending.", nil
	}

	now := p.now()
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending session(s):\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(&b, "  %s — %s, %.1fh remaining\n", s.UserID, statusLabel(s.Status), s.HoursRemaining(now))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// timeoutWarning is how close to the deadline a session must be before the
// bare !timeout check report lists it.
const timeoutWarning = 2 * time.Hour

// handleTimeoutCheck reports the remaining window for one mentioned user, or
// — when nobody is mentioned — the early-warning list of sessions within two
// hours of their deadline (including overdue ones the sweeper has not
// collected yet).
func (p *Plugin) handleTimeoutCheck(ctx context.Context, env *transport.Envelope, _ string) (string, error) {
	now := p.now()

	if target := transport.FirstMention(env); target != "" {
		sess, err := p.store.ActiveByUser(ctx, target)
		if errors.Is(err, store.ErrNoActiveSession) {
			return fmt.Sprintf("No active onboarding session for %s.", target), nil
		}
		if err != nil {
			return "", fmt.Errorf("lookup session: %w", err)
		}
		return formatRemaining(sess, now), nil
	}

	sessions, err := p.store.ActiveSessions(ctx)
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	var b strings.Builder
	n := 0
	for i := range sessions {
		if sessions[i].TimeoutAt.Sub(now) > timeoutWarning {
			continue
		}
		b.WriteString(formatRemaining(&sessions[i], now))
		b.WriteByte('\n')
		n++
	}
	if n == 0 {
		return "No sessions are within 2 hours of their deadline.", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func formatRemaining(s *domain.Session, now time.Time) string {
	h := s.HoursRemaining(now)
	if h <= 0 {
		return fmt.Sprintf("%s — expired %.1fh ago, waiting for the next sweep", s.UserID, -h)
	}
	return fmt.Sprintf("%s — %.1fh remaining (%s)", s.UserID, h, statusLabel(s.Status))
}

func statusLabel(s domain.SessionStatus) string {
	switch s {
	case domain.StatusPendingIntroduction:
		return "waiting for introduction"
	case domain.StatusPendingApproval:
		return "waiting for approval"
	default:
		return string(s)
	}
}

// HandleRaw implements bot.RawHandler: it watches the entry room for the
// numbered introduction block. Messages in other rooms, command echoes, and
// ordinary chat pass through unhandled.
func (p *Plugin) HandleRaw(ctx context.Context, env *transport.Envelope) (string, bool) {
	if !env.IsGroup() || !p.matcher.Matches(RoomEntry, env.GroupID) {
		return "", false
	}
	intro, ok := ParseIntroduction(env.Text)
	if !ok {
		return "", false
	}

	now := p.now()
	_, err := p.store.ActiveByUser(ctx, env.Source)
	if errors.Is(err, store.ErrNoActiveSession) {
		// Self-initiated onboarding: the introduction itself opens the session.
		if _, err := p.store.Create(ctx, env.Source, "", domain.StatusPendingIntroduction, now); err != nil {
			p.log.Error().Err(err).Str("user_id", env.Source).Msg("self-initiated session failed")
			return bot.ReplyFailure, true
		}
	} else if err != nil {
		p.log.Error().Err(err).Str("user_id", env.Source).Msg("session lookup failed")
		return bot.ReplyFailure, true
	}

	if _, err := p.store.RecordIntroduction(ctx, env.Source, intro, now); err != nil {
		p.log.Error().Err(err).Str("user_id", env.Source).Msg("recording introduction failed")
		return bot.ReplyFailure, true
	}

	p.audit(ctx, domain.AuditIntroductionSeen, env.Source, env.Source, "introduction posted in entry room")
	p.log.Info().Str("user_id", env.Source).Str("name", intro.Name).Msg("introduction captured")

	reply := fmt.Sprintf("Thanks %s! Your introduction has been recorded; an admin will approve you shortly.", intro.Name)
	if rooms := p.rec.Recommend(intro.Interests); len(rooms) > 0 {
		reply += fmt.Sprintf("\nBased on your interests you may also like %d of our special-interest groups — you'll be invited on approval.", len(rooms))
	}
	return reply, true
}

// inOnboardingRoom reports whether the group is the entry room or the
// optional test room.
func (p *Plugin) inOnboardingRoom(groupID string) bool {
	if p.matcher.Matches(RoomEntry, groupID) {
		return true
	}
	return p.matcher.Matches(RoomTest, groupID)
}

// audit appends a trail entry; failures are logged, never propagated.
func (p *Plugin) audit(ctx context.Context, action, actor, target, detail string) {
	if _, err := repo.AppendAudit(ctx, p.db, action, actor, target, detail); err != nil {
		p.log.Error().Err(err).Str("action", action).Msg("audit write failed")
	}
}
