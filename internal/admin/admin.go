// Package admin bundles moderation commands that sit outside the onboarding
// lifecycle. Currently that is !safetynumber: acknowledging a member's
// safety-number change (new device or reinstall) so encrypted delivery
// resumes, with an audit record of who acknowledged it.
package admin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/bot"
	"github.com/communitykit/onboardbot/internal/domain"
	"github.com/communitykit/onboardbot/internal/repo"
	"github.com/communitykit/onboardbot/internal/transport"
)

// Verifier confirms a changed safety number with the platform so the bot
// trusts the member's new identity key again.
type Verifier interface {
	TrustIdentity(ctx context.Context, userID string) error
}

// LogVerifier is the stand-in Verifier: it records the trust operation and
// succeeds.
type LogVerifier struct {
	Log zerolog.Logger
}

func (v *LogVerifier) TrustIdentity(_ context.Context, userID string) error {
	v.Log.Info().Str("user_id", userID).Msg("identity trusted after safety number change")
	return nil
}

// Plugin is the moderation command bundle.
type Plugin struct {
	db       *gorm.DB
	verifier Verifier
	log      zerolog.Logger
}

// New builds the admin plugin.
func New(db *gorm.DB, verifier Verifier, log zerolog.Logger) *Plugin {
	return &Plugin{
		db:       db,
		verifier: verifier,
		log:      log.With().Str("component", "admin").Logger(),
	}
}

// Name implements bot.Plugin.
func (p *Plugin) Name() string { return "admin" }

// Commands implements bot.Plugin.
func (p *Plugin) Commands() []bot.Command {
	return []bot.Command{
		{
			Name:        "safetynumber",
			Description: "Acknowledge a member's safety number change and re-trust their identity.",
			Usage:       "!safetynumber @user",
			AdminOnly:   true,
			Handler:     p.handleSafetyNumber,
		},
	}
}

func (p *Plugin) handleSafetyNumber(ctx context.Context, env *transport.Envelope, _ string) (string, error) {
	target := transport.FirstMention(env)
	if target == "" {
		return "Usage: !safetynumber @user — mention whose safety number changed.", nil
	}

	if err := p.verifier.TrustIdentity(ctx, target); err != nil {
		return "", fmt.Errorf("trust identity for %s: %w", target, err)
	}

	if _, err := repo.AppendAudit(ctx, p.db, domain.AuditSafetyNumberReset, env.Source, target, "identity re-trusted"); err != nil {
		p.log.Error().Err(err).Str("target", target).Msg("audit write failed")
	}
	p.log.Info().Str("target", target).Str("actor", env.Source).Msg("safety number acknowledged")

	return fmt.Sprintf("Safety number for %s acknowledged; encrypted delivery will resume.", target), nil
}
