// Package sweeper enforces the 24-hour onboarding window. A single loop
// wakes on a fixed interval, expires every session whose deadline has
// passed, and notifies the welcome room. Sweeps run inline on the tick, so
// two sweeps can never overlap; a slow sweep simply delays the next tick.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/domain"
	"github.com/communitykit/onboardbot/internal/observability"
	"github.com/communitykit/onboardbot/internal/repo"
	"github.com/communitykit/onboardbot/internal/store"
	"github.com/communitykit/onboardbot/internal/transport"
)

// Sweeper expires overdue onboarding sessions.
type Sweeper struct {
	store    *store.Store
	db       *gorm.DB
	sender   *transport.Sender
	interval time.Duration
	// announceRoom is the wire group ID the timeout notice is posted to;
	// empty disables announcements.
	announceRoom string
	log          zerolog.Logger
}

// New builds a Sweeper. interval <= 0 falls back to 10 minutes.
func New(st *store.Store, db *gorm.DB, sender *transport.Sender, interval time.Duration, announceRoom string, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		store:        st,
		db:           db,
		sender:       sender,
		interval:     interval,
		announceRoom: announceRoom,
		log:          log.With().Str("component", "sweeper").Logger(),
	}
}

// Run ticks until ctx is canceled. An immediate sweep runs at startup so a
// restart never extends a session past its deadline by a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("sweeper started")

	if _, err := s.Sweep(ctx, time.Now()); err != nil {
		s.log.Error().Err(err).Msg("startup sweep failed")
	}

	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweeper stopped")
			return
		case <-t.C:
			if _, err := s.Sweep(ctx, time.Now()); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}

// Sweep expires every active session whose deadline has strictly passed
// (now > TimeoutAt; a session exactly at its deadline survives until the
// next tick) and returns how many were timed out. Safe to call repeatedly
// with the same clock value: an already-expired session is skipped, not an
// error.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	started := time.Now()

	sessions, err := s.store.ActiveSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	expired := 0
	for i := range sessions {
		sess := &sessions[i]
		if !sess.TimeoutAt.Before(now) {
			// Sessions are deadline-sorted; the rest are still in window.
			break
		}
		gone, err := s.store.Expire(ctx, sess.UserID, now)
		if errors.Is(err, store.ErrTerminalState) {
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("expiry failed")
			continue
		}
		expired++

		elapsed := now.Sub(gone.RequestTimestamp).Hours()
		detail := fmt.Sprintf("expired after %.1fh (window %.0fh)", elapsed, domain.OnboardingWindow.Hours())
		if _, err := repo.AppendAudit(ctx, s.db, domain.AuditSessionTimedOut, "sweeper", gone.UserID, detail); err != nil {
			s.log.Error().Err(err).Str("user_id", gone.UserID).Msg("audit write failed")
		}
		s.log.Info().
			Str("user_id", gone.UserID).
			Float64("elapsed_hours", elapsed).
			Msg("session timed out")

		s.announce(ctx, gone)
	}

	observability.ObserveSweep(expired, time.Since(started))
	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("sweep complete")
	}
	return expired, nil
}

func (s *Sweeper) announce(ctx context.Context, sess *domain.Session) {
	if s.announceRoom == "" || s.sender == nil {
		return
	}
	text := fmt.Sprintf("The onboarding window for %s has expired without approval. Use !request to start over.", sess.UserID)
	if err := s.sender.SendGroup(ctx, s.announceRoom, text); err != nil {
		s.log.Error().Err(err).Str("user_id", sess.UserID).Msg("timeout announcement failed")
	}
}
