// Package store owns all onboarding-session state. A single goroutine
// executes every read and mutation, so the dispatcher's intake loop and the
// timeout sweeper can never race on the same session: both submit requests
// and wait for the answer. The store also enforces the state machine —
// callers ask for a transition, they never write a status themselves.
//
// Every mutation is persisted before it becomes visible: the actor works on
// a copy of the session, writes it through the repository, and only then
// commits it to the in-memory index. A persistence failure therefore leaves
// no partially applied command behind.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/domain"
	"github.com/communitykit/onboardbot/internal/observability"
	"github.com/communitykit/onboardbot/internal/repo"
)

var (
	// ErrActiveSessionExists is returned by Create when the user already has
	// a non-terminal session. The existing session accompanies the error.
	ErrActiveSessionExists = errors.New("active session already exists")

	// ErrNoActiveSession is returned when an operation targets a user with
	// no non-terminal session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrIllegalTransition is returned for transitions the state machine
	// forbids between two non-terminal states.
	ErrIllegalTransition = errors.New("illegal session transition")

	// ErrTerminalState is returned when a transition is attempted from a
	// terminal state. Per policy this is a warn-logged no-op, not a fault.
	ErrTerminalState = errors.New("session already terminal")

	// ErrClosed is returned for requests submitted after Close.
	ErrClosed = errors.New("session store closed")
)

// Store is the single-writer session service.
type Store struct {
	db   *gorm.DB
	log  zerolog.Logger
	reqs chan func()
	quit chan struct{}
	done chan struct{}

	closeOnce sync.Once

	// active is the userID → session index. Only the actor goroutine
	// touches it.
	active map[string]*domain.Session
}

// Open loads all non-terminal sessions from the database into the active
// index and starts the actor goroutine.
func Open(db *gorm.DB, log zerolog.Logger) (*Store, error) {
	s := &Store{
		db:     db,
		log:    log.With().Str("component", "session-store").Logger(),
		reqs:   make(chan func(), 64),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		active: make(map[string]*domain.Session),
	}

	sessions, err := repo.ListActiveSessions(context.Background(), db)
	if err != nil {
		return nil, fmt.Errorf("load active sessions: %w", err)
	}
	for i := range sessions {
		sess := sessions[i]
		s.active[sess.UserID] = &sess
	}
	observability.SetActiveSessions(len(s.active))
	s.log.Info().Int("active", len(s.active)).Msg("session index loaded")

	go s.loop()
	return s, nil
}

// Close stops the actor after draining queued requests. Safe to call more
// than once.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Store) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.reqs:
			fn()
		case <-s.quit:
			// Drain whatever was queued before shutdown.
			for {
				select {
				case fn := <-s.reqs:
					fn()
				default:
					return
				}
			}
		}
	}
}

// do submits fn to the actor and waits for it to finish. Submission can race
// Close: the buffered send may win the select against the closed quit
// channel, landing the request after the actor's final drain. The reply wait
// therefore also watches done, re-checking errc once in case the drain did
// run the request.
func (s *Store) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	wrapped := func() { errc <- fn() }
	select {
	case s.reqs <- wrapped:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create opens a new session for userID with TimeoutAt fixed to
// now + 24h. It fails with ErrActiveSessionExists (returning the existing
// session) when the user already has a non-terminal one.
func (s *Store) Create(ctx context.Context, userID, initiatedBy string, status domain.SessionStatus, now time.Time) (*domain.Session, error) {
	var out *domain.Session
	err := s.do(ctx, func() error {
		if existing, ok := s.active[userID]; ok {
			out = clone(existing)
			return ErrActiveSessionExists
		}
		if status != domain.StatusPendingIntroduction && status != domain.StatusPendingApproval {
			return ErrIllegalTransition
		}
		now = now.UTC()
		sess := &domain.Session{
			ID:               domain.NewSessionID(userID, now),
			UserID:           userID,
			InitiatedBy:      initiatedBy,
			Status:           status,
			RequestTimestamp: now,
			TimeoutAt:        now.Add(domain.OnboardingWindow),
			LastActivityAt:   now,
		}
		if err := repo.CreateSession(ctx, s.db, sess); err != nil {
			return err
		}
		s.active[userID] = sess
		observability.SetActiveSessions(len(s.active))
		out = clone(sess)
		return nil
	})
	return out, err
}

// ActiveByUser returns a copy of the user's active session, or
// ErrNoActiveSession.
func (s *Store) ActiveByUser(ctx context.Context, userID string) (*domain.Session, error) {
	var out *domain.Session
	err := s.do(ctx, func() error {
		sess, ok := s.active[userID]
		if !ok {
			return ErrNoActiveSession
		}
		out = clone(sess)
		return nil
	})
	return out, err
}

// ActiveSessions returns copies of every active session, nearest deadline
// first.
func (s *Store) ActiveSessions(ctx context.Context) ([]domain.Session, error) {
	var out []domain.Session
	err := s.do(ctx, func() error {
		out = make([]domain.Session, 0, len(s.active))
		for _, sess := range s.active {
			out = append(out, *clone(sess))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].TimeoutAt.Before(out[j].TimeoutAt) })
		return nil
	})
	return out, err
}

// RecordIntroduction stores the parsed introduction on the user's session
// and advances pending_introduction → pending_approval. Re-posting while
// already pending_approval updates the captured data in place.
func (s *Store) RecordIntroduction(ctx context.Context, userID string, intro domain.Introduction, now time.Time) (*domain.Session, error) {
	var out *domain.Session
	err := s.do(ctx, func() error {
		sess, ok := s.active[userID]
		if !ok {
			return ErrNoActiveSession
		}
		next := clone(sess)
		next.Intro = intro
		next.IntroPosted = true
		next.Status = domain.StatusPendingApproval
		next.LastActivityAt = now.UTC()
		if err := repo.SaveSession(ctx, s.db, next); err != nil {
			return err
		}
		s.active[userID] = next
		out = clone(next)
		return nil
	})
	return out, err
}

// Complete transitions pending_approval → completed, sets CompletedAt, and
// drops the session from the active index. Completing a session that never
// reached pending_approval is ErrIllegalTransition.
func (s *Store) Complete(ctx context.Context, userID string, now time.Time) (*domain.Session, error) {
	var out *domain.Session
	err := s.do(ctx, func() error {
		sess, ok := s.active[userID]
		if !ok {
			return s.terminalOrMissing(ctx, userID)
		}
		if sess.Status != domain.StatusPendingApproval {
			return ErrIllegalTransition
		}
		ts := now.UTC()
		next := clone(sess)
		next.Status = domain.StatusCompleted
		next.CompletedAt = &ts
		next.LastActivityAt = ts
		if err := repo.SaveSession(ctx, s.db, next); err != nil {
			return err
		}
		delete(s.active, userID)
		observability.SetActiveSessions(len(s.active))
		out = clone(next)
		return nil
	})
	return out, err
}

// Expire transitions any non-terminal session to timed_out, sets RemovedAt,
// and drops it from the active index. The sweeper is the only caller.
// Expiring an already-terminal session is a warn-logged no-op returning
// ErrTerminalState, which makes back-to-back sweeps idempotent.
func (s *Store) Expire(ctx context.Context, userID string, now time.Time) (*domain.Session, error) {
	var out *domain.Session
	err := s.do(ctx, func() error {
		sess, ok := s.active[userID]
		if !ok {
			return s.terminalOrMissing(ctx, userID)
		}
		ts := now.UTC()
		next := clone(sess)
		next.Status = domain.StatusTimedOut
		next.RemovedAt = &ts
		next.LastActivityAt = ts
		if err := repo.SaveSession(ctx, s.db, next); err != nil {
			return err
		}
		delete(s.active, userID)
		observability.SetActiveSessions(len(s.active))
		out = clone(next)
		return nil
	})
	return out, err
}

// terminalOrMissing distinguishes "user has a terminal session" (warn-logged
// no-op per policy) from "user has no session at all".
func (s *Store) terminalOrMissing(ctx context.Context, userID string) error {
	sess, err := repo.GetActiveSessionByUser(ctx, s.db, userID)
	if err == nil && sess != nil {
		// Row exists in the DB but not the index; should not happen.
		s.log.Warn().Str("user_id", userID).Msg("active session missing from index")
		return ErrNoActiveSession
	}
	s.log.Warn().Str("user_id", userID).Msg("ignoring transition attempt on terminal or missing session")
	return ErrTerminalState
}

func clone(s *domain.Session) *domain.Session {
	c := *s
	if s.CompletedAt != nil {
		ts := *s.CompletedAt
		c.CompletedAt = &ts
	}
	if s.RemovedAt != nil {
		ts := *s.RemovedAt
		c.RemovedAt = &ts
	}
	return &c
}
