// Package domain defines the persistence models for onboarding sessions,
// provisioned credentials, and the moderation audit trail. These types are
// mapped with GORM and form the core data layer of the onboarding bot.
package domain

import (
	"fmt"
	"time"
)

// SessionStatus enumerates the lifecycle states of an onboarding session.
//
// Legal transitions are strictly forward:
//
//	pending_introduction → pending_approval → completed
//
// plus the failure path from any non-terminal state to timed_out, which is
// set exclusively by the timeout sweeper. completed and timed_out are
// terminal; a session never leaves a terminal state.
type SessionStatus string

const (
	// StatusPendingIntroduction means the session was opened (via !request)
	// but the candidate has not posted an introduction yet.
	StatusPendingIntroduction SessionStatus = "pending_introduction"

	// StatusPendingApproval means an introduction has been captured and the
	// session is waiting for an admin !gtg.
	StatusPendingApproval SessionStatus = "pending_approval"

	// StatusCompleted means an admin approved the candidate and provisioning
	// ran (possibly partially). Terminal.
	StatusCompleted SessionStatus = "completed"

	// StatusTimedOut means the 24-hour window elapsed before approval.
	// Terminal; only the sweeper sets it.
	StatusTimedOut SessionStatus = "timed_out"
)

// Terminal reports whether the status is a terminal state.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusTimedOut
}

// OnboardingWindow is the hard deadline between opening a session and
// approval. TimeoutAt is always RequestTimestamp + OnboardingWindow and is
// set exactly once, at session creation.
const OnboardingWindow = 24 * time.Hour

// Introduction is the structured capture of a candidate's self-description,
// parsed positionally from the numbered block they post in the entry room.
// It is embedded in Session with an intro_ column prefix. Email and
// SocialHandle are optional; SocialHandle may carry the literal "skip" when
// the candidate explicitly opted out.
type Introduction struct {
	Name         string `json:"name"          gorm:"type:varchar(255)"`
	Organization string `json:"organization"  gorm:"type:varchar(255)"`
	Inviter      string `json:"inviter"       gorm:"type:varchar(255)"`
	Email        string `json:"email"         gorm:"type:varchar(255)"`
	Interests    string `json:"interests"     gorm:"type:text"`
	SocialHandle string `json:"social_handle" gorm:"type:varchar(255)"`
}

// Empty reports whether no introduction fields have been captured.
func (i Introduction) Empty() bool {
	return i.Name == "" && i.Organization == "" && i.Inviter == "" &&
		i.Email == "" && i.Interests == "" && i.SocialHandle == ""
}

// Session represents one onboarding attempt for a target user.
//
// Fields:
//   - ID: derived from the user and the session start time (stable, unique).
//   - UserID: platform-native identifier of the candidate (phone number or UUID).
//   - InitiatedBy: identifier of the admin/member who issued !request; empty
//     for self-initiated sessions (candidate posted an introduction unprompted).
//   - Status: current lifecycle state, see SessionStatus.
//   - RequestTimestamp: when the session was opened.
//   - TimeoutAt: RequestTimestamp + 24h, immutable once set.
//   - LastActivityAt: bumped on every mutation, for operator reports.
//   - IntroPosted / Intro: whether and what the candidate introduced.
//   - CompletedAt / RemovedAt: mutually exclusive terminal markers.
//
// Sessions are never deleted; terminal rows remain for audit and are only
// dropped from the active in-memory index.
type Session struct {
	ID               string        `json:"id"                gorm:"type:varchar(96);primaryKey"`
	UserID           string        `json:"user_id"           gorm:"type:varchar(64);not null;index:idx_session_user"`
	InitiatedBy      string        `json:"initiated_by"      gorm:"type:varchar(64)"`
	Status           SessionStatus `json:"status"            gorm:"type:varchar(32);not null;index"`
	RequestTimestamp time.Time     `json:"request_timestamp" gorm:"not null"`
	TimeoutAt        time.Time     `json:"timeout_at"        gorm:"not null"`
	LastActivityAt   time.Time     `json:"last_activity_at"`

	IntroPosted bool         `json:"intro_posted"`
	Intro       Introduction `json:"introduction" gorm:"embedded;embeddedPrefix:intro_"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Active reports whether the session is still in a non-terminal state.
func (s *Session) Active() bool { return !s.Status.Terminal() }

// HoursRemaining returns the (possibly negative) hours until TimeoutAt.
func (s *Session) HoursRemaining(now time.Time) float64 {
	return s.TimeoutAt.Sub(now).Hours()
}

// NewSessionID derives the session primary key from the candidate and the
// session start time. The pair is unique because a user has at most one
// active session at a time.
func NewSessionID(userID string, start time.Time) string {
	return fmt.Sprintf("%s-%d", userID, start.UTC().Unix())
}

// Credential is the generated account record tied 1:1 to a completed
// session. It is created once during the !gtg provisioning pipeline and is
// immutable afterward.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - SessionID: owning session; unique, enforcing the 1:1 relationship.
//   - UserID: candidate the account was provisioned for.
//   - Username: derived login name.
//   - OneTimePassword: initial password handed over in the welcome DM.
//   - ResetToken: URL-safe token embedded in the password reset link.
type Credential struct {
	ID              string    `json:"id"                gorm:"type:char(36);primaryKey"`
	SessionID       string    `json:"session_id"        gorm:"type:varchar(96);not null;uniqueIndex:ux_credential_session"`
	UserID          string    `json:"user_id"           gorm:"type:varchar(64);not null;index"`
	Username        string    `json:"username"          gorm:"type:varchar(64);not null"`
	OneTimePassword string    `json:"-"                 gorm:"type:varchar(64);not null"`
	ResetToken      string    `json:"-"                 gorm:"type:varchar(128);not null"`
	CreatedAt       time.Time `json:"created_at"`
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }

// AuditEntry is one append-only record of a state transition or admin
// action. Entries are never updated or deleted; the dashboard reads them for
// moderation transparency.
type AuditEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Action    string    `json:"action"     gorm:"type:varchar(64);not null;index"`
	Actor     string    `json:"actor"      gorm:"type:varchar(64);index"`
	Target    string    `json:"target"     gorm:"type:varchar(64);index"`
	Detail    string    `json:"detail"     gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string { return "audit_entries" }

// Audit action kinds. Free-form detail rides alongside; the kind is the
// stable label dashboards group by.
const (
	AuditSessionRequested  = "session_requested"
	AuditIntroductionSeen  = "introduction_received"
	AuditSessionApproved   = "session_approved"
	AuditSessionTimedOut   = "session_timed_out"
	AuditProvisionStep     = "provision_step"
	AuditSafetyNumberReset = "safety_number_reset"
)
