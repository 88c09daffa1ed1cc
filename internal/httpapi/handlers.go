package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/communitykit/onboardbot/internal/domain"
	"github.com/communitykit/onboardbot/internal/repo"
	"github.com/communitykit/onboardbot/internal/store"
)

// Stable machine-readable error codes.
const (
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty"`
	// Stable, machine-readable code
	Code string `json:"code"`
	// Human-readable message (safe to show to users)
	Message string `json:"message"`
}

// Fail aborts the request with a structured error; 5xx responses are logged
// with request context.
func Fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get(requestIDHeader),
		Code:      code,
		Message:   msg,
	}
	if status >= http.StatusInternalServerError {
		LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Handlers carries the read-only dependencies of the ops endpoints.
type Handlers struct {
	DB    *gorm.DB
	Store *store.Store

	// Now is swappable in tests.
	Now func() time.Time
}

// pendingSession is the dashboard view of one active session.
type pendingSession struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id"`
	InitiatedBy      string               `json:"initiated_by,omitempty"`
	Status           domain.SessionStatus `json:"status"`
	RequestTimestamp time.Time            `json:"request_timestamp"`
	TimeoutAt        time.Time            `json:"timeout_at"`
	HoursRemaining   float64              `json:"hours_remaining"`
	IntroPosted      bool                 `json:"intro_posted"`
}

// ListPendingSessions returns every active session, nearest deadline first.
//
// GET /api/v1/sessions/pending
func (h *Handlers) ListPendingSessions(c *gin.Context) {
	sessions, err := h.Store.ActiveSessions(c.Request.Context())
	if err != nil {
		Fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list sessions")
		return
	}

	now := h.now()
	out := make([]pendingSession, 0, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		out = append(out, pendingSession{
			ID:               s.ID,
			UserID:           s.UserID,
			InitiatedBy:      s.InitiatedBy,
			Status:           s.Status,
			RequestTimestamp: s.RequestTimestamp,
			TimeoutAt:        s.TimeoutAt,
			HoursRemaining:   s.HoursRemaining(now),
			IntroPosted:      s.IntroPosted,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "sessions": out})
}

// auditPage is the paginated audit-trail response.
type auditPage struct {
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
	Total    int64               `json:"total"`
	Entries  []domain.AuditEntry `json:"entries"`
}

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 200
)

// ListAudit returns a page of the audit trail, newest first.
//
// GET /api/v1/audit?page=1&page_size=50
func (h *Handlers) ListAudit(c *gin.Context) {
	page := atoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	size := atoiDefault(c.Query("page_size"), defaultAuditPageSize)
	if size < 1 {
		size = defaultAuditPageSize
	}
	if size > maxAuditPageSize {
		size = maxAuditPageSize
	}

	ctx := c.Request.Context()
	total, err := repo.CountAudit(ctx, h.DB)
	if err != nil {
		Fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not count audit entries")
		return
	}
	entries, err := repo.ListAuditPage(ctx, h.DB, (page-1)*size, size)
	if err != nil {
		Fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list audit entries")
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	c.JSON(http.StatusOK, auditPage{Page: page, PageSize: size, Total: total, Entries: entries})
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// atoiDefault parses a query parameter, falling back to def when empty or
// unparseable.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
