package sweeper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/communitykit/onboardbot/internal/domain"
	"github.com/communitykit/onboardbot/internal/repo"
	"github.com/communitykit/onboardbot/internal/store"
	"github.com/communitykit/onboardbot/internal/transport"
)

type captureTransport struct {
	mu    sync.Mutex
	group []string
}

func (c *captureTransport) Send(context.Context, string, string) (transport.SendResult, error) {
	return transport.SendResult{Success: true}, nil
}

func (c *captureTransport) SendGroup(_ context.Context, _ string, text string) (transport.SendResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.group = append(c.group, text)
	return transport.SendResult{Success: true}, nil
}

func (c *captureTransport) Groups(context.Context) ([]transport.GroupInfo, error) { return nil, nil }

func newSweeperFixture(t *testing.T) (*Sweeper, *store.Store, *gorm.DB, *captureTransport) {
	t.Helper()
	dsn := fmt.Sprintf("file:sweep_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	st, err := store.Open(db, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)

	tp := &captureTransport{}
	sender := transport.NewSender(tp, 0, 1, zerolog.Nop())
	sw := New(st, db, sender, time.Minute, "entry-room-id", zerolog.Nop())
	return sw, st, db, tp
}

func TestSweep_ExpiresOnlyOverdue(t *testing.T) {
	sw, st, db, tp := newSweeperFixture(t)
	now := time.Now().UTC()

	// Overdue by an hour; fresh by 23 hours.
	if _, err := st.Create(context.Background(), "overdue", "", domain.StatusPendingIntroduction, now.Add(-25*time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := st.Create(context.Background(), "fresh", "", domain.StatusPendingApproval, now.Add(-time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := sw.Sweep(context.Background(), now)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1", n)
	}

	if _, err := st.ActiveByUser(context.Background(), "overdue"); !errors.Is(err, store.ErrNoActiveSession) {
		t.Fatal("overdue session still active")
	}
	if _, err := st.ActiveByUser(context.Background(), "fresh"); err != nil {
		t.Fatalf("fresh session was swept: %v", err)
	}

	// The room was told.
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if len(tp.group) != 1 || !strings.Contains(tp.group[0], "overdue") {
		t.Fatalf("announcements = %v", tp.group)
	}

	// Audit trail records the elapsed hours.
	entries, err := repo.ListAuditPage(context.Background(), db, 0, 10)
	if err != nil {
		t.Fatalf("ListAuditPage: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != domain.AuditSessionTimedOut {
		t.Fatalf("audit = %+v", entries)
	}
	if !strings.Contains(entries[0].Detail, "25.0h") {
		t.Fatalf("audit detail = %q", entries[0].Detail)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	sw, st, _, _ := newSweeperFixture(t)
	now := time.Now().UTC()

	if _, err := st.Create(context.Background(), "u1", "", domain.StatusPendingIntroduction, now.Add(-30*time.Hour)); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if n, err := sw.Sweep(context.Background(), now); err != nil || n != 1 {
		t.Fatalf("first sweep = (%d, %v)", n, err)
	}
	if n, err := sw.Sweep(context.Background(), now); err != nil || n != 0 {
		t.Fatalf("second sweep = (%d, %v), want (0, nil)", n, err)
	}
}

func TestSweep_ExactDeadlineSurvives(t *testing.T) {
	sw, st, _, _ := newSweeperFixture(t)
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if _, err := st.Create(context.Background(), "u1", "", domain.StatusPendingApproval, start); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A session exactly at its deadline is not overdue yet; the instant
	// after, it is.
	deadline := start.Add(domain.OnboardingWindow)
	n, err := sw.Sweep(context.Background(), deadline)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expired = %d, want 0 at the exact deadline", n)
	}

	n, err = sw.Sweep(context.Background(), deadline.Add(time.Nanosecond))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expired = %d, want 1 past the deadline", n)
	}
}

func TestSweep_NothingToDo(t *testing.T) {
	sw, _, _, tp := newSweeperFixture(t)

	n, err := sw.Sweep(context.Background(), time.Now().UTC())
	if err != nil || n != 0 {
		t.Fatalf("sweep = (%d, %v)", n, err)
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if len(tp.group) != 0 {
		t.Fatalf("unexpected announcements: %v", tp.group)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	sw, _, _, _ := newSweeperFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}
}
