package repo

import (
	"context"
	"testing"

	"github.com/communitykit/onboardbot/internal/domain"
)

func TestAudit_AppendAndPage(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := AppendAudit(ctx, db, domain.AuditSessionRequested, "admin1", "u1", "detail"); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	total, err := CountAudit(ctx, db)
	if err != nil {
		t.Fatalf("CountAudit: %v", err)
	}
	if total != 5 {
		t.Fatalf("total = %d, want 5", total)
	}

	page, err := ListAuditPage(ctx, db, 0, 3)
	if err != nil {
		t.Fatalf("ListAuditPage: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("page len = %d, want 3", len(page))
	}
	for _, e := range page {
		if e.Action != domain.AuditSessionRequested {
			t.Fatalf("unexpected action %q", e.Action)
		}
	}
}
