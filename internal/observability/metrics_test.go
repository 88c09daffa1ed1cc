package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCommand_CountsByOutcome(t *testing.T) {
	cases := []struct {
		command string
		outcome string
	}{
		{"request", OutcomeOK},
		{"gtg", OutcomeDenied},
		{"pending", OutcomeError},
		{"unknown", OutcomeUnknown},
	}

	for _, tc := range cases {
		c := commandsTotal.WithLabelValues(tc.command, tc.outcome)
		before := testutil.ToFloat64(c)
		ObserveCommand(tc.command, tc.outcome, 0)
		if got := testutil.ToFloat64(c) - before; got != 1 {
			t.Fatalf("ObserveCommand(%q, %q) delta = %v, want 1", tc.command, tc.outcome, got)
		}
	}
}

func TestObserveSweep_AddsExpired(t *testing.T) {
	before := testutil.ToFloat64(sessionTimeouts)
	ObserveSweep(3, 0)
	if got := testutil.ToFloat64(sessionTimeouts) - before; got != 3 {
		t.Fatalf("sessionTimeouts delta = %v, want 3", got)
	}
}
