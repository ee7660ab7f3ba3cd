package alerting

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestLogNotifier_WritesStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(zerolog.New(&buf))
	sid := uuid.New()

	if err := n.AlertSupervisor(context.Background(), sid, "medium", 55); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, sid.String()) {
		t.Errorf("expected session id in output, got %s", out)
	}
	if !strings.Contains(out, "supervisor alert") {
		t.Errorf("expected supervisor alert message, got %s", out)
	}
}

func TestMockNotifier_RecordsCalls(t *testing.T) {
	m := &MockNotifier{}
	sid := uuid.New()
	hid := uuid.New()

	if err := m.DeliverResources(context.Background(), sid, []string{"breathing-exercise"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.NotifyHandoff(context.Background(), hid, sid, "in_progress"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := m.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Kind != "resources" || calls[0].SessionID != sid {
		t.Errorf("unexpected first call: %+v", calls[0])
	}
	if calls[1].Kind != "handoff" || calls[1].Status != "in_progress" {
		t.Errorf("unexpected second call: %+v", calls[1])
	}
}

func TestMockNotifier_Failure(t *testing.T) {
	m := &MockNotifier{ShouldFail: true, FailError: "channel down"}
	err := m.BroadcastCritical(context.Background(), uuid.New(), 90)
	if err == nil || err.Error() != "channel down" {
		t.Errorf("expected channel down error, got %v", err)
	}
	if len(m.Calls()) != 1 {
		t.Error("expected failed call to still be recorded")
	}
}
