package alerting

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Call records a single notification delivered through the mock.
type Call struct {
	Kind      string // resources, supervisor, broadcast, handoff
	SessionID uuid.UUID
	HandoffID uuid.UUID
	Severity  string
	Status    string
	RiskScore int
	Resources []string
}

// MockNotifier is a test double for Notifier.
type MockNotifier struct {
	mu         sync.Mutex
	calls      []Call
	ShouldFail bool
	FailError  string
}

func (m *MockNotifier) record(c Call) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

func (m *MockNotifier) DeliverResources(_ context.Context, sessionID uuid.UUID, resources []string) error {
	return m.record(Call{Kind: "resources", SessionID: sessionID, Resources: resources})
}

func (m *MockNotifier) AlertSupervisor(_ context.Context, sessionID uuid.UUID, severity string, riskScore int) error {
	return m.record(Call{Kind: "supervisor", SessionID: sessionID, Severity: severity, RiskScore: riskScore})
}

func (m *MockNotifier) BroadcastCritical(_ context.Context, sessionID uuid.UUID, riskScore int) error {
	return m.record(Call{Kind: "broadcast", SessionID: sessionID, RiskScore: riskScore})
}

func (m *MockNotifier) NotifyHandoff(_ context.Context, handoffID, sessionID uuid.UUID, status string) error {
	return m.record(Call{Kind: "handoff", HandoffID: handoffID, SessionID: sessionID, Status: status})
}

// Calls returns a copy of the recorded calls.
func (m *MockNotifier) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}
