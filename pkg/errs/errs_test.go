package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidation(t *testing.T) {
	err := Validation("risk score %d out of range", 120)
	if !IsValidation(err) {
		t.Error("expected IsValidation to be true")
	}
	if IsNotFound(err) || IsConcurrency(err) {
		t.Error("validation error misclassified")
	}
	if err.Error() != "risk score 120 out of range" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestNotFound(t *testing.T) {
	err := NotFound("handoff", "abc-123")
	if !IsNotFound(err) {
		t.Error("expected IsNotFound to be true")
	}
	if err.Error() != "handoff abc-123 not found" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestConcurrency(t *testing.T) {
	err := Concurrency("handoff status changed from %s", "pending")
	if !IsConcurrency(err) {
		t.Error("expected IsConcurrency to be true")
	}
}

func TestPersistenceWrapping(t *testing.T) {
	inner := errors.New("connection reset")
	err := Persistence("insert crisis_event", inner)
	if !IsPersistence(err) {
		t.Error("expected IsPersistence to be true")
	}
	if !errors.Is(err, inner) {
		t.Error("expected wrapped error to be reachable via errors.Is")
	}
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("update handoff: %w", Concurrency("stale status"))
	if !IsConcurrency(err) {
		t.Error("expected IsConcurrency through fmt.Errorf wrapping")
	}
}
