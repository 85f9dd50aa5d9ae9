package filler

import (
	"context"
	"errors"
	"testing"

	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/logger"
)

type stubStrategy struct {
	name   string
	status domain.JobStatus
	err    error
	called bool
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Apply(ctx context.Context) (domain.JobStatus, error) {
	s.called = true
	return s.status, s.err
}

func testHybrid(strategies ...Filler) *HybridFiller {
	return &HybridFiller{
		strategies: strategies,
		log:        logger.GetDefault().WithField(logger.FieldComponent, "filler"),
	}
}

func TestHybridStopsAtFirstFinalOutcome(t *testing.T) {
	finals := []domain.JobStatus{
		domain.StatusAppliedSuccess,
		domain.StatusManualSubmitted,
		domain.StatusManualClosed,
	}
	for _, final := range finals {
		t.Run(string(final), func(t *testing.T) {
			first := &stubStrategy{name: "agent", status: final}
			second := &stubStrategy{name: "platform", status: domain.StatusAppliedSuccess}
			h := testHybrid(first, second)

			status, err := h.Apply(context.Background())
			if err != nil {
				t.Fatalf("Apply returned error: %v", err)
			}
			if status != final {
				t.Errorf("status = %q, want %q", status, final)
			}
			if second.called {
				t.Error("second strategy ran after a final outcome")
			}
		})
	}
}

func TestHybridFallsThroughOnFailure(t *testing.T) {
	first := &stubStrategy{name: "agent", status: domain.StatusFailedATS}
	second := &stubStrategy{name: "platform", status: domain.StatusAppliedSuccess}
	h := testHybrid(first, second)

	status, err := h.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if status != domain.StatusAppliedSuccess {
		t.Errorf("status = %q, want %q", status, domain.StatusAppliedSuccess)
	}
	if !first.called || !second.called {
		t.Error("both strategies should have run")
	}
}

func TestHybridFallsThroughOnError(t *testing.T) {
	first := &stubStrategy{name: "agent", err: errors.New("boom")}
	second := &stubStrategy{name: "platform", status: domain.StatusAppliedSuccess}
	h := testHybrid(first, second)

	status, err := h.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if status != domain.StatusAppliedSuccess {
		t.Errorf("status = %q, want %q", status, domain.StatusAppliedSuccess)
	}
}

func TestHybridExhaustedStrategies(t *testing.T) {
	first := &stubStrategy{name: "agent", status: domain.StatusFailedATSStep}
	second := &stubStrategy{name: "platform", status: domain.StatusFailedATS}
	h := testHybrid(first, second)

	status, err := h.Apply(context.Background())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if status != domain.StatusFailedATS {
		t.Errorf("status = %q, want %q", status, domain.StatusFailedATS)
	}
}

func TestHybridCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	strategy := &stubStrategy{name: "agent", status: domain.StatusAppliedSuccess}
	h := testHybrid(strategy)

	_, err := h.Apply(ctx)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if strategy.called {
		t.Error("strategy ran despite cancelled context")
	}
}

func TestIsFinal(t *testing.T) {
	tests := []struct {
		status domain.JobStatus
		want   bool
	}{
		{domain.StatusAppliedSuccess, true},
		{domain.StatusManualSubmitted, true},
		{domain.StatusManualClosed, true},
		{domain.StatusFailedATS, false},
		{domain.StatusFailedATSStep, false},
		{domain.StatusFailedUnexpected, false},
	}
	for _, tt := range tests {
		if got := isFinal(tt.status); got != tt.want {
			t.Errorf("isFinal(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
