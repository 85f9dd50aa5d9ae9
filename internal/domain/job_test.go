package domain

import "testing"

func TestJobStatusTerminal(t *testing.T) {
	terminal := []JobStatus{
		StatusAppliedSuccess,
		StatusFailedATS,
		StatusFailedATSStep,
		StatusFailedUnexpected,
		StatusManualSubmitted,
		StatusManualClosed,
		StatusEasyApplyProcessed,
		StatusErrorUnknown,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}

	active := []JobStatus{
		StatusNew,
		StatusProcessing,
		StatusTailoringFailed,
		StatusGenerationFailed,
		StatusDocsReady,
		StatusInProgress,
	}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
}

func TestJobStatusSucceeded(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{StatusAppliedSuccess, true},
		{StatusManualSubmitted, true},
		{StatusManualClosed, false},
		{StatusEasyApplyProcessed, false},
		{StatusFailedATS, false},
		{StatusDocsReady, false},
	}
	for _, tt := range tests {
		if got := tt.status.Succeeded(); got != tt.want {
			t.Errorf("Succeeded(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
