package filler

import (
	"context"
	"io"
	"testing"

	"github.com/kweiss/applyflow/internal/domain"
)

// scriptedChannel replays canned operator answers.
type scriptedChannel struct {
	answers []string
	err     error
	prompts int
}

func (s *scriptedChannel) Prompt(ctx context.Context, message string) (string, error) {
	s.prompts++
	if len(s.answers) == 0 {
		return "", s.err
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

func alwaysAlive() bool { return true }
func neverAlive() bool  { return false }

func TestResolveManually(t *testing.T) {
	tests := []struct {
		name        string
		answers     []string
		chErr       error
		alive       func() bool
		original    domain.JobStatus
		want        domain.JobStatus
		wantPrompts int
	}{
		{
			name:        "operator submitted",
			answers:     []string{"submitted"},
			alive:       alwaysAlive,
			original:    domain.StatusFailedATSStep,
			want:        domain.StatusManualSubmitted,
			wantPrompts: 1,
		},
		{
			name:        "operator closed",
			answers:     []string{"closed"},
			alive:       alwaysAlive,
			original:    domain.StatusFailedATSStep,
			want:        domain.StatusManualClosed,
			wantPrompts: 1,
		},
		{
			name:        "operator confirms failure",
			answers:     []string{"failed"},
			alive:       alwaysAlive,
			original:    domain.StatusFailedATS,
			want:        domain.StatusFailedATS,
			wantPrompts: 1,
		},
		{
			name:        "input normalized",
			answers:     []string{"  SUBMITTED  "},
			alive:       alwaysAlive,
			original:    domain.StatusFailedATSStep,
			want:        domain.StatusManualSubmitted,
			wantPrompts: 1,
		},
		{
			name:        "invalid input reprompts",
			answers:     []string{"maybe", "yes?", "closed"},
			alive:       alwaysAlive,
			original:    domain.StatusFailedATSStep,
			want:        domain.StatusManualClosed,
			wantPrompts: 3,
		},
		{
			name:        "dead browser skips prompt",
			answers:     []string{"submitted"},
			alive:       neverAlive,
			original:    domain.StatusFailedATSStep,
			want:        domain.StatusManualClosed,
			wantPrompts: 0,
		},
		{
			name:        "channel failure keeps original status",
			answers:     nil,
			chErr:       io.EOF,
			alive:       alwaysAlive,
			original:    domain.StatusFailedUnexpected,
			want:        domain.StatusFailedUnexpected,
			wantPrompts: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &scriptedChannel{answers: tt.answers, err: tt.chErr}
			got := ResolveManually(context.Background(), ch, tt.alive, tt.original, "step failed")
			if got != tt.want {
				t.Errorf("ResolveManually = %q, want %q", got, tt.want)
			}
			if ch.prompts != tt.wantPrompts {
				t.Errorf("prompted %d times, want %d", ch.prompts, tt.wantPrompts)
			}
		})
	}
}

func TestResolveManuallyBrowserDiesDuringIntervention(t *testing.T) {
	calls := 0
	flaky := func() bool {
		calls++
		// alive for the pre-check, dead when re-checked before the prompt
		return calls == 1
	}
	ch := &scriptedChannel{answers: []string{"submitted"}}
	got := ResolveManually(context.Background(), ch, flaky, domain.StatusFailedATSStep, "step failed")
	if got != domain.StatusManualClosed {
		t.Errorf("ResolveManually = %q, want %q", got, domain.StatusManualClosed)
	}
	if ch.prompts != 0 {
		t.Errorf("prompted %d times, want 0", ch.prompts)
	}
}
