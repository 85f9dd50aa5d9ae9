package filler

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/domain"
)

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name string
		text string
		want domain.JobStatus
	}{
		{
			name: "explicit confirmation",
			text: "Thank You For Applying! We'll be in touch soon.",
			want: domain.StatusAppliedSuccess,
		},
		{
			name: "application received",
			text: "Your application received a tracking number.",
			want: domain.StatusAppliedSuccess,
		},
		{
			name: "plain failure",
			text: "We could not submit your application at this time.",
			want: domain.StatusFailedATS,
		},
		{
			name: "captcha wall",
			text: "Please complete the CAPTCHA to continue.",
			want: domain.StatusFailedATS,
		},
		{
			name: "failure outranks success",
			text: "Application submitted. Error: your session has expired.",
			want: domain.StatusFailedATS,
		},
		{
			name: "ambiguous page is a failure",
			text: "Careers at Acme. Open positions. About us.",
			want: domain.StatusFailedATS,
		},
		{
			name: "empty page is a failure",
			text: "",
			want: domain.StatusFailedATS,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyOutcome(tt.text); got != tt.want {
				t.Errorf("classifyOutcome(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestAgentUnavailableSessionSkipsIntervention(t *testing.T) {
	// A browser that cannot start is an infrastructure failure; the
	// operator must not be prompted to finish the application by hand.
	session := browser.NewSessionManager(&config.BrowserConfig{
		ChromePath: "/nonexistent/chrome",
		Headless:   true,
		WindowW:    1280,
		WindowH:    800,
	})
	decisions := &scriptedChannel{answers: []string{"submitted"}}

	f := NewAgentFiller(Request{
		Job:       &domain.JobRecord{PrimaryIdentifier: "acme-123", ApplicationURL: "https://example.com/apply"},
		Profile:   &config.ProfileConfig{FirstName: "Ada"},
		Session:   session,
		Decisions: decisions,
	}, &fakeClient{}, &config.AutomatorConfig{AgentMaxSteps: 3, ChunkSize: 1000})

	status, err := f.Apply(context.Background())
	if err == nil {
		t.Fatal("expected error when the browser session cannot start")
	}
	if status != domain.StatusFailedUnexpected {
		t.Errorf("status = %q, want %q", status, domain.StatusFailedUnexpected)
	}
	if decisions.prompts != 0 {
		t.Errorf("operator prompted %d times, want 0", decisions.prompts)
	}
}

func TestAgentActionParsing(t *testing.T) {
	raw := "Next I will fill the email field.\n```json\n" +
		`{"action": "type", "locator": ["id", "email"], "value": "ada@example.com", "reason": "fill email"}` +
		"\n```"
	jsonText := extractJSON(raw)
	if jsonText == "" {
		t.Fatal("no JSON extracted from agent response")
	}
	var action agentAction
	if err := json.Unmarshal([]byte(jsonText), &action); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if action.Action != "type" || action.Value != "ada@example.com" {
		t.Errorf("unexpected action: %+v", action)
	}
	if len(action.Locator) != 2 || action.Locator[1] != "email" {
		t.Errorf("unexpected locator: %v", action.Locator)
	}
}
