package filler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/llm"
	"github.com/kweiss/applyflow/internal/logger"
	"github.com/kweiss/applyflow/internal/prompts"
)

// agentRetryBackoffs are the waits between whole-run retries after a
// timeout failure. The number of retries equals the number of backoffs.
var agentRetryBackoffs = []time.Duration{30 * time.Second, 60 * time.Second}

// failureKeywords are checked before successKeywords when classifying the
// final page. A page containing both signals is treated as a failure.
var failureKeywords = []string{
	"error",
	"failed",
	"could not submit",
	"unable to",
	"captcha",
	"verification required",
}

var successKeywords = []string{
	"application submitted",
	"successfully submitted",
	"thank you for applying",
	"application received",
	"application complete",
	"confirmation",
	"we have received your application",
}

// agentAction is one decision from the model: a single browser action, or
// "done" with an outcome.
type agentAction struct {
	Action  string   `json:"action"`
	Locator []string `json:"locator,omitempty"`
	Value   string   `json:"value,omitempty"`
	File    string   `json:"file,omitempty"`
	URL     string   `json:"url,omitempty"`
	Outcome string   `json:"outcome,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// AgentFiller drives the application with an observe-decide-act loop: each
// turn it shows the model the current page and executes the single action
// the model returns. It works on any ATS at the cost of more model calls,
// which is why the hybrid dispatcher tries it per the configured strategy
// order rather than unconditionally.
type AgentFiller struct {
	req   Request
	llm   llm.Client
	cfg   *config.AutomatorConfig
	log   *logger.Logger
	sleep func(time.Duration)
}

// NewAgentFiller builds an agent-driven filler.
//
// Parameters:
//   - req: the application request (job, profile, browser session, decisions)
//   - client: the LLM client used for per-step decisions
//   - cfg: automator settings (max steps, chunk size)
//
// Returns:
//   - *AgentFiller: the configured filler
func NewAgentFiller(req Request, client llm.Client, cfg *config.AutomatorConfig) *AgentFiller {
	return &AgentFiller{
		req: req,
		llm: client,
		cfg: cfg,
		log: logger.GetDefault().
			WithField(logger.FieldComponent, "filler").
			WithStrategy("agent").
			WithJob(req.Job.PrimaryIdentifier),
		sleep: time.Sleep,
	}
}

func (f *AgentFiller) Name() string { return "agent" }

// Apply runs the agent loop, retrying the whole run on timeout failures
// with increasing backoff. The returned status is always terminal.
func (f *AgentFiller) Apply(ctx context.Context) (domain.JobStatus, error) {
	// An unusable browser session is an infrastructure failure, not one the
	// operator can finish by hand.
	tab, err := f.req.Session.Context(ctx)
	if err != nil {
		return domain.StatusFailedUnexpected, fmt.Errorf("browser session unavailable: %w", err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		status, err := f.runOnce(ctx, tab)
		if err == nil {
			if status == domain.StatusAppliedSuccess {
				return status, nil
			}
			return ResolveManually(ctx, f.req.Decisions, f.req.Session.Alive, status,
				"agent run did not confirm submission"), nil
		}

		lastErr = err
		if !llm.IsTimeout(err) || attempt >= len(agentRetryBackoffs) {
			break
		}
		backoff := agentRetryBackoffs[attempt]
		f.log.WithFields(logger.Fields{
			"attempt": attempt + 1,
			"backoff": backoff.String(),
			"error":   err.Error(),
		}).Warn("Agent run timed out, retrying")
		f.sleep(backoff)
	}

	status := ClassifiedStatus(lastErr)
	return ResolveManually(ctx, f.req.Decisions, f.req.Session.Alive, status, lastErr.Error()), nil
}

func (f *AgentFiller) runOnce(ctx, tab context.Context) (domain.JobStatus, error) {
	navCtx, cancel := context.WithTimeout(tab, 30*time.Second)
	err := browser.Navigate(navCtx, f.req.Job.ApplicationURL)
	cancel()
	if err != nil {
		return domain.StatusFailedATS, NewAppError("failed to navigate to application", domain.StatusFailedATS)
	}

	system := prompts.AgentSystemPrompt + "\n\n" + f.taskDescription()

	for step := 1; step <= f.cfg.AgentMaxSteps; step++ {
		action, err := f.nextAction(ctx, tab, system, step)
		if err != nil {
			return domain.StatusFailedUnexpected, err
		}

		f.log.WithFields(logger.Fields{
			logger.FieldStep: step,
			"action":         action.Action,
			"reason":         action.Reason,
		}).Info("Agent action")

		if action.Action == "done" {
			if action.Outcome != "submitted" {
				return domain.StatusFailedATS, nil
			}
			return f.verifyOutcome(tab), nil
		}
		if err := f.execute(tab, action); err != nil {
			// A single failed action is recoverable: the model sees the
			// unchanged page on the next turn and picks another locator
			f.log.WithFields(logger.Fields{
				"action": action.Action,
				"error":  err.Error(),
			}).Warn("Agent action failed")
		}
		time.Sleep(time.Second)
	}

	f.log.WithField(logger.FieldCount, f.cfg.AgentMaxSteps).Warn("Agent step limit reached")
	return domain.StatusFailedATS, nil
}

func (f *AgentFiller) taskDescription() string {
	p := f.req.Profile
	job := f.req.Job
	excerpt := job.Description
	if len(excerpt) > jobJSONMaxLen {
		excerpt = excerpt[:jobJSONMaxLen]
	}
	location := p.City
	if p.State != "" {
		location += ", " + p.State
	}
	return fillTemplate(prompts.AgentTaskTemplate, map[string]string{
		"url":               job.ApplicationURL,
		"first_name":        p.FirstName,
		"last_name":         p.LastName,
		"email":             p.Email,
		"phone":             p.Phone,
		"location":          location,
		"linkedin":          p.LinkedIn,
		"resume_path":       job.ResumePDFPath,
		"cover_letter_path": job.CoverLetterPDFPath,
		"job_title":         job.Title,
		"company":           job.Company,
		"job_excerpt":       excerpt,
		"background":        p.Background,
	})
}

func (f *AgentFiller) nextAction(ctx, tab context.Context, system string, step int) (*agentAction, error) {
	obsCtx, cancel := context.WithTimeout(tab, defaultWait)
	url, err := browser.CurrentURL(obsCtx)
	if err != nil {
		url = f.req.Job.ApplicationURL
	}
	page, err := browser.PageHTML(obsCtx)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("failed to observe page at step %d: %w", step, err)
	}
	if len(page) > f.cfg.ChunkSize {
		page = page[:f.cfg.ChunkSize]
	}

	user := fillTemplate(prompts.AgentStepTemplate, map[string]string{
		"step":      fmt.Sprintf("%d", step),
		"max_steps": fmt.Sprintf("%d", f.cfg.AgentMaxSteps),
		"url":       url,
		"page":      page,
	})

	raw, err := f.llm.Generate(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("agent decision at step %d: %w", step, err)
	}

	var action agentAction
	if err := json.Unmarshal([]byte(extractJSON(raw)), &action); err != nil {
		return nil, fmt.Errorf("unparseable agent action at step %d: %w", step, err)
	}
	return &action, nil
}

func (f *AgentFiller) execute(tab context.Context, action *agentAction) error {
	actx, cancel := context.WithTimeout(tab, defaultWait)
	defer cancel()

	var loc browser.Locator
	if len(action.Locator) == 2 {
		loc = browser.Locator{action.Locator[0], action.Locator[1]}
	}

	switch action.Action {
	case "click":
		return browser.Click(actx, loc)
	case "type":
		return browser.Type(actx, loc, action.Value)
	case "select":
		return browser.SelectOption(actx, loc, action.Value)
	case "upload":
		path := action.File
		if path == "" || path == "resume" {
			path = f.req.Job.ResumePDFPath
		} else if path == "cover_letter" {
			path = f.req.Job.CoverLetterPDFPath
		}
		return browser.Upload(actx, loc, path)
	case "navigate":
		return browser.Navigate(actx, action.URL)
	case "scroll":
		return browser.ScrollToBottom(actx)
	default:
		return fmt.Errorf("unknown agent action %q", action.Action)
	}
}

// verifyOutcome classifies the final page text after the agent reports a
// submission. The agent's own claim is never trusted on its own.
func (f *AgentFiller) verifyOutcome(tab context.Context) domain.JobStatus {
	actx, cancel := context.WithTimeout(tab, defaultWait)
	defer cancel()
	text, err := browser.BodyText(actx)
	if err != nil {
		f.log.WithField("error", err.Error()).Warn("Could not read final page text")
		return domain.StatusFailedATS
	}
	status := classifyOutcome(text)
	if status == domain.StatusAppliedSuccess {
		saveConfirmationPDF(tab, f.req.Job.OutputDir, f.log)
	}
	return status
}

// classifyOutcome maps final page text to a status. Failure keywords take
// precedence over success keywords, and a page matching neither is a
// failure.
func classifyOutcome(text string) domain.JobStatus {
	lower := strings.ToLower(text)
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			return domain.StatusFailedATS
		}
	}
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return domain.StatusAppliedSuccess
		}
	}
	return domain.StatusFailedATS
}
