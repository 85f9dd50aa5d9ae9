package filler

import (
	"context"

	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/prompts"
)

// greenhouseFormLocator targets the standard Greenhouse application form.
var greenhouseFormLocator = browser.Locator{"id", "application_form"}

// greenhouseResumeLocators are the fast-path patterns for the resume upload
// input on Greenhouse boards, tried before any AI analysis.
var greenhouseResumeLocators = []browser.Locator{
	{"xpath", "//input[@type='file' and contains(@accept, 'pdf')]"},
	{"xpath", "//input[@type='file' and (contains(@name, 'resume') or contains(@id, 'resume'))]"},
	{"css", "input[type='file']"},
}

var greenhouseSubmitLocators = []browser.Locator{
	{"xpath", "//button[@type='submit' and contains(., 'Submit')]"},
	{"xpath", "//input[@type='submit']"},
	{"id", "submit_button"},
}

var greenhouseConfirmationMarkers = []string{
	"Application Submitted",
	"Thank you for your application",
	"Application received",
	"Successfully submitted",
	"Your application has been submitted",
}

// GreenhouseFiller fills applications hosted on Greenhouse job boards.
type GreenhouseFiller struct {
	stepFiller
}

// NewGreenhouseFiller builds a filler for Greenhouse-hosted applications.
//
// Parameters:
//   - req: the application request (job, profile, browser session, decisions)
//   - engine: the form analysis engine to use for field discovery
//
// Returns:
//   - *GreenhouseFiller: the configured filler
func NewGreenhouseFiller(req Request, engine *Engine) *GreenhouseFiller {
	return &GreenhouseFiller{stepFiller: newStepFiller(req, engine, "greenhouse")}
}

func (f *GreenhouseFiller) Name() string { return "greenhouse" }

// Apply runs the Greenhouse application flow as a fixed step sequence.
// Any step failure is classified and routed through manual intervention,
// so the returned status is always terminal.
func (f *GreenhouseFiller) Apply(ctx context.Context) (domain.JobStatus, error) {
	steps := []step{
		{"navigate_to_start", f.navigateToStart},
		{"fill_basic_info", f.fillBasicInfo},
		{"upload_documents", f.uploadDocuments},
		{"answer_custom_questions", f.answerCustomQuestions},
		{"review_and_submit", f.reviewAndSubmit},
	}
	return f.run(ctx, steps)
}

func (f *GreenhouseFiller) fillBasicInfo(ctx, tab context.Context) error {
	html, err := f.sectionHTML(tab, greenhouseFormLocator)
	if err != nil {
		return err
	}
	analysis, err := f.engine.Analyze(ctx, html, prompts.BasicInfoPrompt, "basic_info_"+f.req.Job.PrimaryIdentifier)
	if err != nil {
		return err
	}
	return f.executeFieldInstructions(ctx, tab, analysis.Fields)
}

func (f *GreenhouseFiller) uploadDocuments(ctx, tab context.Context) error {
	if err := f.uploadResume(ctx, tab, greenhouseResumeLocators); err != nil {
		return err
	}
	f.uploadCoverLetter(tab)
	return nil
}

func (f *GreenhouseFiller) answerCustomQuestions(ctx, tab context.Context) error {
	f.declineEEOQuestions(tab)

	html, err := f.sectionHTML(tab, greenhouseFormLocator)
	if err != nil {
		return err
	}
	analysis, err := f.engine.Analyze(ctx, html, prompts.CustomQuestionsPrompt, "custom_questions_"+f.req.Job.PrimaryIdentifier)
	if err != nil {
		return err
	}
	return f.answerQuestions(ctx, tab, analysis.Questions)
}

func (f *GreenhouseFiller) reviewAndSubmit(ctx, tab context.Context) error {
	return f.submitAndConfirm(tab, greenhouseSubmitLocators, greenhouseConfirmationMarkers)
}
