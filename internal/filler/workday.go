package filler

import (
	"context"
	"fmt"
	"time"

	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/logger"
	"github.com/kweiss/applyflow/internal/prompts"
)

// maxWorkdayPages bounds the Next/Continue page loop. Workday flows are
// typically 4 to 6 pages; anything past this is a loop that never reaches
// the submit page.
const maxWorkdayPages = 10

// workdayStartLocators open the actual application from a job posting page.
// "Apply Manually" is preferred over autofill, which produces unreviewable
// field values.
var workdayStartLocators = []browser.Locator{
	{"xpath", "//a[@data-automation-id='applyManually']"},
	{"xpath", "//button[contains(., 'Apply Manually')]"},
	{"xpath", "//a[@data-automation-id='adventureButton']"},
	{"xpath", "//button[contains(., 'Apply')]"},
	{"xpath", "//a[contains(., 'Apply')]"},
}

var workdayResumeLocators = []browser.Locator{
	{"xpath", "//input[@data-automation-id='file-upload-input-ref']"},
	{"xpath", "//input[@type='file' and contains(@accept, 'pdf')]"},
	{"css", "input[type='file']"},
}

var workdayNextLocators = []browser.Locator{
	{"xpath", "//button[@data-automation-id='bottom-navigation-next-button']"},
	{"xpath", "//button[contains(., 'Next')]"},
	{"xpath", "//button[contains(., 'Continue')]"},
	{"xpath", "//button[contains(., 'Save and Continue')]"},
}

var workdaySubmitLocators = []browser.Locator{
	{"xpath", "//button[@data-automation-id='bottom-navigation-next-button' and contains(., 'Submit')]"},
	{"xpath", "//button[contains(., 'Submit')]"},
}

var workdayConfirmationMarkers = []string{
	"Application Submitted",
	"You've submitted your application",
	"Thank you for applying",
	"We have received your application",
	"Congratulations",
}

// WorkdayFiller fills applications hosted on Workday career sites. Unlike
// Greenhouse's single form, Workday splits the application across several
// Next/Continue pages, so the fill phase loops until the submit page.
type WorkdayFiller struct {
	stepFiller
}

// NewWorkdayFiller builds a filler for Workday-hosted applications.
//
// Parameters:
//   - req: the application request (job, profile, browser session, decisions)
//   - engine: the form analysis engine to use for field discovery
//
// Returns:
//   - *WorkdayFiller: the configured filler
func NewWorkdayFiller(req Request, engine *Engine) *WorkdayFiller {
	return &WorkdayFiller{stepFiller: newStepFiller(req, engine, "workday")}
}

func (f *WorkdayFiller) Name() string { return "workday" }

// Apply runs the Workday application flow. The returned status is always
// terminal.
func (f *WorkdayFiller) Apply(ctx context.Context) (domain.JobStatus, error) {
	steps := []step{
		{"navigate_to_start", f.navigateToStart},
		{"start_application", f.startApplication},
		{"upload_documents", f.uploadDocuments},
		{"fill_application_pages", f.fillApplicationPages},
		{"review_and_submit", f.reviewAndSubmit},
	}
	return f.run(ctx, steps)
}

// startApplication clicks through from the posting page into the form.
// Some Workday URLs land directly on the form, so a missing start button is
// not an error.
func (f *WorkdayFiller) startApplication(ctx, tab context.Context) error {
	for _, loc := range workdayStartLocators {
		if !f.dom.exists(tab, loc, shortWait) {
			continue
		}
		actx, cancel := context.WithTimeout(tab, defaultWait)
		err := f.dom.click(actx, loc)
		cancel()
		if err == nil {
			f.log.Info("Opened application form")
			time.Sleep(2 * time.Second)
			return nil
		}
	}
	f.log.Info("No start button found, assuming form is already open")
	return nil
}

func (f *WorkdayFiller) uploadDocuments(ctx, tab context.Context) error {
	if err := f.uploadResume(ctx, tab, workdayResumeLocators); err != nil {
		return err
	}
	f.uploadCoverLetter(tab)
	return nil
}

// fillApplicationPages fills the current page and advances with Next or
// Continue until the submit page is reached.
func (f *WorkdayFiller) fillApplicationPages(ctx, tab context.Context) error {
	for page := 1; page <= maxWorkdayPages; page++ {
		f.log.WithField("page", page).Info("Filling application page")
		if err := f.fillCurrentPage(ctx, tab, page); err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}

		if f.onSubmitPage(tab) {
			return nil
		}
		if !f.advancePage(tab) {
			// No Next button and no Submit button: the flow is stuck
			return fmt.Errorf("page %d: no way to advance", page)
		}
		time.Sleep(2 * time.Second)
	}
	return fmt.Errorf("did not reach submit page within %d pages", maxWorkdayPages)
}

func (f *WorkdayFiller) fillCurrentPage(ctx, tab context.Context, page int) error {
	f.declineEEOQuestions(tab)

	actx, cancel := context.WithTimeout(tab, defaultWait)
	html, err := f.dom.pageHTML(actx)
	cancel()
	if err != nil {
		return err
	}

	cacheKey := fmt.Sprintf("workday_page_%d_%s", page, f.req.Job.PrimaryIdentifier)
	analysis, err := f.engine.Analyze(ctx, html, prompts.BasicInfoPrompt, cacheKey)
	if err != nil {
		return err
	}
	if err := f.executeFieldInstructions(ctx, tab, analysis.Fields); err != nil {
		return err
	}

	questions, err := f.engine.Analyze(ctx, html, prompts.CustomQuestionsPrompt, "q_"+cacheKey)
	if err != nil {
		f.log.WithField("error", err.Error()).Warn("Question analysis failed, continuing with fields only")
		return nil
	}
	return f.answerQuestions(ctx, tab, questions.Questions)
}

func (f *WorkdayFiller) onSubmitPage(tab context.Context) bool {
	for _, loc := range workdaySubmitLocators {
		if f.dom.exists(tab, loc, time.Second) {
			return true
		}
	}
	return false
}

func (f *WorkdayFiller) advancePage(tab context.Context) bool {
	for _, loc := range workdayNextLocators {
		if !f.dom.exists(tab, loc, shortWait) {
			continue
		}
		actx, cancel := context.WithTimeout(tab, defaultWait)
		err := f.dom.click(actx, loc)
		cancel()
		if err == nil {
			return true
		}
		f.log.WithFields(logger.Fields{
			"locator": loc.Value(),
			"error":   err.Error(),
		}).Warn("Failed to advance page, trying next locator")
	}
	return false
}

func (f *WorkdayFiller) reviewAndSubmit(ctx, tab context.Context) error {
	return f.submitAndConfirm(tab, workdaySubmitLocators, workdayConfirmationMarkers)
}
