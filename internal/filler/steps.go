package filler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/logger"
	"github.com/kweiss/applyflow/internal/prompts"
)

const (
	defaultWait = 10 * time.Second
	shortWait   = 2 * time.Second
)

// step is one named phase of a platform filler's fixed sequence.
type step struct {
	name string
	fn   func(ctx, tab context.Context) error
}

// domActions abstracts the browser layer so the step machinery can be
// exercised without a live Chrome.
type domActions struct {
	navigate         func(ctx context.Context, url string) error
	pageHTML         func(ctx context.Context) (string, error)
	elementHTML      func(ctx context.Context, loc browser.Locator) (string, error)
	exists           func(ctx context.Context, loc browser.Locator, timeout time.Duration) bool
	click            func(ctx context.Context, loc browser.Locator) error
	typeText         func(ctx context.Context, loc browser.Locator, value string) error
	selectOption     func(ctx context.Context, loc browser.Locator, option string) error
	selectContaining func(ctx context.Context, loc browser.Locator, fragment string) error
	upload           func(ctx context.Context, loc browser.Locator, path string) error
	scroll           func(ctx context.Context) error
	bodyText         func(ctx context.Context) (string, error)
}

func liveDOM() domActions {
	return domActions{
		navigate:         browser.Navigate,
		pageHTML:         browser.PageHTML,
		elementHTML:      browser.ElementHTML,
		exists:           browser.Exists,
		click:            browser.Click,
		typeText:         browser.Type,
		selectOption:     browser.SelectOption,
		selectContaining: browser.SelectOptionContaining,
		upload:           browser.Upload,
		scroll:           browser.ScrollToBottom,
		bodyText:         browser.BodyText,
	}
}

// stepFiller carries the machinery shared by per-platform step fillers:
// field instruction execution, document upload fast paths, EEO handling,
// and the classify-then-intervene run loop.
type stepFiller struct {
	req      Request
	engine   *Engine
	platform string
	dom      domActions
	log      *logger.Logger
}

func newStepFiller(req Request, engine *Engine, platform string) stepFiller {
	return stepFiller{
		req:      req,
		engine:   engine,
		platform: platform,
		dom:      liveDOM(),
		log: logger.GetDefault().
			WithField(logger.FieldComponent, "filler").
			WithPlatform(platform).
			WithJob(req.Job.PrimaryIdentifier),
	}
}

// run executes the step sequence and converts any classified failure into a
// manual intervention checkpoint. The returned status is always terminal.
func (s *stepFiller) run(ctx context.Context, steps []step) (domain.JobStatus, error) {
	tab, err := s.req.Session.Context(ctx)
	if err != nil {
		return domain.StatusFailedUnexpected, fmt.Errorf("browser session unavailable: %w", err)
	}

	stepErr := s.executeSteps(ctx, tab, steps)
	if stepErr == nil {
		return domain.StatusAppliedSuccess, nil
	}

	var appErr *AppError
	if !errors.As(stepErr, &appErr) {
		appErr = WrapAppError("unexpected failure during application", domain.StatusFailedUnexpected, stepErr)
	}

	status := ResolveManually(ctx, s.req.Decisions, s.req.Session.Alive, appErr.Status, appErr.Error())
	return status, nil
}

func (s *stepFiller) executeSteps(ctx, tab context.Context, steps []step) error {
	for _, st := range steps {
		s.log.WithField(logger.FieldStep, st.name).Info("Running step")
		start := time.Now()
		if err := st.fn(ctx, tab); err != nil {
			s.log.WithFields(logger.Fields{
				logger.FieldStep: st.name,
				"error":          err.Error(),
			}).Error("Step failed")
			var appErr *AppError
			if errors.As(err, &appErr) {
				return err
			}
			return WrapAppError(st.name+" step failed", domain.StatusFailedATSStep, err)
		}
		s.log.WithFields(logger.Fields{
			logger.FieldStep:       st.name,
			logger.FieldDurationMs: time.Since(start).Milliseconds(),
		}).Info("Step completed")
	}
	return nil
}

// navigateToStart opens the application URL.
func (s *stepFiller) navigateToStart(ctx, tab context.Context) error {
	url := s.req.Job.ApplicationURL
	actx, cancel := context.WithTimeout(tab, 30*time.Second)
	defer cancel()
	if err := s.dom.navigate(actx, url); err != nil {
		return WrapAppError("failed to navigate to application", domain.StatusFailedATS, err)
	}
	return nil
}

// sectionHTML fetches the HTML to analyze: the given section if present,
// otherwise the whole page.
func (s *stepFiller) sectionHTML(tab context.Context, section browser.Locator) (string, error) {
	if s.dom.exists(tab, section, shortWait) {
		html, err := s.dom.elementHTML(tab, section)
		if err == nil && len(html) > 0 {
			return html, nil
		}
	}
	actx, cancel := context.WithTimeout(tab, defaultWait)
	defer cancel()
	return s.dom.pageHTML(actx)
}

// executeFieldInstructions applies discovered field instructions one by one.
// A failure on a required field fails the step; optional fields are skipped
// with a log line.
func (s *stepFiller) executeFieldInstructions(ctx, tab context.Context, fields []FieldInstruction) error {
	if len(fields) == 0 {
		s.log.Info("No field instructions to execute")
		return nil
	}

	var failed []string
	for _, field := range fields {
		if err := s.fillField(ctx, tab, field); err != nil {
			if field.Required {
				s.log.WithFields(logger.Fields{
					"label": field.Label,
					"error": err.Error(),
				}).Error("Required field failed")
				failed = append(failed, field.Label)
			} else {
				s.log.WithFields(logger.Fields{
					"label": field.Label,
					"error": err.Error(),
				}).Warn("Optional field skipped")
			}
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("required fields failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func (s *stepFiller) fillField(ctx, tab context.Context, field FieldInstruction) error {
	if len(field.Locator) != 2 {
		return fmt.Errorf("missing locator for field %q", field.Label)
	}
	loc := browser.Locator{field.Locator[0], field.Locator[1]}

	actx, cancel := context.WithTimeout(tab, defaultWait)
	defer cancel()

	switch field.Type {
	case "text", "textarea", "email", "tel", "":
		value, err := s.fieldValue(ctx, field)
		if err != nil {
			return err
		}
		if value == "" {
			if field.Required {
				return fmt.Errorf("no value for required field %q", field.Label)
			}
			return nil
		}
		return s.dom.typeText(actx, loc, value)
	case "select":
		value, err := s.fieldValue(ctx, field)
		if err != nil {
			return err
		}
		if value == "" {
			if field.Required {
				return fmt.Errorf("no value for required select %q", field.Label)
			}
			return nil
		}
		return s.dom.selectOption(actx, loc, value)
	case "radio", "checkbox":
		// The locator points at the specific option to pick
		return s.dom.click(actx, loc)
	case "file":
		path := s.documentPath(field.DocumentType)
		if path == "" {
			if field.Required {
				return fmt.Errorf("no document available for required file field %q", field.Label)
			}
			return nil
		}
		return s.dom.upload(actx, loc, path)
	default:
		s.log.WithFields(logger.Fields{
			"label": field.Label,
			"type":  field.Type,
		}).Warn("No handler for field type, skipping")
		return nil
	}
}

// fieldValue resolves the value to fill: the analysis suggestion when
// present, otherwise a one-off generation for required fields.
func (s *stepFiller) fieldValue(ctx context.Context, field FieldInstruction) (string, error) {
	if field.Value != "" {
		return field.Value, nil
	}
	if !field.Required {
		return "", nil
	}
	value, err := s.engine.GenerateFieldValue(ctx, field.Label, field.Type, field.Required)
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *stepFiller) documentPath(docType string) string {
	switch docType {
	case "cover_letter":
		return s.req.Job.CoverLetterPDFPath
	default:
		return s.req.Job.ResumePDFPath
	}
}

// answerQuestions applies discovered screening-question instructions.
// Sensitive questions without a drafted answer are declined rather than
// answered; a question the decline scan cannot resolve falls through to
// the regular handlers.
func (s *stepFiller) answerQuestions(ctx, tab context.Context, questions []QuestionInstruction) error {
	if len(questions) == 0 {
		s.log.Info("No custom questions to answer")
		return nil
	}

	var failed []string
	for _, q := range questions {
		if len(q.Locator) != 2 {
			s.log.WithField("question", q.Text).Warn("No locator for question, skipping")
			continue
		}
		loc := browser.Locator{q.Locator[0], q.Locator[1]}

		if q.Sensitive && q.Answer == "" {
			if s.declineSensitive(tab, q, loc) {
				continue
			}
			s.log.WithField("question", q.Text).Warn("No decline option found for sensitive question")
		}

		actx, cancel := context.WithTimeout(tab, defaultWait)
		var err error
		switch q.Type {
		case "text", "textarea":
			if q.Answer != "" {
				err = s.dom.typeText(actx, loc, q.Answer)
			}
		case "radio", "checkbox":
			err = s.dom.click(actx, loc)
		case "select":
			if q.Answer != "" {
				err = s.dom.selectOption(actx, loc, q.Answer)
			}
		default:
			s.log.WithFields(logger.Fields{
				"question": q.Text,
				"type":     q.Type,
			}).Warn("Unsupported question type, skipping")
		}
		cancel()

		if err != nil {
			s.log.WithFields(logger.Fields{
				"question": q.Text,
				"error":    err.Error(),
			}).Error("Failed to answer question")
			failed = append(failed, q.Text)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to answer questions: %s", strings.Join(failed, "; "))
	}
	return nil
}

// declineSensitive answers a demographic question with a decline option
// instead of generated text. For selects it scans the options for any of
// the decline phrases; for radio or checkbox inputs the discovered locator
// already points at the option to pick.
func (s *stepFiller) declineSensitive(tab context.Context, q QuestionInstruction, loc browser.Locator) bool {
	switch q.Type {
	case "select":
		for _, phrase := range eeoDeclinePhrases {
			actx, cancel := context.WithTimeout(tab, shortWait)
			err := s.dom.selectContaining(actx, loc, phrase)
			cancel()
			if err == nil {
				s.log.WithField("question", q.Text).Info("Declined sensitive question")
				return true
			}
		}
	case "radio", "checkbox":
		actx, cancel := context.WithTimeout(tab, shortWait)
		defer cancel()
		if err := s.dom.click(actx, loc); err == nil {
			s.log.WithField("question", q.Text).Info("Declined sensitive question")
			return true
		}
	}
	return false
}

// eeoDeclinePhrases are the option labels used to decline optional
// demographic self-identification questions.
var eeoDeclinePhrases = []string{
	"decline to self-identify",
	"prefer not to say",
	"i don't wish to answer",
	"choose not to disclose",
	"do not wish to provide",
	"decline to answer",
}

// declineEEOQuestions clicks any visible decline options for demographic
// questions. Best effort: forms without EEO sections are not an error.
func (s *stepFiller) declineEEOQuestions(tab context.Context) {
	clicked := 0
	for _, phrase := range eeoDeclinePhrases {
		xpath := fmt.Sprintf(
			`//label[contains(translate(normalize-space(.), 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), %q)]`,
			phrase)
		loc := browser.Locator{"xpath", xpath}
		if !s.dom.exists(tab, loc, time.Second) {
			continue
		}
		actx, cancel := context.WithTimeout(tab, shortWait)
		err := s.dom.click(actx, loc)
		cancel()
		if err == nil {
			clicked++
		}
	}
	if clicked > 0 {
		s.log.WithField(logger.FieldCount, clicked).Info("Declined EEO self-identification questions")
	}
}

// uploadResume tries hand-written locators first and only falls back to a
// full-page analysis when they all miss, because upload inputs are fairly
// standardized and a full-page analysis is the most expensive call in the
// pipeline.
func (s *stepFiller) uploadResume(ctx, tab context.Context, fastPath []browser.Locator) error {
	resumePath := s.req.Job.ResumePDFPath
	if resumePath == "" {
		return errors.New("no resume path on job record")
	}

	for _, loc := range fastPath {
		if !s.dom.exists(tab, loc, shortWait) {
			continue
		}
		actx, cancel := context.WithTimeout(tab, defaultWait)
		err := s.dom.upload(actx, loc, resumePath)
		cancel()
		if err == nil {
			s.log.Info("Resume uploaded via fast-path locator")
			return nil
		}
		s.log.WithField("error", err.Error()).Warn("Fast-path resume upload failed, trying next locator")
	}

	// Fall back to AI discovery of the upload input
	html, err := s.sectionHTML(tab, browser.Locator{"id", "application_form"})
	if err != nil {
		return fmt.Errorf("failed to read form HTML for resume analysis: %w", err)
	}
	analysis, err := s.engine.Analyze(ctx, html, prompts.ResumeLocatorPrompt, "resume_upload_locator_"+s.req.Job.PrimaryIdentifier)
	if err != nil {
		return fmt.Errorf("resume locator analysis failed: %w", err)
	}
	if len(analysis.Locator) != 2 {
		return errors.New("no resume upload field identified")
	}

	loc := browser.Locator{analysis.Locator[0], analysis.Locator[1]}
	actx, cancel := context.WithTimeout(tab, defaultWait)
	defer cancel()
	if err := s.dom.upload(actx, loc, resumePath); err != nil {
		return fmt.Errorf("AI-located resume upload failed: %w", err)
	}
	s.log.Info("Resume uploaded via AI-identified locator")
	return nil
}

// coverLetterLocators are the common patterns for cover letter inputs.
var coverLetterLocators = []browser.Locator{
	{"xpath", "//input[@type='file' and (contains(@name, 'cover') or contains(@id, 'cover') or contains(@aria-label, 'cover'))]"},
	{"xpath", "//label[contains(translate(., 'ABCDEFGHIJKLMNOPQRSTUVWXYZ', 'abcdefghijklmnopqrstuvwxyz'), 'cover letter')]/following-sibling::div//input[@type='file']"},
}

// uploadCoverLetter is best effort; cover letters are optional on most forms.
func (s *stepFiller) uploadCoverLetter(tab context.Context) {
	path := s.req.Job.CoverLetterPDFPath
	if path == "" {
		return
	}
	for _, loc := range coverLetterLocators {
		if !s.dom.exists(tab, loc, time.Second) {
			continue
		}
		actx, cancel := context.WithTimeout(tab, defaultWait)
		err := s.dom.upload(actx, loc, path)
		cancel()
		if err == nil {
			s.log.Info("Cover letter uploaded")
			return
		}
	}
	s.log.Info("No cover letter upload field found, skipping")
}

// submitAndConfirm clicks the first available submit control and then
// requires a confirmation marker in the page text. No marker means failure,
// even if the click went through: a false negative is recoverable through
// manual intervention, a false positive silently loses an application.
func (s *stepFiller) submitAndConfirm(tab context.Context, submitLocators []browser.Locator, confirmationMarkers []string) error {
	// Scroll through the form to trigger any lazy validation
	_ = s.dom.scroll(tab)
	time.Sleep(500 * time.Millisecond)

	var clicked bool
	for _, loc := range submitLocators {
		if !s.dom.exists(tab, loc, shortWait) {
			continue
		}
		actx, cancel := context.WithTimeout(tab, defaultWait)
		err := s.dom.click(actx, loc)
		cancel()
		if err == nil {
			clicked = true
			break
		}
		s.log.WithField("error", err.Error()).Warn("Submit click failed, trying next locator")
	}
	if !clicked {
		return errors.New("submit button not found")
	}

	time.Sleep(5 * time.Second)

	actx, cancel := context.WithTimeout(tab, defaultWait)
	defer cancel()
	text, err := s.dom.bodyText(actx)
	if err != nil {
		return fmt.Errorf("failed to read page after submission: %w", err)
	}
	lower := strings.ToLower(text)
	for _, marker := range confirmationMarkers {
		if strings.Contains(lower, strings.ToLower(marker)) {
			s.log.WithField("marker", marker).Info("Submission confirmed")
			saveConfirmationPDF(tab, s.req.Job.OutputDir, s.log)
			return nil
		}
	}
	return errors.New("no submission confirmation marker found on page")
}

// saveConfirmationPDF snapshots the confirmation page next to the job's
// other artifacts. Best effort: the submission already happened, so a
// failed snapshot is only logged.
func saveConfirmationPDF(tab context.Context, outputDir string, log *logger.Logger) {
	if outputDir == "" {
		return
	}
	actx, cancel := context.WithTimeout(tab, defaultWait)
	defer cancel()
	pdf, err := browser.PrintPDF(actx)
	if err != nil {
		log.WithField("error", err.Error()).Warn("Could not render confirmation page")
		return
	}
	path := filepath.Join(outputDir, "confirmation.pdf")
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		log.WithField("error", err.Error()).Warn("Could not save confirmation snapshot")
		return
	}
	log.Info("Confirmation page saved")
}
