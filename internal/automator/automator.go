package automator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kweiss/applyflow/internal/ats"
	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/filler"
	"github.com/kweiss/applyflow/internal/llm"
	"github.com/kweiss/applyflow/internal/logger"
	"github.com/kweiss/applyflow/internal/repository"
)

// Processed artifact buckets under the processed directory.
const (
	bucketSuccess   = "success"
	bucketFailure   = "failure"
	bucketEasyApply = "easy_apply"
)

// Automator drains jobs with generated documents through the application
// pipeline: platform identification, automated form filling, manual
// intervention when automation fails, and final artifact archiving.
type Automator struct {
	repo      *repository.JobRepository
	session   *browser.SessionManager
	decisions filler.DecisionChannel
	llm       llm.Client
	audit     *filler.LocatorLog
	cfg       *config.AutomatorConfig
	profile   *config.ProfileConfig
	log       *logger.Logger

	// newFiller is swapped in tests to avoid a real browser and model
	newFiller func(req filler.Request, platform string) filler.Filler
	sleep     func(time.Duration)
}

// New creates an Automator.
//
// Parameters:
//   - repo: job record repository
//   - session: shared browser session manager
//   - decisions: operator input channel for manual intervention
//   - client: LLM client shared across jobs
//   - audit: AI locator audit sink
//   - cfg: automator settings (processed dir, pacing, strategies)
//   - profile: candidate profile used to fill forms
//
// Returns:
//   - *Automator: the configured orchestrator
func New(repo *repository.JobRepository, session *browser.SessionManager, decisions filler.DecisionChannel,
	client llm.Client, audit *filler.LocatorLog, cfg *config.AutomatorConfig, profile *config.ProfileConfig) *Automator {
	a := &Automator{
		repo:      repo,
		session:   session,
		decisions: decisions,
		llm:       client,
		audit:     audit,
		cfg:       cfg,
		profile:   profile,
		log:       logger.GetDefault().WithField(logger.FieldComponent, "automator"),
		sleep:     time.Sleep,
	}
	a.newFiller = func(req filler.Request, platform string) filler.Filler {
		return filler.NewHybridFiller(req, platform, client, cfg, audit)
	}
	return a
}

// Run processes every job whose documents are ready, pacing attempts so
// consecutive submissions to the same boards do not look automated.
//
// Parameters:
//   - ctx: run context; cancellation stops after the current job.
//
// Returns:
//   - error: non-nil if the pending jobs could not be listed.
func (a *Automator) Run(ctx context.Context) error {
	jobs, err := a.repo.ListByStatuses(ctx, []domain.JobStatus{domain.StatusDocsReady}, 0)
	if err != nil {
		return fmt.Errorf("failed to list applicable jobs: %w", err)
	}
	if len(jobs) == 0 {
		a.log.Info("No jobs with documents ready")
		return nil
	}
	a.log.WithField(logger.FieldCount, len(jobs)).Info("Starting application run")

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			a.log.Warn("Run cancelled, stopping")
			return err
		}
		if i > 0 {
			a.sleep(a.cfg.RateLimitDelay)
		}
		a.AttemptApplication(ctx, &jobs[i])
	}
	a.log.Info("Application run complete")
	return nil
}

// AttemptApplication runs the full pipeline for one job and always leaves
// the record in a terminal status. Errors are absorbed into the record's
// status, reason and error log rather than returned, so one bad job never
// stops the run.
func (a *Automator) AttemptApplication(ctx context.Context, job *domain.JobRecord) {
	log := a.log.WithFields(logger.Fields{
		logger.FieldJobID: job.PrimaryIdentifier,
		"company":         job.Company,
		"title":           job.Title,
	})

	now := time.Now().UTC()
	if err := a.repo.MarkAttempted(ctx, job.ID, now); err != nil {
		log.WithField("error", err.Error()).Error("Failed to mark attempt, skipping job")
		return
	}

	// A record missing its identifier or its generated documents cannot be
	// applied with; park it as unknown instead of driving the browser.
	if reason := validateJob(job); reason != "" {
		log.WithField("error", reason).Error("Job failed pre-checks")
		a.finishInvalid(ctx, job, reason, log)
		return
	}

	// Jobs without an external application URL are applied to inside the
	// source platform itself; only the artifacts need archiving.
	if job.ApplicationURL == "" {
		a.finishEasyApply(ctx, job, log)
		return
	}

	if err := a.repo.UpdateStatus(ctx, job.ID, domain.StatusInProgress, "automated application started"); err != nil {
		log.WithField("error", err.Error()).Error("Failed to set in-progress status, skipping job")
		return
	}

	platform := ats.Identify(job.ApplicationURL)
	log = log.WithField(logger.FieldPlatform, platform)
	log.Info("Attempting application")

	status, errLog := a.runFiller(ctx, job, platform)
	a.finish(ctx, job, status, errLog, log)
}

// validateJob checks that a record carries everything an application attempt
// needs. Returns an empty string when the record is usable, otherwise the
// reason it is not.
func validateJob(job *domain.JobRecord) string {
	if job.PrimaryIdentifier == "" {
		return "job record has no primary identifier"
	}
	if job.OutputDir == "" {
		return "job record has no output directory"
	}
	if _, err := os.Stat(job.OutputDir); err != nil {
		return fmt.Sprintf("output directory %s is not accessible", job.OutputDir)
	}
	if job.ResumePDFPath == "" {
		return "job record has no resume document"
	}
	if _, err := os.Stat(job.ResumePDFPath); err != nil {
		return fmt.Sprintf("resume document %s is not accessible", job.ResumePDFPath)
	}
	return ""
}

// finishInvalid parks a record that failed pre-checks. Its artifacts, if
// any, stay where they are so the problem can be inspected and repaired.
func (a *Automator) finishInvalid(ctx context.Context, job *domain.JobRecord, reason string, log *logger.Logger) {
	fields := map[string]interface{}{
		"status":            domain.StatusErrorUnknown,
		"status_reason":     reason,
		"error_log":         reason,
		"last_attempted_at": time.Now().UTC(),
	}
	if err := a.repo.UpdateFields(ctx, job.ID, fields); err != nil {
		log.WithField("error", err.Error()).Error("Failed to write pre-check status")
		return
	}
	log.WithField(logger.FieldStatus, string(domain.StatusErrorUnknown)).Info("Application finished")
}

// runFiller executes the filler behind a panic barrier. A panic inside the
// browser or model stack must not take down the whole run.
func (a *Automator) runFiller(ctx context.Context, job *domain.JobRecord, platform string) (status domain.JobStatus, errLog string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithFields(logger.Fields{
				logger.FieldJobID: job.PrimaryIdentifier,
				"panic":           fmt.Sprint(r),
			}).Error("Filler panicked")
			status = domain.StatusFailedUnexpected
			errLog = fmt.Sprintf("panic during application: %v", r)
		}
	}()

	req := filler.Request{
		Job:       job,
		Profile:   a.profile,
		Session:   a.session,
		Decisions: a.decisions,
	}
	status, err := a.newFiller(req, platform).Apply(ctx)
	if err != nil {
		errLog = err.Error()
		if status == "" {
			status = filler.ClassifiedStatus(err)
		}
	}
	return status, errLog
}

// finish archives the job's artifacts and writes the terminal status. The
// move happens before the status write: a record must never claim an
// outcome whose artifacts are still in the staging area.
func (a *Automator) finish(ctx context.Context, job *domain.JobRecord, status domain.JobStatus, errLog string, log *logger.Logger) {
	bucket := bucketFailure
	if status.Succeeded() {
		bucket = bucketSuccess
	}

	outputDir, moveErr := a.moveProcessedFolder(job, bucket)
	if moveErr != nil {
		log.WithField("error", moveErr.Error()).Error("Failed to archive artifacts")
		if errLog != "" {
			errLog += "; "
		}
		errLog += "artifact move failed: " + moveErr.Error()
	}

	fields := map[string]interface{}{
		"status":            status,
		"status_reason":     reasonFor(status),
		"error_log":         errLog,
		"last_attempted_at": time.Now().UTC(),
	}
	if outputDir != "" {
		fields["output_dir"] = outputDir
	}
	if status.Succeeded() {
		fields["submitted_at"] = time.Now().UTC()
	}
	if err := a.repo.UpdateFields(ctx, job.ID, fields); err != nil {
		log.WithField("error", err.Error()).Error("Failed to write final status")
		return
	}
	log.WithField(logger.FieldStatus, string(status)).Info("Application finished")
}

func (a *Automator) finishEasyApply(ctx context.Context, job *domain.JobRecord, log *logger.Logger) {
	outputDir, moveErr := a.moveProcessedFolder(job, bucketEasyApply)

	fields := map[string]interface{}{
		"status":            domain.StatusEasyApplyProcessed,
		"status_reason":     "documents prepared for in-platform application",
		"last_attempted_at": time.Now().UTC(),
	}
	if outputDir != "" {
		fields["output_dir"] = outputDir
	}
	if moveErr != nil {
		log.WithField("error", moveErr.Error()).Error("Failed to archive easy apply artifacts")
		fields["error_log"] = "artifact move failed: " + moveErr.Error()
	}
	if err := a.repo.UpdateFields(ctx, job.ID, fields); err != nil {
		log.WithField("error", err.Error()).Error("Failed to write easy apply status")
		return
	}
	log.Info("Easy apply job archived")
}

// moveProcessedFolder relocates the job's artifact folder into the given
// bucket under the processed directory. A pre-existing destination from an
// earlier attempt is replaced.
func (a *Automator) moveProcessedFolder(job *domain.JobRecord, bucket string) (string, error) {
	if job.OutputDir == "" {
		return "", nil
	}
	if _, err := os.Stat(job.OutputDir); os.IsNotExist(err) {
		return "", fmt.Errorf("artifact folder %s does not exist", job.OutputDir)
	}

	destDir := filepath.Join(a.cfg.ProcessedDir, bucket)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create bucket %s: %w", destDir, err)
	}

	dest := filepath.Join(destDir, filepath.Base(job.OutputDir))
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to clear stale destination %s: %w", dest, err)
	}
	if err := moveDir(job.OutputDir, dest); err != nil {
		return "", fmt.Errorf("failed to move %s to %s: %w", job.OutputDir, dest, err)
	}
	return dest, nil
}

// moveDir renames src to dest, falling back to copy and delete when the
// processed directory lives on a different filesystem than the staging area.
func moveDir(src, dest string) error {
	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) || !errors.Is(linkErr.Err, syscall.EXDEV) {
		return err
	}
	if err := copyTree(src, dest); err != nil {
		return err
	}
	return os.RemoveAll(src)
}

func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func reasonFor(status domain.JobStatus) string {
	switch status {
	case domain.StatusAppliedSuccess:
		return "application submitted automatically"
	case domain.StatusManualSubmitted:
		return "application submitted manually by operator"
	case domain.StatusManualClosed:
		return "application abandoned by operator"
	case domain.StatusFailedATS:
		return "automated application failed on the ATS"
	case domain.StatusFailedATSStep:
		return "an application step failed"
	case domain.StatusFailedUnexpected:
		return "unexpected failure during application"
	default:
		return string(status)
	}
}
