package automator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/filler"
	"github.com/kweiss/applyflow/internal/repository"
)

type stubFiller struct {
	status domain.JobStatus
	err    error
	panics bool
	called int
	onCall func()
}

func (s *stubFiller) Name() string { return "stub" }

func (s *stubFiller) Apply(ctx context.Context) (domain.JobStatus, error) {
	s.called++
	if s.onCall != nil {
		s.onCall()
	}
	if s.panics {
		panic("boom")
	}
	return s.status, s.err
}

func newTestAutomator(t *testing.T, stub *stubFiller) (*Automator, *repository.JobRepository) {
	t.Helper()
	// Named per test so parallel connections from gorm's pool share one
	// database without tests sharing state
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&domain.JobRecord{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	repo := repository.NewJobRepository(db)

	cfg := &config.AutomatorConfig{
		ProcessedDir:   t.TempDir(),
		RateLimitDelay: time.Second,
		Strategies:     []string{"platform"},
	}
	a := New(repo, nil, nil, nil, nil, cfg, &config.ProfileConfig{FirstName: "Ada"})
	a.sleep = func(time.Duration) {}
	if stub != nil {
		a.newFiller = func(req filler.Request, platform string) filler.Filler { return stub }
	}
	return a, repo
}

func seedJob(t *testing.T, repo *repository.JobRepository, url string) *domain.JobRecord {
	t.Helper()
	outputDir := filepath.Join(t.TempDir(), "acme_backend_engineer")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatalf("failed to create artifact dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "resume.pdf"), []byte("pdf"), 0o644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	job := &domain.JobRecord{
		PrimaryIdentifier: "acme-" + filepath.Base(t.TempDir()),
		Title:             "Backend Engineer",
		Company:           "Acme",
		ApplicationURL:    url,
		Status:            domain.StatusDocsReady,
		OutputDir:         outputDir,
		ResumePDFPath:     filepath.Join(outputDir, "resume.pdf"),
	}
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	return job
}

func TestAttemptApplicationSuccess(t *testing.T) {
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/1")

	a.AttemptApplication(context.Background(), job)

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if got.Status != domain.StatusAppliedSuccess {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusAppliedSuccess)
	}
	if got.SubmittedAt == nil {
		t.Error("submitted_at not stamped on success")
	}
	if got.LastAttemptedAt == nil {
		t.Error("last_attempted_at not stamped")
	}
	if !strings.Contains(got.OutputDir, string(os.PathSeparator)+bucketSuccess+string(os.PathSeparator)) {
		t.Errorf("output_dir %q not in success bucket", got.OutputDir)
	}
	if _, err := os.Stat(filepath.Join(got.OutputDir, "resume.pdf")); err != nil {
		t.Errorf("artifacts missing from archived folder: %v", err)
	}
	if stub.called != 1 {
		t.Errorf("filler called %d times, want 1", stub.called)
	}
}

func TestAttemptApplicationFailure(t *testing.T) {
	stub := &stubFiller{status: domain.StatusFailedATSStep}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "https://jobs.lever.co/acme/1")

	a.AttemptApplication(context.Background(), job)

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if got.Status != domain.StatusFailedATSStep {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusFailedATSStep)
	}
	if got.SubmittedAt != nil {
		t.Error("submitted_at stamped on failure")
	}
	if !strings.Contains(got.OutputDir, string(os.PathSeparator)+bucketFailure+string(os.PathSeparator)) {
		t.Errorf("output_dir %q not in failure bucket", got.OutputDir)
	}
}

func TestAttemptApplicationManualSubmission(t *testing.T) {
	stub := &stubFiller{status: domain.StatusManualSubmitted}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/2")

	a.AttemptApplication(context.Background(), job)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusManualSubmitted {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusManualSubmitted)
	}
	if got.SubmittedAt == nil {
		t.Error("manual submission should stamp submitted_at")
	}
	if !strings.Contains(got.OutputDir, string(os.PathSeparator)+bucketSuccess+string(os.PathSeparator)) {
		t.Errorf("output_dir %q not in success bucket", got.OutputDir)
	}
}

func TestAttemptApplicationEasyApply(t *testing.T) {
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "")

	a.AttemptApplication(context.Background(), job)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusEasyApplyProcessed {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusEasyApplyProcessed)
	}
	if !strings.Contains(got.OutputDir, string(os.PathSeparator)+bucketEasyApply+string(os.PathSeparator)) {
		t.Errorf("output_dir %q not in easy_apply bucket", got.OutputDir)
	}
	if stub.called != 0 {
		t.Error("filler must not run for easy apply jobs")
	}
}

func TestAttemptApplicationPanicBarrier(t *testing.T) {
	stub := &stubFiller{panics: true}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/3")

	a.AttemptApplication(context.Background(), job)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusFailedUnexpected {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusFailedUnexpected)
	}
	if !strings.Contains(got.ErrorLog, "panic") {
		t.Errorf("error_log %q missing panic detail", got.ErrorLog)
	}
}

func TestInProgressWrittenBeforeFiller(t *testing.T) {
	a, repo := newTestAutomator(t, nil)
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/4")

	var seen domain.JobStatus
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	stub.onCall = func() {
		current, err := repo.GetByID(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("failed to read job during fill: %v", err)
		}
		seen = current.Status
	}
	a.newFiller = func(req filler.Request, platform string) filler.Filler { return stub }

	a.AttemptApplication(context.Background(), job)

	if seen != domain.StatusInProgress {
		t.Errorf("status during fill = %q, want %q", seen, domain.StatusInProgress)
	}
}

func TestRunPacesBetweenJobs(t *testing.T) {
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	a, repo := newTestAutomator(t, stub)
	seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/5")
	seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/6")

	var sleeps int
	a.sleep = func(time.Duration) { sleeps++ }

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stub.called != 2 {
		t.Errorf("filler called %d times, want 2", stub.called)
	}
	if sleeps != 1 {
		t.Errorf("slept %d times between jobs, want 1", sleeps)
	}
}

func TestRunNoPendingJobs(t *testing.T) {
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	a, _ := newTestAutomator(t, stub)

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if stub.called != 0 {
		t.Error("filler ran without pending jobs")
	}
}

func TestAttemptApplicationRejectsMissingArtifacts(t *testing.T) {
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/8")

	// Simulate a record whose staging folder vanished between generation
	// and the application run
	if err := os.RemoveAll(job.OutputDir); err != nil {
		t.Fatalf("failed to remove artifact dir: %v", err)
	}

	a.AttemptApplication(context.Background(), job)

	got, err := repo.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("failed to reload job: %v", err)
	}
	if got.Status != domain.StatusErrorUnknown {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusErrorUnknown)
	}
	if stub.called != 0 {
		t.Error("filler must not run for a job that fails pre-checks")
	}
	if got.SubmittedAt != nil {
		t.Error("submitted_at stamped on a rejected job")
	}
}

func TestAttemptApplicationRejectsMissingResume(t *testing.T) {
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/9")

	if err := os.Remove(job.ResumePDFPath); err != nil {
		t.Fatalf("failed to remove resume: %v", err)
	}

	a.AttemptApplication(context.Background(), job)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusErrorUnknown {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusErrorUnknown)
	}
	if stub.called != 0 {
		t.Error("filler must not run without a resume document")
	}
}

func TestAttemptApplicationRejectsMissingPrimaryIdentifier(t *testing.T) {
	stub := &stubFiller{status: domain.StatusAppliedSuccess}
	a, repo := newTestAutomator(t, stub)
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/10")
	if err := repo.UpdateFields(context.Background(), job.ID, map[string]interface{}{"primary_identifier": ""}); err != nil {
		t.Fatalf("failed to clear identifier: %v", err)
	}
	job.PrimaryIdentifier = ""

	a.AttemptApplication(context.Background(), job)

	got, _ := repo.GetByID(context.Background(), job.ID)
	if got.Status != domain.StatusErrorUnknown {
		t.Errorf("status = %q, want %q", got.Status, domain.StatusErrorUnknown)
	}
	if stub.called != 0 {
		t.Error("filler must not run a record without an identifier")
	}
	if !strings.Contains(got.StatusReason, "identifier") {
		t.Errorf("status_reason %q should explain the rejection", got.StatusReason)
	}
}

func TestCopyTreePreservesNestedArtifacts(t *testing.T) {
	src := filepath.Join(t.TempDir(), "acme_backend_engineer")
	if err := os.MkdirAll(filepath.Join(src, "attachments"), 0o755); err != nil {
		t.Fatalf("failed to create source tree: %v", err)
	}
	files := map[string]string{
		"resume.pdf":                 "resume",
		"cover_letter.pdf":           "cover",
		"attachments/transcript.pdf": "transcript",
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(src, name), []byte(body), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	dest := filepath.Join(t.TempDir(), "copied")
	if err := copyTree(src, dest); err != nil {
		t.Fatalf("copyTree returned error: %v", err)
	}

	for name, body := range files {
		got, err := os.ReadFile(filepath.Join(dest, name))
		if err != nil {
			t.Fatalf("missing copied file %s: %v", name, err)
		}
		if string(got) != body {
			t.Errorf("%s = %q, want %q", name, got, body)
		}
	}
}

func TestMoveProcessedFolderReplacesStaleDestination(t *testing.T) {
	a, repo := newTestAutomator(t, &stubFiller{status: domain.StatusAppliedSuccess})
	job := seedJob(t, repo, "https://boards.greenhouse.io/acme/jobs/7")

	// A prior attempt left a folder with the same name in the bucket
	stale := filepath.Join(a.cfg.ProcessedDir, bucketSuccess, filepath.Base(job.OutputDir))
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatalf("failed to create stale destination: %v", err)
	}
	if err := os.WriteFile(filepath.Join(stale, "old.pdf"), []byte("old"), 0o644); err != nil {
		t.Fatalf("failed to write stale artifact: %v", err)
	}

	dest, err := a.moveProcessedFolder(job, bucketSuccess)
	if err != nil {
		t.Fatalf("moveProcessedFolder returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "old.pdf")); !os.IsNotExist(err) {
		t.Error("stale artifact survived the move")
	}
	if _, err := os.Stat(filepath.Join(dest, "resume.pdf")); err != nil {
		t.Errorf("fresh artifact missing after move: %v", err)
	}
}
