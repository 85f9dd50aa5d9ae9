package domain

import "time"

// JobStatus tracks a job record through the application pipeline.
type JobStatus string

const (
	StatusNew                  JobStatus = "new"
	StatusProcessing           JobStatus = "processing"
	StatusTailoringFailed      JobStatus = "tailoring_failed"
	StatusGenerationFailed     JobStatus = "generation_failed"
	StatusDocsReady            JobStatus = "docs_ready"
	StatusInProgress           JobStatus = "application_in_progress"
	StatusAppliedSuccess       JobStatus = "applied_success"
	StatusFailedATS            JobStatus = "application_failed_ats"
	StatusFailedATSStep        JobStatus = "application_failed_ats_step"
	StatusFailedUnexpected     JobStatus = "application_failed_unexpected"
	StatusManualSubmitted      JobStatus = "manual_intervention_submitted_by_user"
	StatusManualClosed         JobStatus = "manual_intervention_closed_by_user"
	StatusEasyApplyProcessed   JobStatus = "easy_apply_processed"
	StatusErrorUnknown         JobStatus = "error_unknown"
)

// Terminal reports whether no further automated processing applies to the status.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusAppliedSuccess,
		StatusFailedATS,
		StatusFailedATSStep,
		StatusFailedUnexpected,
		StatusManualSubmitted,
		StatusManualClosed,
		StatusEasyApplyProcessed,
		StatusErrorUnknown:
		return true
	}
	return false
}

// Succeeded reports whether the status counts as a submitted application.
func (s JobStatus) Succeeded() bool {
	return s == StatusAppliedSuccess || s == StatusManualSubmitted
}

// JobRecord is a single job posting moving through the pipeline.
type JobRecord struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PrimaryIdentifier string    `gorm:"type:varchar(512);uniqueIndex;not null" json:"primary_identifier"`
	Title             string    `gorm:"type:varchar(512)" json:"title"`
	Company           string    `gorm:"type:varchar(255)" json:"company"`
	Location          string    `gorm:"type:varchar(255)" json:"location"`
	Description       string    `gorm:"type:text" json:"description"`

	// ApplicationURL empty means the posting was applied to inline on the
	// source board (easy apply) and there is no external form to fill.
	ApplicationURL string `gorm:"type:varchar(1024)" json:"application_url"`

	Status       JobStatus `gorm:"type:varchar(64);index;default:'new'" json:"status"`
	StatusReason string    `gorm:"type:text" json:"status_reason"`

	ResumePDFPath      string `gorm:"type:varchar(1024)" json:"resume_pdf_path"`
	CoverLetterPDFPath string `gorm:"type:varchar(1024)" json:"cover_letter_pdf_path"`
	OutputDir          string `gorm:"type:varchar(1024)" json:"output_dir"`

	ErrorLog        string     `gorm:"type:text" json:"error_log"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	LastAttemptedAt *time.Time `json:"last_attempted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the default table name
func (JobRecord) TableName() string {
	return "job_records"
}
