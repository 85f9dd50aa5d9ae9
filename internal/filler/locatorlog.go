package filler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kweiss/applyflow/internal/logger"
)

// LocatorRecord is one AI-identified locator, persisted for auditing which
// selectors the model produced per platform and page.
type LocatorRecord struct {
	Timestamp    string `json:"timestamp"`
	JobID        string `json:"job_id"`
	ATSPlatform  string `json:"ats_platform"`
	PageContext  string `json:"page_context"`
	FieldLabel   string `json:"field_label_or_description"`
	LocatorType  string `json:"locator_type"`
	LocatorValue string `json:"locator_value"`
	Source       string `json:"source"`
}

// LocatorLog appends AI-identified locators to a JSONL file, one record per
// line so concurrent runs never corrupt the file.
type LocatorLog struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

// NewLocatorLog creates the audit log, ensuring its directory exists.
func NewLocatorLog(path string) *LocatorLog {
	if path != "" {
		_ = os.MkdirAll(filepath.Dir(path), 0755)
	}
	return &LocatorLog{
		path: path,
		log:  logger.GetDefault().WithField(logger.FieldComponent, "locator_log"),
	}
}

// Record appends one locator entry. Locators that are not a ["type", "value"]
// pair are skipped. Write failures are logged, never propagated; auditing
// must not break an application attempt.
func (l *LocatorLog) Record(jobID, platform, context, label string, locator []string) {
	if l.path == "" {
		return
	}
	if len(locator) != 2 || locator[0] == "" || locator[1] == "" {
		l.log.WithField("label", label).Warn("Skipping invalid locator for audit log")
		return
	}

	record := LocatorRecord{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		JobID:        jobID,
		ATSPlatform:  platform,
		PageContext:  context,
		FieldLabel:   label,
		LocatorType:  strings.ToLower(locator[0]),
		LocatorValue: locator[1],
		Source:       "AI-generated",
	}

	line, err := json.Marshal(record)
	if err != nil {
		l.log.WithField("error", err).Error("Failed to marshal locator record")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.log.WithField("error", err).Error("Failed to open locator log file")
		return
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		l.log.WithField("error", err).Error("Failed to write locator record")
	}
}
