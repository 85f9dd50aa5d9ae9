package filler

import (
	"context"

	"github.com/kweiss/applyflow/internal/browser"
	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/domain"
)

// Filler performs the actual form filling for one job against one ATS.
// Apply runs a complete attempt and returns a terminal status. Classified
// failures are resolved through manual intervention inside Apply; an error
// is returned only when the attempt could not produce any terminal outcome.
type Filler interface {
	Name() string
	Apply(ctx context.Context) (domain.JobStatus, error)
}

// Request bundles everything a filling strategy needs for one attempt.
type Request struct {
	Job       *domain.JobRecord
	Profile   *config.ProfileConfig
	Session   *browser.SessionManager
	Decisions DecisionChannel
}
