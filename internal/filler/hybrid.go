package filler

import (
	"context"

	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/llm"
	"github.com/kweiss/applyflow/internal/logger"
)

// isFinal reports whether a strategy outcome stops the hybrid loop.
// Anything else means "try the next strategy".
func isFinal(status domain.JobStatus) bool {
	switch status {
	case domain.StatusAppliedSuccess, domain.StatusManualSubmitted, domain.StatusManualClosed:
		return true
	}
	return false
}

// HybridFiller runs the configured strategies in order until one produces
// a final outcome. The platform strategy resolves to the filler matching
// the detected ATS, with Greenhouse serving as the generic single-form
// fallback for unknown platforms.
type HybridFiller struct {
	strategies []Filler
	log        *logger.Logger
}

// NewHybridFiller assembles the strategy chain for one job.
//
// Parameters:
//   - req: the application request (job, profile, browser session, decisions)
//   - platform: the detected ATS platform for the job's application URL
//   - client: the LLM client shared by all strategies
//   - cfg: automator settings, including the strategy order
//   - audit: sink for AI-identified locators
//
// Returns:
//   - *HybridFiller: the configured dispatcher
func NewHybridFiller(req Request, platform string, client llm.Client, cfg *config.AutomatorConfig, audit *LocatorLog) *HybridFiller {
	h := &HybridFiller{
		log: logger.GetDefault().
			WithField(logger.FieldComponent, "filler").
			WithPlatform(platform).
			WithJob(req.Job.PrimaryIdentifier),
	}
	for _, name := range cfg.Strategies {
		switch name {
		case "agent":
			h.strategies = append(h.strategies, NewAgentFiller(req, client, cfg))
		case "platform":
			// Each attempt gets a fresh engine so a stale analysis from a
			// failed strategy never leaks into the next one
			engine := NewEngine(client, cfg, req.Profile, req.Job, platform, audit)
			h.strategies = append(h.strategies, platformFiller(req, engine, platform))
		default:
			h.log.WithField(logger.FieldStrategy, name).Warn("Unknown strategy, skipping")
		}
	}
	return h
}

func platformFiller(req Request, engine *Engine, platform string) Filler {
	switch platform {
	case "workday":
		return NewWorkdayFiller(req, engine)
	default:
		return NewGreenhouseFiller(req, engine)
	}
}

func (h *HybridFiller) Name() string { return "hybrid" }

// Apply tries each strategy in order and stops at the first final outcome.
// When every strategy is exhausted without one, the job is a plain ATS
// failure.
func (h *HybridFiller) Apply(ctx context.Context) (domain.JobStatus, error) {
	for _, strategy := range h.strategies {
		if err := ctx.Err(); err != nil {
			return domain.StatusFailedUnexpected, err
		}

		h.log.WithField(logger.FieldStrategy, strategy.Name()).Info("Trying strategy")
		status, err := strategy.Apply(ctx)
		if err != nil {
			h.log.WithFields(logger.Fields{
				logger.FieldStrategy: strategy.Name(),
				"error":              err.Error(),
			}).Error("Strategy failed with error")
			continue
		}
		if isFinal(status) {
			h.log.WithFields(logger.Fields{
				logger.FieldStrategy: strategy.Name(),
				logger.FieldStatus:   string(status),
			}).Info("Strategy produced final outcome")
			return status, nil
		}
		h.log.WithFields(logger.Fields{
			logger.FieldStrategy: strategy.Name(),
			logger.FieldStatus:   string(status),
		}).Warn("Strategy did not succeed, trying next")
	}
	return domain.StatusFailedATS, nil
}
