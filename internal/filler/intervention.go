package filler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kweiss/applyflow/internal/domain"
	"github.com/kweiss/applyflow/internal/logger"
)

// DecisionChannel abstracts the operator input used by manual intervention,
// so tests can inject scripted decisions without real terminal I/O.
type DecisionChannel interface {
	// Prompt displays a message and blocks until the operator answers.
	Prompt(ctx context.Context, message string) (string, error)
}

// ConsoleDecisionChannel reads operator decisions from a terminal.
type ConsoleDecisionChannel struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewConsoleDecisionChannel creates a channel bound to stdin/stdout.
func NewConsoleDecisionChannel() *ConsoleDecisionChannel {
	return &ConsoleDecisionChannel{
		in:  bufio.NewScanner(os.Stdin),
		out: os.Stdout,
	}
}

func (c *ConsoleDecisionChannel) Prompt(ctx context.Context, message string) (string, error) {
	fmt.Fprintln(c.out, message)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.in.Text(), nil
}

// ResolveManually converts an unrecoverable automated failure into an
// auditable human checkpoint. The browser stays open; the operator finishes
// or abandons the form by hand and reports the outcome.
//
// Accepted inputs:
//   - "submitted": the operator completed the form manually.
//   - "closed": the operator abandoned the session.
//   - "failed": keep the original classified failure status.
//
// A browser the operator already closed counts as "closed" without asking.
// Invalid input re-prompts; a dead input channel falls back to the original
// failure status.
func ResolveManually(ctx context.Context, ch DecisionChannel, browserAlive func() bool, original domain.JobStatus, reason string) domain.JobStatus {
	log := logger.GetDefault().WithField(logger.FieldComponent, "intervention")
	log.WithField("reason", reason).Warn("Automated filling failed, requesting manual intervention")

	if !browserAlive() {
		log.Warn("Browser window closed before intervention, treating as closed by user")
		return domain.StatusManualClosed
	}

	message := fmt.Sprintf(
		"Automated application failed: %s\n"+
			"Please complete or abandon the application manually in the open browser, then type one of:\n"+
			"  'submitted': you successfully submitted the application\n"+
			"  'closed':    you closed the browser or abandoned the attempt\n"+
			"  'failed':    keep the automated failure status\n"+
			"> ", reason)

	for {
		if !browserAlive() {
			log.Warn("Browser window closed during intervention, treating as closed by user")
			return domain.StatusManualClosed
		}

		choice, err := ch.Prompt(ctx, message)
		if err != nil {
			if !browserAlive() {
				return domain.StatusManualClosed
			}
			log.WithField("error", err).Error("Decision channel failed, keeping original failure status")
			return original
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "submitted":
			log.Info("Operator reported manual submission")
			return domain.StatusManualSubmitted
		case "closed":
			log.Info("Operator closed or abandoned the attempt")
			return domain.StatusManualClosed
		case "failed":
			log.Info("Operator confirmed the automated failure")
			return original
		default:
			message = "Invalid choice. Please enter 'submitted', 'closed', or 'failed': "
		}
	}
}
