package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"

	"github.com/kweiss/applyflow/internal/config"
	"github.com/kweiss/applyflow/internal/logger"
)

// SessionManager owns a single Chrome instance reused across sequential
// applications. The browser is started lazily on first use and stays open
// between jobs so logins and cookies persist.
type SessionManager struct {
	cfg *config.BrowserConfig
	log *logger.Logger

	mu          sync.Mutex
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc
}

// NewSessionManager creates a session manager. No browser is launched until
// Context is first called.
func NewSessionManager(cfg *config.BrowserConfig) *SessionManager {
	return &SessionManager{
		cfg: cfg,
		log: logger.GetDefault().WithField(logger.FieldComponent, "browser"),
	}
}

// Context returns a chromedp context bound to the managed browser tab,
// launching Chrome on first call.
// Parameters:
//   - ctx: parent context; cancellation does not close the browser.
// Returns:
//   - context.Context: chromedp-enabled context for Run calls.
//   - error: non-nil if the browser cannot be started.
func (m *SessionManager) Context(ctx context.Context) (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.tabCtx != nil && m.alive(m.tabCtx) {
		return m.tabCtx, nil
	}
	return m.start(ctx)
}

// Alive reports whether the managed browser is still running. A browser the
// operator closed by hand reports false.
func (m *SessionManager) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tabCtx == nil {
		return false
	}
	return m.alive(m.tabCtx)
}

// Close shuts down the browser and releases the allocator.
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tabCancel != nil {
		m.tabCancel()
		m.tabCancel = nil
		m.tabCtx = nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCancel = nil
		m.allocCtx = nil
	}
	m.log.Info("Browser session closed")
}

func (m *SessionManager) start(parent context.Context) (context.Context, error) {
	// Tear down any dead contexts from a browser the operator closed
	if m.tabCancel != nil {
		m.tabCancel()
		m.tabCtx = nil
	}
	if m.allocCancel != nil {
		m.allocCancel()
		m.allocCtx = nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.WindowSize(m.cfg.WindowW, m.cfg.WindowH),
	)
	if m.cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ChromePath))
	}
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	// Persist the Chrome profile so logins survive across jobs
	if m.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(m.cfg.UserDataDir))
	}

	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	m.tabCtx, m.tabCancel = chromedp.NewContext(m.allocCtx)

	// Force the browser process to start now so failures surface here
	if err := chromedp.Run(m.tabCtx); err != nil {
		m.tabCancel()
		m.allocCancel()
		m.tabCtx, m.allocCtx = nil, nil
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	m.log.WithField("headless", m.cfg.Headless).Info("Browser session started")
	return m.tabCtx, nil
}

func (m *SessionManager) alive(tab context.Context) bool {
	if tab.Err() != nil {
		return false
	}
	// A closed browser leaves the context open but the target gone; a cheap
	// evaluation detects it.
	var one int
	err := chromedp.Run(tab, chromedp.Evaluate("1", &one))
	return err == nil
}
