package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const composeURL = "https://mail.google.com/mail/u/0/#inbox?compose=new"

// GmailConfig controls the browser-driven mailer.
type GmailConfig struct {
	// ProfileDir is a Chrome user-data directory with an authenticated Gmail
	// session. Required.
	ProfileDir string
	// SendTimeout bounds one compose-and-send round trip.
	SendTimeout time.Duration
}

// Gmail drives the Gmail compose UI with a headless browser.
type Gmail struct {
	cfg         GmailConfig
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewGmail creates a Gmail mailer over the given Chrome profile.
func NewGmail(cfg GmailConfig, logger *zap.Logger) (*Gmail, error) {
	if cfg.ProfileDir == "" {
		return nil, fmt.Errorf("chrome profile directory is required")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("enable-automation", false),
		chromedp.UserDataDir(cfg.ProfileDir),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Gmail{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}, nil
}

// Close cancels the allocator context.
func (g *Gmail) Close() {
	g.allocCancel()
}

// Send opens a compose window, fills the message, and clicks send.
func (g *Gmail) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("recipient is required")
	}

	taskCtx, taskCancel := chromedp.NewContext(g.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, g.cfg.SendTimeout)
	defer cancel()

	// Abort early if the caller's context dies while the browser works.
	go func() {
		select {
		case <-ctx.Done():
			taskCancel()
		case <-taskCtx.Done():
		}
	}()

	actions := []chromedp.Action{
		chromedp.Navigate(composeURL),
		chromedp.WaitVisible(`[name="to"]`, chromedp.ByQuery),
		chromedp.SendKeys(`[name="to"]`, to, chromedp.ByQuery),
		chromedp.SendKeys(`[name="subjectbox"]`, subject, chromedp.ByQuery),
		chromedp.SendKeys(`div[aria-label='Message Body']`, body, chromedp.ByQuery),
		chromedp.Click(`//div[text()='Send']`, chromedp.BySearch),
		chromedp.Sleep(3 * time.Second),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fmt.Errorf("gmail compose: %w", err)
	}

	g.logger.Info("mail sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
