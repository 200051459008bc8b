package tool

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

// ChromeDPConfig holds configuration for the chromedp backend.
type ChromeDPConfig struct {
	// RemoteURL is the CDP WebSocket endpoint for connecting to a remote
	// Chrome. If empty, a local Chrome instance is launched.
	RemoteURL string
	// Headless controls whether a locally launched Chrome runs headless.
	Headless bool
	// Timeout is the per-render timeout.
	Timeout time.Duration
}

// ChromeDPBackend implements BrowserBackend using chromedp.
type ChromeDPBackend struct {
	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	timeout       time.Duration
	logger        *slog.Logger
}

// NewChromeDPBackend creates a browser backend using chromedp.
func NewChromeDPBackend(cfg ChromeDPConfig, logger *slog.Logger) (*ChromeDPBackend, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	b := &ChromeDPBackend{
		timeout: cfg.Timeout,
		logger:  logger,
	}

	var allocCtx context.Context
	if cfg.RemoteURL != "" {
		allocCtx, b.allocCancel = chromedp.NewRemoteAllocator(
			context.Background(), cfg.RemoteURL,
		)
		logger.Info("chromedp connecting to remote browser", "url", cfg.RemoteURL)
	} else {
		// Copy default options to avoid mutating the package-level slice.
		opts := make([]chromedp.ExecAllocatorOption, len(chromedp.DefaultExecAllocatorOptions))
		copy(opts, chromedp.DefaultExecAllocatorOptions[:])
		opts = append(opts,
			chromedp.Flag("headless", cfg.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(1280, 720),
		)
		allocCtx, b.allocCancel = chromedp.NewExecAllocator(
			context.Background(), opts...,
		)
		logger.Info("chromedp launching local browser", "headless", cfg.Headless)
	}

	b.browserCtx, b.browserCancel = chromedp.NewContext(allocCtx)

	// Start the browser eagerly so failures surface at construction time.
	startCtx, cancel := context.WithTimeout(b.browserCtx, cfg.Timeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		b.browserCancel()
		b.allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return b, nil
}

func (b *ChromeDPBackend) Render(ctx context.Context, url string) (*RenderedPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)
	defer tabCancel()

	runCtx, cancel := context.WithTimeout(tabCtx, b.timeout)
	defer cancel()

	// Stop waiting early if the caller's context ends first.
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()

	page := &RenderedPage{}
	var text string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&page.Title),
		chromedp.Location(&page.URL),
		chromedp.Text("body", &text, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Fall back to the serialized DOM when the page has no
			// visible text (e.g. frames-only documents).
			if strings.TrimSpace(text) != "" {
				return nil
			}
			root, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err := dom.GetOuterHTML().WithNodeID(root.NodeID).Do(ctx)
			if err != nil {
				return err
			}
			text = html
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	page.Text = text
	b.logger.Debug("page rendered", "url", url, "title", page.Title, "text_len", len(text))
	return page, nil
}

func (b *ChromeDPBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	return nil
}
