package tool

import "context"

// RenderedPage is the outcome of rendering a URL in a real browser.
type RenderedPage struct {
	Title string
	URL   string // final URL after redirects
	Text  string // visible text content
}

// BrowserBackend abstracts a JavaScript-capable browser used for rendering
// pages that plain HTTP fetching cannot handle.
type BrowserBackend interface {
	// Render navigates to url, waits for the page to settle, and extracts
	// its visible text.
	Render(ctx context.Context, url string) (*RenderedPage, error)
	// Close shuts the browser down.
	Close() error
}
