// Package renderer screenshots tweets of a thread page with a long-lived
// headless Chrome.
package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/ibeckermayer/hopperbot/internal/browser"
	"github.com/ibeckermayer/hopperbot/internal/config"
	"github.com/ibeckermayer/hopperbot/internal/types"
)

// ErrClosed is returned by Render after Close.
var ErrClosed = errors.New("renderer is closed")

// CookieSource supplies session cookies to browse with
type CookieSource interface {
	SessionCookies() ([]*network.Cookie, error)
}

// Renderer handles screenshotting thread pages. Calls are serialized; the
// browser is started on first use and kept until Close.
type Renderer struct {
	mu        sync.Mutex
	cfg       config.RendererConfig
	outputDir string
	cookies   CookieSource
	logger    *slog.Logger

	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	closed        bool
}

// New creates a new renderer writing PNGs to outputDir. cookies may be nil.
func New(cfg config.RendererConfig, outputDir string, cookies CookieSource, logger *slog.Logger) *Renderer {
	return &Renderer{
		cfg:       cfg,
		outputDir: outputDir,
		cookies:   cookies,
		logger:    logger,
	}
}

// ValidateRange checks a thread range the way Render does.
func ValidateRange(rng types.Range) error {
	if rng.Start < 0 {
		return &InvalidRangeError{Reason: "positive start"}
	}
	if rng.Step <= 0 {
		return &InvalidRangeError{Reason: "positive step"}
	}
	return nil
}

// Render screenshots the tweets at the range's offsets on threadURL, one
// PNG per offset in ascending order, named <prefix>-<offset>.png. When a
// tweet cannot be found the files written so far are returned with the
// error so the caller can clean them up.
func (r *Renderer) Render(ctx context.Context, threadURL, prefix string, rng types.Range) ([]string, error) {
	if err := ValidateRange(rng); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	if err := r.ensureBrowser(); err != nil {
		return nil, err
	}

	// Each render gets its own tab, closed when done or when ctx ends.
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(threadURL),
		chromedp.WaitVisible(ThreadSection, chromedp.ByQuery),
	); err != nil {
		return nil, fmt.Errorf("failed to load thread: %w", err)
	}

	var files []string
	for _, i := range rng.Indices() {
		path, err := r.capture(ctx, tabCtx, prefix, i)
		if err != nil {
			return files, err
		}
		files = append(files, path)
	}

	r.logger.Debug("rendered thread", "url", threadURL, "range", rng.String(), "files", len(files))
	return files, nil
}

// capture screenshots the cell at thread offset i.
func (r *Renderer) capture(ctx, tabCtx context.Context, prefix string, i int) (string, error) {
	sel := fmt.Sprintf(threadCellXPath, i+1)

	waitCtx, cancel := context.WithTimeout(tabCtx, r.elementTimeout())
	err := chromedp.Run(waitCtx, chromedp.WaitVisible(sel, chromedp.BySearch))
	cancel()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return "", &ElementNotFoundError{Index: i}
		}
		return "", fmt.Errorf("failed waiting for thread element %d: %w", i, err)
	}

	var buf []byte
	if err := chromedp.Run(tabCtx,
		chromedp.ScrollIntoView(sel, chromedp.BySearch),
		// let images in the cell finish loading after the scroll
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Screenshot(sel, &buf, chromedp.NodeVisible, chromedp.BySearch),
	); err != nil {
		return "", fmt.Errorf("failed to screenshot thread element %d: %w", i, err)
	}

	path := filepath.Join(r.outputDir, fmt.Sprintf("%s-%d.png", prefix, i))
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (r *Renderer) elementTimeout() time.Duration {
	if r.cfg.ElementTimeout.Duration > 0 {
		return r.cfg.ElementTimeout.Duration
	}
	return 20 * time.Second
}

// ensureBrowser starts Chrome on first use. Callers hold r.mu.
func (r *Renderer) ensureBrowser() error {
	if r.browserCtx != nil {
		return nil
	}

	opts := browser.Options(r.cfg.Headless, r.cfg.WindowWidth, r.cfg.WindowHeight)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// the first Run starts the browser process
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	if err := r.injectCookies(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return fmt.Errorf("failed to inject cookies: %w", err)
	}

	r.browserCtx = browserCtx
	r.cancelBrowser = func() {
		cancelBrowser()
		cancelAlloc()
	}
	r.logger.Info("browser started", "headless", r.cfg.Headless)
	return nil
}

// injectCookies sets the stored session cookies in the browser
func (r *Renderer) injectCookies(ctx context.Context) error {
	if r.cookies == nil {
		return nil
	}
	cookies, err := r.cookies.SessionCookies()
	if err != nil {
		return err
	}
	if len(cookies) == 0 {
		r.logger.Warn("no X session cookies stored, rendering logged out")
		return nil
	}

	return chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			for _, c := range cookies {
				err := network.SetCookie(c.Name, c.Value).
					WithDomain(c.Domain).
					WithPath(c.Path).
					WithSecure(c.Secure).
					WithHTTPOnly(c.HTTPOnly).
					WithSameSite(c.SameSite).
					Do(ctx)
				if err != nil {
					return err
				}
			}
			return nil
		}),
	)
}

// Close shuts the browser down. An in-progress Render finishes first.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.cancelBrowser != nil {
		r.cancelBrowser()
		r.browserCtx = nil
		r.cancelBrowser = nil
		r.logger.Info("browser stopped")
	}
	return nil
}
