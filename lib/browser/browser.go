package browser

import (
	"fmt"
	"log/slog"

	"calfscrape/lib/osutil"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Options controls how the Chromium instance is launched.
type Options struct {
	// Headless hides the browser window. Interactive challenge solving
	// needs a visible window, so headless runs may stall on the image
	// puzzle branch.
	Headless bool
	// ProfileDir is the persisted user-data-dir. Cookies and trust
	// signals accumulate here across runs; it is opened, never wiped.
	// Only one process may use a given profile at a time.
	ProfileDir string
}

// Browser wraps a rod browser plus its launcher so the underlying
// Chromium process can be torn down on every exit path.
type Browser struct {
	Rod *rod.Browser

	launcher *launcher.Launcher
}

// Open launches Chromium over the given profile directory and connects
// to it. The caller owns the returned handle and must Close it.
func Open(opts Options) (*Browser, error) {
	if opts.ProfileDir != "" {
		if err := osutil.EnsureDir(opts.ProfileDir); err != nil {
			return nil, fmt.Errorf("failed to create profile dir: %w", err)
		}
	}

	l := launcher.New().
		Leakless(false).
		Headless(opts.Headless).
		Set("window-size", "1920,1080").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("no-default-browser-check")
	if opts.ProfileDir != "" {
		l = l.Set("user-data-dir", opts.ProfileDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	slog.Info("browser launched", "headless", opts.Headless, "profile", opts.ProfileDir)
	return &Browser{Rod: b, launcher: l}, nil
}

// Close disconnects and kills the browser process. Safe to call on every
// exit path; errors closing an already-dead browser are ignored.
func (b *Browser) Close() {
	if b == nil {
		return
	}
	if b.Rod != nil {
		if err := b.Rod.Close(); err != nil {
			slog.Warn("failed to close browser cleanly", "err", err)
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
}
