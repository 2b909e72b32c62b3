// Package live attaches the defense engine to a real Chrome page. A session
// mirrors the page's DOM into an in-process tree, feeds observed mutations
// through the engine, and reflects every suppression back into the page.
package live

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserConfig configures the shared Chrome instance.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of an external Chrome.
	// Empty launches a local one.
	RemoteURL string `yaml:"remote_url"`

	// Headless runs Chrome without a display. Default true.
	Headless *bool `yaml:"headless"`

	// NavTimeout bounds page navigation. Default 30s.
	NavTimeout time.Duration `yaml:"nav_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *BrowserConfig) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns the Chrome connection shared by sessions.
type Browser struct {
	cfg  BrowserConfig
	mu   sync.Mutex
	b    *rod.Browser
	lnch *launcher.Launcher
}

// NewBrowser creates the handle. Call Start to launch or connect.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Start launches Chrome, or connects to the configured remote instance.
func (br *Browser) Start(ctx context.Context) error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.b != nil {
		return nil
	}

	wsURL := br.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New()
		headless := br.cfg.Headless == nil || *br.cfg.Headless
		l = l.Headless(headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("live: launch chrome: %w", err)
		}
		wsURL = u
		br.lnch = l
		br.cfg.Logger.Info("live: launched chrome", "url", wsURL, "headless", headless)
	} else {
		br.cfg.Logger.Info("live: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("live: connect: %w", err)
	}
	br.b = b
	return nil
}

// Close shuts Chrome down.
func (br *Browser) Close() error {
	br.mu.Lock()
	defer br.mu.Unlock()
	if br.b != nil {
		br.b.Close()
		br.b = nil
	}
	if br.lnch != nil {
		br.lnch.Cleanup()
		br.lnch = nil
	}
	return nil
}

func (br *Browser) rod() *rod.Browser {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.b
}
