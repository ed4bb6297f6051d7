package extractors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"embed-resolver/pkg/config"
	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/urlutil"
)

// RodExtractor drives Chromium through the DevTools protocol. Each extraction
// gets its own browsing context: a freshly launched browser when running
// locally, or an incognito context on a shared remote browser.
type RodExtractor struct {
	*BaseExtractor

	bin        string
	controlURL string
	proxy      string
	navTimeout time.Duration

	// acquire opens a browsing context and returns its release function.
	acquire func(ctx context.Context) (*rod.Browser, func() error, error)

	mu           sync.Mutex
	remote       *rod.Browser
	cancelRemote context.CancelFunc
}

// NewRodExtractor creates a rod backend from the browser settings in cfg.
func NewRodExtractor(cfg *config.Config, log *logging.Logger) *RodExtractor {
	e := &RodExtractor{
		BaseExtractor: NewBaseExtractor("rod", cfg.IframeMarker, log),
		bin:           cfg.BrowserBin,
		controlURL:    cfg.BrowserControlURL,
		proxy:         cfg.GlobalProxy,
		navTimeout:    cfg.BrowserNavTimeout,
	}
	if e.controlURL != "" {
		e.acquire = e.acquireRemote
	} else {
		e.acquire = e.acquireLocal
	}
	return e
}

// Extract loads pageURL with only document requests allowed, waits for the
// DOM to be parsed and returns the src of the first matching iframe.
func (e *RodExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	start := time.Now()

	var src string
	err := e.withSession(ctx, func(browser *rod.Browser) error {
		page, err := browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return fmt.Errorf("opening page: %w", err)
		}
		defer page.Close()

		if e.navTimeout > 0 {
			page = page.Timeout(e.navTimeout)
			defer page.CancelTimeout()
		}

		router := page.HijackRequests()
		if err := router.Add("*", "", filterRequest); err != nil {
			return fmt.Errorf("installing request filter: %w", err)
		}
		go router.Run()
		defer router.Stop()

		wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := page.Navigate(pageURL); err != nil {
			return fmt.Errorf("navigating: %w", err)
		}
		wait()

		iframes, err := page.Elements(e.Selector())
		if err != nil {
			return fmt.Errorf("querying iframes: %w", err)
		}
		if iframes.Empty() {
			return ErrNoIframe
		}

		// The src property is already absolute; the attribute may not be.
		prop, err := iframes.First().Property("src")
		if err != nil {
			return fmt.Errorf("reading iframe src: %w", err)
		}
		src = urlutil.ResolveIframeSrc(prop.Str(), pageURL)
		if src == "" {
			return ErrNoIframe
		}
		return nil
	})
	if err != nil {
		return "", extractionError(e.name, err)
	}

	e.log.Debug("iframe found", "url", pageURL, "src", src, "duration_ms", time.Since(start).Milliseconds())
	return src, nil
}

// withSession acquires a browsing context, runs fn with it and releases the
// context before returning, whatever fn did.
func (e *RodExtractor) withSession(ctx context.Context, fn func(*rod.Browser) error) error {
	browser, release, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			e.log.Warn("failed to release browser", "error", err)
		}
	}()

	return fn(browser)
}

// acquireRemote opens an incognito context on the shared remote browser.
// A failure drops the connection so the next call dials again.
func (e *RodExtractor) acquireRemote(ctx context.Context) (*rod.Browser, func() error, error) {
	remote, err := e.connectRemote()
	if err != nil {
		return nil, nil, err
	}
	incognito, err := remote.Incognito()
	if err != nil {
		e.dropRemote(remote)
		return nil, nil, fmt.Errorf("creating incognito context: %w", err)
	}
	return incognito.Context(ctx), incognito.Close, nil
}

// acquireLocal launches a dedicated headless Chromium.
func (e *RodExtractor) acquireLocal(ctx context.Context) (*rod.Browser, func() error, error) {
	l := e.newLauncher().Context(ctx)
	u, err := l.Launch()
	if err != nil {
		l.Kill()
		return nil, nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, nil, fmt.Errorf("connecting to browser: %w", err)
	}

	release := func() error {
		// Close with a fresh context so a cancelled caller still shuts Chromium down.
		err := browser.Context(context.Background()).Close()
		l.Kill()
		l.Cleanup()
		return err
	}
	return browser, release, nil
}

// newLauncher configures a headless Chromium launch.
func (e *RodExtractor) newLauncher() *launcher.Launcher {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("mute-audio")

	if e.bin != "" {
		l = l.Bin(e.bin)
	}
	if e.proxy != "" {
		l = l.Proxy(e.proxy)
	}
	return l
}

// connectRemote connects to the shared remote browser on first use.
func (e *RodExtractor) connectRemote() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote != nil {
		return e.remote, nil
	}

	u, err := launcher.ResolveURL(e.controlURL)
	if err != nil {
		return nil, fmt.Errorf("resolving control url: %w", err)
	}

	// The websocket lives until connCtx is cancelled.
	connCtx, cancel := context.WithCancel(context.Background())
	browser := rod.New().ControlURL(u).Context(connCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("connecting to remote browser: %w", err)
	}

	e.log.Info("connected to remote browser", "control_url", e.controlURL)
	e.remote = browser
	e.cancelRemote = cancel
	return browser, nil
}

// dropRemote closes the connection to browser if it is still the current one.
func (e *RodExtractor) dropRemote(browser *rod.Browser) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.remote != browser {
		return
	}
	e.log.Warn("dropping remote browser connection", "control_url", e.controlURL)
	e.disconnectLocked()
}

func (e *RodExtractor) disconnectLocked() {
	if e.cancelRemote != nil {
		e.cancelRemote()
	}
	e.remote = nil
	e.cancelRemote = nil
}

// Close disconnects from the remote browser. The remote browser itself keeps
// running; it is not ours to stop.
func (e *RodExtractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnectLocked()
	return nil
}

// filterRequest lets documents through and aborts every other request.
func filterRequest(h *rod.Hijack) {
	if allowResource(h.Request.Type()) {
		h.ContinueRequest(&proto.FetchContinueRequest{})
		return
	}
	h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
}

// allowResource reports whether a request of type t may load. Iframe
// navigations are reported as Document requests of the child frame.
func allowResource(t proto.NetworkResourceType) bool {
	return t == proto.NetworkResourceTypeDocument
}

var _ interfaces.Extractor = (*RodExtractor)(nil)
