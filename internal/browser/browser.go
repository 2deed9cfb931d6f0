// Package browser owns the process-wide headless browser singleton and
// the per-capture isolated context protocol (C3): cookie injection,
// navigation with a network-idle/DOM-loaded fallback, lazy-load
// scrolling, a privacy filter, screenshot, and PDF generation.
//
// Built on go-rod the way niezatapialni-scraper's extractor.go drives
// rod.Browser/rod.Page, paired with go-rod/stealth contexts to reduce
// bot-detection false positives.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"bookmarkforge/internal/classify"
	"bookmarkforge/internal/config"
)

type state int

const (
	stateUninitialized state = iota
	stateRunning
	stateClosed
)

// Pool is the process-wide singleton. init is idempotent; close is
// idempotent; get fails fast if the pool was never initialized.
type Pool struct {
	browser *rod.Browser
	state   state
	cookies *CookieStore
}

func NewPool() *Pool {
	return &Pool{state: stateUninitialized, cookies: NewCookieStore(config.CookiesFile)}
}

// Init launches (or no-ops if already launched) the shared browser
// process.
func (p *Pool) Init() error {
	if p.state == stateRunning {
		return nil
	}
	url, err := launcher.New().Headless(config.BrowserHeadless).Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	p.browser = rod.New().ControlURL(url)
	if err := p.browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}
	p.state = stateRunning
	slog.Info("browser pool initialized")
	return nil
}

// Get returns the shared browser, failing fast if Init was never called.
func (p *Pool) Get() (*rod.Browser, error) {
	if p.state != stateRunning {
		return nil, fmt.Errorf("browser pool not initialized")
	}
	return p.browser, nil
}

// Close shuts the browser down. Idempotent.
func (p *Pool) Close() error {
	if p.state != stateRunning {
		return nil
	}
	p.state = stateClosed
	return p.browser.Close()
}

// CaptureResult is the output of the capture protocol: rendered PDF
// bytes, a viewport screenshot, and the extracted page title.
type CaptureResult struct {
	PDF           []byte
	Screenshot    []byte
	Title         string
	DirectArticle bool
	Rewritten     bool
}

var knownTitleSuffixes = []string{" - YouTube", " | Twitter", " / X", " - Medium"}

// socialHost is the one social-media domain this deployment
// rewrites to a configured mirror for more reliable rendering.
const socialHost = "x.com"

// Capture runs the full C3 protocol against targetURL, owning the full
// lifecycle of its isolated browsing context: allocate, inject cookies,
// navigate, scroll, filter, screenshot, print to PDF, then unconditionally
// release the context on every exit path.
func (p *Pool) Capture(ctx context.Context, targetURL string) (*CaptureResult, error) {
	b, err := p.Get()
	if err != nil {
		return nil, err
	}

	rewrittenURL, rewritten := applyURLRewrites(targetURL)

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("create incognito context: %w", err)
	}
	defer incognito.Close()
	stealthBrowser, err := stealth.Page(incognito)
	var page *rod.Page
	if err != nil {
		page, err = incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return nil, fmt.Errorf("create page: %w", err)
		}
	} else {
		page = stealthBrowser
	}
	defer page.Close()

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width: 1280, Height: 800, DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("failed to set viewport", "error", err)
	}

	injectCookies(page, p.cookies.Load())

	navErr := navigateWithFallback(page, rewrittenURL)
	if navErr != nil {
		return nil, navErr
	}

	settlePage(page)

	applyPrivacyFilter(page)

	directArticle := false
	if rewritten && looksLikeArticleStub(page) {
		if err := page.Navigate(targetURL); err == nil {
			page.WaitLoad()
			directArticle = true
		}
	}

	screenshot := capturePageScreenshot(page)
	title := extractTitle(page)
	injectPrivacyCSS(page)

	pdfBytes, err := capturePDF(page)
	if err != nil {
		return nil, classify.New(classify.Unknown, fmt.Sprintf("pdf generation failed: %v", err))
	}

	return &CaptureResult{
		PDF:           pdfBytes,
		Screenshot:    screenshot,
		Title:         title,
		DirectArticle: directArticle,
		Rewritten:     rewritten,
	}, nil
}

// applyURLRewrites applies the ordered rewrite rules: strip tracking
// params for one publisher, rewrite one chart-embed wrapper to its CDN
// embed form, rewrite one social domain to its configured mirror.
func applyURLRewrites(rawURL string) (string, bool) {
	rewritten := rawURL
	changed := false

	if strings.Contains(rewritten, "medium.com") && strings.Contains(rewritten, "?") {
		rewritten = rewritten[:strings.Index(rewritten, "?")]
		changed = true
	}

	if strings.Contains(rewritten, "tradingview.com/chart/") {
		rewritten = strings.Replace(rewritten, "/chart/", "/embed-widget/chart/", 1)
		changed = true
	}

	if mirror := config.SocialMirrorHost(); mirror != "" && strings.Contains(rewritten, socialHost) {
		rewritten = strings.Replace(rewritten, socialHost, mirror, 1)
		changed = true
	}

	return rewritten, changed
}

func navigateWithFallback(page *rod.Page, url string) error {
	p := page.Timeout(config.BrowserNavTimeout)
	err := p.Navigate(url)
	if err == nil {
		if waitErr := p.WaitIdle(config.BrowserIdleTimeout); waitErr != nil && isTimeoutErr(waitErr) {
			// network never settled; fall through to the DOM-loaded retry below
		} else {
			return nil
		}
	}

	if err == nil || isTimeoutErr(err) {
		p2 := page.Timeout(config.BrowserNavTimeout)
		if err2 := p2.Navigate(url); err2 != nil {
			return classify.New(classify.Timeout, err2.Error())
		}
		if err2 := p2.WaitLoad(); err2 != nil {
			return classify.New(classify.Timeout, err2.Error())
		}
		time.Sleep(5 * time.Second)
		return nil
	}

	msg := err.Error()
	if strings.Contains(msg, "net::ERR_BLOCKED") || strings.Contains(msg, "403") {
		return classify.New(classify.BotDetected, msg)
	}
	return classify.New(classify.NavigationError, msg)
}

func isTimeoutErr(err error) bool {
	return strings.Contains(err.Error(), "context deadline exceeded") ||
		strings.Contains(err.Error(), "timeout")
}

func settlePage(page *rod.Page) {
	time.Sleep(1 * time.Second)
	page.Timeout(5 * time.Second).Element("body")
	time.Sleep(2 * time.Second)
	scrollToTriggerLazyLoad(page)
}

func scrollToTriggerLazyLoad(page *rod.Page) {
	deadline := time.Now().Add(10 * time.Second)
	for i := 0; i < 50 && time.Now().Before(deadline); i++ {
		page.MustEval(`() => window.scrollBy(0, 1000)`)
		time.Sleep(50 * time.Millisecond)
	}
	page.MustEval(`() => window.scrollTo(0, 0)`)
	time.Sleep(500 * time.Millisecond)
}

func looksLikeArticleStub(page *rod.Page) bool {
	body, err := page.Eval(`() => document.body ? document.body.innerText : ""`)
	if err != nil {
		return false
	}
	text := body.Value.String()
	return strings.Contains(text, "/article/")
}

func capturePageScreenshot(page *rod.Page) []byte {
	data, err := page.Timeout(15 * time.Second).Screenshot(false, nil)
	if err != nil {
		slog.Warn("screenshot failed, continuing with empty buffer", "error", err)
		return nil
	}
	return data
}

func extractTitle(page *rod.Page) string {
	info, err := page.Info()
	if err != nil {
		return ""
	}
	title := info.Title
	for _, suffix := range knownTitleSuffixes {
		title = strings.TrimSuffix(title, suffix)
	}
	return strings.TrimSpace(title)
}

func capturePDF(page *rod.Page) ([]byte, error) {
	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground: true,
		Scale:           0.7,
		MarginTop:       0.2,
		MarginBottom:    0.2,
		MarginLeft:      0.2,
		MarginRight:     0.2,
	})
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, 1<<20)
	tmp := make([]byte, 32*1024)
	for {
		n, rerr := reader.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return buf, nil
}

func injectCookies(page *rod.Page, cookies []Cookie) {
	if len(cookies) == 0 {
		return
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
		})
	}
	if err := page.SetCookies(params); err != nil {
		slog.Warn("failed to inject cookies", "error", err)
	}
}
