// Package browser provides the chromedp-backed implementation of
// cluster.Browser, plus a per-host rate limiter workers share across
// recycles. It is the only package in this module that talks to an actual
// Chrome process.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/germesdev/arachni/internal/cluster"
)

// Options configures a chromedp-backed Browser.
type Options struct {
	// Headless runs Chrome without a visible window. Defaults to true.
	Headless bool

	// NavigationTimeout bounds a single Load call.
	NavigationTimeout time.Duration

	// UserAgent overrides Chrome's default UA string when non-empty.
	UserAgent string

	// Limiter throttles navigation by host. Nil disables throttling.
	Limiter *HostLimiter
}

// DefaultOptions returns sane Options for headless security scanning.
func DefaultOptions() Options {
	return Options{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
	}
}

// chromeBrowser implements cluster.Browser over a single chromedp browser
// tab context. It is not safe for concurrent use: the cluster's worker
// model already guarantees one goroutine drives it at a time.
type chromeBrowser struct {
	opts       Options
	allocCtx   context.Context
	allocCancel context.CancelFunc
	ctx        context.Context
	cancel     context.CancelFunc
}

// New launches a fresh headless Chrome instance and returns a cluster.Browser
// bound to it. jsToken, when non-empty, is injected as a bearer token header
// on every outgoing request, letting job bodies authenticate against an
// application under test.
func New(jsToken string, opts Options) (cluster.Browser, error) {
	flags := []chromedp.ExecAllocatorOption{
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), append(chromedp.DefaultExecAllocatorOptions[:], flags...)...)

	ctx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	b := &chromeBrowser{
		opts:        opts,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		ctx:         ctx,
		cancel:      cancel,
	}

	if jsToken != "" {
		headers := network.Headers{"Authorization": "Bearer " + jsToken}
		if err := chromedp.Run(ctx, network.SetExtraHTTPHeaders(headers)); err != nil {
			b.Shutdown()
			return nil, fmt.Errorf("set auth header: %w", err)
		}
	}

	if opts.UserAgent != "" {
		if err := chromedp.Run(ctx, chromedp.ActionFunc(func(c context.Context) error {
			return network.SetUserAgentOverride(opts.UserAgent).Do(c)
		})); err != nil {
			b.Shutdown()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	return b, nil
}

func (b *chromeBrowser) Load(ctx context.Context, target string) error {
	if b.opts.Limiter != nil {
		if err := b.opts.Limiter.Wait(ctx, target); err != nil {
			return fmt.Errorf("rate limit wait for %s: %w", target, err)
		}
	}

	navCtx := ctx
	var cancel context.CancelFunc
	if b.opts.NavigationTimeout > 0 {
		navCtx, cancel = context.WithTimeout(ctx, b.opts.NavigationTimeout)
	} else {
		navCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// Navigate must run against a context rooted in b.ctx (chromedp ties
	// protocol operations to their allocator/browser context), but it also
	// needs to actually stop when navCtx is done. Derive a child of b.ctx
	// and cancel it the moment navCtx fires, instead of only checking
	// navCtx after Navigate has already returned.
	runCtx, runCancel := context.WithCancel(b.ctx)
	defer runCancel()
	go func() {
		select {
		case <-navCtx.Done():
			runCancel()
		case <-runCtx.Done():
		}
	}()

	if err := chromedp.Run(runCtx, chromedp.Navigate(target)); err != nil {
		if navErr := navCtx.Err(); navErr != nil {
			return navErr
		}
		return err
	}
	return nil
}

func (b *chromeBrowser) FireEvent(ctx context.Context, elementHandle, event, value string) error {
	switch event {
	case "click":
		return chromedp.Run(b.ctx, chromedp.Click(elementHandle, chromedp.ByQuery))
	case "input":
		return chromedp.Run(b.ctx,
			chromedp.Clear(elementHandle, chromedp.ByQuery),
			chromedp.SendKeys(elementHandle, value, chromedp.ByQuery),
		)
	case "submit":
		return chromedp.Run(b.ctx, chromedp.Submit(elementHandle, chromedp.ByQuery))
	default:
		return fmt.Errorf("unsupported event kind %q", event)
	}
}

func (b *chromeBrowser) ToPage(ctx context.Context) (cluster.Page, error) {
	var html, pageURL string
	if err := chromedp.Run(b.ctx,
		chromedp.Location(&pageURL),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return nil, fmt.Errorf("snapshot page: %w", err)
	}
	return &page{url: pageURL, html: html}, nil
}

func (b *chromeBrowser) Shutdown() error {
	b.cancel()
	b.allocCancel()
	return nil
}

// hostOf extracts the host component used to key rate-limit buckets,
// returning the raw target unchanged if it fails to parse as a URL.
func hostOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return target
	}
	return u.Host
}
