package cluster_test

import (
	"context"
	"sync"

	"github.com/germesdev/arachni/internal/cluster"
)

// fakeBrowser is an in-memory cluster.Browser double: Load/FireEvent just
// record calls, ToPage returns a canned page, Shutdown counts invocations.
type fakeBrowser struct {
	mu         sync.Mutex
	loaded     []string
	fired      []string
	shutdowns  int
	pageURL    string
	pageHTML   string
	loadErr    error
	execErr    error
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pageURL: "https://example.test/", pageHTML: "<html></html>"}
}

func (b *fakeBrowser) Load(ctx context.Context, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = append(b.loaded, target)
	return b.loadErr
}

func (b *fakeBrowser) FireEvent(ctx context.Context, elementHandle, event, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fired = append(b.fired, elementHandle+":"+event+":"+value)
	return b.execErr
}

func (b *fakeBrowser) ToPage(ctx context.Context) (cluster.Page, error) {
	return fakePage{url: b.pageURL, html: b.pageHTML}, nil
}

func (b *fakeBrowser) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.shutdowns++
	return nil
}

func (b *fakeBrowser) shutdownCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shutdowns
}

type fakePage struct {
	url  string
	html string
}

func (p fakePage) URL() string            { return p.url }
func (p fakePage) HTML() (string, error)  { return p.html, nil }
func (p fakePage) Markdown() (string, error) { return "# " + p.url, nil }
