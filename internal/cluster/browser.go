package cluster

import "context"

// Browser is the opaque capability a Worker drives. The cluster never peeks
// into a Browser's internals beyond these four methods; the concrete
// implementation (chromedp-backed, in internal/browser) lives outside this
// package entirely.
type Browser interface {
	// Load navigates the browser to url.
	Load(ctx context.Context, url string) error

	// FireEvent dispatches event (e.g. "click", "input", "submit") with value
	// against the element identified by elementHandle.
	FireEvent(ctx context.Context, elementHandle, event, value string) error

	// ToPage snapshots the current document.
	ToPage(ctx context.Context) (Page, error)

	// Shutdown terminates the underlying browser process. Called once per
	// worker recycle and once more at final worker shutdown.
	Shutdown() error
}

// Page is an opaque snapshot of the currently loaded document. Job bodies
// that need structured DOM access (link discovery, form inspection) read
// HTML() and parse it themselves; the core never interprets page contents.
// Markdown renders the page as a human-readable digest, used by job bodies
// that log audit trails rather than parse structure.
type Page interface {
	URL() string
	HTML() (string, error)
	Markdown() (string, error)
}

// Transition and ElementLocator are opaque markers referenced by job bodies
// that submit DOM input (forms, UI elements) built on top of the cluster.
// The core never constructs or inspects them.
type Transition struct{}

type ElementLocator struct {
	Selector string
}
