package jobs

import "github.com/germesdev/arachni/internal/cluster"

// ExploreOptions configures an Explore call.
type ExploreOptions struct {
	// MaxDepth bounds how many link hops ResourceExplorationJob follows
	// from the seed resource. Zero selects defaultMaxDepth.
	MaxDepth int
}

// TaintOptions configures a TraceTaint call.
type TaintOptions struct {
	// Element is the query selector of the element to drive.
	Element string
	// Event is the DOM event to fire ("click", "input", "submit").
	Event string
	// Marker is the value injected as the taint, looked for downstream.
	Marker string
}

// WithBrowser is the supervisor facade's browser-provider convenience: it
// queues a distinguished, single-shot BrowserProviderJob for "about:blank"
// under a fresh id and registers cb for its one result. The result's
// payload is the cluster.Page snapshot taken by the worker's browser; the
// Browser itself is not passed to cb.
// Lives here rather than on Supervisor to avoid a cluster -> jobs import
// cycle, since the facade is defined in terms of this package's job kinds.
func WithBrowser(sup *cluster.Supervisor, cb cluster.Callback) error {
	id := sup.NewJobID()
	job := NewBrowserProviderJob(id, "about:blank", false)
	return sup.Queue(job, cb)
}

// Explore queues a root ResourceExplorationJob for resource under a fresh
// id, registering cb for every result the crawl (seed page plus every
// fanned-out link) produces.
func Explore(sup *cluster.Supervisor, resource string, opts ExploreOptions, cb cluster.Callback) error {
	maxDepth := opts.MaxDepth
	if maxDepth == 0 {
		maxDepth = defaultMaxDepth
	}
	id := sup.NewJobID()
	job := NewResourceExplorationJob(id, resource, maxDepth)
	return sup.Queue(job, cb)
}

// TraceTaint queues a root TaintTraceJob for resource under a fresh id,
// registering cb for its single result.
func TraceTaint(sup *cluster.Supervisor, resource string, opts TaintOptions, cb cluster.Callback) error {
	id := sup.NewJobID()
	job := NewTaintTraceJob(id, resource, opts.Element, opts.Event, opts.Marker)
	return sup.Queue(job, cb)
}
