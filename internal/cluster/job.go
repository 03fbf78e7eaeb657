package cluster

import (
	"context"
	"encoding/json"
)

// Job is a unit of browser-side work identified by a stable id shared across
// the job and every sub-job it spawns. Job bodies live outside this package;
// the cluster only ever holds them by this interface.
type Job interface {
	// ID returns the identity of the logical job across all its sub-jobs.
	ID() string

	// Kind selects the decoder used to reconstruct this job after it has
	// been serialized through the persistent queue.
	Kind() string

	// NeverEnding reports whether this job's callback stays registered
	// indefinitely instead of being dropped once its pending count hits zero.
	NeverEnding() bool

	// Forward produces a child job that shares this job's id, given a new
	// kind-specific payload. The child is queued by the caller, not by
	// Forward itself.
	Forward(payload any) Job

	// Payload returns the kind-specific data needed to resume this job after
	// deserialization. It must not include the registered callback: callbacks
	// are data-only addressed by job id, never carried inside the job value.
	Payload() (json.RawMessage, error)

	// Execute runs the job against browser, using sup to queue sub-jobs,
	// consult/populate the skip registry, append to the sitemap, and publish
	// results. Execute must not block on the supervisor's lock for the
	// duration of any browser I/O.
	Execute(ctx context.Context, browser Browser, sup *Supervisor) error
}

// Result carries the specific job instance that produced it plus opaque,
// job-kind-specific payload data. Results are consumed only by the parent
// job id's registered callback.
type Result struct {
	Job     Job
	Payload any
}

// Callback is invoked once per Result for a given parent job id. It is
// associated with the id, not with individual job instances, and is looked
// up from a side table rather than carried inside the (serializable) job
// value — see DESIGN.md for why.
type Callback func(Result)
