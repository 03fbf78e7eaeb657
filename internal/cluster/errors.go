package cluster

import "errors"

// Sentinel errors returned by Supervisor's public operations. Callers should
// compare with errors.Is, not string matching.
var (
	// ErrAlreadyShutdown is returned by Queue and Wait once Shutdown has been
	// called. Shutdown itself returns nil on repeat calls, and the Supervisor
	// methods without an error result (Skip, AddSkip, HandleResult, Done,
	// Sitemap, ...) do not report it.
	ErrAlreadyShutdown = errors.New("cluster: already shutdown")

	// ErrJobNotFound is returned by JobDone when failIfMissing is set and the
	// job id is unknown to both the pending-counter and callback tables.
	ErrJobNotFound = errors.New("cluster: job not found")

	// ErrAlreadyDone is returned by Queue when the job's id is already known
	// and its pending counter has reached zero. Never-ending jobs never get it.
	ErrAlreadyDone = errors.New("cluster: job already done")

	// ErrMissingCallback is returned by Queue when no callback has ever been
	// registered for the job's id and none was supplied.
	ErrMissingCallback = errors.New("cluster: no callback registered for job id")

	// ErrUnknownJobKind is returned when a popped queue item names a kind with
	// no registered decoder.
	ErrUnknownJobKind = errors.New("cluster: unknown job kind")
)
