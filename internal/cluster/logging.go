package cluster

import "github.com/ternarybob/arbor"

// defaultLogger is used when a Config is built without an explicit
// WithLogger option. Mirrors the teacher's fallback-console-logger pattern
// (internal/common/logger.go) but scoped to this package instead of a
// process-wide singleton.
func defaultLogger() arbor.ILogger {
	return arbor.NewLogger()
}
