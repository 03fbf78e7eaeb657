package cluster

import "github.com/ternarybob/arbor"

// Config holds the settings fixed at cluster construction. Nothing here is
// read from the environment or the command line by this package; the cmd/
// entrypoint owns translating flags/files into a Config.
type Config struct {
	// PoolSize is the number of worker goroutines, each owning one browser.
	PoolSize int

	// TimeToLive is the number of jobs a single browser instance serves
	// before the worker recycles it. Never-ending jobs are not counted.
	TimeToLive int

	// QueueDir is the directory the persistent job queue spills overflow
	// items to. An empty value means "create and own a temp directory".
	QueueDir string

	// QueueResidentThreshold is the number of items the job queue keeps in
	// memory before spilling additional pushes to disk.
	QueueResidentThreshold int

	// Logger receives structured logs from every cluster component.
	Logger arbor.ILogger
}

// NewDefaultConfig returns the spec's documented defaults: pool_size=6,
// time_to_live=10.
func NewDefaultConfig() Config {
	return Config{
		PoolSize:               6,
		TimeToLive:             10,
		QueueResidentThreshold: 256,
		Logger:                 defaultLogger(),
	}
}

// Option customizes a Config produced by NewDefaultConfig.
type Option func(*Config)

func WithPoolSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.PoolSize = n
		}
	}
}

func WithTimeToLive(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.TimeToLive = n
		}
	}
}

func WithQueueDir(dir string) Option {
	return func(c *Config) { c.QueueDir = dir }
}

func WithQueueResidentThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.QueueResidentThreshold = n
		}
	}
}

func WithLogger(logger arbor.ILogger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}
