package cluster

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/germesdev/arachni/internal/cluster/queue"
)

// DecodeFunc reconstructs a Job from the payload it serialized itself into,
// registered per-kind via RegisterKind.
type DecodeFunc func(id string, neverEnding bool, payload json.RawMessage) (Job, error)

// BrowserFactory builds a fresh Browser for a worker, either at startup or
// after a recycle. jsToken is the value most recently set via SetJSToken,
// letting job bodies rotate a shared credential without restarting the pool.
type BrowserFactory func(jsToken string) (Browser, error)

// Supervisor is the cluster's single coordination point: it owns the
// persistent job queue, the pending-job accounting, the skip registry, the
// sitemap, and the worker pool. All exported methods are safe for
// concurrent use.
type Supervisor struct {
	cfg    Config
	logger arbor.ILogger

	browserFactory BrowserFactory

	mu          sync.Mutex
	jsToken     string
	decoders    map[string]DecodeFunc
	callbacks   map[string]Callback
	pendingByID map[string]int64
	globalPending int64
	skipSets    *skipRegistry
	sitemap     map[string]int

	idleCh       chan struct{}
	idleSignaled bool

	isShutdown bool
	shutdownCh chan struct{}

	jobQueue *queue.Queue

	workers []*worker
	wg      sync.WaitGroup
}

// NewSupervisor builds a Supervisor, its persistent queue, and its worker
// pool, then starts every worker. browserFactory is called once per worker
// at startup and again each time that worker recycles its browser.
func NewSupervisor(browserFactory BrowserFactory, opts ...Option) (*Supervisor, error) {
	if browserFactory == nil {
		return nil, fmt.Errorf("cluster: browserFactory must not be nil")
	}

	cfg := NewDefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	q, err := queue.New(cfg.QueueDir, cfg.QueueResidentThreshold)
	if err != nil {
		return nil, fmt.Errorf("create job queue: %w", err)
	}

	s := &Supervisor{
		cfg:            cfg,
		logger:         cfg.Logger,
		browserFactory: browserFactory,
		decoders:       make(map[string]DecodeFunc),
		callbacks:      make(map[string]Callback),
		pendingByID:    make(map[string]int64),
		skipSets:       newSkipRegistry(),
		sitemap:        make(map[string]int),
		idleCh:         make(chan struct{}),
		shutdownCh:     make(chan struct{}),
		jobQueue:       q,
	}

	s.workers = make([]*worker, cfg.PoolSize)
	for i := 0; i < cfg.PoolSize; i++ {
		w := newWorker(i, s)
		s.workers[i] = w
		s.wg.Add(1)
		go w.run(&s.wg)
	}

	return s, nil
}

// RegisterKind associates kind with the decoder used to reconstruct a Job
// popped from the persistent queue. Job bodies register their own kind(s)
// before any instance of that kind is queued.
func (s *Supervisor) RegisterKind(kind string, fn DecodeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decoders[kind] = fn
}

// SetJSToken updates the token handed to BrowserFactory on every subsequent
// browser creation (startup or recycle). Existing, already-running browsers
// are unaffected until their worker next recycles.
func (s *Supervisor) SetJSToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jsToken = token
}

func (s *Supervisor) currentJSToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jsToken
}

// Submit queues a root job (one with no parent) under the id it already
// carries, registering cb for every result that eventually arrives for it.
// It is equivalent to Queue; callers mint the id with NewJobID.
func (s *Supervisor) Submit(job Job, cb Callback) error {
	return s.Queue(job, cb)
}

// NewJobID mints a fresh, globally unique job id for root jobs. Sub-jobs
// reuse their parent's id via Job.Forward instead of calling this.
func (s *Supervisor) NewJobID() string {
	return uuid.NewString()
}

// Logger returns the structured logger configured for this cluster, for job
// bodies that want to record their own audit-trail entries.
func (s *Supervisor) Logger() arbor.ILogger {
	return s.logger
}

// Skip reports whether action has already been performed for job id, per
// the cross-worker skip registry.
func (s *Supervisor) Skip(jobID, action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipSets.Contains(jobID, action)
}

// AddSkip records action as performed for job id.
func (s *Supervisor) AddSkip(jobID, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipSets.Add(jobID, action)
}

// MergeSkips records every action in actions as performed for job id in one
// locked pass, for job bodies that discover a batch of actions at once.
func (s *Supervisor) MergeSkips(jobID string, actions []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipSets.Merge(jobID, actions)
}

// PushToSitemap increments the visit count recorded against resource.
func (s *Supervisor) PushToSitemap(resource string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sitemap[resource]++
}

// Sitemap returns a snapshot copy of the resource visit counts accumulated
// so far.
func (s *Supervisor) Sitemap() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.sitemap))
	for k, v := range s.sitemap {
		out[k] = v
	}
	return out
}

// Shutdown stops accepting new work, wakes every blocked worker and Wait
// call, and blocks until all workers have released their browsers. It is
// idempotent: a second call returns nil without side effects.
func (s *Supervisor) Shutdown() error {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return nil
	}
	s.isShutdown = true
	close(s.shutdownCh)
	s.mu.Unlock()

	s.jobQueue.Close()
	s.wg.Wait()

	_ = s.jobQueue.Clear()
	if err := s.jobQueue.Destroy(); err != nil {
		s.logger.Warn().Str("error", err.Error()).Msg("queue destroy failed during shutdown")
	}

	return nil
}

// encode serializes job into a queue.Item via its own Payload method.
func (s *Supervisor) encode(job Job) (*queue.Item, error) {
	payload, err := job.Payload()
	if err != nil {
		return nil, fmt.Errorf("job %s payload: %w", job.ID(), err)
	}
	return &queue.Item{
		ID:          job.ID(),
		Kind:        job.Kind(),
		NeverEnding: job.NeverEnding(),
		Payload:     payload,
	}, nil
}

// decode reconstructs a Job from a popped queue.Item using the decoder
// registered for its Kind.
func (s *Supervisor) decode(item *queue.Item) (Job, error) {
	s.mu.Lock()
	fn, ok := s.decoders[item.Kind]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobKind, item.Kind)
	}
	return fn(item.ID, item.NeverEnding, item.Payload)
}
