package cluster

import (
	"context"
	"fmt"
)

// Queue registers cb for job.ID() the first time that id is seen, increments
// both the global and per-id pending counters, and pushes job onto the
// persistent queue. Workers call this with a nil cb when fanning out
// sub-jobs, since the parent's callback is already registered.
func (s *Supervisor) Queue(job Job, cb Callback) error {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return ErrAlreadyShutdown
	}

	id := job.ID()
	if pending, known := s.pendingByID[id]; known && pending <= 0 && !job.NeverEnding() {
		s.mu.Unlock()
		return ErrAlreadyDone
	}

	if _, hasCb := s.callbacks[id]; !hasCb {
		if cb == nil {
			s.mu.Unlock()
			return ErrMissingCallback
		}
		s.callbacks[id] = cb
	}

	s.pendingByID[id]++
	s.globalPending++
	s.clearIdleLocked()
	s.mu.Unlock()

	item, err := s.encode(job)
	if err != nil {
		s.mu.Lock()
		s.pendingByID[id]--
		s.globalPending--
		s.mu.Unlock()
		return fmt.Errorf("encode job %s: %w", id, err)
	}

	s.jobQueue.Push(item)
	return nil
}

// HandleResult routes res to the callback registered for res.Job.ID(), a
// no-op if that id is already done. Callback errors (panics) are recovered,
// logged, and suppressed so one bad callback cannot corrupt accounting or
// starve other jobs.
func (s *Supervisor) HandleResult(res Result) {
	id := res.Job.ID()

	s.mu.Lock()
	pending, known := s.pendingByID[id]
	cb := s.callbacks[id]
	s.mu.Unlock()

	if cb == nil {
		return
	}
	if known && pending <= 0 && !res.Job.NeverEnding() {
		return
	}

	s.invokeCallback(cb, res)
}

func (s *Supervisor) invokeCallback(cb Callback, res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_id", res.Job.ID()).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("job callback panicked, suppressing")
		}
	}()
	cb(res)
}

// DecreasePending decrements global and per-id pending counters by one for
// the instance that just finished. If the per-id counter reaches zero, it
// triggers jobDone. The global counter is the single source of truth for
// idle detection: checkIdle runs unconditionally, independent of any
// per-job never-ending status, so a never-ending job that happens to drain
// to zero pending still lets the cluster go idle.
func (s *Supervisor) DecreasePending(job Job) {
	id := job.ID()

	s.mu.Lock()
	s.pendingByID[id]--
	s.globalPending--
	perID := s.pendingByID[id]
	global := s.globalPending
	s.mu.Unlock()

	if perID <= 0 && !job.NeverEnding() {
		s.jobDone(job)
	}
	s.checkIdle(global)
}

// jobDone drops the skip set and callback for a non-never-ending job and
// resets its per-id counter to zero. It deliberately does not touch the
// global counter: DecreasePending is this implementation's sole source of
// truth for the global count (the "counter drain" discipline from
// DESIGN.md), so jobDone never double-subtracts the way the original
// design's "subtract pending from global" step could race with an
// in-flight decrement.
func (s *Supervisor) jobDone(job Job) {
	if job.NeverEnding() {
		return
	}
	id := job.ID()

	s.mu.Lock()
	s.skipSets.Drop(id)
	delete(s.callbacks, id)
	s.pendingByID[id] = 0
	s.mu.Unlock()
}

// JobDone reports whether job's id has a zero pending count. Never-ending
// jobs always report false, and their pending count is allowed to oscillate
// above and below zero as results keep arriving. If failIfMissing is set and
// the id is unknown to both the pending and callback tables, JobDone returns
// ErrJobNotFound.
func (s *Supervisor) JobDone(job Job, failIfMissing bool) (bool, error) {
	if job.NeverEnding() {
		return false, nil
	}

	id := job.ID()
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, knownPending := s.pendingByID[id]
	_, knownCb := s.callbacks[id]
	if failIfMissing && !knownPending && !knownCb {
		return false, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return pending <= 0, nil
}

// Done reports whether the global pending counter is zero.
func (s *Supervisor) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalPending <= 0
}

// Wait blocks until the cluster is idle (global pending counter zero) or
// until shutdown or ctx cancellation, whichever comes first. It returns
// immediately on an idle, never-used cluster.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return ErrAlreadyShutdown
	}
	if s.globalPending <= 0 {
		s.mu.Unlock()
		return nil
	}
	idleCh := s.idleCh
	shutdownCh := s.shutdownCh
	s.mu.Unlock()

	select {
	case <-idleCh:
		return nil
	case <-shutdownCh:
		return ErrAlreadyShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkIdle closes the idle channel (waking every blocked Wait) the instant
// the global counter is observed at or below zero, if it isn't signaled
// already.
func (s *Supervisor) checkIdle(global int64) {
	if global > 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.globalPending > 0 {
		return // a concurrent Queue raced us back above zero
	}
	if !s.idleSignaled {
		s.idleSignaled = true
		close(s.idleCh)
	}
}

// clearIdleLocked resets the idle signal so a subsequent Wait blocks. Must
// be called with s.mu held.
func (s *Supervisor) clearIdleLocked() {
	if s.idleSignaled {
		s.idleSignaled = false
		s.idleCh = make(chan struct{})
	}
}
