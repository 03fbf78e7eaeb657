package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// workerState names a point in a worker's lifecycle, reported to the logger
// on every transition so pool behavior can be traced from log output alone.
type workerState string

const (
	stateStarting  workerState = "starting"
	stateIdle      workerState = "idle"
	stateRunning   workerState = "running"
	stateRecycling workerState = "recycling"
	stateShutdown  workerState = "shutdown"
)

// worker owns exactly one Browser at a time and runs a sequential loop:
// pop a job, execute it, decrease its pending count, repeat. After serving
// TimeToLive jobs it recycles its browser before popping again; never-ending
// jobs are not counted toward TimeToLive.
type worker struct {
	id  int
	sup *Supervisor

	browser    Browser
	jobsServed int
	state      workerState
}

func newWorker(id int, sup *Supervisor) *worker {
	return &worker{id: id, sup: sup, state: stateStarting}
}

func (w *worker) setState(s workerState) {
	w.state = s
	w.sup.logger.Debug().
		Str("worker", fmt.Sprintf("%d", w.id)).
		Str("state", string(s)).
		Msg("worker state transition")
}

// run is the worker's goroutine body, started once by NewSupervisor. It
// exits when Pop returns an error (queue.ErrClosed once the cluster is
// shutting down and the backlog is drained) or when the worker's first
// browser fails to start.
func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	if err := w.startBrowser(); err != nil {
		w.sup.logger.Error().
			Str("worker", fmt.Sprintf("%d", w.id)).
			Str("error", err.Error()).
			Msg("worker failed to start browser, exiting")
		return
	}
	defer w.stopBrowser()

	ctx := context.Background()

	for {
		w.setState(stateIdle)

		item, err := w.sup.jobQueue.Pop(ctx)
		if err != nil {
			w.setState(stateShutdown)
			return
		}

		job, err := w.sup.decode(item)
		if err != nil {
			w.sup.logger.Error().
				Str("worker", fmt.Sprintf("%d", w.id)).
				Str("job_id", item.ID).
				Str("error", err.Error()).
				Msg("failed to decode job, dropping")
			continue
		}

		w.runJob(ctx, job)

		if !job.NeverEnding() {
			w.jobsServed++
		}
		if w.jobsServed >= w.sup.cfg.TimeToLive {
			w.recycle()
		}
	}
}

// runJob executes job against the worker's current browser, recovering from
// any panic in Execute so one misbehaving job body cannot take the worker
// down, and always decrements job's pending count afterward regardless of
// outcome.
func (w *worker) runJob(ctx context.Context, job Job) {
	w.setState(stateRunning)

	err := w.safeExecute(ctx, job)
	if err != nil {
		w.sup.logger.Warn().
			Str("worker", fmt.Sprintf("%d", w.id)).
			Str("job_id", job.ID()).
			Str("job_kind", job.Kind()).
			Str("error", err.Error()).
			Msg("job execution failed")
	}

	w.sup.DecreasePending(job)
}

func (w *worker) safeExecute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID(), r)
		}
	}()
	return job.Execute(ctx, w.browser, w.sup)
}

// recycle shuts down the worker's current browser and replaces it with a
// fresh one built from the cluster's current JS token. A failure to start
// the replacement is logged and retried with backoff rather than killing
// the worker goroutine, since one permanently-dead worker would silently
// shrink pool capacity.
func (w *worker) recycle() {
	w.setState(stateRecycling)
	w.stopBrowser()
	w.jobsServed = 0

	backoff := 100 * time.Millisecond
	for {
		if err := w.startBrowser(); err == nil {
			return
		} else {
			w.sup.logger.Error().
				Str("worker", fmt.Sprintf("%d", w.id)).
				Str("error", err.Error()).
				Msg("browser recycle failed, retrying")
		}
		select {
		case <-w.sup.shutdownCh:
			return
		case <-time.After(backoff):
		}
		if backoff < 5*time.Second {
			backoff *= 2
		}
	}
}

func (w *worker) startBrowser() error {
	b, err := w.sup.browserFactory(w.sup.currentJSToken())
	if err != nil {
		return err
	}
	w.browser = b
	return nil
}

func (w *worker) stopBrowser() {
	if w.browser == nil {
		return
	}
	if err := w.browser.Shutdown(); err != nil {
		w.sup.logger.Warn().
			Str("worker", fmt.Sprintf("%d", w.id)).
			Str("error", err.Error()).
			Msg("browser shutdown failed")
	}
	w.browser = nil
}
