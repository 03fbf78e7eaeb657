package cluster_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germesdev/arachni/internal/cluster"
)

func newTestSupervisor(t *testing.T, opts ...cluster.Option) (*cluster.Supervisor, func() *fakeBrowser) {
	t.Helper()

	var mu sync.Mutex
	var browsers []*fakeBrowser

	factory := func(jsToken string) (cluster.Browser, error) {
		b := newFakeBrowser()
		mu.Lock()
		browsers = append(browsers, b)
		mu.Unlock()
		return b, nil
	}

	sup, err := cluster.NewSupervisor(factory, opts...)
	require.NoError(t, err)
	sup.RegisterKind(fakeJobKind, decodeFakeJob)

	t.Cleanup(func() { _ = sup.Shutdown() })

	latest := func() *fakeBrowser {
		mu.Lock()
		defer mu.Unlock()
		if len(browsers) == 0 {
			return nil
		}
		return browsers[len(browsers)-1]
	}
	return sup, latest
}

func TestQueueSingleJobInvokesCallbackOnce(t *testing.T) {
	sup, _ := newTestSupervisor(t, cluster.WithPoolSize(1))

	var mu sync.Mutex
	var results []cluster.Result
	cb := func(res cluster.Result) {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
	}

	job := newFakeJob("job-1", "https://a.test/")
	require.NoError(t, sup.Queue(job, cb))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 1)
	assert.Equal(t, "job-1", results[0].Job.ID())
	assert.True(t, sup.Done())
}

func TestFanOutSharesParentIDAndDrainsTogether(t *testing.T) {
	sup, _ := newTestSupervisor(t, cluster.WithPoolSize(3))

	var mu sync.Mutex
	seen := make(map[string]int)
	cb := func(res cluster.Result) {
		mu.Lock()
		defer mu.Unlock()
		seen[res.Job.ID()]++
	}

	job := newFakeJob("parent-1", "https://a.test/", "https://a.test/1", "https://a.test/2", "https://a.test/3")
	require.NoError(t, sup.Queue(job, cb))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, sup.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 4, seen["parent-1"]) // 1 parent result + 3 children, same id
	done, err := sup.JobDone(job, true)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestSkipSetPreventsDuplicateFanOut(t *testing.T) {
	sup, _ := newTestSupervisor(t, cluster.WithPoolSize(4))

	var mu sync.Mutex
	count := 0
	cb := func(res cluster.Result) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}

	// The child link is already marked in the skip registry before the job
	// runs, so its fan-out must skip it and only the parent's result arrives.
	sup.AddSkip("race-1", "https://a.test/dup")
	job := newFakeJob("race-1", "https://a.test/", "https://a.test/dup")
	require.NoError(t, sup.Queue(job, cb))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sup.Wait(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count) // the child was already marked skipped
}

func TestNeverEndingJobReusesCallbackAcrossSubmissions(t *testing.T) {
	sup, _ := newTestSupervisor(t, cluster.WithPoolSize(2))

	var mu sync.Mutex
	count := 0
	cb := func(res cluster.Result) {
		mu.Lock()
		defer mu.Unlock()
		count++
	}

	job := newNeverEndingFakeJob("provider-1", "https://a.test/")
	require.NoError(t, sup.Queue(job, cb))
	for i := 0; i < 9; i++ {
		require.NoError(t, sup.Queue(job, nil))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 10
	}, 3*time.Second, 10*time.Millisecond)

	done, err := sup.JobDone(job, true)
	require.NoError(t, err)
	assert.False(t, done, "never-ending jobs never report done")
}

func TestQueueWithoutCallbackFailsForUnknownID(t *testing.T) {
	sup, _ := newTestSupervisor(t, cluster.WithPoolSize(1))

	job := newFakeJob("unknown-1", "https://a.test/")
	err := sup.Queue(job, nil)
	assert.ErrorIs(t, err, cluster.ErrMissingCallback)
}

func TestWaitReturnsImmediatelyOnIdleCluster(t *testing.T) {
	sup, _ := newTestSupervisor(t, cluster.WithPoolSize(1))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, sup.Wait(ctx))
}

func TestShutdownIsIdempotentAndRejectsFurtherWork(t *testing.T) {
	sup, _ := newTestSupervisor(t, cluster.WithPoolSize(1))

	require.NoError(t, sup.Shutdown())
	assert.NoError(t, sup.Shutdown())

	job := newFakeJob("after-shutdown", "https://a.test/")
	assert.ErrorIs(t, sup.Queue(job, func(cluster.Result) {}), cluster.ErrAlreadyShutdown)
}

func TestWorkerRecyclesBrowserAfterTimeToLive(t *testing.T) {
	sup, latest := newTestSupervisor(t, cluster.WithPoolSize(1), cluster.WithTimeToLive(2))

	var mu sync.Mutex
	count := 0
	cb := func(cluster.Result) {
		mu.Lock()
		count++
		mu.Unlock()
	}

	for i := 0; i < 5; i++ {
		job := newFakeJob(fakeJobID(i), "https://a.test/")
		require.NoError(t, sup.Queue(job, cb))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 5
	}, 3*time.Second, 10*time.Millisecond)

	// TTL=2 across 5 jobs recycles twice mid-run; the final browser should
	// have been shut down by the time the cluster is told to stop.
	require.NoError(t, sup.Shutdown())
	b := latest()
	require.NotNil(t, b)
	assert.GreaterOrEqual(t, b.shutdownCount(), 1)
}

func fakeJobID(i int) string {
	return "recycle-job-" + string(rune('a'+i))
}
