// Package queue implements the cluster's persistent job queue: a
// bounded-memory FIFO whose overflow spills to a badgerhold-backed disk
// store, the way internal/queue/badger_manager.go in the teacher app backs
// a message queue with badgerhold — but here badger only absorbs items past
// a resident threshold, not the whole queue, since the cluster only needs
// disk-backing to bound memory, not cross-restart durability.
package queue

import (
	"container/list"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Pop once the queue has been closed and drained.
var ErrClosed = errors.New("queue: closed")

// Item is the serializable envelope pushed through the queue. Supervisor
// encodes a Job into an Item before Push and decodes it back via the job's
// Kind on Pop.
type Item struct {
	ID          string
	Kind        string
	NeverEnding bool
	Payload     json.RawMessage
}

// spillRef is the in-memory placeholder left behind for an item that has
// been written to disk, preserving its position in the FIFO order.
type spillRef struct {
	seq uint64
}

// Queue is a thread-safe FIFO. Push never blocks; Pop blocks until an item
// is available, the queue is closed, or ctx is done.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	entries   *list.List // elements are *Item (resident) or spillRef (spilled)
	resident  int
	threshold int
	store     *diskStore
	closed    bool
	seq       uint64
}

// New creates a Queue that keeps up to threshold items resident in memory
// before spilling further pushes to a badgerhold store rooted at dir.
func New(dir string, threshold int) (*Queue, error) {
	if threshold <= 0 {
		threshold = 1
	}
	store, err := newDiskStore(dir)
	if err != nil {
		return nil, err
	}
	q := &Queue{
		entries:   list.New(),
		threshold: threshold,
		store:     store,
	}
	q.cond = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends item, spilling it to disk if the queue already holds
// threshold resident items. Push never blocks and, while the queue is open,
// never drops an item: a disk write failure falls back to keeping the item
// resident. Items pushed after Close are discarded.
func (q *Queue) Push(item *Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	if q.resident < q.threshold {
		q.entries.PushBack(item)
		q.resident++
		q.cond.Signal()
		return
	}

	q.seq++
	seq := q.seq
	if err := q.store.put(seq, item); err != nil {
		q.entries.PushBack(item)
		q.resident++
	} else {
		q.entries.PushBack(spillRef{seq: seq})
	}
	q.cond.Signal()
}

// Pop blocks until an item is available, returning it in submission order.
// It returns ErrClosed once the queue is closed and its backlog is drained,
// and ctx.Err() if ctx is done first.
func (q *Queue) Pop(ctx context.Context) (*Item, error) {
	const maxWait = 2 * time.Second

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if front := q.entries.Front(); front != nil {
			q.entries.Remove(front)
			switch v := front.Value.(type) {
			case *Item:
				q.resident--
				return v, nil
			case spillRef:
				item, err := q.store.take(v.seq)
				if err != nil {
					return nil, err
				}
				return item, nil
			}
		}

		if q.closed {
			return nil, ErrClosed
		}

		timer := time.AfterFunc(maxWait, func() { q.cond.Broadcast() })
		q.cond.Wait()
		timer.Stop()
	}
}

// Len reports the number of items currently queued (resident or spilled).
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// Clear discards all in-memory items and deletes their on-disk backing
// files. Safe to call during shutdown; does not close the queue.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = list.New()
	q.resident = 0
	return q.store.clear()
}

// Close marks the queue closed and wakes every blocked Pop. Callers should
// follow with Clear to release on-disk state, then Destroy to remove the
// store's directory entirely.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Destroy closes the backing disk store and removes its directory. Call
// once, after Close/Clear, when the queue will never be used again.
func (q *Queue) Destroy() error {
	return q.store.destroy()
}
