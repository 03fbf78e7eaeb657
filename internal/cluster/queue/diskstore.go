package queue

import (
	"fmt"
	"os"

	"github.com/timshannon/badgerhold/v4"
)

// spillRecord is the badgerhold-persisted representation of a queue Item
// that overflowed the in-memory resident threshold.
type spillRecord struct {
	Seq  uint64 `badgerhold:"key"`
	Item Item
}

// diskStore wraps a badgerhold.Store the way
// internal/queue/badger_manager.go wraps one for the teacher's message
// queue, scoped here to spillover storage instead of the whole queue.
type diskStore struct {
	store *badgerhold.Store
	dir   string
	owned bool
}

func newDiskStore(dir string) (*diskStore, error) {
	owned := false
	if dir == "" {
		tmp, err := os.MkdirTemp("", "browsercluster-queue-*")
		if err != nil {
			return nil, fmt.Errorf("create queue spill dir: %w", err)
		}
		dir = tmp
		owned = true
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir
	opts.Logger = nil

	store, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open queue spill store: %w", err)
	}

	return &diskStore{store: store, dir: dir, owned: owned}, nil
}

func (d *diskStore) put(seq uint64, item *Item) error {
	return d.store.Insert(seq, &spillRecord{Seq: seq, Item: *item})
}

func (d *diskStore) take(seq uint64) (*Item, error) {
	var rec spillRecord
	if err := d.store.Get(seq, &rec); err != nil {
		return nil, fmt.Errorf("read spilled item %d: %w", seq, err)
	}
	if err := d.store.Delete(seq, &spillRecord{}); err != nil {
		return nil, fmt.Errorf("delete spilled item %d: %w", seq, err)
	}
	return &rec.Item, nil
}

func (d *diskStore) clear() error {
	return d.store.DeleteMatching(&spillRecord{}, badgerhold.Where("Seq").Ge(uint64(0)))
}

func (d *diskStore) destroy() error {
	if err := d.store.Close(); err != nil {
		return fmt.Errorf("close queue spill store: %w", err)
	}
	if d.owned {
		return os.RemoveAll(d.dir)
	}
	return nil
}
