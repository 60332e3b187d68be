// Package dedupe coalesces pending refresh requests per key.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

const defaultMaxSize = 50_000

// Deduper tracks keys that already have work pending.
type Deduper interface {
	// SeenAndRecord reports whether key is already pending and marks it
	// pending if not. Check and record happen atomically.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord clears key once its work is done or could not be queued.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper is a map plus insertion-ordered list. When full, the
// oldest pending key is forgotten; at worst that key is refreshed twice.
type inMemoryDeduper struct {
	mu      sync.Mutex
	pending map[string]*list.Element
	order   *list.List
	maxSize int
	onEvict func(key string)
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		pending: make(map[string]*list.Element),
		order:   list.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[key]; ok {
		return true
	}
	if d.maxSize > 0 && len(d.pending) >= d.maxSize {
		d.evictOldest()
	}
	d.pending[key] = d.order.PushBack(key)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.pending[key]; ok {
		d.order.Remove(el)
		delete(d.pending, key)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	key := d.order.Remove(front).(string)
	delete(d.pending, key)
	if d.onEvict != nil {
		d.onEvict(key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.pending))
}
