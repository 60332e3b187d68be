package dedupe

// Option applies a configuration option to the deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of pending keys. maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithOnEvict registers fn to be called, under the deduper lock, with each
// key dropped to make room. fn must not call back into the deduper.
func WithOnEvict(fn func(key string)) Option {
	return func(d *inMemoryDeduper) {
		d.onEvict = fn
	}
}
