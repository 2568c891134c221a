package service

import "sync"

// Holder is a lazily-initialized accessor for a process-wide Collection.
// Construction happens at most once, guarded by a single lock; there is no
// ambient mutable singleton for unrelated code to reconfigure.
type Holder[T any] struct {
	once  sync.Once
	build func() *Collection[T]
	svc   *Collection[T]
}

// NewHolder wraps a constructor that runs on first Get.
func NewHolder[T any](build func() *Collection[T]) *Holder[T] {
	return &Holder[T]{build: build}
}

// Get returns the held service, constructing it on first use.
func (h *Holder[T]) Get() *Collection[T] {
	h.once.Do(func() {
		h.svc = h.build()
	})
	return h.svc
}
