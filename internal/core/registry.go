package core

import (
	"fmt"
	"sort"
	"sync"
)

// KindRegistry maps payload kinds to handlers. It is filled once at startup
// and read for every file afterwards.
type KindRegistry[H any] struct {
	mu       sync.RWMutex
	handlers map[PayloadKind]H
}

// NewKindRegistry creates an empty registry.
func NewKindRegistry[H any]() *KindRegistry[H] {
	return &KindRegistry[H]{handlers: make(map[PayloadKind]H)}
}

// Register adds a handler for kind.
// Panics if the kind is already registered.
func (r *KindRegistry[H]) Register(kind PayloadKind, h H) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[kind]; exists {
		panic(fmt.Sprintf("payload kind already registered: %s", kind))
	}
	r.handlers[kind] = h
}

// Get returns the handler for kind.
// Returns false if not found.
func (r *KindRegistry[H]) Get(kind PayloadKind) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the registered kinds in sorted order.
func (r *KindRegistry[H]) Kinds() []PayloadKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]PayloadKind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
