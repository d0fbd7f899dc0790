// Package tracker keeps the per-origin ledger of source keys that have been
// transformed. It is an advisory guard: the authoritative signal that a
// file is done is its absence from the source listing.
package tracker

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/storage"
)

// Ledger is a newline-delimited set of source identities stored as one
// object.
type Ledger struct {
	store storage.Store
	ref   storage.Ref

	mu      sync.Mutex
	order   []string
	entries map[string]struct{}
	dirty   bool
}

// Load reads the ledger at ref. A missing ledger is created empty.
func Load(ctx context.Context, store storage.Store, ref storage.Ref) (*Ledger, error) {
	l := &Ledger{store: store, ref: ref, entries: make(map[string]struct{})}

	data, err := storage.ReadAll(ctx, store, ref)
	switch {
	case storage.IsNotFound(err):
		logging.FromContext(ctx).Info("tracker ledger not found, creating", "ledger", ref.String())
		if err := storage.PutBytes(ctx, store, ref, nil); err != nil {
			return nil, fmt.Errorf("create tracker ledger %s: %w", ref, err)
		}
		return l, nil
	case err != nil:
		return nil, fmt.Errorf("read tracker ledger %s: %w", ref, err)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if _, ok := l.entries[line]; !ok {
			l.entries[line] = struct{}{}
			l.order = append(l.order, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse tracker ledger %s: %w", ref, err)
	}
	return l, nil
}

// Contains reports whether key has been recorded.
func (l *Ledger) Contains(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[key]
	return ok
}

// Add records key. Persist must be called to make it durable.
func (l *Ledger) Add(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[key]; ok {
		return
	}
	l.entries[key] = struct{}{}
	l.order = append(l.order, key)
	l.dirty = true
}

// Len returns the number of recorded keys.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Keys returns the recorded keys in sorted order.
func (l *Ledger) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]string(nil), l.order...)
	sort.Strings(out)
	return out
}

// Persist writes the ledger back when it changed since loading.
func (l *Ledger) Persist(ctx context.Context) error {
	l.mu.Lock()
	if !l.dirty {
		l.mu.Unlock()
		return nil
	}
	var buf bytes.Buffer
	for _, k := range l.order {
		buf.WriteString(k)
		buf.WriteByte('\n')
	}
	l.mu.Unlock()

	if err := storage.PutBytes(ctx, l.store, l.ref, buf.Bytes()); err != nil {
		return fmt.Errorf("persist tracker ledger %s: %w", l.ref, err)
	}

	l.mu.Lock()
	l.dirty = false
	l.mu.Unlock()
	return nil
}

// Reset empties the ledger at ref, so files copied back from the archive
// are processed again. It returns how many entries were dropped.
func Reset(ctx context.Context, store storage.Store, ref storage.Ref) (int, error) {
	l, err := Load(ctx, store, ref)
	if err != nil {
		return 0, err
	}
	n := l.Len()
	if err := storage.PutBytes(ctx, store, ref, nil); err != nil {
		return 0, fmt.Errorf("reset tracker ledger %s: %w", ref, err)
	}
	logging.FromContext(ctx).Info("tracker ledger reset", "ledger", ref.String(), "dropped", n)
	return n, nil
}
