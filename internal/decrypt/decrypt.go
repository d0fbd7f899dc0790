// Package decrypt reverses the encryption applied to inbound payloads.
// Decrypters are registered per file suffix and materialise plaintext to a
// temporary working copy whose size is the plaintext size.
package decrypt

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Decrypter turns ciphertext into a plaintext working copy.
type Decrypter interface {
	Decrypt(ctx context.Context, r io.Reader, logicalName string) (*WorkingCopy, error)
}

// WorkingCopy is a payload materialised on local disk.
type WorkingCopy struct {
	Path string
	Size int64
}

// Open opens the working copy for reading.
func (w *WorkingCopy) Open() (*os.File, error) {
	return os.Open(w.Path)
}

// Close removes the working copy.
func (w *WorkingCopy) Close() error {
	if w == nil || w.Path == "" {
		return nil
	}
	err := os.Remove(w.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Materialize copies r into a new temporary file in dir. The file keeps the
// extension of logicalName so readers can rely on it.
func Materialize(ctx context.Context, dir, logicalName string, r io.Reader) (*WorkingCopy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(dir, "payload-*"+filepath.Ext(logicalName))
	if err != nil {
		return nil, fmt.Errorf("create working copy: %w", err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("write working copy for %s: %w", logicalName, err)
	}
	return &WorkingCopy{Path: f.Name(), Size: n}, nil
}

// Registry maps encryption suffixes (without the dot) to decrypters.
type Registry struct {
	mu         sync.RWMutex
	decrypters map[string]Decrypter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decrypters: make(map[string]Decrypter)}
}

// Register adds a decrypter for suffix.
// Panics if the suffix is already registered.
func (r *Registry) Register(suffix string, d Decrypter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	suffix = normalize(suffix)
	if _, exists := r.decrypters[suffix]; exists {
		panic(fmt.Sprintf("decrypter already registered: %s", suffix))
	}
	r.decrypters[suffix] = d
}

// Get returns the decrypter for suffix.
func (r *Registry) Get(suffix string) (Decrypter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decrypters[normalize(suffix)]
	return d, ok
}

// Has reports whether suffix names a registered scheme.
func (r *Registry) Has(suffix string) bool {
	_, ok := r.Get(suffix)
	return ok
}

// Suffixes returns the registered suffixes in sorted order.
func (r *Registry) Suffixes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decrypters))
	for s := range r.decrypters {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalize(suffix string) string {
	return strings.ToLower(strings.TrimPrefix(suffix, "."))
}
