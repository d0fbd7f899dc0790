// Package storage abstracts the object store that holds every landing zone
// location: source drops, archive, reject, quarantine, Parquet output, the
// tracker ledgers and the run logs.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// Object describes one listed object.
type Object struct {
	Key  string
	Size int64
}

// CopyState is the state of a store-side copy.
type CopyState string

const (
	CopyPending CopyState = "pending"
	CopySuccess CopyState = "success"
	CopyFailed  CopyState = "failed"
	CopyAborted CopyState = "aborted"
)

// Store is the minimal object store surface the pipeline needs.
type Store interface {
	// List returns every object under prefix, recursively, in key order.
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	// Get opens an object for reading. Missing objects return ErrNotFound.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	// Put writes an object. size may be -1 when unknown.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error
	// Delete removes an object. Missing objects return ErrNotFound.
	Delete(ctx context.Context, bucket, key string) error
	// Tags returns the object's tags.
	Tags(ctx context.Context, bucket, key string) (map[string]string, error)
	// StartCopy begins a store-side copy of src onto dst.
	StartCopy(ctx context.Context, src, dst Ref) error
	// CopyStatus reports the state of the copy that targets dst.
	CopyStatus(ctx context.Context, dst Ref) (CopyState, error)
}

// Ref addresses one object.
type Ref struct {
	Bucket string
	Key    string
}

func (r Ref) String() string { return r.Bucket + "/" + r.Key }

// Location is a bucket plus key prefix.
type Location struct {
	Bucket string
	Prefix string
}

// Key joins parts below the location's prefix.
func (l Location) Key(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if p := strings.Trim(l.Prefix, "/"); p != "" {
		all = append(all, p)
	}
	for _, part := range parts {
		if part = strings.Trim(part, "/"); part != "" {
			all = append(all, part)
		}
	}
	return path.Join(all...)
}

// Ref returns the object at parts below the location.
func (l Location) Ref(parts ...string) Ref {
	return Ref{Bucket: l.Bucket, Key: l.Key(parts...)}
}

// ListPrefix is the prefix used to list everything below the location.
func (l Location) ListPrefix() string {
	p := strings.Trim(l.Prefix, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// Rel returns key relative to the location's prefix.
func (l Location) Rel(key string) string {
	return strings.TrimPrefix(key, l.ListPrefix())
}

func (l Location) String() string {
	return l.Bucket + "/" + strings.Trim(l.Prefix, "/")
}
