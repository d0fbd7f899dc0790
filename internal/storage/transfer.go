package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/JonMunkholm/landingzone/internal/logging"
)

// Transfer moves objects with copy-then-delete semantics.
type Transfer struct {
	Store        Store
	PollInterval time.Duration
	MaxPolls     int
}

// NewTransfer creates a Transfer with the given poll bounds.
func NewTransfer(store Store, pollInterval time.Duration, maxPolls int) *Transfer {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 1
	}
	return &Transfer{Store: store, PollInterval: pollInterval, MaxPolls: maxPolls}
}

// Move copies src onto dst, waits for the copy to succeed, then deletes src.
// The source is only deleted after a confirmed copy.
func (t *Transfer) Move(ctx context.Context, src, dst Ref) error {
	if err := t.Store.StartCopy(ctx, src, dst); err != nil {
		return fmt.Errorf("start copy %s -> %s: %w", src, dst, err)
	}
	if err := t.waitForCopy(ctx, dst); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", src, dst, err)
	}
	if err := t.Store.Delete(ctx, src.Bucket, src.Key); err != nil && !IsNotFound(err) {
		return fmt.Errorf("delete %s after copy: %w", src, err)
	}
	return nil
}

// waitForCopy polls the copy status until success, a terminal failure, or
// MaxPolls checks have reported pending.
func (t *Transfer) waitForCopy(ctx context.Context, dst Ref) error {
	logger := logging.FromContext(ctx)

	for poll := 1; poll <= t.MaxPolls; poll++ {
		state, err := t.Store.CopyStatus(ctx, dst)
		if err != nil {
			return err
		}

		switch state {
		case CopySuccess:
			return nil
		case CopyPending:
			logger.Debug("copy pending", "destination", dst.String(), "poll", poll)
		default:
			return wrapError(CodeCopyFailed, false, fmt.Errorf("copy ended in state %q", state))
		}

		if poll == t.MaxPolls {
			break
		}
		timer := time.NewTimer(t.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("%w: %d polls at %s", ErrCopyTimeout, t.MaxPolls, t.PollInterval)
}

// PruneEmptyParents removes directory markers above key that no longer
// hold any object, walking upwards until root (exclusive) or the first
// non-empty directory.
func PruneEmptyParents(ctx context.Context, store Store, bucket, key, root string) error {
	root = strings.Trim(root, "/")
	dir := path.Dir(strings.Trim(key, "/"))

	for dir != "." && dir != "" && (root == "" || strings.HasPrefix(dir, root+"/")) {
		remaining, err := store.List(ctx, bucket, dir+"/")
		if err != nil {
			return fmt.Errorf("list %s/%s: %w", bucket, dir, err)
		}
		if !onlyMarker(remaining, dir+"/") {
			return nil
		}
		if err := store.Delete(ctx, bucket, dir+"/"); err != nil && !IsNotFound(err) {
			return fmt.Errorf("delete directory %s/%s: %w", bucket, dir, err)
		}
		logging.FromContext(ctx).Debug("pruned empty directory", "bucket", bucket, "dir", dir)
		dir = path.Dir(dir)
	}
	return nil
}

func onlyMarker(objects []Object, marker string) bool {
	for _, o := range objects {
		if o.Key != marker {
			return false
		}
	}
	return true
}

// ReadAll reads an object fully.
func ReadAll(ctx context.Context, store Store, ref Ref) ([]byte, error) {
	rc, err := store.Get(ctx, ref.Bucket, ref.Key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// PutBytes writes data as an object.
func PutBytes(ctx context.Context, store Store, ref Ref, data []byte) error {
	return store.Put(ctx, ref.Bucket, ref.Key, bytes.NewReader(data), int64(len(data)))
}
