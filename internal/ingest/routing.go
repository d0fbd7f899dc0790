package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/landingzone/internal/audit"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/storage"
)

type scanVerdict int

const (
	verdictPending scanVerdict = iota
	verdictClean
	verdictMalicious
	verdictUnknown
)

// readScanVerdict reads the malware scan tag of a source object.
func (o *Orchestrator) readScanVerdict(ctx context.Context, key string, origin Origin) (scanVerdict, error) {
	tags, err := o.cfg.Store.Tags(ctx, origin.Source.Bucket, key)
	if err != nil {
		return verdictUnknown, fmt.Errorf("read scan tag of %s: %w", key, err)
	}
	v, ok := tags[o.cfg.Scan.Tag]
	switch {
	case !ok:
		return verdictPending, nil
	case v == o.cfg.Scan.Malicious:
		return verdictMalicious, nil
	case v == o.cfg.Scan.Clean:
		return verdictClean, nil
	}
	return verdictUnknown, fmt.Errorf("scan tag %q has value %q", o.cfg.Scan.Tag, v)
}

// route moves the file to the location its outcome calls for and returns
// the disposition reached. A failed move leaves the file in place.
func (o *Orchestrator) route(ctx context.Context, origin Origin, file core.SourceFile, outcome core.Outcome) (core.Disposition, error) {
	log := logging.WithFields(ctx, "key", file.Key)

	switch {
	case outcome.Passed:
		if err := o.relocate(ctx, origin, file, origin.Archive, core.Archived); err != nil {
			return core.LeftInPlace, err
		}
		log.Info("file archived")
		return core.Archived, nil

	case outcome.RejectFile:
		log.Warn("file rejected", "failure", outcome.Kind, "error", outcome.Err)
		if err := o.relocate(ctx, origin, file, origin.Reject, core.Rejected); err != nil {
			return core.LeftInPlace, errors.Join(outcome.Err, err)
		}
		return core.Rejected, outcome.Err
	}

	log.Error("file left in place", "error", outcome.Err)
	return core.LeftInPlace, outcome.Err
}

func (o *Orchestrator) quarantine(ctx context.Context, origin Origin, file core.SourceFile) (core.Disposition, error) {
	if err := o.relocate(ctx, origin, file, origin.Quarantine, core.Quarantined); err != nil {
		return core.LeftInPlace, err
	}
	logging.WithFields(ctx, "key", file.Key).Warn("file quarantined by malware scan")
	return core.Quarantined, nil
}

// relocate moves a source file below dst keeping its relative key, records
// a routing activity and prunes emptied source directories.
func (o *Orchestrator) relocate(ctx context.Context, origin Origin, file core.SourceFile, dst storage.Location, d core.Disposition) error {
	src := origin.Source.Ref(file.Key)
	target := dst.Ref(file.Key)

	act, err := audit.Begin(ctx, o.cfg.Recorder, audit.Start{
		Activity:       audit.ActivityRouting,
		SourceName:     file.SourceName,
		SourceFileName: file.FileName,
	})
	if err != nil {
		return fmt.Errorf("begin routing for %s: %w", file.Key, err)
	}
	act.Set("disposition", string(d))

	if o.cfg.Encrypter != nil && origin.Reencrypt && !file.Encrypted() {
		target.Key += ".pgp"
		err = o.encryptMove(ctx, src, target)
	} else {
		err = o.cfg.Transfer.Move(ctx, src, target)
	}
	act.Set("target", target.String())
	if err := act.Finish(ctx, err, target.Key); err != nil {
		return err
	}

	if err := storage.PruneEmptyParents(ctx, o.cfg.Store, src.Bucket, src.Key, origin.Source.Prefix); err != nil {
		logging.FromContext(ctx).Warn("prune source directories failed", "key", src.Key, "error", err)
	}
	return nil
}

// encryptMove writes src encrypted onto dst, then deletes src.
func (o *Orchestrator) encryptMove(ctx context.Context, src, dst storage.Ref) error {
	plain, err := storage.ReadAll(ctx, o.cfg.Store, src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	var buf bytes.Buffer
	if err := o.cfg.Encrypter.Encrypt(&buf, bytes.NewReader(plain)); err != nil {
		return fmt.Errorf("encrypt %s: %w", src, err)
	}
	if err := storage.PutBytes(ctx, o.cfg.Store, dst, buf.Bytes()); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := o.cfg.Store.Delete(ctx, src.Bucket, src.Key); err != nil && !storage.IsNotFound(err) {
		return fmt.Errorf("delete %s after encrypted copy: %w", src, err)
	}
	return nil
}
