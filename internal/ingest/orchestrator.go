// Package ingest drives one invocation of the landing zone pipeline: every
// configured origin is listed, each new file is decrypted, validated and
// transformed, and the file is then routed to exactly one terminal
// location.
//
// Failures are handled at three levels:
//
//   - classified failures (*core.Failure) reject the file and the loop
//     continues
//   - unclassified errors leave the file in place for the next invocation
//   - origin-level errors (catalog, ledger, listing) abort the invocation
//
// The invocation log is flushed to storage on every exit path.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/landingzone/internal/audit"
	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/decrypt"
	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/metrics"
	"github.com/JonMunkholm/landingzone/internal/notify"
	"github.com/JonMunkholm/landingzone/internal/storage"
	"github.com/JonMunkholm/landingzone/internal/tracker"
	"github.com/JonMunkholm/landingzone/internal/transform"
	"github.com/JonMunkholm/landingzone/internal/validate"
)

// Origin describes the locations of one source origin.
type Origin struct {
	Name       core.Origin
	Source     storage.Location
	Archive    storage.Location
	Reject     storage.Location
	Quarantine storage.Location
	Output     storage.Location
	Tracker    storage.Ref
	// ScanGate holds files until the malware scan tag says they are clean.
	ScanGate bool
	// Reencrypt stores routed originals encrypted with the public key.
	Reencrypt bool
}

// ScanPolicy names the malware scan tag and its verdict values.
type ScanPolicy struct {
	Tag       string
	Clean     string
	Malicious string
}

// Encrypter re-encrypts originals before they are routed.
type Encrypter interface {
	Encrypt(w io.Writer, r io.Reader) error
}

// Config wires an Orchestrator.
type Config struct {
	Store      storage.Store
	Catalog    catalog.Source
	Scenarios  catalog.Scenarios
	Recorder   audit.Recorder
	Publisher  notify.Publisher
	Decrypters *decrypt.Registry
	// Encrypter is optional; without it originals are moved as they are.
	Encrypter Encrypter
	Transfer  *storage.Transfer
	Origins   []Origin
	Scan      ScanPolicy
	LogSink   logging.Sink
	LogLevel  string
	// TimeZone names the flushed log files (default: UTC).
	TimeZone         *time.Location
	WorkDir          string
	SampleSize       int64
	PositionalSource string
	// FileTimeout bounds one file; 0 disables it.
	FileTimeout time.Duration
	Metrics     *metrics.Metrics
}

// Orchestrator runs invocations. Invocations must not overlap; callers
// serialise them with a core.RunLimiter.
type Orchestrator struct {
	cfg       Config
	handlers  *core.KindRegistry[Handler]
	decrypt   *decrypt.Stage
	validate  *validate.Pipeline
	transform *transform.Stage
}

// NewOrchestrator builds the orchestrator and its payload-kind handler
// registry.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.TimeZone == nil {
		cfg.TimeZone = time.UTC
	}
	if cfg.Decrypters == nil {
		cfg.Decrypters = decrypt.NewRegistry()
	}
	if cfg.Transfer == nil {
		cfg.Transfer = storage.NewTransfer(cfg.Store, time.Second, 30)
	}

	o := &Orchestrator{
		cfg:      cfg,
		handlers: core.NewKindRegistry[Handler](),
		decrypt:  decrypt.NewStage(cfg.Decrypters, cfg.Recorder),
		validate: validate.NewPipeline(cfg.Recorder, cfg.SampleSize, cfg.Metrics),
		transform: transform.NewStage(transform.Config{
			Store:            cfg.Store,
			Scenarios:        cfg.Scenarios,
			Publisher:        cfg.Publisher,
			Recorder:         cfg.Recorder,
			PositionalSource: cfg.PositionalSource,
			SampleSize:       cfg.SampleSize,
			Metrics:          cfg.Metrics,
		}),
	}
	o.handlers.Register(core.KindCSV, o.handleDelimited)
	o.handlers.Register(core.KindXLSX, o.handleWorkbook)
	o.handlers.Register(core.KindXLS, o.handleWorkbook)
	o.handlers.Register(core.KindZIP, o.handleArchive)
	return o
}

// FileResult is the disposition of one listed object.
type FileResult struct {
	Origin      core.Origin
	Key         string
	Disposition core.Disposition
	Err         error
}

// Summary reports one invocation.
type Summary struct {
	InvocationID string
	Started      time.Time
	Duration     time.Duration
	Files        []FileResult
}

// Count returns how many files reached disposition d.
func (s Summary) Count(d core.Disposition) int {
	n := 0
	for _, f := range s.Files {
		if f.Disposition == d {
			n++
		}
	}
	return n
}

// Run processes every configured origin in order.
func (o *Orchestrator) Run(ctx context.Context) (summary Summary, err error) {
	summary.InvocationID = uuid.NewString()
	summary.Started = time.Now().In(o.cfg.TimeZone)

	runLog := logging.NewRunLog(summary.InvocationID, summary.Started, o.cfg.LogLevel)
	ctx = core.ContextWithInvocationID(ctx, summary.InvocationID)
	ctx = runLog.Attach(ctx)
	log := logging.FromContext(ctx)

	defer func() {
		summary.Duration = time.Since(summary.Started)
		attrs := []any{
			"duration_ms", summary.Duration.Milliseconds(),
			"archived", summary.Count(core.Archived),
			"rejected", summary.Count(core.Rejected),
			"quarantined", summary.Count(core.Quarantined),
			"left_in_place", summary.Count(core.LeftInPlace),
			"skipped", summary.Count(core.Skipped),
		}
		if err != nil {
			log.Error("invocation failed", append(attrs, "error", err)...)
		} else {
			log.Info("invocation completed", attrs...)
		}
		o.cfg.Metrics.RecordRun(err)

		if o.cfg.LogSink == nil {
			return
		}
		if ferr := runLog.Flush(context.WithoutCancel(ctx), o.cfg.LogSink); ferr != nil {
			slog.Error("run log flush failed", "invocation_id", summary.InvocationID, "error", ferr)
		}
	}()

	log.Info("invocation started", "origins", len(o.cfg.Origins))
	for _, origin := range o.cfg.Origins {
		results, oerr := o.runOrigin(ctx, origin)
		summary.Files = append(summary.Files, results...)
		if oerr != nil {
			return summary, fmt.Errorf("origin %s: %w", origin.Name, oerr)
		}
	}
	return summary, nil
}

func (o *Orchestrator) runOrigin(ctx context.Context, origin Origin) (results []FileResult, err error) {
	ctx = core.ContextWithOrigin(ctx, origin.Name)
	log := logging.FromContext(ctx)

	cat, err := catalog.Load(ctx, o.cfg.Catalog)
	if err != nil {
		return nil, err
	}
	ledger, err := tracker.Load(ctx, o.cfg.Store, origin.Tracker)
	if err != nil {
		return nil, err
	}
	defer func() {
		if perr := ledger.Persist(context.WithoutCancel(ctx)); perr != nil {
			err = errors.Join(err, perr)
		}
	}()

	objects, err := o.cfg.Store.List(ctx, origin.Source.Bucket, origin.Source.ListPrefix())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", origin.Source, err)
	}
	log.Info("origin listed", "source", origin.Source.String(), "objects", len(objects), "tracked", ledger.Len())

	for _, obj := range objects {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res := o.processObject(ctx, origin, cat, ledger, obj)
		if res.Disposition != "" {
			results = append(results, res)
		}
	}
	return results, nil
}

// processObject takes one listed object to its disposition. An empty
// disposition means the object is not a file.
func (o *Orchestrator) processObject(ctx context.Context, origin Origin, cat *catalog.Catalog, ledger *tracker.Ledger, obj storage.Object) FileResult {
	res := FileResult{Origin: origin.Name, Key: obj.Key}
	rel := origin.Source.Rel(obj.Key)
	if !core.HasExtension(rel) {
		return res
	}
	log := logging.WithFields(ctx, "key", obj.Key)

	if ledger.Contains(obj.Key) {
		log.Debug("already tracked, skipping")
		res.Disposition = core.Skipped
		return res
	}

	file, err := core.ParseSourceKey(rel, obj.Size, origin.Name, o.cfg.Decrypters.Has)
	if err != nil {
		log.Warn("unrecognised source key, leaving in place", "error", err)
		res.Disposition, res.Err = core.LeftInPlace, err
		return res
	}

	started := time.Now()
	defer func() {
		o.cfg.Metrics.RecordFile(origin.Name, file.Kind, res.Disposition, time.Since(started))
	}()

	if origin.ScanGate {
		verdict, err := o.readScanVerdict(ctx, obj.Key, origin)
		switch verdict {
		case verdictPending:
			log.Info("malware scan pending, skipping")
			res.Disposition = core.Skipped
			return res
		case verdictUnknown:
			log.Warn("unrecognised malware scan result, skipping", "error", err)
			res.Disposition, res.Err = core.Skipped, err
			return res
		case verdictMalicious:
			res.Disposition, res.Err = o.quarantine(ctx, origin, file)
			return res
		}
	}

	fctx := ctx
	if o.cfg.FileTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, o.cfg.FileTimeout)
		defer cancel()
	}

	log.Info("processing file", "kind", file.Kind, "encryption", file.Encryption, "size", file.Size)
	outcome := core.OutcomeOf(o.processFile(fctx, origin, cat, file))
	res.Disposition, res.Err = o.route(ctx, origin, file, outcome)
	if res.Disposition == core.Archived {
		ledger.Add(obj.Key)
	}
	return res
}

// processFile materialises the plaintext payload and dispatches it to the
// handler registered for its kind.
func (o *Orchestrator) processFile(ctx context.Context, origin Origin, cat *catalog.Catalog, file core.SourceFile) error {
	h, ok := o.handlers.Get(file.Kind)
	if !ok {
		return core.Fail(core.InvalidFileName,
			fmt.Sprintf("unsupported file type: %s", file.LogicalName),
			map[string]any{"file_name": file.LogicalName})
	}

	rc, err := o.cfg.Store.Get(ctx, origin.Source.Bucket, origin.Source.Key(file.Key))
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Key, err)
	}
	defer rc.Close()

	var wc *decrypt.WorkingCopy
	if file.Encrypted() {
		wc, err = o.decrypt.Run(ctx, rc, file)
	} else {
		wc, err = decrypt.Materialize(ctx, o.cfg.WorkDir, file.LogicalName, rc)
	}
	if err != nil {
		return err
	}
	defer wc.Close()

	return h(ctx, &Payload{Origin: origin, Catalog: cat, File: file, Copy: wc})
}
