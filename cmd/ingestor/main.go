// Command ingestor moves files from the landing zone into the curated
// layer. With --once it runs a single invocation and exits; otherwise it
// serves the ops API and runs on the configured schedule.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/landingzone/internal/audit"
	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/config"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/database"
	"github.com/JonMunkholm/landingzone/internal/decrypt"
	"github.com/JonMunkholm/landingzone/internal/ingest"
	"github.com/JonMunkholm/landingzone/internal/logging"
	"github.com/JonMunkholm/landingzone/internal/metrics"
	"github.com/JonMunkholm/landingzone/internal/notify"
	"github.com/JonMunkholm/landingzone/internal/storage"
	"github.com/JonMunkholm/landingzone/internal/tracker"
	"github.com/JonMunkholm/landingzone/internal/web"
)

type options struct {
	once         bool
	serve        bool
	initSchema   bool
	resetTracker bool
	catalogFile  string
	origins      []string
}

func main() {
	var opts options
	pflag.BoolVar(&opts.once, "once", false, "run one invocation and exit")
	pflag.BoolVar(&opts.serve, "serve", true, "serve the ops API and run on the schedule")
	pflag.BoolVar(&opts.initSchema, "init-schema", false, "create the catalog, audit and outbox tables before starting")
	pflag.BoolVar(&opts.resetTracker, "reset-tracker", false, "empty the tracker ledger of every enabled origin and exit")
	pflag.StringVar(&opts.catalogFile, "catalog-file", "", "load the pattern catalog from a YAML file instead of Postgres")
	pflag.StringSliceVar(&opts.origins, "origins", nil, "origins to process, overriding ENABLED_ORIGINS")
	pflag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	if len(opts.origins) > 0 {
		_ = os.Setenv("ENABLED_ORIGINS", strings.Join(opts.origins, ","))
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	if opts.catalogFile != "" {
		cfg.Ingest.CatalogFile = opts.catalogFile
	}

	if err := run(cfg, opts); err != nil {
		slog.Error("ingestor failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if opts.initSchema {
		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	if opts.resetTracker {
		return resetTrackers(ctx, cfg)
	}

	m := metrics.New()
	orch, err := buildOrchestrator(cfg, pool, m)
	if err != nil {
		return err
	}
	runner := ingest.NewRunner(orch, nil)

	if opts.once {
		summary, err := runner.RunOnce(ctx)
		slog.Info("invocation finished",
			"invocation_id", summary.InvocationID,
			"archived", summary.Count(core.Archived),
			"rejected", summary.Count(core.Rejected),
			"left_in_place", summary.Count(core.LeftInPlace),
		)
		return err
	}
	if !opts.serve {
		return errors.New("nothing to do: pass --once or --serve")
	}

	server := web.NewServer(ctx, cfg.Server, runner, m)
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	if cfg.Server.ScheduleInterval > 0 {
		go runner.StartScheduler(ctx, cfg.Server.ScheduleInterval)
	}

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if running, since := runner.Limiter().Running(); running {
		slog.Info("waiting for active run to finish", "since", since)
		if err := runner.Limiter().WaitForDrain(shutdownCtx); err != nil {
			slog.Warn("active run did not finish in time", "error", err)
		}
	}
	return server.Shutdown(shutdownCtx)
}

func buildOrchestrator(cfg *config.Config, pool *pgxpool.Pool, m *metrics.Metrics) (*ingest.Orchestrator, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	var source catalog.Source = catalog.NewPostgresStore(pool)
	if cfg.Ingest.CatalogFile != "" {
		source = catalog.FileSource{Path: cfg.Ingest.CatalogFile}
	}

	scenarios, err := catalog.LoadScenarios(cfg.Ingest.ScenarioFile)
	if err != nil {
		return nil, err
	}

	decrypters, err := buildDecrypters(cfg)
	if err != nil {
		return nil, err
	}

	var encrypter ingest.Encrypter
	if cfg.Keys.PGPPublicKey != "" {
		enc, err := decrypt.NewPGPEncrypter(cfg.Keys.PGPPublicKey)
		if err != nil {
			return nil, err
		}
		encrypter = enc
	}

	tz, err := cfg.RunLog.Location()
	if err != nil {
		return nil, err
	}

	origins, err := buildOrigins(cfg)
	if err != nil {
		return nil, err
	}

	return ingest.NewOrchestrator(ingest.Config{
		Store:      store,
		Catalog:    source,
		Scenarios:  scenarios,
		Recorder:   audit.NewPostgresRecorder(pool, "ingestor"),
		Publisher:  notify.NewOutbox(pool, cfg.Ingest.NotifyChannel),
		Decrypters: decrypters,
		Encrypter:  encrypter,
		Transfer:   storage.NewTransfer(store, cfg.Storage.CopyPollInterval, cfg.Storage.CopyMaxPolls),
		Origins:    origins,
		Scan: ingest.ScanPolicy{
			Tag:       cfg.Scan.TagName,
			Clean:     cfg.Scan.CleanValue,
			Malicious: cfg.Scan.MaliciousValue,
		},
		LogSink: storage.LogSink{
			Store:    store,
			Location: storage.Location{Bucket: cfg.RunLog.Bucket, Prefix: cfg.RunLog.Prefix},
		},
		LogLevel:         cfg.Logging.Level,
		TimeZone:         tz,
		WorkDir:          cfg.Ingest.WorkDir,
		SampleSize:       cfg.Ingest.SampleSize,
		PositionalSource: cfg.Ingest.PositionalSource,
		FileTimeout:      cfg.Ingest.FileTimeout,
		Metrics:          m,
	}), nil
}

func openStore(cfg *config.Config) (*storage.MinioStore, error) {
	store, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:        cfg.Storage.Endpoint,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
		UseSSL:          cfg.Storage.UseSSL,
		Region:          cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return store, nil
}

func resetTrackers(ctx context.Context, cfg *config.Config) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	origins, err := buildOrigins(cfg)
	if err != nil {
		return err
	}
	for _, o := range origins {
		if _, err := tracker.Reset(ctx, store, o.Tracker); err != nil {
			return err
		}
	}
	return nil
}

// buildDecrypters registers a decrypter per configured key.
func buildDecrypters(cfg *config.Config) (*decrypt.Registry, error) {
	reg := decrypt.NewRegistry()
	if cfg.Keys.PGPPrivateKey != "" {
		pgp, err := decrypt.NewPGP(cfg.Keys.PGPPrivateKey, cfg.Keys.PGPPassphrase, cfg.Ingest.WorkDir)
		if err != nil {
			return nil, err
		}
		reg.Register("pgp", pgp)
		reg.Register("gpg", pgp)
	}
	if cfg.Keys.AgeIdentity != "" {
		a, err := decrypt.NewAge(cfg.Keys.AgeIdentity, cfg.Ingest.WorkDir)
		if err != nil {
			return nil, err
		}
		reg.Register("age", a)
	}
	slog.Info("decrypters registered", "suffixes", reg.Suffixes())
	return reg, nil
}

func buildOrigins(cfg *config.Config) ([]ingest.Origin, error) {
	enabled, err := cfg.EnabledOrigins()
	if err != nil {
		return nil, err
	}

	origins := make([]ingest.Origin, 0, len(enabled))
	for _, name := range enabled {
		oc, _ := cfg.Origin(string(name))
		manual := name == core.OriginManualUpload
		origins = append(origins, ingest.Origin{
			Name:       name,
			Source:     storage.Location{Bucket: oc.Bucket, Prefix: oc.SourcePrefix},
			Archive:    storage.Location{Bucket: oc.Bucket, Prefix: oc.ArchivePrefix},
			Reject:     storage.Location{Bucket: oc.Bucket, Prefix: oc.RejectPrefix},
			Quarantine: storage.Location{Bucket: oc.Bucket, Prefix: oc.QuarantinePrefix},
			Output:     storage.Location{Bucket: cfg.Output.Bucket, Prefix: cfg.Output.Prefix},
			Tracker: storage.Ref{
				Bucket: cfg.Tracker.Bucket,
				Key:    path.Join(cfg.Tracker.Prefix, string(name), cfg.Tracker.FileName),
			},
			ScanGate:  manual,
			Reencrypt: manual,
		})
	}
	return origins, nil
}
