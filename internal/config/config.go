// Package config provides centralized configuration management for the
// ingestor. It loads configuration from environment variables with sensible
// defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Origins  OriginsConfig
	SFTP     OriginConfig `prefix:"SFTP_"`
	Manual   OriginConfig `prefix:"MANUAL_"`
	Output   OutputConfig
	Tracker  TrackerConfig
	RunLog   RunLogConfig
	Keys     KeyConfig
	Scan     ScanConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
}

// ServerConfig holds settings for the operations HTTP server.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including the active run (default: 5m)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"5m"`

	// ScheduleInterval is how often serve mode starts a run; 0 disables the scheduler
	ScheduleInterval time.Duration `env:"SCHEDULE_INTERVAL" default:"1h"`

	// TrustedProxies lists CIDRs whose X-Real-IP and X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// APIKeys guard the run trigger; empty leaves it open
	APIKeys []string `env:"OPS_API_KEYS"`
}

// DatabaseConfig holds the Postgres settings shared by the pattern catalog,
// the audit recorder and the notification outbox.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// StorageConfig holds object storage connection settings.
type StorageConfig struct {
	// Endpoint is the S3-compatible endpoint, with or without scheme (required)
	Endpoint string `env:"STORAGE_ENDPOINT" envAlt:"MINIO_ENDPOINT" required:"true"`

	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID" envAlt:"MINIO_ACCESS_KEY"`
	SecretAccessKey string `env:"STORAGE_SECRET_ACCESS_KEY" envAlt:"MINIO_SECRET_KEY"`
	UseSSL          bool   `env:"STORAGE_USE_SSL" default:"true"`
	Region          string `env:"STORAGE_REGION"`

	// CopyPollInterval is the delay between copy status checks (default: 1s)
	CopyPollInterval time.Duration `env:"STORAGE_COPY_POLL_INTERVAL" default:"1s"`

	// CopyMaxPolls bounds the copy status checks before ErrCopyTimeout (default: 300)
	CopyMaxPolls int `env:"STORAGE_COPY_MAX_POLLS" default:"300"`
}

// OriginsConfig selects which origins an invocation processes, in order.
type OriginsConfig struct {
	Enabled []string `env:"ENABLED_ORIGINS" envAlt:"ENABLED_PROCESS" default:"sftp,manual_upload"`
}

// OriginConfig holds the locations of one source origin. Each field is read
// from the origin's prefix, e.g. SFTP_BUCKET or MANUAL_REJECT_PREFIX.
type OriginConfig struct {
	// Bucket holds every location of the origin (required when enabled)
	Bucket string `env:"BUCKET"`

	SourcePrefix     string `env:"SOURCE_PREFIX" default:"incoming"`
	ArchivePrefix    string `env:"ARCHIVE_PREFIX" default:"archive"`
	RejectPrefix     string `env:"REJECT_PREFIX" default:"reject"`
	QuarantinePrefix string `env:"QUARANTINE_PREFIX" default:"quarantine"`
}

// OutputConfig is where Parquet output is written.
type OutputConfig struct {
	Bucket string `env:"OUTPUT_BUCKET" default:"curated"`
	Prefix string `env:"OUTPUT_PREFIX"`
}

// TrackerConfig is where the per-origin tracker ledgers live.
type TrackerConfig struct {
	Bucket   string `env:"TRACKER_BUCKET" default:"ingest-state"`
	Prefix   string `env:"TRACKER_PREFIX" default:"tracker"`
	FileName string `env:"TRACKER_FILE_NAME" default:"processed_files.txt"`
}

// RunLogConfig is where invocation logs are flushed.
type RunLogConfig struct {
	Bucket string `env:"RUN_LOG_BUCKET" default:"ingest-state"`
	Prefix string `env:"RUN_LOG_PREFIX" default:"logs"`

	// TimeZone names log files and must be an IANA name (default: Asia/Singapore)
	TimeZone string `env:"RUN_LOG_TIME_ZONE" default:"Asia/Singapore"`
}

// KeyConfig holds decryption and re-encryption key material.
type KeyConfig struct {
	// PGPPrivateKey is the base64-encoded private key (armored or binary)
	PGPPrivateKey string `env:"PGP_PRIVATE_KEY"`

	// PGPPassphrase unlocks the private key (default: empty)
	PGPPassphrase string `env:"PGP_PASSPHRASE"`

	// PGPPublicKey is the base64-encoded public key used to re-encrypt manual uploads
	PGPPublicKey string `env:"PGP_PUBLIC_KEY"`

	// AgeIdentity is an AGE-SECRET-KEY-1... identity for .age payloads
	AgeIdentity string `env:"AGE_IDENTITY"`
}

// ScanConfig describes the malware scan tag written on manual uploads.
type ScanConfig struct {
	TagName        string `env:"MALWARE_SCAN_TAG" default:"Malware Scanning scan result"`
	CleanValue     string `env:"MALWARE_SCAN_CLEAN" default:"No threats found"`
	MaliciousValue string `env:"MALWARE_SCAN_MALICIOUS" default:"Malicious"`
}

// IngestConfig holds pipeline behaviour settings.
type IngestConfig struct {
	// ScenarioFile is the metadata scenario configuration (YAML or JSON)
	ScenarioFile string `env:"SCENARIO_CONFIG_PATH"`

	// CatalogFile replaces the Postgres pattern catalog with a YAML file
	CatalogFile string `env:"PATTERN_CATALOG_FILE"`

	// NotifyChannel is the outbox channel for curated output notifications
	NotifyChannel string `env:"NOTIFY_CHANNEL" default:"landingzone_ingest"`

	// PositionalSource is the source whose unconfigured workbooks keep positional columns (default: genco)
	PositionalSource string `env:"POSITIONAL_SOURCE" default:"genco"`

	// SampleSize is how many bytes the validation checks read (default: 2MiB)
	SampleSize int64 `env:"VALIDATION_SAMPLE_SIZE" default:"2097152"`

	// WorkDir holds decrypted and downloaded working copies (default: OS temp dir)
	WorkDir string `env:"WORK_DIR"`

	// FileTimeout bounds the processing of one file; 0 disables it (default: 30m)
	FileTimeout time.Duration `env:"FILE_TIMEOUT" default:"30m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Origin returns the location settings of a named origin.
func (c *Config) Origin(name string) (OriginConfig, bool) {
	switch name {
	case "sftp":
		return c.SFTP, true
	case "manual_upload":
		return c.Manual, true
	}
	return OriginConfig{}, false
}
