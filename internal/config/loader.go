package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/JonMunkholm/landingzone/internal/core"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadStruct recursively populates struct fields from environment variables.
// A `prefix` tag on a nested struct is prepended to the env names inside it.
func loadStruct(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal, prefix+field.Tag.Get("prefix")); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		if envName == "" {
			continue
		}
		envName = prefix + envName
		if envAlt != "" {
			envAlt = prefix + envAlt
		}

		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// EnabledOrigins returns the configured origins in processing order.
func (c *Config) EnabledOrigins() ([]core.Origin, error) {
	origins := make([]core.Origin, 0, len(c.Origins.Enabled))
	seen := make(map[core.Origin]bool)
	for _, name := range c.Origins.Enabled {
		o, err := core.ParseOrigin(name)
		if err != nil {
			return nil, err
		}
		if seen[o] {
			continue
		}
		seen[o] = true
		origins = append(origins, o)
	}
	return origins, nil
}

// Location returns the run log time zone.
func (c *RunLogConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.ScheduleInterval < 0 {
		errs = append(errs, "SCHEDULE_INTERVAL must be non-negative")
	}

	// Storage validation
	if c.Storage.Endpoint == "" {
		errs = append(errs, "STORAGE_ENDPOINT is required")
	}
	if c.Storage.CopyPollInterval <= 0 {
		errs = append(errs, "STORAGE_COPY_POLL_INTERVAL must be positive")
	}
	if c.Storage.CopyMaxPolls <= 0 {
		errs = append(errs, "STORAGE_COPY_MAX_POLLS must be positive")
	}

	// Origin validation
	origins, err := c.EnabledOrigins()
	if err != nil {
		errs = append(errs, fmt.Sprintf("ENABLED_ORIGINS: %v", err))
	}
	if err == nil && len(origins) == 0 {
		errs = append(errs, "ENABLED_ORIGINS must name at least one origin")
	}
	for _, o := range origins {
		oc, _ := c.Origin(string(o))
		envPrefix := "SFTP_"
		if o == core.OriginManualUpload {
			envPrefix = "MANUAL_"
		}
		if oc.Bucket == "" {
			errs = append(errs, fmt.Sprintf("%sBUCKET is required when origin %s is enabled", envPrefix, o))
		}
		if oc.SourcePrefix == oc.ArchivePrefix || oc.SourcePrefix == oc.RejectPrefix || oc.SourcePrefix == oc.QuarantinePrefix {
			errs = append(errs, fmt.Sprintf("%sSOURCE_PREFIX must differ from the terminal prefixes", envPrefix))
		}
	}

	// Location validation
	if c.Output.Bucket == "" {
		errs = append(errs, "OUTPUT_BUCKET is required")
	}
	if c.Tracker.Bucket == "" || c.Tracker.FileName == "" {
		errs = append(errs, "TRACKER_BUCKET and TRACKER_FILE_NAME are required")
	}
	if c.RunLog.Bucket == "" {
		errs = append(errs, "RUN_LOG_BUCKET is required")
	}
	if _, err := c.RunLog.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("RUN_LOG_TIME_ZONE (%q) is not a known time zone", c.RunLog.TimeZone))
	}

	// Ingest validation
	if c.Ingest.SampleSize <= 0 {
		errs = append(errs, "VALIDATION_SAMPLE_SIZE must be positive")
	}
	if c.Ingest.FileTimeout < 0 {
		errs = append(errs, "FILE_TIMEOUT must be non-negative")
	}
	if c.Scan.TagName == "" {
		errs = append(errs, "MALWARE_SCAN_TAG must not be empty")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Connection strings and key material are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, Schedule: %s}, ",
		c.Server.Host, c.Server.Port, c.Server.ScheduleInterval))
	b.WriteString(fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns))
	b.WriteString(fmt.Sprintf("Storage: {Endpoint: %q, AccessKeyID: %s, UseSSL: %v, CopyMaxPolls: %d}, ",
		c.Storage.Endpoint, mask(c.Storage.AccessKeyID), c.Storage.UseSSL, c.Storage.CopyMaxPolls))
	b.WriteString(fmt.Sprintf("Origins: %v, SFTP: {Bucket: %q}, Manual: {Bucket: %q}, ",
		c.Origins.Enabled, c.SFTP.Bucket, c.Manual.Bucket))
	b.WriteString(fmt.Sprintf("Keys: {PGPPrivateKey: %s, PGPPublicKey: %s, AgeIdentity: %s}, ",
		mask(c.Keys.PGPPrivateKey), mask(c.Keys.PGPPublicKey), mask(c.Keys.AgeIdentity)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
