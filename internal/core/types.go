package core

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Origin identifies where a source file was deposited.
type Origin string

const (
	OriginSFTP         Origin = "sftp"
	OriginManualUpload Origin = "manual_upload"
)

// ParseOrigin maps a configured origin name to an Origin.
func ParseOrigin(s string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sftp":
		return OriginSFTP, nil
	case "manual_upload", "manual_file_upload", "manual":
		return OriginManualUpload, nil
	}
	return "", fmt.Errorf("unknown origin %q", s)
}

// PayloadKind is the tabular format of a (decrypted) payload.
type PayloadKind string

const (
	KindCSV  PayloadKind = "csv"
	KindXLSX PayloadKind = "xlsx"
	KindXLS  PayloadKind = "xls"
	KindZIP  PayloadKind = "zip"
)

// IsExcel reports whether the kind is a workbook format.
func (k PayloadKind) IsExcel() bool {
	return k == KindXLSX || k == KindXLS
}

// KindOf returns the payload kind implied by a file name's extension.
func KindOf(name string) (PayloadKind, bool) {
	switch strings.ToLower(strings.TrimPrefix(path.Ext(name), ".")) {
	case "csv":
		return KindCSV, true
	case "xlsx":
		return KindXLSX, true
	case "xls":
		return KindXLS, true
	case "zip":
		return KindZIP, true
	}
	return "", false
}

// SourceFile is one object discovered at a source location.
//
// Keys have the shape <timestamp>/<source_name>/<file_name>. FileName keeps
// any encryption suffix; LogicalName is the name with that suffix removed.
type SourceFile struct {
	Key         string
	Size        int64
	Origin      Origin
	Timestamp   string
	SourceName  string
	FileName    string
	LogicalName string
	Encryption  string
	Kind        PayloadKind
}

// Encrypted reports whether the file carries an encryption suffix.
func (f SourceFile) Encrypted() bool {
	return f.Encryption != ""
}

// ParseSourceKey splits a source object key into its identity parts.
// isEncryption reports whether an extension names a registered encryption
// scheme; it may be nil when no decryption is configured.
func ParseSourceKey(key string, size int64, origin Origin, isEncryption func(ext string) bool) (SourceFile, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < 3 {
		return SourceFile{}, fmt.Errorf("source key %q: want <timestamp>/<source>/<file>", key)
	}

	f := SourceFile{
		Key:        key,
		Size:       size,
		Origin:     origin,
		Timestamp:  parts[0],
		SourceName: parts[1],
		FileName:   parts[len(parts)-1],
	}
	f.LogicalName = f.FileName

	ext := strings.ToLower(strings.TrimPrefix(path.Ext(f.FileName), "."))
	if ext != "" && isEncryption != nil && isEncryption(ext) {
		f.Encryption = ext
		f.LogicalName = strings.TrimSuffix(f.FileName, path.Ext(f.FileName))
	}
	if kind, ok := KindOf(f.LogicalName); ok {
		f.Kind = kind
	}
	return f, nil
}

// HasExtension reports whether the last path segment of key contains a dot.
// Keys without one are directory markers or unnamed drops and are ignored.
func HasExtension(key string) bool {
	return strings.Contains(path.Base(key), ".")
}

// IngestionTimeLayout is how ingestion timestamps are written to output.
const IngestionTimeLayout = "2006-01-02 15:04:05"

// IngestionTime parses the leading timestamp segment of a source key
// (YYYYMMDDhhmmss followed by optional fractional digits).
func (f SourceFile) IngestionTime() (time.Time, error) {
	ts := f.Timestamp
	if len(ts) < 14 {
		return time.Time{}, fmt.Errorf("timestamp segment %q too short", ts)
	}
	t, err := time.Parse("20060102150405", ts[:14])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp segment %q: %w", ts, err)
	}
	return t, nil
}
