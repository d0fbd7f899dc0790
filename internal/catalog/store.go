package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/landingzone/internal/database"
)

const listFlatPatterns = `
SELECT file_id, pattern_name, file_pattern, frequency, json_config, file_prefix
FROM file_pattern_config
WHERE is_enabled AND compressed_file_id IS NULL AND file_type <> 'zip'
ORDER BY sort_order, file_id`

const listZipPatterns = `
SELECT z.file_id, z.pattern_name, z.file_pattern, z.frequency, z.json_config, z.file_prefix,
       m.pattern_name, m.file_pattern, m.frequency, m.json_config, m.file_prefix
FROM file_pattern_config z
LEFT JOIN file_pattern_config m
       ON m.compressed_file_id = z.file_id AND m.is_enabled
WHERE z.is_enabled AND z.file_type = 'zip' AND z.compressed_file_id IS NULL
ORDER BY z.sort_order, z.file_id, m.sort_order, m.file_id`

const insertPattern = `
INSERT INTO file_pattern_config
    (pattern_name, file_pattern, file_type, frequency, json_config, file_prefix, compressed_file_id, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING file_id`

// PostgresStore reads pattern definitions from the file_pattern_config
// table. Row order is sort_order then file_id, which is the declaration
// order first-match resolution depends on.
type PostgresStore struct {
	db database.DBTX
}

// NewPostgresStore creates a catalog store.
func NewPostgresStore(db database.DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load implements Source.
func (s *PostgresStore) Load(ctx context.Context) (flat, zip []Definition, err error) {
	if flat, err = s.loadFlat(ctx); err != nil {
		return nil, nil, err
	}
	if zip, err = s.loadZip(ctx); err != nil {
		return nil, nil, err
	}
	return flat, zip, nil
}

func (s *PostgresStore) loadFlat(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.Query(ctx, listFlatPatterns)
	if err != nil {
		return nil, fmt.Errorf("query flat patterns: %w", err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		var (
			id  int64
			row patternRow
		)
		if err := rows.Scan(&id, &row.name, &row.regex, &row.frequency, &row.rules, &row.prefix); err != nil {
			return nil, fmt.Errorf("scan flat pattern: %w", err)
		}
		d, err := row.definition()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *PostgresStore) loadZip(ctx context.Context) ([]Definition, error) {
	rows, err := s.db.Query(ctx, listZipPatterns)
	if err != nil {
		return nil, fmt.Errorf("query zip patterns: %w", err)
	}
	defer rows.Close()

	var (
		defs   []Definition
		lastID int64 = -1
	)
	for rows.Next() {
		var (
			id          int64
			zip, member patternRow
			memberName  pgtype.Text
			memberRegex pgtype.Text
			memberFreq  pgtype.Text
		)
		if err := rows.Scan(&id, &zip.name, &zip.regex, &zip.frequency, &zip.rules, &zip.prefix,
			&memberName, &memberRegex, &memberFreq, &member.rules, &member.prefix); err != nil {
			return nil, fmt.Errorf("scan zip pattern: %w", err)
		}

		if id != lastID {
			d, err := zip.definition()
			if err != nil {
				return nil, err
			}
			defs = append(defs, d)
			lastID = id
		}
		if !memberName.Valid {
			continue
		}

		member.name = memberName.String
		member.regex = memberRegex.String
		member.frequency = memberFreq.String
		m, err := member.definition()
		if err != nil {
			return nil, fmt.Errorf("member of %s: %w", zip.name, err)
		}
		parent := &defs[len(defs)-1]
		parent.Members = append(parent.Members, m)
	}
	return defs, rows.Err()
}

// Insert adds a definition, and its members when it is a zip pattern,
// using the given position as sort order.
func (s *PostgresStore) Insert(ctx context.Context, d Definition, scope Scope, position int) error {
	fileType := "file"
	if scope == ScopeZip {
		fileType = "zip"
	}
	id, err := s.insert(ctx, d, fileType, nil, position)
	if err != nil {
		return err
	}
	for i, m := range d.Members {
		if _, err := s.insert(ctx, m, "file", &id, i); err != nil {
			return fmt.Errorf("member of %s: %w", d.Name, err)
		}
	}
	return nil
}

func (s *PostgresStore) insert(ctx context.Context, d Definition, fileType string, parent *int64, position int) (int64, error) {
	var rules pgtype.Text
	if d.Rules != nil {
		data, err := d.Rules.MarshalJSON()
		if err != nil {
			return 0, err
		}
		rules = pgtype.Text{String: string(data), Valid: true}
	}
	prefix := pgtype.Text{String: d.FilePrefix, Valid: d.FilePrefix != ""}

	var id int64
	err := s.db.QueryRow(ctx, insertPattern,
		d.Name, d.Regex, fileType, d.Frequency, rules, prefix, parent, position).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert pattern %q: %w", d.Name, err)
	}
	return id, nil
}

type patternRow struct {
	name      string
	regex     string
	frequency string
	rules     pgtype.Text
	prefix    pgtype.Text
}

func (r patternRow) definition() (Definition, error) {
	d := Definition{
		Name:       r.name,
		Regex:      strings.ReplaceAll(r.regex, `\\`, `\`),
		Frequency:  r.frequency,
		FilePrefix: r.prefix.String,
	}
	if r.rules.Valid {
		rules, err := ParseRules(r.rules.String)
		if err != nil {
			return Definition{}, fmt.Errorf("pattern %q: %w", r.name, err)
		}
		d.Rules = rules
	}
	return d, nil
}
