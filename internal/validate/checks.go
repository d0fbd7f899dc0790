package validate

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zip"

	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
	"github.com/JonMunkholm/landingzone/internal/tabular"
)

// parseCheckRows is how many data rows the parse check reads.
const parseCheckRows = 5

// =============================================================================
// Name Checks
// =============================================================================

// NamePattern resolves the subject name to a pattern. Names that match no
// pattern, or whose extension is not a supported payload kind, fail with
// InvalidFileName.
func NamePattern(resolve func(name string) (catalog.Pattern, error)) Check {
	return Check{
		Name: "file_name",
		Run: func(_ context.Context, s *State) (any, error) {
			name := s.Subject.Name
			if s.Subject.Kind == "" || s.Subject.Kind == core.KindZIP {
				return nil, core.Fail(core.InvalidFileName,
					fmt.Sprintf("unsupported file type: %s", name),
					map[string]any{"file_name": name})
			}
			p, err := resolve(name)
			if errors.Is(err, catalog.ErrNoMatchingPattern) {
				return nil, core.Fail(core.InvalidFileName,
					fmt.Sprintf("no matching file pattern for: %s", name),
					map[string]any{"file_name": name})
			}
			if err != nil {
				return nil, err
			}
			s.Pattern = p
			return p.Name, nil
		},
	}
}

// ZipName resolves an archive name against the zip patterns.
func ZipName(cat *catalog.Catalog) Check {
	return Check{
		Name: "zip_file_name",
		Run: func(_ context.Context, s *State) (any, error) {
			name := s.Subject.Name
			p, err := cat.Resolve(name, catalog.ScopeZip)
			if errors.Is(err, catalog.ErrNoMatchingPattern) {
				return nil, core.Fail(core.InvalidZipFileName,
					fmt.Sprintf("no matching zip pattern for: %s", name),
					map[string]any{"file_name": name})
			}
			if err != nil {
				return nil, err
			}
			s.Pattern = p
			return p.Name, nil
		},
	}
}

// =============================================================================
// Content Checks
// =============================================================================

// NotEmpty fails with EmptyFile on a zero-byte payload.
func NotEmpty() Check {
	return Check{
		Name: "file_size",
		Run: func(_ context.Context, s *State) (any, error) {
			if s.Subject.Size <= 0 {
				return nil, core.Fail(core.EmptyFile,
					fmt.Sprintf("file %s is empty", s.Subject.Name),
					map[string]any{"file_name": s.Subject.Name})
			}
			return s.Subject.Size, nil
		},
	}
}

// Encoding fails with InvalidEncoding when the sample is not UTF-8. It only
// runs for patterns whose rules set require_utf8.
func Encoding() Check {
	return Check{
		Name: "file_encoding",
		When: func(s *State) bool { return s.Rules().RequireUTF8 },
		Run: func(_ context.Context, s *State) (any, error) {
			sample, err := s.Sample()
			if err != nil {
				return nil, err
			}
			if !core.IsUTF8(core.TrimBOM(sample)) {
				return nil, core.Fail(core.InvalidEncoding,
					fmt.Sprintf("file %s is not encoded in UTF-8", s.Subject.Name),
					map[string]any{"file_name": s.Subject.Name})
			}
			return "utf-8", nil
		},
	}
}

// Delimiter sniffs the delimiter of the sample, past any preamble lines,
// and compares it with the configured one.
func Delimiter() Check {
	return Check{
		Name: "delimiter",
		Run: func(_ context.Context, s *State) (any, error) {
			sample, err := s.Sample()
			if err != nil {
				return nil, err
			}
			rules := s.Rules()
			expected := rules.Delimiter
			if expected == "" {
				expected = catalog.DefaultDelimiter
			}

			text := core.DecodeSample(sample)
			if int64(len(sample)) >= s.sampleSize {
				text = dropPartialLine(text)
			}
			lines := strings.Split(text, "\n")
			skip := min(rules.SkipLines(), len(lines))
			detected, err := SniffDelimiter(strings.Join(lines[skip:], "\n"))
			if err != nil {
				return nil, core.Fail(core.InvalidDelimiter,
					fmt.Sprintf("%v for %s", err, s.Subject.Name),
					map[string]any{"file_name": s.Subject.Name, "expected_delimiter": expected})
			}
			if string(detected) != expected {
				return nil, core.Fail(core.InvalidDelimiter,
					fmt.Sprintf("invalid delimiter %q for %s", detected, s.Subject.Name),
					map[string]any{
						"file_name":          s.Subject.Name,
						"detected_delimiter": string(detected),
						"expected_delimiter": expected,
					})
			}
			return string(detected), nil
		},
	}
}

// Parseable reads the header and the first data rows with the configured
// delimiter. Malformed records and rows wider than the header fail with
// CorruptFile.
func Parseable() Check {
	return Check{
		Name: "file_parse",
		Run: func(_ context.Context, s *State) (any, error) {
			sample, err := s.Sample()
			if err != nil {
				return nil, err
			}
			f, err := os.Open(s.Subject.Path)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", s.Subject.Name, err)
			}
			defer f.Close()

			rules := s.Rules()
			n, err := parseHead(core.OpenText(f, sample), rules)
			if err != nil {
				return nil, core.Fail(core.CorruptFile,
					fmt.Sprintf("file %s could not be parsed: %v", s.Subject.Name, err),
					map[string]any{"file_name": s.Subject.Name})
			}
			return n, nil
		},
	}
}

func parseHead(r io.Reader, rules *catalog.Rules) (int, error) {
	cr := csv.NewReader(r)
	if d, _ := utf8.DecodeRuneInString(rules.Delimiter); d != utf8.RuneError && rules.Delimiter != "" {
		cr.Comma = d
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	skip := rules.SkipLines()
	width := -1
	rows := 0
	for rows < parseCheckRows {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, err
		}
		if line, _ := cr.FieldPos(0); line <= skip {
			continue
		}
		if width < 0 {
			width = len(rec)
			if rules.HeaderRow != nil {
				continue
			}
		}
		if len(rec) > width {
			return rows, fmt.Errorf("expected %d fields, saw %d", width, len(rec))
		}
		rows++
	}
	return rows, nil
}

func dropPartialLine(text string) string {
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

// =============================================================================
// Archive and Workbook Checks
// =============================================================================

// Integrity reads every archive entry, verifying its checksum.
func Integrity() Check {
	return Check{
		Name: "zip_compression",
		Run: func(ctx context.Context, s *State) (any, error) {
			entries, err := testArchive(ctx, s.Subject.Path)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, core.Fail(core.InvalidCompression,
					fmt.Sprintf("zip file %s is not a valid zip file: %v", s.Subject.Name, err),
					map[string]any{"file_name": s.Subject.Name})
			}
			return entries, nil
		},
	}
}

func testArchive(ctx context.Context, path string) (int, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", f.Name, err)
		}
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", f.Name, err)
		}
	}
	return len(zr.File), nil
}

// Loadable opens the workbook and reads its first sheet.
func Loadable() Check {
	return Check{
		Name: "file_load",
		Run: func(_ context.Context, s *State) (any, error) {
			records, err := tabular.SheetRecords(s.Subject.Path, s.Subject.Kind)
			if err != nil {
				return nil, err
			}
			return len(records), nil
		},
	}
}

// =============================================================================
// Chains
// =============================================================================

// FlatChain validates a delimited file deposited on its own.
func FlatChain(cat *catalog.Catalog) []Check {
	return delimitedChain(func(name string) (catalog.Pattern, error) {
		return cat.Resolve(name, catalog.ScopeFlat)
	})
}

// MemberChain validates a delimited archive member against the container's
// member patterns.
func MemberChain(container catalog.Pattern) []Check {
	return delimitedChain(container.ResolveMember)
}

// ExcelChain validates a standalone workbook.
func ExcelChain(cat *catalog.Catalog) []Check {
	return workbookChain(func(name string) (catalog.Pattern, error) {
		return cat.Resolve(name, catalog.ScopeFlat)
	})
}

// ExcelMemberChain validates a workbook archive member.
func ExcelMemberChain(container catalog.Pattern) []Check {
	return workbookChain(container.ResolveMember)
}

// ZipChain validates an archive container.
func ZipChain(cat *catalog.Catalog) []Check {
	return []Check{ZipName(cat), Integrity(), NotEmpty()}
}

func delimitedChain(resolve func(string) (catalog.Pattern, error)) []Check {
	return []Check{NamePattern(resolve), NotEmpty(), Encoding(), Delimiter(), Parseable()}
}

func workbookChain(resolve func(string) (catalog.Pattern, error)) []Check {
	return []Check{NamePattern(resolve), NotEmpty(), Loadable()}
}
