package validate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/JonMunkholm/landingzone/internal/audit"
	"github.com/JonMunkholm/landingzone/internal/catalog"
	"github.com/JonMunkholm/landingzone/internal/core"
)

func writeTemp(t *testing.T, name string, data []byte) Subject {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatal(err)
	}
	kind, _ := core.KindOf(name)
	return Subject{Name: name, SourceName: "acme", Path: p, Size: int64(len(data)), Kind: kind}
}

func writeZip(t *testing.T, name string, entries map[string]string, order []string) Subject {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range order {
		w, err := zw.Create(e)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(entries[e])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return writeTemp(t, name, buf.Bytes())
}

func semicolonRules() *catalog.Rules {
	r := catalog.DefaultRules()
	r.Delimiter = ";"
	return r
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		[]catalog.Definition{
			{Name: "sales", Regex: `sales_\d+\.csv`, Frequency: "daily"},
			{Name: "stock", Regex: `stock_\d+\.csv`, Frequency: "daily", Rules: semicolonRules()},
			{Name: "ledger", Regex: `ledger.*\.xlsx`, Frequency: "monthly"},
		},
		[]catalog.Definition{
			{
				Name:      "bundle",
				Regex:     `bundle_\d+\.zip`,
				Frequency: "weekly",
				Members: []catalog.Definition{
					{Name: "bundle_orders", Regex: `orders_\d+\.csv`},
				},
			},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

// =============================================================================
// Sniffer Tests
// =============================================================================

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    rune
		wantErr bool
	}{
		{"comma", "a,b,c\n1,2,3\n4,5,6\n", ',', false},
		{"semicolon with decimal commas", "a;b\n1,5;2,5\n3,5;4,5\n", ';', false},
		{"tab", "a\tb\n1\t2\n", '\t', false},
		{"pipe", "a|b|c\n1|2|3\n", '|', false},
		{"quoted delimiter ignored", "a;b\n\"x,y\";2\n\"z,w\";3\n", ';', false},
		{"header only", "id,name,amount", ',', false},
		{"single column", "a\nb\nc\n", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SniffDelimiter(tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SniffDelimiter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("SniffDelimiter() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Pipeline Tests
// =============================================================================

func failureKind(err error) core.FailureKind {
	if f, ok := core.AsFailure(err); ok {
		return f.Kind
	}
	return ""
}

func TestPipeline_FlatChain(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name     string
		file     string
		data     string
		wantKind core.FailureKind
		wantPat  string
	}{
		{"valid comma file", "sales_01.csv", "id,amount\n1,10\n2,20\n", "", "sales"},
		{"semicolon round trip", "stock_01.csv", "sku;qty\nA;1\nB;2\n", "", "stock"},
		{"semicolon where comma expected", "sales_02.csv", "id;amount\n1;10\n", core.InvalidDelimiter, ""},
		{"comma where semicolon expected", "stock_02.csv", "sku,qty\nA,1\nB,2\n", core.InvalidDelimiter, ""},
		{"unknown name", "other.csv", "a,b\n1,2\n", core.InvalidFileName, ""},
		{"empty", "sales_03.csv", "", core.EmptyFile, ""},
		{"row wider than header", "sales_04.csv", "id,amount\n1,10\n2,20,30\n3,30\n4,40\n5,50\n6,60\n7,70\n8,80\n9,90\n10,100\n", core.CorruptFile, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := audit.NewMemRecorder()
			p := NewPipeline(rec, 0, nil)
			subj := writeTemp(t, tt.file, []byte(tt.data))

			res, err := p.Run(context.Background(), subj, FlatChain(cat))
			if got := failureKind(err); got != tt.wantKind {
				t.Fatalf("Run() error = %v, want kind %q", err, tt.wantKind)
			}
			if tt.wantKind == "" && res.Pattern.Name != tt.wantPat {
				t.Errorf("Pattern = %q, want %q", res.Pattern.Name, tt.wantPat)
			}

			runs := rec.Runs(audit.ActivityValidations)
			if len(runs) != 1 {
				t.Fatalf("validations runs = %d, want 1", len(runs))
			}
			wantStatus := audit.StatusSuccess
			if tt.wantKind != "" {
				wantStatus = audit.StatusFailed
			}
			if runs[0].End.Status != wantStatus {
				t.Errorf("status = %q, want %q", runs[0].End.Status, wantStatus)
			}
		})
	}
}

func TestPipeline_EncodingOptIn(t *testing.T) {
	latin1 := []byte("name,city\ncaf\xE9,paris\n")

	strict := catalog.DefaultRules()
	strict.RequireUTF8 = true
	cat, err := catalog.New([]catalog.Definition{
		{Name: "strict", Regex: `strict\.csv`, Rules: strict},
		{Name: "lenient", Regex: `lenient\.csv`},
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(audit.NewMemRecorder(), 0, nil)

	_, err = p.Run(context.Background(), writeTemp(t, "strict.csv", latin1), FlatChain(cat))
	if got := failureKind(err); got != core.InvalidEncoding {
		t.Errorf("strict: error = %v, want InvalidEncoding", err)
	}

	res, err := p.Run(context.Background(), writeTemp(t, "lenient.csv", latin1), FlatChain(cat))
	if err != nil {
		t.Fatalf("lenient: error = %v", err)
	}
	for _, c := range res.Checks {
		if c.Name == "file_encoding" {
			t.Error("encoding check should not run without require_utf8")
		}
	}
}

func TestPipeline_PreambleSkipped(t *testing.T) {
	rules := semicolonRules()
	h := 3
	rules.HeaderRow = &h
	cat, err := catalog.New([]catalog.Definition{{Name: "report", Regex: `report\.csv`, Rules: rules}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	data := "Report, generated today\nTotal: 2, rows\nid;amount\n1;10\n2;20\n"
	p := NewPipeline(audit.NewMemRecorder(), 0, nil)
	if _, err := p.Run(context.Background(), writeTemp(t, "report.csv", []byte(data)), FlatChain(cat)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestPipeline_UnclassifiedError(t *testing.T) {
	boom := errors.New("connection refused")
	check := Check{Name: "remote", Run: func(context.Context, *State) (any, error) { return nil, boom }}

	p := NewPipeline(audit.NewMemRecorder(), 0, nil)
	_, err := p.Run(context.Background(), Subject{Name: "x.csv"}, []Check{check})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if _, ok := core.AsFailure(err); ok {
		t.Error("unclassified errors must not become failures")
	}
}

func TestPipeline_ZipChain(t *testing.T) {
	cat := testCatalog(t)
	p := NewPipeline(audit.NewMemRecorder(), 0, nil)

	good := writeZip(t, "bundle_1.zip", map[string]string{"orders_1.csv": "a,b\n1,2\n"}, []string{"orders_1.csv"})
	if _, err := p.Run(context.Background(), good, ZipChain(cat)); err != nil {
		t.Fatalf("valid archive: %v", err)
	}

	wrongName := writeZip(t, "misc.zip", map[string]string{"orders_1.csv": "a,b\n"}, []string{"orders_1.csv"})
	if _, err := p.Run(context.Background(), wrongName, ZipChain(cat)); failureKind(err) != core.InvalidZipFileName {
		t.Errorf("unknown archive name: error = %v", err)
	}

	corrupt := writeTemp(t, "bundle_2.zip", []byte("PK\x03\x04 not really a zip"))
	if _, err := p.Run(context.Background(), corrupt, ZipChain(cat)); failureKind(err) != core.InvalidCompression {
		t.Errorf("corrupt archive: error = %v", err)
	}
}

// =============================================================================
// Zip Expansion Tests
// =============================================================================

func TestExpandZip_ExcludesInvalidMembers(t *testing.T) {
	cat := testCatalog(t)
	container, err := cat.Resolve("bundle_1.zip", catalog.ScopeZip)
	if err != nil {
		t.Fatal(err)
	}
	rec := audit.NewMemRecorder()
	p := NewPipeline(rec, 0, nil)

	order := []string{"data/", "data/orders_1.csv", "notes.csv", "orders_2.csv"}
	archive := writeZip(t, "bundle_1.zip", map[string]string{
		"data/":             "",
		"data/orders_1.csv": "id,qty\n1,2\n",
		"notes.csv":         "free text\n",
		"orders_2.csv":      "id,qty\n3,4\n",
	}, order)

	members, err := ExpandZip(context.Background(), p, archive, container, t.TempDir())
	if err != nil {
		t.Fatalf("ExpandZip() error = %v", err)
	}
	defer CloseMembers(members)

	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	if members[0].Name != "orders_1.csv" || members[1].Name != "orders_2.csv" {
		t.Errorf("member order = %s, %s", members[0].Name, members[1].Name)
	}
	if members[0].EntryName != "data/orders_1.csv" {
		t.Errorf("EntryName = %q", members[0].EntryName)
	}
	if members[0].PatternName != "bundle_orders" {
		t.Errorf("PatternName = %q", members[0].PatternName)
	}
	if _, err := os.Stat(members[0].Path); err != nil {
		t.Errorf("member not extracted: %v", err)
	}

	runs := rec.Runs(audit.ActivityValidations)
	if len(runs) != 3 {
		t.Fatalf("validations runs = %d, want 3", len(runs))
	}
	for _, r := range runs {
		if r.Start.ZipFileName != "bundle_1.zip" {
			t.Errorf("ZipFileName = %q", r.Start.ZipFileName)
		}
	}
}

func TestExpandZip_NoValidMembers(t *testing.T) {
	cat := testCatalog(t)
	container, err := cat.Resolve("bundle_1.zip", catalog.ScopeZip)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(audit.NewMemRecorder(), 0, nil)
	archive := writeZip(t, "bundle_1.zip", map[string]string{
		"notes.csv":    "a,b\n1,2\n",
		"orders_1.csv": "",
	}, []string{"notes.csv", "orders_1.csv"})

	members, err := ExpandZip(context.Background(), p, archive, container, t.TempDir())
	if failureKind(err) != core.NoValidMembersInArchive {
		t.Fatalf("ExpandZip() error = %v, want NoValidMembersInArchive", err)
	}
	if members != nil {
		t.Errorf("members = %v, want nil", members)
	}
}
