package catalog

import (
	"context"
	"errors"
	"testing"
)

// =============================================================================
// Resolution
// =============================================================================

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(
		[]Definition{
			{Name: "sales_specific", Regex: `sales_eu_\d{8}\.csv`, Frequency: "daily"},
			{Name: "sales_any", Regex: `sales_.*\.csv`, Frequency: "daily"},
			{Name: "ledger", Regex: `ledger\.xlsx`, Frequency: "monthly"},
		},
		[]Definition{
			{
				Name:  "bundle",
				Regex: `bundle_.*\.zip`,
				Members: []Definition{
					{Name: "orders", Regex: `orders_.*\.csv`, FilePrefix: "ord"},
					{Name: "returns", Regex: `returns_.*\.csv`},
				},
			},
		},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestResolve_FirstMatchWins(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"specific declared first", "sales_eu_20240101.csv", "sales_specific"},
		{"falls through to generic", "sales_us_20240101.csv", "sales_any"},
		{"prefix match", "ledger.xlsx.bak", "ledger"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Resolve(tt.input, ScopeFlat)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if p.Name != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, p.Name, tt.want)
			}
		})
	}
}

func TestResolve_OrderIsContract(t *testing.T) {
	generic := Definition{Name: "generic", Regex: `.*\.csv`}
	specific := Definition{Name: "specific", Regex: `sales_.*\.csv`}

	a, err := New([]Definition{specific, generic}, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New([]Definition{generic, specific}, nil)
	if err != nil {
		t.Fatal(err)
	}

	pa, _ := a.Resolve("sales_1.csv", ScopeFlat)
	pb, _ := b.Resolve("sales_1.csv", ScopeFlat)
	if pa.Name != "specific" || pb.Name != "generic" {
		t.Errorf("got %q and %q, want specific and generic", pa.Name, pb.Name)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	c := testCatalog(t)
	names := []string{"sales_eu_20240101.csv", "unknown.csv", "sales_x.csv", "ledger.xlsx"}

	first := make(map[string]string)
	for _, n := range names {
		p, _ := c.Resolve(n, ScopeFlat)
		first[n] = p.Name
	}
	for i := 0; i < 50; i++ {
		for j := len(names) - 1; j >= 0; j-- {
			n := names[j]
			p, _ := c.Resolve(n, ScopeFlat)
			if p.Name != first[n] {
				t.Fatalf("iteration %d: Resolve(%q) = %q, want %q", i, n, p.Name, first[n])
			}
		}
	}
}

func TestResolve_NoMatch(t *testing.T) {
	c := testCatalog(t)

	_, err := c.Resolve("inventory.csv", ScopeFlat)
	if !errors.Is(err, ErrNoMatchingPattern) {
		t.Errorf("err = %v, want ErrNoMatchingPattern", err)
	}

	// Zip names do not resolve against flat patterns.
	if _, err := c.Resolve("bundle_1.zip", ScopeFlat); !errors.Is(err, ErrNoMatchingPattern) {
		t.Errorf("flat scope resolved a zip name: %v", err)
	}
}

func TestResolveMember_ScopedToContainer(t *testing.T) {
	c := testCatalog(t)

	zip, err := c.Resolve("bundle_2024.zip", ScopeZip)
	if err != nil {
		t.Fatalf("Resolve zip: %v", err)
	}

	m, err := zip.ResolveMember("orders_1.csv")
	if err != nil {
		t.Fatalf("ResolveMember: %v", err)
	}
	if m.Name != "orders" || m.FilePrefix != "ord" {
		t.Errorf("member = %+v", m)
	}

	// A flat pattern is not a member of the container.
	if _, err := zip.ResolveMember("sales_x.csv"); !errors.Is(err, ErrNoMatchingPattern) {
		t.Errorf("err = %v, want ErrNoMatchingPattern", err)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		flat []Definition
	}{
		{"duplicate name", []Definition{{Name: "a", Regex: "a"}, {Name: "a", Regex: "b"}}},
		{"bad regex", []Definition{{Name: "a", Regex: "("}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.flat, nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_StaticSource(t *testing.T) {
	src := StaticSource{Flat: []Definition{{Name: "a", Regex: `a\.csv`}}}
	c, err := Load(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Patterns(ScopeFlat); len(got) != 1 || got[0].Regex() != `a\.csv` {
		t.Errorf("patterns = %+v", got)
	}
}

// =============================================================================
// Definitions file
// =============================================================================

func TestParseDefinitions(t *testing.T) {
	doc := []byte(`
flat:
  - name: sales
    regex: 'sales_\d+\.csv'
    frequency: daily
    rules:
      delimiter: ";"
      validate_count: true
      condition: header_count
zip:
  - name: bundle
    regex: 'bundle_.*\.zip'
    members:
      - name: orders
        regex: 'orders_.*\.csv'
        file_prefix: ord
`)
	flat, zip, err := ParseDefinitions(doc)
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	if len(flat) != 1 || flat[0].Rules == nil || flat[0].Rules.Delimiter != ";" {
		t.Fatalf("flat = %+v", flat)
	}
	if flat[0].Rules.Count == nil || flat[0].Rules.Count.Condition != ConditionHeaderCount {
		t.Errorf("count = %+v", flat[0].Rules.Count)
	}
	if len(zip) != 1 || len(zip[0].Members) != 1 || zip[0].Members[0].FilePrefix != "ord" {
		t.Errorf("zip = %+v", zip)
	}
}
