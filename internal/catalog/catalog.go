// Package catalog resolves file names to declared patterns.
//
// A catalog holds two ordered scopes: flat patterns for standalone files and
// zip patterns for archives. Each zip pattern owns the member patterns its
// entries are resolved against. Within a scope the first pattern whose
// regex matches wins, so declaration order is part of the contract and is
// preserved from the store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNoMatchingPattern is returned when no pattern in scope matches a name.
var ErrNoMatchingPattern = errors.New("no matching pattern")

// Scope selects which patterns a name is resolved against.
type Scope int

const (
	ScopeFlat Scope = iota
	ScopeZip
)

func (s Scope) String() string {
	if s == ScopeZip {
		return "zip"
	}
	return "flat"
}

// Definition is a pattern as declared in the store.
type Definition struct {
	Name       string
	Regex      string
	Frequency  string
	FilePrefix string
	Rules      *Rules
	Members    []Definition
}

// Pattern is a compiled Definition.
type Pattern struct {
	Name       string
	Frequency  string
	FilePrefix string
	Rules      *Rules
	Members    []Pattern

	expr string
	re   *regexp.Regexp
}

// Regex returns the declared expression.
func (p Pattern) Regex() string { return p.expr }

// Matches reports whether name matches the pattern. Expressions are
// anchored at the start of the name only.
func (p Pattern) Matches(name string) bool {
	return p.re != nil && p.re.MatchString(name)
}

// ResolveMember resolves an archive entry name against the pattern's own
// member patterns, first match wins.
func (p Pattern) ResolveMember(name string) (Pattern, error) {
	for _, m := range p.Members {
		if m.Matches(name) {
			return m, nil
		}
	}
	return Pattern{}, fmt.Errorf("member %q of %s: %w", name, p.Name, ErrNoMatchingPattern)
}

// Source loads pattern definitions in declaration order.
type Source interface {
	Load(ctx context.Context) (flat, zip []Definition, err error)
}

// Catalog is an immutable, compiled set of patterns.
type Catalog struct {
	flat []Pattern
	zip  []Pattern
}

// New compiles flat and zip definitions, keeping their order.
func New(flat, zip []Definition) (*Catalog, error) {
	c := &Catalog{}
	var err error
	if c.flat, err = compileAll(flat, ScopeFlat); err != nil {
		return nil, err
	}
	if c.zip, err = compileAll(zip, ScopeZip); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads definitions from src and compiles them.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	flat, zip, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pattern catalog: %w", err)
	}
	return New(flat, zip)
}

func compileAll(defs []Definition, scope Scope) ([]Pattern, error) {
	seen := make(map[string]bool, len(defs))
	out := make([]Pattern, 0, len(defs))
	for _, d := range defs {
		if seen[d.Name] {
			return nil, fmt.Errorf("%s pattern %q declared twice", scope, d.Name)
		}
		seen[d.Name] = true

		p, err := compile(d)
		if err != nil {
			return nil, err
		}
		for _, md := range d.Members {
			m, err := compile(md)
			if err != nil {
				return nil, fmt.Errorf("member of %s: %w", d.Name, err)
			}
			p.Members = append(p.Members, m)
		}
		out = append(out, p)
	}
	return out, nil
}

func compile(d Definition) (Pattern, error) {
	re, err := regexp.Compile("^(?:" + d.Regex + ")")
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: compile %q: %w", d.Name, d.Regex, err)
	}
	return Pattern{
		Name:       d.Name,
		Frequency:  d.Frequency,
		FilePrefix: d.FilePrefix,
		Rules:      d.Rules,
		expr:       d.Regex,
		re:         re,
	}, nil
}

// Resolve returns the first pattern in scope whose expression matches name.
func (c *Catalog) Resolve(name string, scope Scope) (Pattern, error) {
	for _, p := range c.patterns(scope) {
		if p.Matches(name) {
			return p, nil
		}
	}
	return Pattern{}, fmt.Errorf("%s name %q: %w", scope, name, ErrNoMatchingPattern)
}

// Patterns returns the patterns of a scope in declaration order.
func (c *Catalog) Patterns(scope Scope) []Pattern {
	return append([]Pattern(nil), c.patterns(scope)...)
}

func (c *Catalog) patterns(scope Scope) []Pattern {
	if scope == ScopeZip {
		return c.zip
	}
	return c.flat
}

// StaticSource serves fixed definitions.
type StaticSource struct {
	Flat []Definition
	Zip  []Definition
}

func (s StaticSource) Load(context.Context) ([]Definition, []Definition, error) {
	return s.Flat, s.Zip, nil
}
