// Package years tracks which dataset years are available and where each
// year's completions file lives.
package years

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/nicktill/ipedscomps/pkg/tabular"
)

// DefaultPattern matches IPEDS completions files such as c2019_a.csv.
const DefaultPattern = `(?i)^c(\d{4})_a\.csv$`

// Registry is an immutable, ordered set of dataset years.
type Registry struct {
	years   []int
	sources map[int]tabular.Source
}

// FromMapping builds a registry from a declared year to source mapping.
func FromMapping(m map[int]tabular.Source) *Registry {
	r := &Registry{sources: make(map[int]tabular.Source, len(m))}
	for year, src := range m {
		r.sources[year] = src
		r.years = append(r.years, year)
	}
	sort.Ints(r.years)
	return r
}

// Discover scans dir for files whose name matches pattern and registers one
// year per file. The year is the pattern's first capture group. Two files
// resolving to the same year is an error.
func Discover(dir, pattern string) (*Registry, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid year pattern %q: %w", pattern, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("year pattern %q has no capture group", pattern)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	m := make(map[int]tabular.Source)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := re.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		year, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if prev, dup := m[year]; dup {
			return nil, fmt.Errorf("year %d matched by both %s and %s", year, prev.Name(), entry.Name())
		}
		m[year] = tabular.FileSource{Path: filepath.Join(dir, entry.Name())}
	}

	return FromMapping(m), nil
}

// ParseMapping parses a declared mapping of the form
// "2019=/data/c2019_a.csv,2020=/data/c2020_a.csv".
func ParseMapping(s string) (map[int]tabular.Source, error) {
	m := make(map[int]tabular.Source)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		yearStr, path, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid year mapping %q: expected YEAR=PATH", part)
		}
		year, err := strconv.Atoi(strings.TrimSpace(yearStr))
		if err != nil {
			return nil, fmt.Errorf("invalid year in mapping %q: %w", part, err)
		}
		if _, dup := m[year]; dup {
			return nil, fmt.Errorf("year %d declared twice", year)
		}
		m[year] = tabular.FileSource{Path: strings.TrimSpace(path)}
	}
	return m, nil
}

// Years returns the registered years in ascending order. The slice is a copy.
func (r *Registry) Years() []int {
	out := make([]int, len(r.years))
	copy(out, r.years)
	return out
}

// SourceFor returns the resource registered for year.
func (r *Registry) SourceFor(year int) (tabular.Source, bool) {
	src, ok := r.sources[year]
	return src, ok
}

// Len returns the number of registered years.
func (r *Registry) Len() int {
	return len(r.years)
}
