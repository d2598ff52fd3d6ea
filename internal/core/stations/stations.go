package stations

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/sirius/internal/core/domain"
)

//go:embed stations.yaml
var defaultTable []byte

// Table is the immutable post configuration, indexed by ID and display name.
// It is built once and shared read-only, so no locking is needed.
type Table struct {
	list      []domain.StationConfig
	byID      map[string]int
	byName    map[string]int
	primaryOf map[string]string // secondary post ID -> primary post ID
}

var (
	defaultOnce sync.Once
	defaultTbl  *Table
)

// Default returns the table compiled into the binary.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(defaultTable)
		if err != nil {
			panic(fmt.Sprintf("stations: embedded table: %v", err))
		}
		defaultTbl = t
	})
	return defaultTbl
}

// Parse builds a table from YAML.
func Parse(data []byte) (*Table, error) {
	var list []domain.StationConfig
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}
	return New(list)
}

// New validates the configuration and builds the lookup indexes.
func New(list []domain.StationConfig) (*Table, error) {
	t := &Table{
		list:      make([]domain.StationConfig, len(list)),
		byID:      make(map[string]int, len(list)),
		byName:    make(map[string]int, len(list)),
		primaryOf: make(map[string]string),
	}

	var errs []string
	for i, s := range list {
		if s.ID == "" || s.Name == "" {
			errs = append(errs, fmt.Sprintf("entry %d: id and name are required", i))
			continue
		}
		if _, dup := t.byID[s.ID]; dup {
			errs = append(errs, fmt.Sprintf("duplicate id %s", s.ID))
			continue
		}
		if _, dup := t.byName[s.Name]; dup {
			errs = append(errs, fmt.Sprintf("duplicate name %s", s.Name))
			continue
		}
		s.SecondaryPosts = append([]string(nil), s.SecondaryPosts...)
		t.list[i] = s
		t.byID[s.ID] = i
		t.byName[s.Name] = i
	}

	for _, s := range t.list {
		for _, sec := range s.SecondaryPosts {
			if _, ok := t.byID[sec]; !ok {
				errs = append(errs, fmt.Sprintf("%s: unknown secondary post %s", s.ID, sec))
				continue
			}
			t.primaryOf[sec] = s.ID
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid station table:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return t, nil
}

// All returns every post in table order.
func (t *Table) All() []domain.StationConfig {
	out := make([]domain.StationConfig, len(t.list))
	copy(out, t.list)
	return out
}

// Len returns the number of posts.
func (t *Table) Len() int { return len(t.list) }

// ByID looks a post up by its internal ID.
func (t *Table) ByID(id string) (domain.StationConfig, bool) {
	i, ok := t.byID[id]
	if !ok {
		return domain.StationConfig{}, false
	}
	return t.list[i], true
}

// ByName looks a post up by its game display name.
func (t *Table) ByName(name string) (domain.StationConfig, bool) {
	i, ok := t.byName[name]
	if !ok {
		return domain.StationConfig{}, false
	}
	return t.list[i], true
}

// Resolve looks a post up by display name and returns the primary post when
// the name belongs to a secondary post.
func (t *Table) Resolve(name string) (domain.StationConfig, bool) {
	s, ok := t.ByName(name)
	if !ok {
		return s, false
	}
	if primary, ok := t.primaryOf[s.ID]; ok {
		return t.ByID(primary)
	}
	return s, true
}

// Names returns the display names that identify a post: its own name followed
// by the names of its secondary posts.
func (t *Table) Names(post domain.StationConfig) []string {
	names := []string{post.Name}
	for _, sec := range post.SecondaryPosts {
		if s, ok := t.ByID(sec); ok {
			names = append(names, s.Name)
		}
	}
	return names
}

// InPath returns the configured posts that appear in a timetable, in
// timetable order and without repeats.
func (t *Table) InPath(rows []domain.TimetableRow) []domain.StationConfig {
	seen := make(map[string]bool)
	var out []domain.StationConfig
	for _, r := range rows {
		s, ok := t.ByName(r.Name)
		if !ok || seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
	}
	return out
}
