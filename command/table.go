package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

type entry struct {
	alias string
	name  string
}

// Table maps aliases to canonical names for one bot, in insertion order.
// No alias of one command is a prefix of an alias of another, so a prefix
// scan is never ambiguous between commands.
type Table struct {
	mu      sync.RWMutex
	entries []entry
}

// Normalize returns the aliases a command registers under: the given ones
// plus the canonical name, deduplicated, longest first so that "help" is
// tried before "h".
func Normalize(name string, aliases []string) []string {
	out := make([]string, 0, len(aliases)+1)
	seen := make(map[string]bool, len(aliases)+1)
	for _, a := range append(append([]string(nil), aliases...), name) {
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Check reports the first alias that collides with one already in the
// table: equal to it, or a prefix of it either way.
func (t *Table) Check(name string, aliases []string) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.check(name, aliases)
}

func (t *Table) check(name string, aliases []string) error {
	for _, a := range aliases {
		if a == "" {
			return fmt.Errorf("%w for command %q", ErrEmptyAlias, name)
		}
		for _, e := range t.entries {
			if strings.HasPrefix(e.alias, a) || strings.HasPrefix(a, e.alias) {
				return fmt.Errorf("%w: alias %q (%s) collides with %q (%s)", ErrAliasConflict, a, name, e.alias, e.name)
			}
		}
	}
	return nil
}

// Add inserts all aliases of name or none of them.
func (t *Table) Add(name string, aliases []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(name, aliases); err != nil {
		return err
	}
	for _, a := range aliases {
		t.entries = append(t.entries, entry{alias: a, name: name})
	}
	return nil
}

// Aliases lists the aliases registered for name, in insertion order.
func (t *Table) Aliases(name string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, e := range t.entries {
		if e.name == name {
			out = append(out, e.alias)
		}
	}
	return out
}

// Match is a resolved command invocation.
type Match struct {
	Alias string
	Name  string
	// Args is the text after the alias with leading whitespace removed.
	Args string
}

// Lookup strips a command-start marker from text and returns the first
// alias, in insertion order, that the rest of the text starts with.
func (t *Table) Lookup(markers Markers, text string) (Match, bool) {
	body, ok := markers.Strip(text)
	if !ok {
		return Match{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.entries {
		if strings.HasPrefix(body, e.alias) {
			return Match{
				Alias: e.alias,
				Name:  e.name,
				Args:  strings.TrimLeftFunc(body[len(e.alias):], unicode.IsSpace),
			}, true
		}
	}
	return Match{}, false
}
