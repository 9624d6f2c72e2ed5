package command

import "strings"

// Markers are the literal prefixes that make a message a command, tried in
// order. No markers means every message is a command candidate.
type Markers []string

// NewMarkers copies list. A list containing "" needs no prefix at all.
func NewMarkers(list []string) Markers {
	for _, m := range list {
		if m == "" {
			return nil
		}
	}
	return append(Markers(nil), list...)
}

// Strip removes the first matching marker. Whitespace after the marker is
// kept, so "/ help" does not reach the "help" alias.
func (m Markers) Strip(text string) (string, bool) {
	if len(m) == 0 {
		return text, true
	}
	for _, marker := range m {
		if strings.HasPrefix(text, marker) {
			return text[len(marker):], true
		}
	}
	return "", false
}
