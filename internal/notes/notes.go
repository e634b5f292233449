// Package notes defines the calendar note document shared by the server store,
// the client replica and the sync client.
//
// A Collection maps a DateKey ("YYYY-M-D", month zero-indexed) to the ordered
// list of notes displayed on that day. The whole Collection is the unit of
// persistence and synchronization.
package notes

import (
	"maps"
	"slices"
	"strings"
)

// Note is a short styled line of text attached to a calendar day.
type Note struct {
	Text  string `json:"text" jsonschema:"description=Note text; never empty once persisted"`
	Font  string `json:"font" jsonschema:"description=CSS font family"`
	Size  string `json:"size" jsonschema:"description=CSS length such as 12px"`
	Color string `json:"color" jsonschema:"description=CSS color such as #000000"`
}

// Default styling applied when a field is missing.
const (
	DefaultFont  = "Arial"
	DefaultSize  = "12px"
	DefaultColor = "#000000"
)

// Collection maps a day to its notes, in display order.
type Collection map[string][]Note

// Clean returns the notes with surrounding whitespace trimmed from the text.
// Notes whose text is blank are dropped. The result is never nil.
func Clean(in []Note) []Note {
	out := make([]Note, 0, len(in))
	for _, n := range in {
		n.Text = strings.TrimSpace(n.Text)
		if n.Text == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Clean applies Clean to every day. Days are kept even when they end up
// empty, so an explicit "clear this day" survives a round trip.
func (c Collection) Clean() Collection {
	out := make(Collection, len(c))
	for k, v := range c {
		out[k] = Clean(v)
	}
	return out
}

// Clone returns a deep copy. A nil Collection clones to an empty one.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for k, v := range c {
		out[k] = slices.Clone(v)
		if out[k] == nil {
			out[k] = []Note{}
		}
	}
	return out
}

// Equal reports whether both collections hold the same days with the same
// notes in the same order. A nil day list equals an empty one.
func (c Collection) Equal(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	for k, v := range c {
		w, ok := other[k]
		if !ok || !slices.Equal(v, w) {
			return false
		}
	}
	return true
}

// Day returns a copy of the notes for key, never nil.
func (c Collection) Day(key string) []Note {
	v := slices.Clone(c[key])
	if v == nil {
		return []Note{}
	}
	return v
}

// Keys returns the day keys in chronological order. Keys that are not valid
// DateKeys sort last, lexically.
func (c Collection) Keys() []string {
	keys := slices.Collect(maps.Keys(c))
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// Len returns the total number of notes across all days.
func (c Collection) Len() int {
	n := 0
	for _, v := range c {
		n += len(v)
	}
	return n
}
