// Package notestest provides rapid generators for well-formed note
// collections, shared by the property tests of the store packages.
package notestest

import (
	"github.com/maruel/calnotes/internal/notes"
	"pgregory.net/rapid"
)

// Key generates valid DateKey strings.
func Key() *rapid.Generator[string] {
	return rapid.Custom(func(t *rapid.T) string {
		y := rapid.IntRange(1990, 2100).Draw(t, "year")
		m := rapid.IntRange(0, 11).Draw(t, "month")
		d := rapid.IntRange(1, notes.DaysIn(y, m)).Draw(t, "day")
		return notes.DateKey{Year: y, Month: m, Day: d}.String()
	})
}

// Note generates a note with non-blank, trimmed text.
func Note() *rapid.Generator[notes.Note] {
	return rapid.Custom(func(t *rapid.T) notes.Note {
		return notes.Note{
			Text:  rapid.StringMatching(`[A-Za-z0-9][A-Za-z0-9 ,.!?\p{Han}]{0,40}[A-Za-z0-9]|[A-Za-z0-9]`).Draw(t, "text"),
			Font:  rapid.SampledFrom([]string{"Arial", "Georgia", "Microsoft YaHei", "monospace"}).Draw(t, "font"),
			Size:  rapid.SampledFrom([]string{"10px", "12px", "14px", "1.2em"}).Draw(t, "size"),
			Color: rapid.SampledFrom([]string{"#000000", "#ff0000", "blue", "rgb(0, 128, 0)"}).Draw(t, "color"),
		}
	})
}

// Collection generates a well-formed collection: valid keys and clean notes.
func Collection() *rapid.Generator[notes.Collection] {
	return rapid.Custom(func(t *rapid.T) notes.Collection {
		m := rapid.MapOfN(Key(), rapid.SliceOfN(Note(), 0, 5), 0, 12).Draw(t, "collection")
		c := make(notes.Collection, len(m))
		for k, v := range m {
			if v == nil {
				v = []notes.Note{}
			}
			c[k] = v
		}
		return c
	})
}
