package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maruel/calnotes/internal/calendar"
	"github.com/maruel/calnotes/internal/notes"
)

var weekdays = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// renderMonth prints the grid of m followed by its notes.
//
// A day with notes is suffixed with '*', today is bracketed.
func renderMonth(w io.Writer, m calendar.Month, c notes.Collection, now time.Time, weekends bool) {
	cols := 5
	if weekends {
		cols = 7
	}
	_, _ = fmt.Fprintf(w, "%s\n", m)
	var b strings.Builder
	for i := range cols {
		fmt.Fprintf(&b, " %-5s", weekdays[i])
	}
	_, _ = fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	for _, week := range m.Grid(now) {
		b.Reset()
		empty := true
		for i := range cols {
			cell := week[i]
			if cell.Blank {
				b.WriteString("      ")
				continue
			}
			empty = false
			mark := " "
			if len(c[cell.Key]) > 0 {
				mark = "*"
			}
			if cell.Today {
				fmt.Fprintf(&b, "[%2d]%s ", cell.Day, mark)
			} else {
				fmt.Fprintf(&b, " %2d %s ", cell.Day, mark)
			}
		}
		// A week made only of weekend days when they are hidden.
		if empty {
			continue
		}
		_, _ = fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
	for d := 1; d <= m.Days(); d++ {
		day := c[m.Key(d)]
		if len(day) == 0 {
			continue
		}
		_, _ = fmt.Fprintln(w)
		renderDay(w, time.Date(m.Year, time.Month(m.Month+1), d, 0, 0, 0, 0, time.UTC), day)
	}
}

// renderDay writes the date line of one day and its notes.
func renderDay(w io.Writer, date time.Time, day []notes.Note) {
	_, _ = fmt.Fprintf(w, "%s %s\n", date.Format(time.DateOnly), date.Weekday().String()[:3])
	for _, n := range day {
		_, _ = fmt.Fprintf(w, "  - %s\n", n.Text)
	}
}
