// Package calendar computes the month grid shown by the clients.
//
// Weeks start on Monday. Saturdays and Sundays are part of the grid but
// flagged Hidden: the calendar only displays working days.
package calendar

import (
	"time"

	"github.com/maruel/calnotes/internal/notes"
)

// Month is a zero-indexed month of a year.
type Month struct {
	Year  int
	Month int
}

// Cell is one slot of the grid. Blank cells pad the first and last week.
type Cell struct {
	Blank  bool
	Day    int
	Key    string
	Hidden bool
	Today  bool
}

// NewMonth returns the month containing t.
func NewMonth(t time.Time) Month {
	k := notes.KeyFor(t)
	return Month{Year: k.Year, Month: k.Month}
}

// Prev returns the previous month, wrapping to December of the previous year.
func (m Month) Prev() Month {
	if m.Month == 0 {
		return Month{Year: m.Year - 1, Month: 11}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

// Next returns the following month, wrapping to January of the next year.
func (m Month) Next() Month {
	if m.Month == 11 {
		return Month{Year: m.Year + 1, Month: 0}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// Days returns the number of days in the month.
func (m Month) Days() int {
	return notes.DaysIn(m.Year, m.Month)
}

// Key returns the DateKey string of day in this month.
func (m Month) Key(day int) string {
	return notes.DateKey{Year: m.Year, Month: m.Month, Day: day}.String()
}

// leading returns how many blank cells precede day 1 in a Monday-first week.
func (m Month) leading() int {
	wd := time.Date(m.Year, time.Month(m.Month+1), 1, 0, 0, 0, 0, time.UTC).Weekday()
	return (int(wd) + 6) % 7
}

// Grid lays the month out in weeks of seven cells. today marks the matching
// cell, if it falls in this month.
func (m Month) Grid(today time.Time) [][7]Cell {
	tk := notes.KeyFor(today)
	var weeks [][7]Cell
	var week [7]Cell
	col := 0
	for range m.leading() {
		week[col] = Cell{Blank: true}
		col++
	}
	for d := 1; d <= m.Days(); d++ {
		week[col] = Cell{
			Day:    d,
			Key:    m.Key(d),
			Hidden: col >= 5,
			Today:  tk.Year == m.Year && tk.Month == m.Month && tk.Day == d,
		}
		col++
		if col == 7 {
			weeks = append(weeks, week)
			week = [7]Cell{}
			col = 0
		}
	}
	if col > 0 {
		for ; col < 7; col++ {
			week[col] = Cell{Blank: true}
		}
		weeks = append(weeks, week)
	}
	return weeks
}

// String returns "YYYY-MM" with a one-indexed, zero-padded month.
func (m Month) String() string {
	return time.Date(m.Year, time.Month(m.Month+1), 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// ParseMonth parses "YYYY-MM" with a one-indexed month.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, err
	}
	return Month{Year: t.Year(), Month: int(t.Month()) - 1}, nil
}
