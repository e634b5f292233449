// Parses and formats the day keys used in a Collection.

package notes

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateKey identifies a calendar day. Month is zero-indexed (0 = January).
type DateKey struct {
	Year  int
	Month int
	Day   int
}

// KeyFor returns the DateKey of t in t's location.
func KeyFor(t time.Time) DateKey {
	return DateKey{Year: t.Year(), Month: int(t.Month()) - 1, Day: t.Day()}
}

// ParseDateKey parses "YYYY-M-D" with a zero-indexed month.
func ParseDateKey(s string) (DateKey, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return DateKey{}, fmt.Errorf("invalid date key %q: want YYYY-M-D", s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return DateKey{}, fmt.Errorf("invalid date key %q: %q is not a number", s, p)
		}
		v[i] = n
	}
	k := DateKey{Year: v[0], Month: v[1], Day: v[2]}
	if err := k.Validate(); err != nil {
		return DateKey{}, fmt.Errorf("invalid date key %q: %w", s, err)
	}
	// "2024-01-5" would otherwise alias "2024-1-5".
	if k.String() != s {
		return DateKey{}, fmt.Errorf("invalid date key %q: not in canonical form %q", s, k.String())
	}
	return k, nil
}

// Validate checks the ranges of the key fields.
func (k DateKey) Validate() error {
	if k.Year < 1 || k.Year > 9999 {
		return fmt.Errorf("year %d out of range", k.Year)
	}
	if k.Month < 0 || k.Month > 11 {
		return fmt.Errorf("month %d out of range 0-11", k.Month)
	}
	if k.Day < 1 || k.Day > DaysIn(k.Year, k.Month) {
		return fmt.Errorf("day %d out of range", k.Day)
	}
	return nil
}

// String formats the key as "YYYY-M-D".
func (k DateKey) String() string {
	return strconv.Itoa(k.Year) + "-" + strconv.Itoa(k.Month) + "-" + strconv.Itoa(k.Day)
}

// Time returns midnight of the day in loc.
func (k DateKey) Time(loc *time.Location) time.Time {
	return time.Date(k.Year, time.Month(k.Month+1), k.Day, 0, 0, 0, 0, loc)
}

// Compare orders keys chronologically.
func (k DateKey) Compare(o DateKey) int {
	return cmp.Or(cmp.Compare(k.Year, o.Year), cmp.Compare(k.Month, o.Month), cmp.Compare(k.Day, o.Day))
}

// DaysIn returns the number of days in the zero-indexed month.
func DaysIn(year, month int) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// ValidKey reports whether s parses as a DateKey.
func ValidKey(s string) bool {
	_, err := ParseDateKey(s)
	return err == nil
}

// CompareKeys orders raw keys chronologically, invalid keys last.
func CompareKeys(a, b string) int {
	ka, errA := ParseDateKey(a)
	kb, errB := ParseDateKey(b)
	switch {
	case errA == nil && errB == nil:
		return cmp.Or(ka.Compare(kb), strings.Compare(a, b))
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}
