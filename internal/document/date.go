package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate indicates a date string that is not a valid YYYY-MM-DD value.
var ErrInvalidDate = errors.New("document: invalid calendar date")

// CalendarDate is a civil date with no time-of-day and no timezone. Dates are
// parsed from their YYYY-MM-DD components directly so that comparisons never
// shift across a timezone boundary.
type CalendarDate struct {
	year  int
	month int
	day   int
}

// NewCalendarDate validates the components and returns a CalendarDate.
func NewCalendarDate(year, month, day int) (CalendarDate, error) {
	if year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
		return CalendarDate{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	return CalendarDate{year: year, month: month, day: day}, nil
}

// ParseCalendarDate parses a YYYY-MM-DD string into a CalendarDate.
func ParseCalendarDate(value string) (CalendarDate, error) {
	parts := strings.Split(strings.TrimSpace(value), "-")
	if len(parts) != 3 {
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	year, yearErr := strconv.Atoi(parts[0])
	month, monthErr := strconv.Atoi(parts[1])
	day, dayErr := strconv.Atoi(parts[2])
	if yearErr != nil || monthErr != nil || dayErr != nil {
		return CalendarDate{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return NewCalendarDate(year, month, day)
}

// DateOf converts a wall-clock instant into the calendar date it falls on in
// the instant's own location.
func DateOf(instant time.Time) CalendarDate {
	return CalendarDate{year: instant.Year(), month: int(instant.Month()), day: instant.Day()}
}

// Year returns the calendar year.
func (d CalendarDate) Year() int { return d.year }

// Month returns the calendar month, 1 through 12.
func (d CalendarDate) Month() int { return d.month }

// Day returns the day of the month.
func (d CalendarDate) Day() int { return d.day }

// IsZero reports whether the date is the zero value.
func (d CalendarDate) IsZero() bool {
	return d.year == 0 && d.month == 0 && d.day == 0
}

// String renders the date as YYYY-MM-DD.
func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.year, d.month, d.day)
}

// Compare orders two dates: negative when d precedes other, zero when equal.
func (d CalendarDate) Compare(other CalendarDate) int {
	if d.year != other.year {
		return d.year - other.year
	}
	if d.month != other.month {
		return d.month - other.month
	}
	return d.day - other.day
}

// Before reports whether d precedes other.
func (d CalendarDate) Before(other CalendarDate) bool {
	return d.Compare(other) < 0
}

// After reports whether d follows other.
func (d CalendarDate) After(other CalendarDate) bool {
	return d.Compare(other) > 0
}

// Within reports whether d falls inside the inclusive [start, end] range.
func (d CalendarDate) Within(start, end CalendarDate) bool {
	return d.Compare(start) >= 0 && d.Compare(end) <= 0
}

// WeekOfMonth returns the 1-based week bucket the day falls in: days 1-7 are
// week 1, 8-14 week 2, and so on.
func (d CalendarDate) WeekOfMonth() int {
	return (d.day-1)/7 + 1
}

// Weekday returns the day of the week the date falls on.
func (d CalendarDate) Weekday() time.Weekday {
	return time.Date(d.year, time.Month(d.month), d.day, 0, 0, 0, 0, time.UTC).Weekday()
}

// AddDays returns the date shifted by the given number of days, normalized
// across month and year boundaries.
func (d CalendarDate) AddDays(days int) CalendarDate {
	shifted := time.Date(d.year, time.Month(d.month), d.day+days, 0, 0, 0, 0, time.UTC)
	return DateOf(shifted)
}

// DaysUntil returns the inclusive day count from d through end. Returns 0 when
// end precedes d.
func (d CalendarDate) DaysUntil(end CalendarDate) int {
	if end.Before(d) {
		return 0
	}
	start := time.Date(d.year, time.Month(d.month), d.day, 0, 0, 0, 0, time.UTC)
	stop := time.Date(end.year, time.Month(end.month), end.day, 0, 0, 0, 0, time.UTC)
	return int(stop.Sub(start).Hours()/24) + 1
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d CalendarDate) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON decodes a YYYY-MM-DD string. An empty string yields the zero
// date so older documents with blank fields still load.
func (d *CalendarDate) UnmarshalJSON(data []byte) error {
	raw, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	if strings.TrimSpace(raw) == "" {
		*d = CalendarDate{}
		return nil
	}
	parsed, err := ParseCalendarDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
