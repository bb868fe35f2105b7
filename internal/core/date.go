// Package core provides the calendar-date arithmetic used by installment
// schedules.
//
// Dates here are pure calendar values. They never pass through a time zone,
// so a due date parsed from "2024-08-31" is always the 31st regardless of
// where the process runs.
package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const isoLayout = "2006-01-02"

// Accepted year range for user-entered dates.
const (
	MinValidYear = 1900
	MaxValidYear = 2100
)

// Years that fit the four-digit ISO form.
const (
	MinISOYear = 0
	MaxISOYear = 9999
)

// maxMonthSpan is the widest month offset between two four-digit years.
const maxMonthSpan = (MaxISOYear - MinISOYear + 1) * 12

var (
	ErrMalformedDate  = errors.New("malformed date, expected YYYY-MM-DD")
	ErrOutOfRangeDate = errors.New("date out of range")
)

// Date is a calendar date with no time-of-day and no location.
// Month is 1..12.
type Date struct {
	Year  int
	Month int
	Day   int
}

// NewDate creates a Date from year, month (1-12) and day.
func NewDate(year, month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// DateFromTime takes the calendar fields of t in its own location.
func DateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: int(m), Day: d}
}

// Today returns the current local calendar date.
func Today() Date {
	return DateFromTime(time.Now())
}

// IsLeapYear reports whether year has a February 29th.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in month (1-12) of year.
func DaysIn(year, month int) int {
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// AddMonthsSafe adds n months (n may be negative) to d. The day is clamped
// to the last day of the resulting month, so Jan 31 + 1 is Feb 28 or Feb 29.
func AddMonthsSafe(d Date, n int) Date {
	idx := d.Year*12 + (d.Month - 1) + n
	year := floorDiv(idx, 12)
	month := idx - year*12 + 1

	day := d.Day
	if last := DaysIn(year, month); day > last {
		day = last
	}
	return Date{Year: year, Month: month, Day: day}
}

// AddMonthsChecked is AddMonthsSafe for offsets taken from user input. It
// fails with ErrOutOfRangeDate when the result leaves the four-digit year
// range, so the result always formats to a string ParseISODate accepts.
func AddMonthsChecked(d Date, n int) (Date, error) {
	if n > maxMonthSpan || n < -maxMonthSpan {
		return Date{}, fmt.Errorf("offset of %d months: %w", n, ErrOutOfRangeDate)
	}
	out := AddMonthsSafe(d, n)
	if out.Year < MinISOYear || out.Year > MaxISOYear {
		return Date{}, fmt.Errorf("%s plus %d months reaches year %d: %w", d, n, out.Year, ErrOutOfRangeDate)
	}
	return out, nil
}

// MonthsBetween returns the whole-month distance from a to b, ignoring days.
func MonthsBetween(a, b Date) int {
	return (b.Year-a.Year)*12 + (b.Month - a.Month)
}

// ParseISODate parses a strict YYYY-MM-DD string.
func ParseISODate(s string) (Date, error) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return Date{}, fmt.Errorf("parse %q: %w", s, ErrMalformedDate)
	}
	year, ok1 := atoiDigits(s[0:4])
	month, ok2 := atoiDigits(s[5:7])
	day, ok3 := atoiDigits(s[8:10])
	if !ok1 || !ok2 || !ok3 {
		return Date{}, fmt.Errorf("parse %q: %w", s, ErrMalformedDate)
	}

	d := Date{Year: year, Month: month, Day: day}
	if err := d.Validate(); err != nil {
		return Date{}, fmt.Errorf("parse %q: %w", s, err)
	}
	return d, nil
}

// MustParseISODate is ParseISODate for literals known to be valid.
func MustParseISODate(s string) Date {
	d, err := ParseISODate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FormatISODate renders d as zero-padded YYYY-MM-DD.
func FormatISODate(d Date) string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsValidDate reports whether s is a well-formed date within the accepted
// year range. It never panics or returns an error, so it is the check to run
// on user input.
func IsValidDate(s string) bool {
	d, err := ParseISODate(s)
	if err != nil {
		return false
	}
	return d.Year >= MinValidYear && d.Year <= MaxValidYear
}

// Validate checks the month and day against the calendar.
func (d Date) Validate() error {
	if d.Month < 1 || d.Month > 12 {
		return fmt.Errorf("month %d: %w", d.Month, ErrOutOfRangeDate)
	}
	if d.Day < 1 || d.Day > DaysIn(d.Year, d.Month) {
		return fmt.Errorf("day %d of %04d-%02d: %w", d.Day, d.Year, d.Month, ErrOutOfRangeDate)
	}
	return nil
}

// AddMonths is the method form of AddMonthsSafe.
func (d Date) AddMonths(n int) Date { return AddMonthsSafe(d, n) }

func (d Date) String() string { return FormatISODate(d) }

func (d Date) IsZero() bool { return d == Date{} }

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or
// after other.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(d.Month - other.Month)
	default:
		return sign(d.Day - other.Day)
	}
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }
func (d Date) Equal(other Date) bool  { return d == other }

// Time returns midnight UTC on d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	parsed, err := ParseISODate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value stores the date as its ISO string.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan accepts the ISO string form, or a time.Time some drivers hand back
// for DATE columns.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		parsed, err := ParseISODate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = DateFromTime(v.UTC())
		return nil
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func atoiDigits(s string) (int, bool) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
