package core

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

// MaxYear bounds date arithmetic; stepping past it is a date arithmetic failure.
const MaxYear = 9999

var (
	ErrInvalidDay   = errors.New("invalid day")
	ErrInvalidMonth = errors.New("invalid month")
)

// Date is a calendar date without time of day, held at UTC midnight.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar date in loc.
func Today(loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return DateOf(time.Now().In(loc))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	if d.Year() > MaxYear {
		return fmt.Errorf("year %d out of range", d.Year())
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }
func (d Date) After(o Date) bool  { return d.Time.After(o.Time) }
func (d Date) Equal(o Date) bool  { return d.Time.Equal(o.Time) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AddDays moves the date n days forward.
func (d Date) AddDays(n int) (Date, error) {
	next := Date{Time: d.Time.AddDate(0, 0, n)}
	if next.Year() > MaxYear {
		return Date{}, fmt.Errorf("%w: %s + %d days", ErrDateArithmetic, d, n)
	}
	return next, nil
}

// AddMonthsClamped moves the date n calendar months forward. When the day does
// not exist in the target month it is clamped to that month's last day.
func (d Date) AddMonthsClamped(n int) (Date, error) {
	y, m, day := d.Time.Date()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := total%12 + 1
	if total < 0 {
		ty = y + (total-11)/12
		tm = ((total%12)+12)%12 + 1
	}
	if ty > MaxYear || ty < 1 {
		return Date{}, fmt.Errorf("%w: %s + %d months", ErrDateArithmetic, d, n)
	}
	if last := DaysIn(ty, tm); day > last {
		day = last
	}
	return NewDate(ty, tm, day), nil
}

// AddYearsClamped moves the date n years forward; Feb 29 becomes Feb 28 in common years.
func (d Date) AddYearsClamped(n int) (Date, error) {
	return d.AddMonthsClamped(12 * n)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
