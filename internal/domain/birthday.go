// Package domain holds the birthday and preference records shared by the
// stores, the command router and the reminder scanner.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Birthday is a person's recurring date within one chat.
type Birthday struct {
	Name  string
	Day   int
	Month int
	Year  *int
}

// ChatBirthday pairs a birthday with the chat it belongs to.
type ChatBirthday struct {
	ChatID   string
	Birthday Birthday
}

// NameKey returns the normalized form used to key names inside a chat.
func NameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NewBirthday parses date and returns a validated birthday for name.
func NewBirthday(name, date string) (Birthday, error) {
	b, err := ParseDate(date)
	if err != nil {
		return Birthday{}, err
	}
	b.Name = strings.TrimSpace(name)
	return b, nil
}

// Key returns NameKey(b.Name).
func (b Birthday) Key() string {
	return NameKey(b.Name)
}

// HasYear reports whether the birth year is known.
func (b Birthday) HasYear() bool {
	return b.Year != nil
}

// Format renders the date as dd/mm or dd/mm/yyyy.
func (b Birthday) Format() string {
	if b.Year == nil {
		return fmt.Sprintf("%02d/%02d", b.Day, b.Month)
	}
	return fmt.Sprintf("%02d/%02d/%04d", b.Day, b.Month, *b.Year)
}

// OccursOn reports whether the birthday falls on t's month and day. The year
// is ignored.
func (b Birthday) OccursOn(t time.Time) bool {
	return b.Month == int(t.Month()) && b.Day == t.Day()
}

// Validate checks that day and month form a possible date.
func (b Birthday) Validate() error {
	if b.Month < 1 || b.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidDate, b.Month)
	}
	if b.Day < 1 {
		return fmt.Errorf("%w: day %d", ErrInvalidDate, b.Day)
	}

	if b.Year != nil {
		if *b.Year < 1 || *b.Year > 9999 {
			return fmt.Errorf("%w: year %d", ErrInvalidDate, *b.Year)
		}
		if b.Day > daysIn(time.Month(b.Month), *b.Year) {
			return fmt.Errorf("%w: %s", ErrInvalidDate, b.Format())
		}
		return nil
	}

	if b.Month == int(time.February) && b.Day == 29 {
		return nil
	}
	if b.Day > daysIn(time.Month(b.Month), referenceYear) {
		return fmt.Errorf("%w: %s", ErrInvalidDate, b.Format())
	}
	return nil
}

// WithYear returns a pointer to year, for building birthdays in place.
func WithYear(year int) *int {
	return &year
}

// SortKey orders birthdays by month then day.
func (b Birthday) SortKey() int {
	return b.Month*100 + b.Day
}
