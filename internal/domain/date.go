package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// referenceYear is a non-leap year used to validate dates without a year.
const referenceYear = 2001

var (
	// ErrInvalidDateFormat is returned when the text is not d/m or d/m/y.
	ErrInvalidDateFormat = errors.New("invalid date format")
	// ErrInvalidDate is returned when the parts do not form a calendar date.
	ErrInvalidDate = errors.New("invalid date value")
)

// ParseDate reads dd/mm or dd/mm/yyyy. Day and month may have one or two
// digits, the year up to four.
func ParseDate(s string) (Birthday, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 && len(parts) != 3 {
		return Birthday{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}

	day, err := parsePart(parts[0], 2)
	if err != nil {
		return Birthday{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}
	month, err := parsePart(parts[1], 2)
	if err != nil {
		return Birthday{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
	}

	b := Birthday{Day: day, Month: month}
	if len(parts) == 3 {
		year, err := parsePart(parts[2], 4)
		if err != nil {
			return Birthday{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, s)
		}
		b.Year = &year
	}

	if err := b.Validate(); err != nil {
		return Birthday{}, err
	}
	return b, nil
}

func parsePart(s string, maxDigits int) (int, error) {
	if s == "" || len(s) > maxDigits {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.Atoi(s)
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
