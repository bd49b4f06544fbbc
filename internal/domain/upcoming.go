package domain

import (
	"sort"
	"time"
)

const (
	// DefaultUpcomingDays is the window used when /listupcoming has no argument.
	DefaultUpcomingDays = 14
	// MaxUpcomingDays bounds the upcoming window.
	MaxUpcomingDays = 365
)

type monthDay struct {
	month int
	day   int
}

func monthDayOf(t time.Time) monthDay {
	return monthDay{month: int(t.Month()), day: t.Day()}
}

// onOrAfter is the lower bound of the window: (month > m) or (month == m and day >= d).
func (b Birthday) onOrAfter(md monthDay) bool {
	return b.Month > md.month || (b.Month == md.month && b.Day >= md.day)
}

// before is the exclusive upper bound: (month < m) or (month == m and day < d).
func (b Birthday) before(md monthDay) bool {
	return b.Month < md.month || (b.Month == md.month && b.Day < md.day)
}

// Upcoming returns the birthdays whose month and day fall in the half-open
// window [today, today+days), ordered by their next occurrence. A birthday
// on today is always part of the result, so days == 0 yields today's
// birthdays only. When the window crosses into the next calendar year it is
// evaluated as [today, Dec 31] plus [Jan 1, end).
func Upcoming(birthdays []Birthday, today time.Time, days int) []Birthday {
	start := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	end := start.AddDate(0, 0, days)

	from := monthDayOf(start)
	to := monthDayOf(end)

	type hit struct {
		birthday Birthday
		nextYear bool
	}

	hits := make([]hit, 0, len(birthdays))
	for _, b := range birthdays {
		switch {
		case b.OccursOn(start):
			hits = append(hits, hit{birthday: b})
		case end.Year() > start.Year():
			if b.onOrAfter(from) {
				hits = append(hits, hit{birthday: b})
			} else if b.before(to) {
				hits = append(hits, hit{birthday: b, nextYear: true})
			}
		case b.onOrAfter(from) && b.before(to):
			hits = append(hits, hit{birthday: b})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].nextYear != hits[j].nextYear {
			return !hits[i].nextYear
		}
		return hits[i].birthday.SortKey() < hits[j].birthday.SortKey()
	})

	result := make([]Birthday, 0, len(hits))
	for _, h := range hits {
		result = append(result, h.birthday)
	}
	return result
}
