package availability

import (
	"time"

	"cloud.google.com/go/civil"
)

// Selectable reports whether d can be picked for an appointment: any day from
// today on. The comparison is date-only.
func Selectable(d, today civil.Date) bool {
	return !d.Before(today)
}

type Day struct {
	Date       civil.Date
	Weekday    time.Weekday
	Today      bool
	Selectable bool
}

// Month returns every day of the given month with its selectability relative to today.
func Month(year int, month time.Month, today civil.Date) []Day {
	first := civil.Date{Year: year, Month: month, Day: 1}
	var days []Day
	for d := first; d.Month == month; d = d.AddDays(1) {
		days = append(days, Day{
			Date:       d,
			Weekday:    d.In(time.UTC).Weekday(),
			Today:      d == today,
			Selectable: Selectable(d, today),
		})
	}
	return days
}
