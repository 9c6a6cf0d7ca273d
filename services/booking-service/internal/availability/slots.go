package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// SlotLabelLayout is how time slots are shown and submitted, e.g. "9:30 AM".
const SlotLabelLayout = "3:04 PM"

var ErrSlotUnavailable = errors.New("time slot not available")

// Schedule describes the bookable hours of a practice day.
type Schedule struct {
	WorkdayStart civil.Time
	WorkdayEnd   civil.Time
	Duration     time.Duration
	Step         time.Duration
	// Breaks are closed periods; no slot may overlap one.
	Breaks   []Break
	Location *time.Location
}

// Break is a daily closed period [Start, End).
type Break struct {
	Start civil.Time
	End   civil.Time
}

// ParseBreaks parses "12:00-13:00,15:30-15:45".
func ParseBreaks(raw string) ([]Break, error) {
	var out []Break
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("invalid break %q (want HH:MM-HH:MM)", part)
		}
		start, err := ParseClock(strings.TrimSpace(from))
		if err != nil {
			return nil, err
		}
		end, err := ParseClock(strings.TrimSpace(to))
		if err != nil {
			return nil, err
		}
		out = append(out, Break{Start: start, End: end})
	}
	return out, nil
}

func DefaultSchedule(loc *time.Location) Schedule {
	if loc == nil {
		loc = time.UTC
	}
	return Schedule{
		WorkdayStart: civil.Time{Hour: 9},
		WorkdayEnd:   civil.Time{Hour: 17},
		Duration:     time.Hour,
		Step:         time.Hour,
		Location:     loc,
	}
}

func (s Schedule) Validate() error {
	if s.Duration <= 0 || s.Step <= 0 {
		return fmt.Errorf("slot duration and step must be positive")
	}
	if clockOffset(s.WorkdayStart) >= clockOffset(s.WorkdayEnd) {
		return fmt.Errorf("workday start %s must be before end %s", s.WorkdayStart, s.WorkdayEnd)
	}
	for _, b := range s.Breaks {
		if clockOffset(b.Start) >= clockOffset(b.End) {
			return fmt.Errorf("break start %s must be before end %s", b.Start, b.End)
		}
	}
	return nil
}

// ParseClock parses a wall clock like "09:00".
func ParseClock(raw string) (civil.Time, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return civil.Time{}, fmt.Errorf("invalid clock %q (want HH:MM)", raw)
	}
	return civil.Time{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func clockOffset(t civil.Time) time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute + time.Duration(t.Second)*time.Second
}

// Labels lists the slot labels still open on day as of now. Slots are laid
// out every Step from WorkdayStart and must end by WorkdayEnd. Slots starting
// before now are dropped, so past days yield nothing.
func (s Schedule) Labels(day civil.Date, now time.Time) []string {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	if s.Duration <= 0 || s.Step <= 0 {
		return nil
	}
	midnight := civil.DateTime{Date: day}.In(loc)
	at := func(t civil.Time) time.Time { return midnight.Add(clockOffset(t)) }
	closeAt := at(s.WorkdayEnd)

	var labels []string
	for start := at(s.WorkdayStart); !start.Add(s.Duration).After(closeAt); start = start.Add(s.Step) {
		if start.Before(now) || s.onBreak(start, start.Add(s.Duration), at) {
			continue
		}
		labels = append(labels, start.Format(SlotLabelLayout))
	}
	return labels
}

// onBreak uses half-open intervals: touching a break's edge is allowed.
func (s Schedule) onBreak(start, end time.Time, at func(civil.Time) time.Time) bool {
	for _, b := range s.Breaks {
		if start.Before(at(b.End)) && at(b.Start).Before(end) {
			return true
		}
	}
	return false
}

// CheckSlot reports ErrSlotUnavailable unless label is one of day's open slots.
func (s Schedule) CheckSlot(day civil.Date, label string, now time.Time) error {
	for _, l := range s.Labels(day, now) {
		if l == label {
			return nil
		}
	}
	return fmt.Errorf("%w: %s on %s", ErrSlotUnavailable, label, day)
}
