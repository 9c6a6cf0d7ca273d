package journal

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/md-rashed-zaman/carejournal/services/journal-service/internal/storage"
)

// DefaultKey is the storage key the whole journal lives under.
const DefaultKey = "moodData"

// TrendDays is the length of the trend window, ending today inclusive.
const TrendDays = 30

type Options struct {
	Store storage.BlobStore
	// Key defaults to DefaultKey.
	Key string
	// Now defaults to time.Now.
	Now func() time.Time
	// Location decides which calendar day "today" is. Defaults to UTC.
	Location *time.Location
}

// Journal is the date to entry mapping plus the blob it is persisted to.
// Every mutation rewrites the full blob before the in-memory map changes.
type Journal struct {
	mu      sync.RWMutex
	entries map[civil.Date]Entry
	store   storage.BlobStore
	key     string
	now     func() time.Time
	loc     *time.Location
}

// Open loads the journal from opts.Store. A missing blob is an empty journal.
func Open(ctx context.Context, opts Options) (*Journal, error) {
	if opts.Store == nil {
		return nil, errors.New("journal: blob store is required")
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	j := &Journal{store: opts.Store, key: opts.Key, now: opts.Now, loc: opts.Location}

	raw, err := opts.Store.Load(ctx, opts.Key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		j.entries = map[civil.Date]Entry{}
	case err != nil:
		return nil, fmt.Errorf("load journal: %w", err)
	default:
		if j.entries, err = Decode(raw); err != nil {
			return nil, err
		}
	}
	return j, nil
}

// Now is the journal's clock, also used for entry timestamps.
func (j *Journal) Now() time.Time { return j.now() }

func (j *Journal) Today() civil.Date {
	return civil.DateOf(j.now().In(j.loc))
}

// RecordMood inserts or overwrites the entry for d. great reports a mood of
// MoodGreat, which the client celebrates. Nothing changes when validation or
// the write fails.
func (j *Journal) RecordMood(ctx context.Context, d civil.Date, mood int, note string) (entry Entry, great bool, err error) {
	if err := validMood(mood); err != nil {
		return Entry{}, false, err
	}
	if !d.IsValid() {
		return Entry{}, false, fmt.Errorf("invalid date %s", d)
	}
	if d.After(j.Today()) {
		return Entry{}, false, fmt.Errorf("%w: %s", ErrFutureDate, d)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	entry = Entry{Mood: mood, Note: note, Timestamp: j.now().UnixMilli()}
	next := maps.Clone(j.entries)
	next[d] = entry
	if err := j.persistLocked(ctx, next); err != nil {
		return Entry{}, false, err
	}
	j.entries = next
	return entry, mood == MoodGreat, nil
}

// ClearAll drops every entry and the stored blob. It returns how many entries
// were removed.
func (j *Journal) ClearAll(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.store.Delete(ctx, j.key); err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	n := len(j.entries)
	j.entries = map[civil.Date]Entry{}
	return n, nil
}

func (j *Journal) persistLocked(ctx context.Context, entries map[civil.Date]Entry) error {
	raw, err := Encode(entries)
	if err != nil {
		return err
	}
	if err := j.store.Save(ctx, j.key, raw); err != nil {
		return fmt.Errorf("save journal: %w", err)
	}
	return nil
}

// Entry looks up the record for d.
func (j *Journal) Entry(d civil.Date) (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	e, ok := j.entries[d]
	return e, ok
}

// Entries returns a copy of the full mapping.
func (j *Journal) Entries() map[civil.Date]Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return maps.Clone(j.entries)
}

type Stats struct {
	Total     int
	Average   float64
	GreatDays int
	SadDays   int
}

// AverageLabel renders the average with one decimal, or "-" for an empty journal.
func (s Stats) AverageLabel() string {
	if s.Total == 0 {
		return "-"
	}
	return strconv.FormatFloat(s.Average, 'f', 1, 64)
}

// Stats aggregates over every entry. Average is the plain mean rounded to one decimal.
func (j *Journal) Stats() Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var s Stats
	sum := 0
	for _, e := range j.entries {
		s.Total++
		sum += e.Mood
		if e.Mood >= MoodGood {
			s.GreatDays++
		}
		if e.Mood <= MoodSad {
			s.SadDays++
		}
	}
	if s.Total > 0 {
		s.Average = roundTenth(float64(sum) / float64(s.Total))
	}
	return s
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// DayMood is one point of a date range. Recorded is false for days without an
// entry; Mood is then zero, which is never a valid mood.
type DayMood struct {
	Date     civil.Date
	Mood     int
	Recorded bool
}

// EntriesInRange returns one DayMood per day from start to end inclusive, in
// ascending order. An inverted range is empty.
func (j *Journal) EntriesInRange(start, end civil.Date) []DayMood {
	if end.Before(start) {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]DayMood, 0, end.DaysSince(start)+1)
	for d := start; !d.After(end); d = d.AddDays(1) {
		e, ok := j.entries[d]
		out = append(out, DayMood{Date: d, Mood: e.Mood, Recorded: ok})
	}
	return out
}

type Trend struct {
	Days []DayMood
	// Average is the mean of the recorded days in the window, 3 when there are none.
	Average float64
}

// Trend covers the TrendDays days ending today.
func (j *Journal) Trend() Trend {
	today := j.Today()
	days := j.EntriesInRange(today.AddDays(-(TrendDays - 1)), today)

	sum, n := 0, 0
	for _, d := range days {
		if d.Recorded {
			sum += d.Mood
			n++
		}
	}
	t := Trend{Days: days, Average: MoodOkay}
	if n > 0 {
		t.Average = float64(sum) / float64(n)
	}
	return t
}

type DatedEntry struct {
	Date civil.Date
	Entry
}

// History returns a pager over every entry, oldest first.
func (j *Journal) History() *Pager {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]DatedEntry, 0, len(j.entries))
	for d, e := range j.entries {
		out = append(out, DatedEntry{Date: d, Entry: e})
	}
	slices.SortFunc(out, func(a, b DatedEntry) int { return a.Date.Compare(b.Date) })
	return &Pager{entries: out}
}

// DayMark is a calendar cell. Mood is zero when the day has no entry. Future
// days cannot be recorded.
type DayMark struct {
	Date   civil.Date
	Mood   int
	Today  bool
	Future bool
}

func (j *Journal) MonthMarks(year int, month time.Month) []DayMark {
	today := j.Today()
	j.mu.RLock()
	defer j.mu.RUnlock()

	var marks []DayMark
	for d := (civil.Date{Year: year, Month: month, Day: 1}); d.Month == month; d = d.AddDays(1) {
		marks = append(marks, DayMark{
			Date:   d,
			Mood:   j.entries[d].Mood,
			Today:  d == today,
			Future: d.After(today),
		})
	}
	return marks
}
