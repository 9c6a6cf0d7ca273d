package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/md-rashed-zaman/carejournal/libs/httpx"
	"github.com/md-rashed-zaman/carejournal/libs/kafkax"
	"github.com/md-rashed-zaman/carejournal/services/journal-service/internal/journal"
	"github.com/md-rashed-zaman/carejournal/services/journal-service/internal/metrics"
)

const (
	EventMoodRecorded   = "journal.mood.recorded.v1"
	EventJournalCleared = "journal.cleared.v1"
)

const (
	longDateLayout  = "Monday, January 2, 2006"
	shortDateLayout = "Jan 2"
)

type JournalHandler struct {
	journal   *journal.Journal
	publisher kafkax.Publisher
	metrics   *metrics.JournalMetrics
	logger    *slog.Logger
}

func NewJournalHandler(j *journal.Journal, publisher kafkax.Publisher, m *metrics.JournalMetrics, logger *slog.Logger) *JournalHandler {
	if publisher == nil {
		publisher = kafkax.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JournalHandler{journal: j, publisher: publisher, metrics: m, logger: logger}
}

func (h *JournalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/journal/moods", h.Moods)
	mux.HandleFunc("/api/v1/journal/stats", h.Stats)
	mux.HandleFunc("/api/v1/journal/trend", h.Trend)
	mux.HandleFunc("/api/v1/journal/history", h.History)
	mux.HandleFunc("/api/v1/journal/calendar", h.Calendar)
}

type recordRequest struct {
	Date string `json:"date"`
	Mood int    `json:"mood"`
	Note string `json:"note"`
}

type entryResponse struct {
	Date      string `json:"date"`
	DateLong  string `json:"date_long"`
	Mood      int    `json:"mood"`
	MoodLabel string `json:"mood_label"`
	Note      string `json:"note"`
	Timestamp int64  `json:"timestamp"`
}

type recordResponse struct {
	entryResponse
	Celebrate bool `json:"celebrate"`
}

type statsResponse struct {
	Total     int    `json:"total"`
	Average   string `json:"average"`
	GreatDays int    `json:"great_days"`
	SadDays   int    `json:"sad_days"`
}

type trendPoint struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Mood  *int   `json:"mood"`
}

type trendResponse struct {
	Start        string       `json:"start"`
	End          string       `json:"end"`
	Days         []trendPoint `json:"days"`
	Average      float64      `json:"average"`
	AverageLabel string       `json:"average_label"`
}

type historyResponse struct {
	Page    int            `json:"page"`
	Total   int            `json:"total"`
	Label   string         `json:"label"`
	HasPrev bool           `json:"has_prev"`
	HasNext bool           `json:"has_next"`
	Entry   *entryResponse `json:"entry,omitempty"`
}

type calendarDay struct {
	Date      string `json:"date"`
	Mood      int    `json:"mood,omitempty"`
	MoodLabel string `json:"mood_label,omitempty"`
	Today     bool   `json:"today"`
	Future    bool   `json:"future"`
}

type calendarResponse struct {
	Month string        `json:"month"`
	Title string        `json:"title"`
	Days  []calendarDay `json:"days"`
}

type moodRecordedEvent struct {
	Date      string `json:"date"`
	Mood      int    `json:"mood"`
	Timestamp int64  `json:"timestamp"`
}

type clearedEvent struct {
	Removed   int    `json:"removed"`
	ClearedAt string `json:"cleared_at"`
}

// Moods serves POST (save), GET (lookup by date) and DELETE (clear all) on the
// entry collection.
func (h *JournalHandler) Moods(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.record(w, r)
	case http.MethodGet:
		h.lookup(w, r)
	case http.MethodDelete:
		h.clear(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *JournalHandler) record(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d := h.journal.Today()
	if raw := strings.TrimSpace(req.Date); raw != "" {
		parsed, err := civil.ParseDate(raw)
		if err != nil {
			http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		d = parsed
	}

	entry, great, err := h.journal.RecordMood(r.Context(), d, req.Mood, req.Note)
	if err != nil {
		if notice := journal.Notice(err); notice != "" {
			h.metrics.Rejected(rejectReason(err))
			http.Error(w, notice, http.StatusUnprocessableEntity)
			return
		}
		h.logger.Error("mood save failed", "date", d.String(), "err", err)
		http.Error(w, "failed to save mood", http.StatusInternalServerError)
		return
	}

	h.metrics.Recorded(journal.MoodLabel(entry.Mood))
	h.publish(r.Context(), EventMoodRecorded, d.String(), moodRecordedEvent{
		Date:      d.String(),
		Mood:      entry.Mood,
		Timestamp: entry.Timestamp,
	})
	httpx.WriteJSON(w, http.StatusCreated, recordResponse{
		entryResponse: toEntryResponse(d, entry),
		Celebrate:     great,
	})
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, journal.ErrMoodRequired):
		return "mood_required"
	case errors.Is(err, journal.ErrFutureDate):
		return "future_date"
	default:
		return "invalid_mood"
	}
}

func (h *JournalHandler) lookup(w http.ResponseWriter, r *http.Request) {
	d, err := civil.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	entry, ok := h.journal.Entry(d)
	if !ok {
		http.Error(w, "no entry for "+d.String(), http.StatusNotFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toEntryResponse(d, entry))
}

// clear requires confirm=true; the deletion cannot be undone.
func (h *JournalHandler) clear(w http.ResponseWriter, r *http.Request) {
	if confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirmed {
		http.Error(w, "clearing the journal requires confirm=true", http.StatusPreconditionRequired)
		return
	}
	n, err := h.journal.ClearAll(r.Context())
	if err != nil {
		h.logger.Error("journal clear failed", "err", err)
		http.Error(w, "failed to clear journal", http.StatusInternalServerError)
		return
	}
	h.metrics.Cleared()
	h.logger.Info("journal cleared", "removed", n)
	h.publish(r.Context(), EventJournalCleared, "journal", clearedEvent{
		Removed:   n,
		ClearedAt: h.journal.Now().UTC().Format(time.RFC3339),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *JournalHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodGet) {
		return
	}
	s := h.journal.Stats()
	httpx.WriteJSON(w, http.StatusOK, statsResponse{
		Total:     s.Total,
		Average:   s.AverageLabel(),
		GreatDays: s.GreatDays,
		SadDays:   s.SadDays,
	})
}

func (h *JournalHandler) Trend(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodGet) {
		return
	}
	t := h.journal.Trend()
	resp := trendResponse{
		Days:         make([]trendPoint, 0, len(t.Days)),
		Average:      t.Average,
		AverageLabel: strconv.FormatFloat(t.Average, 'f', 1, 64),
	}
	for _, d := range t.Days {
		p := trendPoint{Date: d.Date.String(), Label: d.Date.In(time.UTC).Format(shortDateLayout)}
		if d.Recorded {
			mood := d.Mood
			p.Mood = &mood
		}
		resp.Days = append(resp.Days, p)
	}
	if len(t.Days) > 0 {
		resp.Start = t.Days[0].Date.String()
		resp.End = t.Days[len(t.Days)-1].Date.String()
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// History returns one page (one entry) of the date-ordered history. page is
// zero-based and clamped to the available range.
func (h *JournalHandler) History(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodGet) {
		return
	}
	page := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}

	p := h.journal.History()
	p.Seek(page)
	resp := historyResponse{
		Page:    p.Index(),
		Total:   p.Len(),
		Label:   p.Label(),
		HasPrev: p.HasPrev(),
		HasNext: p.HasNext(),
	}
	if cur, ok := p.Current(); ok {
		e := toEntryResponse(cur.Date, cur.Entry)
		if e.Note == "" {
			e.Note = "No notes added for this day."
		}
		resp.Entry = &e
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *JournalHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodGet) {
		return
	}
	today := h.journal.Today()
	year, month := today.Year, today.Month
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		t, err := time.Parse("2006-01", raw)
		if err != nil {
			http.Error(w, "invalid month (want YYYY-MM)", http.StatusBadRequest)
			return
		}
		year, month = t.Year(), t.Month()
	}

	first := civil.Date{Year: year, Month: month, Day: 1}.In(time.UTC)
	marks := h.journal.MonthMarks(year, month)
	resp := calendarResponse{
		Month: first.Format("2006-01"),
		Title: first.Format("January 2006"),
		Days:  make([]calendarDay, 0, len(marks)),
	}
	for _, m := range marks {
		resp.Days = append(resp.Days, calendarDay{
			Date:      m.Date.String(),
			Mood:      m.Mood,
			MoodLabel: journal.MoodLabel(m.Mood),
			Today:     m.Today,
			Future:    m.Future,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func toEntryResponse(d civil.Date, e journal.Entry) entryResponse {
	return entryResponse{
		Date:      d.String(),
		DateLong:  d.In(time.UTC).Format(longDateLayout),
		Mood:      e.Mood,
		MoodLabel: journal.MoodLabel(e.Mood),
		Note:      e.Note,
		Timestamp: e.Timestamp,
	}
}

func (h *JournalHandler) publish(ctx context.Context, eventType, key string, payload any) {
	if err := h.publisher.Publish(ctx, eventType, key, payload); err != nil {
		h.logger.Warn("journal event publish failed", "event_type", eventType, "err", err)
	}
}
