package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/md-rashed-zaman/carejournal/libs/httpx"
	"github.com/md-rashed-zaman/carejournal/libs/kafkax"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/sessions"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/wizard"
	"github.com/stripe/stripe-go/v79"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// EventBookingConfirmed is published once per confirmed wizard session.
const EventBookingConfirmed = "booking.session.confirmed.v1"

type Options struct {
	Store     sessions.Store
	Schedule  availability.Schedule
	Location  *time.Location
	Now       func() time.Time
	NewID     func() (string, error)
	Publisher kafkax.Publisher
	Metrics   *metrics.BookingMetrics
	Logger    *slog.Logger
}

type BookingHandler struct {
	store     sessions.Store
	schedule  availability.Schedule
	wizardCfg wizard.Config
	now       func() time.Time
	publisher kafkax.Publisher
	metrics   *metrics.BookingMetrics
	logger    *slog.Logger

	// mu serializes load/apply/save so two requests on one session cannot
	// interleave inside this process.
	mu sync.Mutex
}

func NewBookingHandler(opts Options) *BookingHandler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Schedule.Location == nil {
		opts.Schedule.Location = opts.Location
	}
	if opts.Publisher == nil {
		opts.Publisher = kafkax.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &BookingHandler{
		store:    opts.Store,
		schedule: opts.Schedule,
		wizardCfg: wizard.Config{
			Now:      opts.Now,
			Location: opts.Location,
			NewID:    opts.NewID,
		},
		now:       opts.Now,
		publisher: opts.Publisher,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/booking/sessions", h.CreateSession)
	mux.HandleFunc("/api/v1/booking/sessions/state", h.State)
	mux.HandleFunc("/api/v1/booking/specialty", h.SelectSpecialty)
	mux.HandleFunc("/api/v1/booking/therapist", h.SelectTherapist)
	mux.HandleFunc("/api/v1/booking/calendar", h.Calendar)
	mux.HandleFunc("/api/v1/booking/date", h.SelectDate)
	mux.HandleFunc("/api/v1/booking/slot", h.SelectSlot)
	mux.HandleFunc("/api/v1/booking/schedule", h.ConfirmSchedule)
	mux.HandleFunc("/api/v1/booking/payment-method", h.SelectPaymentMethod)
	mux.HandleFunc("/api/v1/booking/payment", h.SubmitPayment)
	mux.HandleFunc("/api/v1/booking/back", h.GoBack)
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type selectionRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
}

type dateRequest struct {
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
	Time      string `json:"time"`
}

type paymentRequest struct {
	SessionID string            `json:"session_id"`
	Method    string            `json:"method"`
	Fields    map[string]string `json:"fields"`
}

type backRequest struct {
	SessionID string `json:"session_id"`
	FromStep  int    `json:"from_step"`
}

type stepItem struct {
	Step   int    `json:"step"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type summaryView struct {
	Specialty string `json:"specialty"`
	Therapist string `json:"therapist"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Price     string `json:"price"`
	Total     string `json:"total"`
	Method    string `json:"method,omitempty"`
}

type stateResponse struct {
	SessionID          string               `json:"session_id"`
	ActiveStep         int                  `json:"active_step"`
	ActiveStepName     string               `json:"active_step_name"`
	Steps              []stepItem           `json:"steps"`
	Draft              wizard.Draft         `json:"draft"`
	Slots              []string             `json:"slots,omitempty"`
	CanConfirmSchedule bool                 `json:"can_confirm_schedule"`
	CanSubmitPayment   bool                 `json:"can_submit_payment"`
	RequiredFields     []string             `json:"required_fields,omitempty"`
	Summary            *summaryView         `json:"summary,omitempty"`
	Confirmation       *wizard.Confirmation `json:"confirmation,omitempty"`
}

type validationResponse struct {
	Error         string   `json:"error"`
	InvalidFields []string `json:"invalid_fields"`
}

type calendarDay struct {
	Date       string `json:"date"`
	Weekday    string `json:"weekday"`
	Today      bool   `json:"today"`
	Selectable bool   `json:"selectable"`
}

type calendarResponse struct {
	Month string        `json:"month"`
	Days  []calendarDay `json:"days"`
}

type confirmedEvent struct {
	SessionID     string       `json:"session_id"`
	BookingID     string       `json:"booking_id"`
	Specialty     string       `json:"specialty"`
	Therapist     string       `json:"therapist"`
	Date          string       `json:"date"`
	Time          string       `json:"time"`
	Price         string       `json:"price"`
	PaymentMethod string       `json:"payment_method"`
	ConfirmedAt   string       `json:"confirmed_at"`
	Charge        *chargeEvent `json:"charge,omitempty"`
}

// chargeEvent carries the PaymentIntent fields billing needs to collect payment.
type chargeEvent struct {
	AmountCents        int64    `json:"amount_cents"`
	Currency           string   `json:"currency"`
	PaymentMethodTypes []string `json:"payment_method_types"`
	Description        string   `json:"description"`
	IdempotencyKey     string   `json:"idempotency_key"`
}

func toChargeEvent(p *stripe.PaymentIntentParams) *chargeEvent {
	ev := &chargeEvent{
		AmountCents:    stripe.Int64Value(p.Amount),
		Currency:       stripe.StringValue(p.Currency),
		Description:    stripe.StringValue(p.Description),
		IdempotencyKey: stripe.StringValue(p.IdempotencyKey),
	}
	for _, t := range p.PaymentMethodTypes {
		ev.PaymentMethodTypes = append(ev.PaymentMethodTypes, stripe.StringValue(t))
	}
	return ev
}

func (h *BookingHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodPost) {
		return
	}
	wz := wizard.New(h.wizardCfg)
	id, err := h.store.Create(r.Context(), wz.Snapshot())
	if err != nil {
		h.logger.Error("session create failed", "err", err)
		http.Error(w, "session store error", http.StatusInternalServerError)
		return
	}
	h.metrics.SessionStarted()
	httpx.WriteJSON(w, http.StatusCreated, h.state(id, wz))
}

func (h *BookingHandler) State(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodGet) {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if id == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	wz, err := h.load(r.Context(), id)
	if err != nil {
		h.writeError(w, "state", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.state(id, wz))
}

func (h *BookingHandler) SelectSpecialty(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	h.apply(w, r, "specialty", req.SessionID, func(wz *wizard.Wizard) error {
		return wz.SelectSpecialty(req.Name, req.Price)
	})
}

func (h *BookingHandler) SelectTherapist(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	h.apply(w, r, "therapist", req.SessionID, func(wz *wizard.Wizard) error {
		return wz.SelectTherapist(req.Name)
	})
}

// Calendar lists the days of a month for the date picker; days before today
// are not selectable.
func (h *BookingHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !httpx.RequireMethod(w, r, http.MethodGet) {
		return
	}
	today := civil.DateOf(h.now().In(h.wizardCfg.Location))
	year, month := today.Year, today.Month
	if raw := strings.TrimSpace(r.URL.Query().Get("month")); raw != "" {
		t, err := time.Parse("2006-01", raw)
		if err != nil {
			http.Error(w, "invalid month (want YYYY-MM)", http.StatusBadRequest)
			return
		}
		year, month = t.Year(), t.Month()
	}

	days := availability.Month(year, month, today)
	resp := calendarResponse{
		Month: civil.Date{Year: year, Month: month, Day: 1}.In(time.UTC).Format("2006-01"),
		Days:  make([]calendarDay, 0, len(days)),
	}
	for _, d := range days {
		resp.Days = append(resp.Days, calendarDay{
			Date:       d.Date.String(),
			Weekday:    d.Weekday.String(),
			Today:      d.Today,
			Selectable: d.Selectable,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *BookingHandler) SelectDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	d, ok := parseDate(w, req.Date)
	if !ok {
		return
	}
	h.apply(w, r, "date", req.SessionID, func(wz *wizard.Wizard) error {
		return wz.SelectDate(d)
	})
}

func (h *BookingHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	d, ok := parseDate(w, req.Date)
	if !ok {
		return
	}
	slot := strings.TrimSpace(req.Time)
	h.apply(w, r, "slot", req.SessionID, func(wz *wizard.Wizard) error {
		if wz.Active() == wizard.StepSchedule && slot != "" && d == wz.Draft().Date {
			if err := h.schedule.CheckSlot(d, slot, h.now()); err != nil {
				return err
			}
		}
		return wz.SelectTimeSlot(d, slot)
	})
}

func (h *BookingHandler) ConfirmSchedule(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	h.apply(w, r, "schedule", req.SessionID, func(wz *wizard.Wizard) error {
		return wz.ConfirmSchedule()
	})
}

func (h *BookingHandler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	h.apply(w, r, "payment_method", req.SessionID, func(wz *wizard.Wizard) error {
		return wz.SelectPaymentMethod(wizard.PaymentMethod(req.Method))
	})
}

func (h *BookingHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	var confirmation wizard.Confirmation
	wz, err := h.mutate(r.Context(), "payment", req.SessionID, func(wz *wizard.Wizard) error {
		c, err := wz.SubmitPayment(wizard.PaymentMethod(req.Method), req.Fields)
		if err != nil {
			return err
		}
		confirmation = c
		return nil
	})
	if err != nil {
		var verr *wizard.ValidationError
		if errors.As(err, &verr) {
			h.metrics.PaymentRejected(string(verr.Method))
		}
		h.writeError(w, "payment", err)
		return
	}

	method := string(confirmation.Booking.PaymentMethod)
	h.metrics.Confirmed(method)
	h.logger.Info("booking confirmed", "session_id", req.SessionID, "booking_id", confirmation.BookingID, "method", method)
	h.publishConfirmed(r.Context(), req.SessionID, confirmation)
	httpx.WriteJSON(w, http.StatusOK, h.state(req.SessionID, wz))
}

func (h *BookingHandler) GoBack(w http.ResponseWriter, r *http.Request) {
	var req backRequest
	if !h.decode(w, r, &req, &req.SessionID) {
		return
	}
	from := wizard.Step(req.FromStep)
	if !from.Valid() {
		http.Error(w, "invalid from_step", http.StatusBadRequest)
		return
	}
	h.apply(w, r, "back", req.SessionID, func(wz *wizard.Wizard) error {
		return wz.GoBack(from)
	})
}

// decode reads a POST body and checks that the session id was supplied.
func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, dst any, sessionID *string) bool {
	if !httpx.RequireMethod(w, r, http.MethodPost) {
		return false
	}
	if err := httpx.DecodeJSON(r, dst); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	*sessionID = strings.TrimSpace(*sessionID)
	if *sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return false
	}
	return true
}

func parseDate(w http.ResponseWriter, raw string) (civil.Date, bool) {
	d, err := civil.ParseDate(strings.TrimSpace(raw))
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return civil.Date{}, false
	}
	return d, true
}

func (h *BookingHandler) apply(w http.ResponseWriter, r *http.Request, action, id string, fn func(*wizard.Wizard) error) {
	wz, err := h.mutate(r.Context(), action, id, fn)
	if err != nil {
		h.writeError(w, action, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.state(id, wz))
}

func (h *BookingHandler) load(ctx context.Context, id string) (*wizard.Wizard, error) {
	snap, err := h.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return wizard.Restore(h.wizardCfg, snap)
}

// mutate loads the session, applies fn and saves the result. A rejected action
// is still saved when it changed the draft (a stale slot dropped on a past date).
func (h *BookingHandler) mutate(ctx context.Context, action, id string, fn func(*wizard.Wizard) error) (*wizard.Wizard, error) {
	ctx, span := otel.Tracer("booking").Start(ctx, "booking."+action,
		trace.WithAttributes(attribute.String("booking.action", action)),
	)
	defer span.End()

	h.mu.Lock()
	defer h.mu.Unlock()

	wz, err := h.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	before := wz.Snapshot()
	applyErr := fn(wz)
	after := wz.Snapshot()
	span.SetAttributes(attribute.String("booking.step", after.Active.String()))

	if applyErr == nil || after.Active != before.Active || after.Draft != before.Draft {
		if err := h.store.Save(ctx, id, after); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "session save failed")
			return nil, err
		}
	}
	if applyErr != nil {
		span.RecordError(applyErr)
		return nil, applyErr
	}
	h.metrics.Action(action, "ok")
	return wz, nil
}

func (h *BookingHandler) writeError(w http.ResponseWriter, action string, err error) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		h.metrics.Action(action, "rejected")
		httpx.WriteJSON(w, http.StatusUnprocessableEntity, validationResponse{
			Error:         verr.Error(),
			InvalidFields: verr.Fields,
		})
	case errors.Is(err, sessions.ErrNotFound):
		http.Error(w, "booking session not found", http.StatusNotFound)
	case errors.Is(err, wizard.ErrWrongStep),
		errors.Is(err, wizard.ErrCompleted),
		errors.Is(err, wizard.ErrNoPreviousStep):
		h.metrics.Action(action, "rejected")
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, wizard.ErrSelectionRequired),
		errors.Is(err, wizard.ErrSpecialtyRequired),
		errors.Is(err, wizard.ErrPastDate),
		errors.Is(err, wizard.ErrDateRequired),
		errors.Is(err, wizard.ErrDateMismatch),
		errors.Is(err, wizard.ErrSlotRequired),
		errors.Is(err, wizard.ErrPaymentMethodRequired),
		errors.Is(err, wizard.ErrUnknownPaymentMethod),
		errors.Is(err, availability.ErrSlotUnavailable):
		h.metrics.Action(action, "rejected")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		h.metrics.Action(action, "error")
		h.logger.Error("booking action failed", "action", action, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (h *BookingHandler) state(id string, wz *wizard.Wizard) stateResponse {
	active := wz.Active()
	draft := wz.Draft()
	resp := stateResponse{
		SessionID:          id,
		ActiveStep:         int(active),
		ActiveStepName:     active.String(),
		Draft:              draft,
		CanConfirmSchedule: wz.CanConfirmSchedule(),
		CanSubmitPayment:   wz.CanSubmitPayment(),
		Confirmation:       wz.Confirmation(),
	}
	for _, s := range wz.Steps() {
		resp.Steps = append(resp.Steps, stepItem{Step: int(s.Step), Name: s.Step.String(), Status: string(s.Status)})
	}
	if active == wizard.StepSchedule && !draft.Date.IsZero() {
		resp.Slots = h.schedule.Labels(draft.Date, h.now())
	}
	if active == wizard.StepPayment && draft.PaymentMethod != "" {
		resp.RequiredFields = wizard.RequiredFields(draft.PaymentMethod)
	}
	if active >= wizard.StepPayment {
		s := wz.Summary()
		resp.Summary = &summaryView{
			Specialty: s.Specialty,
			Therapist: s.Therapist,
			Date:      s.Date,
			Time:      s.Time,
			Price:     s.Price,
			Total:     s.Total,
			Method:    s.Method,
		}
	}
	return resp
}

func (h *BookingHandler) publishConfirmed(ctx context.Context, sessionID string, c wizard.Confirmation) {
	evt := confirmedEvent{
		SessionID:     sessionID,
		BookingID:     c.BookingID,
		Specialty:     c.Booking.Specialty,
		Therapist:     c.Booking.Therapist,
		Date:          c.Booking.Date.String(),
		Time:          c.Booking.Time,
		Price:         c.Booking.Price,
		PaymentMethod: string(c.Booking.PaymentMethod),
		ConfirmedAt:   c.ConfirmedAt.Format(time.RFC3339),
	}
	if params, err := wizard.ChargeParams(c); err != nil {
		h.logger.Warn("booking charge not derivable", "booking_id", c.BookingID, "price", c.Booking.Price, "err", err)
	} else {
		evt.Charge = toChargeEvent(params)
	}
	if err := h.publisher.Publish(ctx, EventBookingConfirmed, c.BookingID, evt); err != nil {
		h.logger.Warn("booking event publish failed", "booking_id", c.BookingID, "err", err)
	}
}
