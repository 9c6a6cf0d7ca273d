package wizard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/md-rashed-zaman/carejournal/services/booking-service/internal/availability"
)

// Draft accumulates the selections made so far. Fields fill in wizard order.
type Draft struct {
	Specialty     string        `json:"specialty,omitempty"`
	Price         string        `json:"price,omitempty"`
	Therapist     string        `json:"therapist,omitempty"`
	Date          civil.Date    `json:"date,omitzero"`
	Time          string        `json:"time,omitempty"`
	PaymentMethod PaymentMethod `json:"payment_method,omitempty"`
}

// Confirmation is the finalized booking handed back once payment succeeds.
type Confirmation struct {
	BookingID   string    `json:"booking_id"`
	Booking     Draft     `json:"booking"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

type Config struct {
	// Now defaults to time.Now.
	Now func() time.Time
	// Location decides what "today" is for date selection. Defaults to UTC.
	Location *time.Location
	// NewID defaults to NewBookingID.
	NewID func() (string, error)
}

func (c Config) withDefaults() Config {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.NewID == nil {
		c.NewID = NewBookingID
	}
	return c
}

// Wizard is the booking state machine for a single session. It is not safe for
// concurrent use; callers own one instance per session.
type Wizard struct {
	cfg          Config
	active       Step
	draft        Draft
	confirmation *Confirmation
}

func New(cfg Config) *Wizard {
	return &Wizard{cfg: cfg.withDefaults(), active: StepSpecialty}
}

func (w *Wizard) Active() Step { return w.active }

func (w *Wizard) Draft() Draft { return w.draft }

// Confirmation is nil until the wizard reaches StepConfirmation.
func (w *Wizard) Confirmation() *Confirmation {
	if w.confirmation == nil {
		return nil
	}
	c := *w.confirmation
	return &c
}

func (w *Wizard) Status(s Step) StepStatus {
	switch {
	case s < w.active:
		return StatusCompleted
	case s == w.active:
		return StatusActive
	default:
		return StatusPending
	}
}

func (w *Wizard) Steps() []StepState {
	out := make([]StepState, 0, int(StepConfirmation))
	for _, s := range AllSteps() {
		out = append(out, StepState{Step: s, Status: w.Status(s)})
	}
	return out
}

func (w *Wizard) Today() civil.Date {
	return civil.DateOf(w.cfg.Now().In(w.cfg.Location))
}

func (w *Wizard) require(step Step) error {
	if w.active == StepConfirmation {
		return ErrCompleted
	}
	if w.active != step {
		return wrongStep(w.active, step)
	}
	return nil
}

func (w *Wizard) SelectSpecialty(name, price string) error {
	if err := w.require(StepSpecialty); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: specialty", ErrSelectionRequired)
	}
	w.draft.Specialty = name
	w.draft.Price = strings.TrimSpace(price)
	w.active = StepTherapist
	return nil
}

func (w *Wizard) SelectTherapist(name string) error {
	if err := w.require(StepTherapist); err != nil {
		return err
	}
	if w.draft.Specialty == "" {
		return ErrSpecialtyRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: therapist", ErrSelectionRequired)
	}
	w.draft.Therapist = name
	w.active = StepSchedule
	return nil
}

// SelectDate picks the appointment day. Choosing a different day drops the
// previously chosen time slot and payment method.
func (w *Wizard) SelectDate(d civil.Date) error {
	if err := w.require(StepSchedule); err != nil {
		return err
	}
	if !d.IsValid() {
		return fmt.Errorf("%w: date", ErrSelectionRequired)
	}
	if !availability.Selectable(d, w.Today()) {
		return fmt.Errorf("%w: %s", ErrPastDate, d)
	}
	if d != w.draft.Date {
		w.clearSlot()
	}
	w.draft.Date = d
	return nil
}

// clearSlot drops the time slot and every selection made after it.
func (w *Wizard) clearSlot() {
	w.draft.Time = ""
	w.draft.PaymentMethod = ""
}

// SelectTimeSlot records a slot for the already selected date. It enables
// ConfirmSchedule but does not advance the wizard.
func (w *Wizard) SelectTimeSlot(d civil.Date, slot string) error {
	if err := w.require(StepSchedule); err != nil {
		return err
	}
	if w.draft.Date.IsZero() {
		return ErrDateRequired
	}
	if d != w.draft.Date {
		return fmt.Errorf("%w: selected %s, got %s", ErrDateMismatch, w.draft.Date, d)
	}
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return fmt.Errorf("%w: time slot", ErrSelectionRequired)
	}
	w.draft.Time = slot
	return nil
}

func (w *Wizard) CanConfirmSchedule() bool {
	return w.active == StepSchedule && !w.draft.Date.IsZero() && w.draft.Time != ""
}

func (w *Wizard) ConfirmSchedule() error {
	if err := w.require(StepSchedule); err != nil {
		return err
	}
	if w.draft.Date.IsZero() {
		return ErrDateRequired
	}
	if w.draft.Time == "" {
		return ErrSlotRequired
	}
	// The date may have slipped into the past while the session sat idle.
	if !availability.Selectable(w.draft.Date, w.Today()) {
		w.clearSlot()
		return fmt.Errorf("%w: %s", ErrPastDate, w.draft.Date)
	}
	w.active = StepPayment
	return nil
}

func (w *Wizard) SelectPaymentMethod(m PaymentMethod) error {
	if err := w.require(StepPayment); err != nil {
		return err
	}
	m, err := ParsePaymentMethod(string(m))
	if err != nil {
		return err
	}
	w.draft.PaymentMethod = m
	return nil
}

func (w *Wizard) CanSubmitPayment() bool {
	return w.active == StepPayment && w.draft.PaymentMethod != ""
}

// SubmitPayment validates the payment form for method and, when every required
// field is present, confirms the booking. An empty method falls back to the one
// chosen with SelectPaymentMethod.
func (w *Wizard) SubmitPayment(method PaymentMethod, fields map[string]string) (Confirmation, error) {
	if err := w.require(StepPayment); err != nil {
		return Confirmation{}, err
	}
	if strings.TrimSpace(string(method)) == "" {
		method = w.draft.PaymentMethod
	}
	m, err := ParsePaymentMethod(string(method))
	if err != nil {
		return Confirmation{}, err
	}
	if missing := missingFields(m, fields); len(missing) > 0 {
		return Confirmation{}, &ValidationError{Method: m, Fields: missing}
	}

	id, err := w.cfg.NewID()
	if err != nil {
		return Confirmation{}, err
	}
	w.draft.PaymentMethod = m
	w.confirmation = &Confirmation{
		BookingID:   id,
		Booking:     w.draft,
		ConfirmedAt: w.cfg.Now().UTC(),
	}
	w.active = StepConfirmation
	return *w.confirmation, nil
}

// GoBack moves from the active step to the one before it. Data collected in
// the step being left is kept.
func (w *Wizard) GoBack(from Step) error {
	if w.active == StepConfirmation {
		return ErrCompleted
	}
	if from != w.active {
		return wrongStep(w.active, from)
	}
	if from == StepSpecialty {
		return ErrNoPreviousStep
	}
	w.active = from - 1
	return nil
}

// Summary is the read-only recap shown on the payment and confirmation steps.
type Summary struct {
	Specialty string
	Therapist string
	Date      string
	Time      string
	Price     string
	Total     string
	Method    string
}

func (w *Wizard) Summary() Summary {
	s := Summary{
		Specialty: w.draft.Specialty,
		Therapist: w.draft.Therapist,
		Time:      w.draft.Time,
		Price:     w.draft.Price,
		Total:     w.draft.Price,
		Method:    strings.ToUpper(string(w.draft.PaymentMethod)),
	}
	if !w.draft.Date.IsZero() {
		s.Date = FormatDate(w.draft.Date)
	}
	return s
}

// FormatDate renders d as "5 Oct 2026".
func FormatDate(d civil.Date) string {
	return d.In(time.UTC).Format("2 Jan 2006")
}

// Snapshot is the serializable form of a wizard, used to park it between requests.
type Snapshot struct {
	Active       Step          `json:"active"`
	Draft        Draft         `json:"draft"`
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

func (w *Wizard) Snapshot() Snapshot {
	return Snapshot{Active: w.active, Draft: w.draft, Confirmation: w.Confirmation()}
}

var errCorruptSnapshot = errors.New("corrupt wizard snapshot")

func Restore(cfg Config, s Snapshot) (*Wizard, error) {
	if !s.Active.Valid() {
		return nil, fmt.Errorf("%w: step %d", errCorruptSnapshot, int(s.Active))
	}
	if (s.Active == StepConfirmation) != (s.Confirmation != nil) {
		return nil, fmt.Errorf("%w: confirmation does not match step %s", errCorruptSnapshot, s.Active)
	}
	w := New(cfg)
	w.active = s.Active
	w.draft = s.Draft
	if s.Confirmation != nil {
		c := *s.Confirmation
		w.confirmation = &c
	}
	return w, nil
}
