package wizard

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

var fixedNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func newTestWizard() *Wizard {
	return New(Config{
		Now:   func() time.Time { return fixedNow },
		NewID: func() (string, error) { return "GH-123456", nil },
	})
}

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func cardFields() map[string]string {
	return map[string]string{
		"card_name":   "Ada Lovelace",
		"card_number": "4242 4242 4242 4242",
		"expiry":      "12/29",
		"cvv":         "123",
	}
}

func assertOneActive(t *testing.T, w *Wizard) {
	t.Helper()
	active := 0
	for _, st := range w.Steps() {
		if st.Status == StatusActive {
			active++
			if st.Step != w.Active() {
				t.Fatalf("active status on %s but wizard reports %s", st.Step, w.Active())
			}
		}
		if st.Step < w.Active() && st.Status != StatusCompleted {
			t.Fatalf("%s before active step should be completed, got %s", st.Step, st.Status)
		}
		if st.Step > w.Active() && st.Status != StatusPending {
			t.Fatalf("%s after active step should be pending, got %s", st.Step, st.Status)
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active step, got %d", active)
	}
}

func walkToPayment(t *testing.T, w *Wizard) {
	t.Helper()
	if err := w.SelectSpecialty("Anxiety & Stress", "$120"); err != nil {
		t.Fatalf("SelectSpecialty: %v", err)
	}
	if err := w.SelectTherapist("Dr. Sarah Johnson"); err != nil {
		t.Fatalf("SelectTherapist: %v", err)
	}
	d := date(2026, 10, 20)
	if err := w.SelectDate(d); err != nil {
		t.Fatalf("SelectDate: %v", err)
	}
	if err := w.SelectTimeSlot(d, "10:00 AM"); err != nil {
		t.Fatalf("SelectTimeSlot: %v", err)
	}
	if err := w.ConfirmSchedule(); err != nil {
		t.Fatalf("ConfirmSchedule: %v", err)
	}
}

func TestHappyPath(t *testing.T) {
	w := newTestWizard()
	assertOneActive(t, w)
	if w.Active() != StepSpecialty {
		t.Fatalf("initial step = %s", w.Active())
	}

	walkToPayment(t, w)
	assertOneActive(t, w)
	if w.Active() != StepPayment {
		t.Fatalf("expected payment step, got %s", w.Active())
	}
	if !w.CanSubmitPayment() {
		if err := w.SelectPaymentMethod(MethodCard); err != nil {
			t.Fatalf("SelectPaymentMethod: %v", err)
		}
	}

	conf, err := w.SubmitPayment("", cardFields())
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	assertOneActive(t, w)
	if w.Active() != StepConfirmation {
		t.Fatalf("expected confirmation, got %s", w.Active())
	}
	if conf.BookingID != "GH-123456" {
		t.Fatalf("unexpected booking id %q", conf.BookingID)
	}
	b := conf.Booking
	if b.Specialty != "Anxiety & Stress" || b.Price != "$120" || b.Therapist != "Dr. Sarah Johnson" ||
		b.Date != date(2026, 10, 20) || b.Time != "10:00 AM" || b.PaymentMethod != MethodCard {
		t.Fatalf("unexpected booking %+v", b)
	}

	sum := w.Summary()
	if sum.Date != "20 Oct 2026" || sum.Method != "CARD" || sum.Total != "$120" {
		t.Fatalf("unexpected summary %+v", sum)
	}

	if err := w.SelectSpecialty("Other", "$1"); !errors.Is(err, ErrCompleted) {
		t.Fatalf("expected ErrCompleted after confirmation, got %v", err)
	}
	if err := w.GoBack(StepConfirmation); !errors.Is(err, ErrCompleted) {
		t.Fatalf("expected ErrCompleted on back from confirmation, got %v", err)
	}
}

func TestForwardTransitionsRequireSelection(t *testing.T) {
	w := newTestWizard()

	if err := w.SelectTherapist("Dr. Who"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("therapist before specialty: expected ErrWrongStep, got %v", err)
	}
	if err := w.SelectSpecialty("  ", "$90"); !errors.Is(err, ErrSelectionRequired) {
		t.Fatalf("blank specialty: expected ErrSelectionRequired, got %v", err)
	}
	if w.Active() != StepSpecialty {
		t.Fatalf("wizard advanced without a specialty")
	}

	if err := w.SelectSpecialty("Couples Therapy", "$150"); err != nil {
		t.Fatalf("SelectSpecialty: %v", err)
	}
	if err := w.SelectTherapist(""); !errors.Is(err, ErrSelectionRequired) {
		t.Fatalf("blank therapist: expected ErrSelectionRequired, got %v", err)
	}
	if err := w.SelectTherapist("Dr. Michael Chen"); err != nil {
		t.Fatalf("SelectTherapist: %v", err)
	}

	if err := w.ConfirmSchedule(); !errors.Is(err, ErrDateRequired) {
		t.Fatalf("confirm without date: expected ErrDateRequired, got %v", err)
	}
	if err := w.SelectTimeSlot(date(2026, 10, 20), "9:00 AM"); !errors.Is(err, ErrDateRequired) {
		t.Fatalf("slot without date: expected ErrDateRequired, got %v", err)
	}
	if err := w.SelectDate(date(2026, 10, 20)); err != nil {
		t.Fatalf("SelectDate: %v", err)
	}
	if w.CanConfirmSchedule() {
		t.Fatalf("schedule submission enabled before a slot was chosen")
	}
	if err := w.ConfirmSchedule(); !errors.Is(err, ErrSlotRequired) {
		t.Fatalf("confirm without slot: expected ErrSlotRequired, got %v", err)
	}
	if w.Active() != StepSchedule {
		t.Fatalf("wizard left schedule step early: %s", w.Active())
	}
	if err := w.SelectTimeSlot(date(2026, 10, 21), "9:00 AM"); !errors.Is(err, ErrDateMismatch) {
		t.Fatalf("slot for other date: expected ErrDateMismatch, got %v", err)
	}
	if err := w.SelectTimeSlot(date(2026, 10, 20), "9:00 AM"); err != nil {
		t.Fatalf("SelectTimeSlot: %v", err)
	}
	if w.Active() != StepSchedule {
		t.Fatalf("slot selection must not advance the wizard")
	}
	if !w.CanConfirmSchedule() {
		t.Fatalf("expected schedule submission to be enabled")
	}
	assertOneActive(t, w)
}

func TestSelectDateRules(t *testing.T) {
	w := newTestWizard()
	_ = w.SelectSpecialty("Depression", "$110")
	_ = w.SelectTherapist("Dr. Emily Rodriguez")

	if err := w.SelectDate(date(2026, 10, 16)); !errors.Is(err, ErrPastDate) {
		t.Fatalf("yesterday: expected ErrPastDate, got %v", err)
	}
	if !w.Draft().Date.IsZero() {
		t.Fatalf("rejected date must not be stored")
	}
	// Today is selectable even though it is already 10:00.
	if err := w.SelectDate(date(2026, 10, 17)); err != nil {
		t.Fatalf("today should be selectable: %v", err)
	}
	if err := w.SelectTimeSlot(date(2026, 10, 17), "3:00 PM"); err != nil {
		t.Fatalf("SelectTimeSlot: %v", err)
	}

	if err := w.SelectDate(date(2026, 10, 17)); err != nil {
		t.Fatalf("reselect same date: %v", err)
	}
	if w.Draft().Time != "3:00 PM" {
		t.Fatalf("reselecting the same date must keep the slot")
	}

	if err := w.SelectDate(date(2026, 11, 2)); err != nil {
		t.Fatalf("SelectDate: %v", err)
	}
	if w.Draft().Time != "" {
		t.Fatalf("changing the date must clear the slot, got %q", w.Draft().Time)
	}
	if w.CanConfirmSchedule() {
		t.Fatalf("slot must be re-required after a date change")
	}
}

func TestConfirmScheduleRejectsDateThatBecamePast(t *testing.T) {
	now := fixedNow
	w := New(Config{Now: func() time.Time { return now }})
	_ = w.SelectSpecialty("Trauma", "$130")
	_ = w.SelectTherapist("Dr. James Wilson")
	d := date(2026, 10, 17)
	if err := w.SelectDate(d); err != nil {
		t.Fatalf("SelectDate: %v", err)
	}
	_ = w.SelectTimeSlot(d, "4:00 PM")

	now = now.Add(24 * time.Hour)
	if err := w.ConfirmSchedule(); !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
	if w.Active() != StepSchedule || w.Draft().Time != "" {
		t.Fatalf("expected to stay on schedule with slot cleared, got %s %q", w.Active(), w.Draft().Time)
	}
}

// assertDraftOrder fails when a draft field is set while an earlier one is empty.
func assertDraftOrder(t *testing.T, d Draft) {
	t.Helper()
	filled := []struct {
		name string
		set  bool
	}{
		{"specialty", d.Specialty != ""},
		{"therapist", d.Therapist != ""},
		{"date", !d.Date.IsZero()},
		{"time", d.Time != ""},
		{"payment_method", d.PaymentMethod != ""},
	}
	for i := 1; i < len(filled); i++ {
		if filled[i].set && !filled[i-1].set {
			t.Fatalf("%s is set while %s is empty: %+v", filled[i].name, filled[i-1].name, d)
		}
	}
}

func TestChangingDateAfterPaymentClearsLaterSelections(t *testing.T) {
	w := newTestWizard()
	walkToPayment(t, w)
	if err := w.SelectPaymentMethod(MethodCard); err != nil {
		t.Fatalf("SelectPaymentMethod: %v", err)
	}
	if err := w.GoBack(StepPayment); err != nil {
		t.Fatalf("GoBack(payment): %v", err)
	}
	if w.Draft().PaymentMethod != MethodCard {
		t.Fatalf("going back alone must keep the payment method")
	}

	if err := w.SelectDate(date(2026, 10, 21)); err != nil {
		t.Fatalf("SelectDate: %v", err)
	}
	d := w.Draft()
	if d.Time != "" || d.PaymentMethod != "" {
		t.Fatalf("expected slot and payment method cleared, got %+v", d)
	}
	assertDraftOrder(t, d)
	if w.CanConfirmSchedule() {
		t.Fatalf("schedule cannot be confirmed without a slot")
	}
}

func TestStaleDateClearsLaterSelections(t *testing.T) {
	now := fixedNow
	w := New(Config{Now: func() time.Time { return now }})
	_ = w.SelectSpecialty("Trauma", "$130")
	_ = w.SelectTherapist("Dr. James Wilson")
	d := date(2026, 10, 17)
	_ = w.SelectDate(d)
	_ = w.SelectTimeSlot(d, "4:00 PM")
	if err := w.ConfirmSchedule(); err != nil {
		t.Fatalf("ConfirmSchedule: %v", err)
	}
	_ = w.SelectPaymentMethod(MethodPayPal)
	_ = w.GoBack(StepPayment)

	now = now.Add(24 * time.Hour)
	if err := w.ConfirmSchedule(); !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate, got %v", err)
	}
	if w.Draft().PaymentMethod != "" {
		t.Fatalf("payment method must be cleared with the slot, got %q", w.Draft().PaymentMethod)
	}
	assertDraftOrder(t, w.Draft())
}

func TestTodayUsesConfiguredLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 2026-10-17 20:00 UTC is already 2026-10-18 in Tokyo.
	w := New(Config{
		Now:      func() time.Time { return time.Date(2026, 10, 17, 20, 0, 0, 0, time.UTC) },
		Location: tokyo,
	})
	if got := w.Today(); got != date(2026, 10, 18) {
		t.Fatalf("Today() = %s, want 2026-10-18", got)
	}
	_ = w.SelectSpecialty("Anxiety", "$120")
	_ = w.SelectTherapist("Dr. Chen")
	if err := w.SelectDate(date(2026, 10, 17)); !errors.Is(err, ErrPastDate) {
		t.Fatalf("expected ErrPastDate in Tokyo, got %v", err)
	}
}

func TestSubmitPaymentValidation(t *testing.T) {
	w := newTestWizard()
	walkToPayment(t, w)

	fields := cardFields()
	fields["cvv"] = "   "
	delete(fields, "card_name")

	_, err := w.SubmitPayment(MethodCard, fields)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Fields) != 2 || vErr.Fields[0] != "card_name" || vErr.Fields[1] != "cvv" {
		t.Fatalf("unexpected invalid fields %v", vErr.Fields)
	}
	if w.Active() != StepPayment || w.Confirmation() != nil {
		t.Fatalf("failed validation must not transition")
	}

	// PayPal only needs the account email.
	if _, err := w.SubmitPayment(MethodPayPal, map[string]string{}); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty paypal form, got %v", err)
	}
	if _, err := w.SubmitPayment("bitcoin", cardFields()); !errors.Is(err, ErrUnknownPaymentMethod) {
		t.Fatalf("expected ErrUnknownPaymentMethod, got %v", err)
	}
	if _, err := w.SubmitPayment("", cardFields()); !errors.Is(err, ErrPaymentMethodRequired) {
		t.Fatalf("expected ErrPaymentMethodRequired, got %v", err)
	}

	conf, err := w.SubmitPayment(MethodPayPal, map[string]string{"paypal_email": "ada@example.com"})
	if err != nil {
		t.Fatalf("SubmitPayment: %v", err)
	}
	if conf.Booking.PaymentMethod != MethodPayPal {
		t.Fatalf("unexpected method %q", conf.Booking.PaymentMethod)
	}
}

func TestSubmitPaymentNeverConfirmsWithEmptyRequiredField(t *testing.T) {
	for _, method := range []PaymentMethod{MethodCard, MethodPayPal} {
		required := RequiredFields(method)
		for _, blank := range required {
			w := newTestWizard()
			walkToPayment(t, w)

			fields := map[string]string{}
			for _, f := range required {
				fields[f] = "value"
			}
			fields[blank] = ""

			if _, err := w.SubmitPayment(method, fields); err == nil {
				t.Fatalf("%s: submission with blank %s succeeded", method, blank)
			}
			if w.Active() == StepConfirmation {
				t.Fatalf("%s: reached confirmation with blank %s", method, blank)
			}
		}
	}
}

func TestSubmitPaymentIDFailureKeepsState(t *testing.T) {
	w := New(Config{
		Now:   func() time.Time { return fixedNow },
		NewID: func() (string, error) { return "", errors.New("entropy exhausted") },
	})
	walkToPayment(t, w)
	if _, err := w.SubmitPayment(MethodCard, cardFields()); err == nil {
		t.Fatalf("expected id generation error")
	}
	if w.Active() != StepPayment {
		t.Fatalf("expected to remain on payment, got %s", w.Active())
	}
}

func TestGoBack(t *testing.T) {
	w := newTestWizard()
	if err := w.GoBack(StepSpecialty); !errors.Is(err, ErrNoPreviousStep) {
		t.Fatalf("expected ErrNoPreviousStep, got %v", err)
	}

	walkToPayment(t, w)
	if err := w.GoBack(StepTherapist); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("back from a non-active step: expected ErrWrongStep, got %v", err)
	}

	if err := w.GoBack(StepPayment); err != nil {
		t.Fatalf("GoBack(payment): %v", err)
	}
	assertOneActive(t, w)
	if w.Active() != StepSchedule {
		t.Fatalf("expected schedule, got %s", w.Active())
	}
	if d := w.Draft(); d.Time != "10:00 AM" || d.Therapist == "" {
		t.Fatalf("going back must keep collected data, got %+v", d)
	}

	if err := w.GoBack(StepSchedule); err != nil {
		t.Fatalf("GoBack(schedule): %v", err)
	}
	if err := w.GoBack(StepTherapist); err != nil {
		t.Fatalf("GoBack(therapist): %v", err)
	}
	if w.Active() != StepSpecialty {
		t.Fatalf("expected specialty, got %s", w.Active())
	}
	assertOneActive(t, w)
	if w.Draft().Specialty == "" || w.Draft().Date.IsZero() {
		t.Fatalf("draft should survive backward navigation: %+v", w.Draft())
	}
}

func TestRandomWalkKeepsSingleActiveStep(t *testing.T) {
	actions := []func(w *Wizard){
		func(w *Wizard) { _ = w.SelectSpecialty("Anxiety", "$120") },
		func(w *Wizard) { _ = w.SelectTherapist("Dr. Chen") },
		func(w *Wizard) { _ = w.SelectDate(date(2026, 10, 21)) },
		func(w *Wizard) { _ = w.SelectTimeSlot(date(2026, 10, 21), "11:00 AM") },
		func(w *Wizard) { _ = w.ConfirmSchedule() },
		func(w *Wizard) { _ = w.SelectPaymentMethod(MethodPayPal) },
		func(w *Wizard) { _, _ = w.SubmitPayment("", map[string]string{"paypal_email": "x@y.z"}) },
		func(w *Wizard) { _ = w.GoBack(w.Active()) },
	}
	// Deterministic pseudo-random sequence so failures are reproducible.
	seed := uint32(7)
	for run := 0; run < 50; run++ {
		w := newTestWizard()
		for i := 0; i < 40; i++ {
			seed = seed*1664525 + 1013904223
			before := w.Active()
			actions[int(seed>>16)%len(actions)](w)
			after := w.Active()
			if !after.Valid() {
				t.Fatalf("invalid step %d", after)
			}
			if after > before+1 || after < before-1 {
				t.Fatalf("skipped steps: %s -> %s", before, after)
			}
			if after > before && after == StepTherapist && w.Draft().Specialty == "" {
				t.Fatalf("reached therapist without specialty")
			}
			if after > before && after == StepPayment && (w.Draft().Date.IsZero() || w.Draft().Time == "") {
				t.Fatalf("reached payment without a schedule")
			}
			assertOneActive(t, w)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	w := newTestWizard()
	walkToPayment(t, w)
	_ = w.SelectPaymentMethod(MethodCard)

	raw, err := json.Marshal(w.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	restored, err := Restore(Config{Now: func() time.Time { return fixedNow }}, snap)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.Active() != StepPayment || restored.Draft() != w.Draft() {
		t.Fatalf("restored %s %+v, want %s %+v", restored.Active(), restored.Draft(), w.Active(), w.Draft())
	}

	fresh, err := json.Marshal(New(Config{}).Snapshot())
	if err != nil {
		t.Fatalf("marshal fresh: %v", err)
	}
	var freshSnap Snapshot
	if err := json.Unmarshal(fresh, &freshSnap); err != nil {
		t.Fatalf("unmarshal fresh snapshot %s: %v", fresh, err)
	}
	if freshSnap.Active != StepSpecialty || !freshSnap.Draft.Date.IsZero() {
		t.Fatalf("zero date should survive a round trip")
	}

	if _, err := Restore(Config{}, Snapshot{Active: 9}); err == nil {
		t.Fatalf("expected invalid step to be rejected")
	}
	if _, err := Restore(Config{}, Snapshot{Active: StepConfirmation}); err == nil {
		t.Fatalf("expected confirmation step without confirmation to be rejected")
	}
}

func TestNewBookingIDFormat(t *testing.T) {
	re := regexp.MustCompile(`^GH-[1-9][0-9]{5}$`)
	for i := 0; i < 200; i++ {
		id, err := NewBookingID()
		if err != nil {
			t.Fatalf("NewBookingID: %v", err)
		}
		if !re.MatchString(id) {
			t.Fatalf("unexpected booking id %q", id)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	if m, err := ParsePaymentMethod(" PayPal "); err != nil || m != MethodPayPal {
		t.Fatalf("ParsePaymentMethod(PayPal) = %q, %v", m, err)
	}
	if string(MethodCard) != "card" {
		t.Fatalf("card method identifier changed: %q", MethodCard)
	}
}
