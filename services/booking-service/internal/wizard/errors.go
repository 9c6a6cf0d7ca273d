package wizard

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWrongStep             = errors.New("action not available at the current step")
	ErrCompleted             = errors.New("booking already confirmed")
	ErrNoPreviousStep        = errors.New("no previous step to go back to")
	ErrSelectionRequired     = errors.New("a selection is required")
	ErrSpecialtyRequired     = errors.New("select a specialty first")
	ErrPastDate              = errors.New("date is in the past")
	ErrDateRequired          = errors.New("select a date first")
	ErrDateMismatch          = errors.New("time slot does not belong to the selected date")
	ErrSlotRequired          = errors.New("select a time slot first")
	ErrPaymentMethodRequired = errors.New("select a payment method first")
	ErrUnknownPaymentMethod  = errors.New("unknown payment method")
)

// ValidationError lists the required payment fields that were left empty.
// The wizard does not advance when it is returned.
type ValidationError struct {
	Method PaymentMethod
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required %s fields: %s", e.Method, strings.Join(e.Fields, ", "))
}

func wrongStep(active, want Step) error {
	return fmt.Errorf("%w: %s is active, %s required", ErrWrongStep, active, want)
}
