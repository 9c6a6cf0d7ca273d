package wizard

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
)

// PaymentMethod values match Stripe's payment method type identifiers.
type PaymentMethod string

const (
	MethodCard   PaymentMethod = PaymentMethod(stripe.PaymentMethodTypeCard)
	MethodPayPal PaymentMethod = PaymentMethod(stripe.PaymentMethodTypePaypal)
)

// Required fields per payment form, in the order the form shows them.
var paymentForms = map[PaymentMethod][]string{
	MethodCard:   {"card_name", "card_number", "expiry", "cvv"},
	MethodPayPal: {"paypal_email"},
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if m == "" {
		return "", ErrPaymentMethodRequired
	}
	if _, ok := paymentForms[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, raw)
	}
	return m, nil
}

// RequiredFields returns the form fields that must be filled in for m.
func RequiredFields(m PaymentMethod) []string {
	return append([]string(nil), paymentForms[m]...)
}

func missingFields(m PaymentMethod, values map[string]string) []string {
	var missing []string
	for _, name := range paymentForms[m] {
		if strings.TrimSpace(values[name]) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
