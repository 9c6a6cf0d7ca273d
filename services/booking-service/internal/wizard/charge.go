package wizard

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v79"
)

var ErrInvalidPrice = errors.New("invalid price")

// ParsePrice converts a displayed USD price ("$120", "$1,250.50") to cents.
func ParsePrice(raw string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(raw), "$"), ",", "")
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && (frac == "" || len(frac) > 2)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	dollars, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || dollars < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}
	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		if cents, err = strconv.ParseInt(frac, 10, 64); err != nil || cents < 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
		}
	}
	return dollars*100 + cents, nil
}

// ChargeParams is the PaymentIntent billing creates for a confirmed booking.
// The booking id doubles as the idempotency key.
func ChargeParams(c Confirmation) (*stripe.PaymentIntentParams, error) {
	amount, err := ParsePrice(c.Booking.Price)
	if err != nil {
		return nil, err
	}
	if _, ok := paymentForms[c.Booking.PaymentMethod]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, c.Booking.PaymentMethod)
	}
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethodTypes: stripe.StringSlice([]string{string(c.Booking.PaymentMethod)}),
		Description: stripe.String(fmt.Sprintf("%s with %s on %s at %s",
			c.Booking.Specialty, c.Booking.Therapist, c.Booking.Date, c.Booking.Time)),
	}
	params.IdempotencyKey = stripe.String(c.BookingID)
	params.AddMetadata("booking_id", c.BookingID)
	return params, nil
}
