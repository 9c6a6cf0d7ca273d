package wizard

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const bookingIDPrefix = "GH"

var bookingIDSpan = big.NewInt(900000)

// NewBookingID returns an identifier like GH-483920. The numeric part is always six digits.
func NewBookingID() (string, error) {
	n, err := rand.Int(rand.Reader, bookingIDSpan)
	if err != nil {
		return "", fmt.Errorf("generate booking id: %w", err)
	}
	return fmt.Sprintf("%s-%06d", bookingIDPrefix, 100000+n.Int64()), nil
}
