package processor

import (
	"context"
	"fmt"
	"strings"
)

// CardForm is a headless payment form carrying raw card details. Submit
// performs the field-level checks the processor's embedded element would run
// before tokenization.
type CardForm struct {
	Number string
	Expiry string
	CVC    string
}

// Submit validates the card fields. It performs no remote call.
func (f CardForm) Submit(_ context.Context) error {
	digits := strings.ReplaceAll(f.Number, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return fmt.Errorf("card number must be between 12 and 19 digits")
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return fmt.Errorf("card number must be numeric")
		}
	}
	if f.Expiry == "" {
		return fmt.Errorf("expiry is required")
	}
	if len(f.CVC) < 3 {
		return fmt.Errorf("cvc must be at least 3 digits")
	}
	return nil
}
