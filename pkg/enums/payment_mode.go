package enums

import "fmt"

// PaymentMode is the derived label stored on invoices and orders: the single
// active channel, "mixed" when several channels carry a positive amount, or
// "credit" when nothing was paid at submission.
type PaymentMode string

const (
	PaymentModeCash    PaymentMode = "cash"
	PaymentModeUPI     PaymentMode = "upi"
	PaymentModeBalance PaymentMode = "balance"
	PaymentModeMixed   PaymentMode = "mixed"
	PaymentModeCredit  PaymentMode = "credit"
)

var validPaymentModes = []PaymentMode{
	PaymentModeCash,
	PaymentModeUPI,
	PaymentModeBalance,
	PaymentModeMixed,
	PaymentModeCredit,
}

// String implements fmt.Stringer.
func (p PaymentMode) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMode.
func (p PaymentMode) IsValid() bool {
	for _, candidate := range validPaymentModes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMode converts raw input into a PaymentMode.
func ParsePaymentMode(value string) (PaymentMode, error) {
	for _, candidate := range validPaymentModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment mode %q", value)
}
