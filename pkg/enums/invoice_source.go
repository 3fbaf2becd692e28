package enums

import "fmt"

// InvoiceSource records whether an invoice was raised directly or generated
// from an existing order.
type InvoiceSource string

const (
	InvoiceSourceDirect InvoiceSource = "direct"
	InvoiceSourceOrder  InvoiceSource = "order"
)

var validInvoiceSources = []InvoiceSource{
	InvoiceSourceDirect,
	InvoiceSourceOrder,
}

// String implements fmt.Stringer.
func (i InvoiceSource) String() string {
	return string(i)
}

// IsValid reports whether the value is a known InvoiceSource.
func (i InvoiceSource) IsValid() bool {
	for _, candidate := range validInvoiceSources {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseInvoiceSource converts raw input into an InvoiceSource.
func ParseInvoiceSource(value string) (InvoiceSource, error) {
	for _, candidate := range validInvoiceSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice source %q", value)
}
