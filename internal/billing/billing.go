package billing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
)

var oneHundred = decimal.NewFromInt(100)

// LineItem is one billable row: quantity times the unit price snapshotted at
// creation time.
type LineItem struct {
	Quantity  int
	UnitPrice decimal.Decimal
}

// Aggregate reduces line items into a subtotal. Zero or negative quantities
// and negative prices are rejected rather than clamped.
func Aggregate(items []LineItem) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "at least one line item is required")
	}
	subtotal := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"index": i, "quantity": item.Quantity})
		}
		if item.UnitPrice.IsNegative() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative").
				WithDetails(map[string]any{"index": i, "unit_price": item.UnitPrice.String()})
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return subtotal.Round(2), nil
}

// TaxSettings is the explicit tax configuration passed in by the caller.
// Invoices keep the tax they were computed with; settings changes only
// affect documents created afterwards.
type TaxSettings struct {
	Enabled bool
	Rate    decimal.Decimal
}

// Tax applies the configured percentage to the subtotal, or zero when tax is
// disabled.
func Tax(subtotal decimal.Decimal, settings TaxSettings) decimal.Decimal {
	if !settings.Enabled || settings.Rate.IsZero() {
		return decimal.Zero
	}
	return subtotal.Mul(settings.Rate).Div(oneHundred).Round(2)
}

// Splitter allocates a payment across the cash, upi, and balance channels.
// Rows are keyed by channel so at most one row per channel can exist, and
// every Add clamps to what is still owed. The balance channel additionally
// clamps to the customer's available store credit.
type Splitter struct {
	grandTotal       decimal.Decimal
	availableBalance decimal.Decimal
	rows             map[enums.PaymentChannel]decimal.Decimal
}

// NewSplitter starts a split against the invoice grand total and the
// customer's current balance.
func NewSplitter(grandTotal, availableBalance decimal.Decimal) (*Splitter, error) {
	if grandTotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "grand total cannot be negative")
	}
	if availableBalance.IsNegative() {
		availableBalance = decimal.Zero
	}
	return &Splitter{
		grandTotal:       grandTotal,
		availableBalance: availableBalance,
		rows:             make(map[enums.PaymentChannel]decimal.Decimal, 3),
	}, nil
}

// Add records an amount against a channel, clamped to what is still owed
// (and, for balance, to the customer's credit). The applied amount is
// returned so callers can surface the correction.
func (s *Splitter) Add(channel enums.PaymentChannel, amount decimal.Decimal) (decimal.Decimal, error) {
	if !channel.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment channel %q", channel))
	}
	if _, exists := s.rows[channel]; exists {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "channel already has a payment row").
			WithDetails(map[string]any{"channel": channel.String()})
	}
	if amount.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "payment amount cannot be negative").
			WithDetails(map[string]any{"channel": channel.String()})
	}

	applied := amount
	if remaining := s.Remaining(); applied.GreaterThan(remaining) {
		applied = remaining
	}
	if channel == enums.PaymentChannelBalance && applied.GreaterThan(s.availableBalance) {
		applied = s.availableBalance
	}
	applied = applied.Round(2)

	s.rows[channel] = applied
	return applied, nil
}

// Remaining returns how much of the grand total is not yet covered.
func (s *Splitter) Remaining() decimal.Decimal {
	return s.grandTotal.Sub(s.totalPaid())
}

func (s *Splitter) totalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range s.rows {
		total = total.Add(amount)
	}
	return total
}

// Settlement is the finalized payment split.
type Settlement struct {
	Cash        decimal.Decimal
	UPI         decimal.Decimal
	Balance     decimal.Decimal
	TotalPaid   decimal.Decimal
	Outstanding decimal.Decimal
	Mode        enums.PaymentMode
	Status      enums.PaymentStatus
}

// Finalize totals the rows and derives the payment mode, status, and
// outstanding remainder. Overpayment is rejected here even though Add clamps;
// the two stages enforce the invariant independently.
func (s *Splitter) Finalize() (Settlement, error) {
	totalPaid := s.totalPaid()
	if totalPaid.GreaterThan(s.grandTotal) {
		return Settlement{}, pkgerrors.New(pkgerrors.CodeValidation, "payment exceeds grand total").
			WithDetails(map[string]any{
				"grand_total": s.grandTotal.String(),
				"total_paid":  totalPaid.String(),
			})
	}

	settlement := Settlement{
		Cash:        s.rows[enums.PaymentChannelCash],
		UPI:         s.rows[enums.PaymentChannelUPI],
		Balance:     s.rows[enums.PaymentChannelBalance],
		TotalPaid:   totalPaid,
		Outstanding: s.grandTotal.Sub(totalPaid).Round(2),
	}
	settlement.Mode = deriveMode(settlement)
	settlement.Status = deriveStatus(settlement)
	return settlement, nil
}

func deriveMode(s Settlement) enums.PaymentMode {
	var active []enums.PaymentMode
	if s.Cash.IsPositive() {
		active = append(active, enums.PaymentModeCash)
	}
	if s.UPI.IsPositive() {
		active = append(active, enums.PaymentModeUPI)
	}
	if s.Balance.IsPositive() {
		active = append(active, enums.PaymentModeBalance)
	}
	switch len(active) {
	case 0:
		return enums.PaymentModeCredit
	case 1:
		return active[0]
	default:
		return enums.PaymentModeMixed
	}
}

func deriveStatus(s Settlement) enums.PaymentStatus {
	switch {
	case s.Outstanding.IsZero():
		return enums.PaymentStatusPaid
	case s.TotalPaid.IsPositive():
		return enums.PaymentStatusPartial
	default:
		return enums.PaymentStatusPending
	}
}
