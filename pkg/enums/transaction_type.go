package enums

import "fmt"

// TransactionType labels the balance-affecting events the audit ledger keeps.
type TransactionType string

const (
	TransactionTypeBalanceDeduction    TransactionType = "balance_deduction"
	TransactionTypeBalanceRefund       TransactionType = "balance_refund"
	TransactionTypeBalanceTopUp        TransactionType = "balance_top_up"
	TransactionTypeOutstandingIncrease TransactionType = "outstanding_increase"
	TransactionTypeOutstandingReversal TransactionType = "outstanding_reversal"
	TransactionTypeOutstandingPayment  TransactionType = "outstanding_payment"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeBalanceDeduction,
	TransactionTypeBalanceRefund,
	TransactionTypeBalanceTopUp,
	TransactionTypeOutstandingIncrease,
	TransactionTypeOutstandingReversal,
	TransactionTypeOutstandingPayment,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
