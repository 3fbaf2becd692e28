package sequence

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Counter names used across the backend.
const (
	NameInvoice  = "invoice"
	NameOrder    = "order"
	NameCustomer = "customer"
	NameProduct  = "product"
	NameRoute    = "route"
)

// Minter formats sequence values into human-facing document numbers and
// entity codes.
type Minter struct {
	repo    *Repository
	padding int
}

// NewMinter constructs a minter with the configured zero padding width.
func NewMinter(repo *Repository, padding int) (*Minter, error) {
	if repo == nil {
		return nil, fmt.Errorf("sequence repository required")
	}
	if padding <= 0 {
		padding = 5
	}
	return &Minter{repo: repo, padding: padding}, nil
}

// WithTx returns a minter whose counter increments join the transaction.
func (m *Minter) WithTx(tx *gorm.DB) *Minter {
	return &Minter{repo: m.repo.WithTx(tx), padding: m.padding}
}

// NextNumber mints the next value for the named counter and renders it as
// PREFIX-00042.
func (m *Minter) NextNumber(ctx context.Context, name, prefix string) (string, error) {
	value, err := m.repo.Next(ctx, name)
	if err != nil {
		return "", err
	}
	return Format(prefix, m.padding, value), nil
}

// Format renders a counter value with the given prefix and padding width.
func Format(prefix string, padding int, value int64) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fmt.Sprintf("%0*d", padding, value)
	}
	return fmt.Sprintf("%s-%0*d", prefix, padding, value)
}
