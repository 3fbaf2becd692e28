package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/pkg/enums"
)

// Invoice is the billed document. Per-channel amounts record how the payment
// was split across cash, UPI, and store credit.
type Invoice struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null;uniqueIndex"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	OrderID       *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	Source        enums.InvoiceSource `gorm:"column:source;type:text;not null;default:'direct'"`
	Status        enums.InvoiceStatus `gorm:"column:status;type:text;not null;default:'active'"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:decimal(12,2);not null"`
	TaxRate       decimal.Decimal     `gorm:"column:tax_rate;type:decimal(5,2);not null;default:0"`
	TaxAmount     decimal.Decimal     `gorm:"column:tax_amount;type:decimal(12,2);not null;default:0"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:decimal(12,2);not null"`
	PaymentAmount decimal.Decimal     `gorm:"column:payment_amount;type:decimal(12,2);not null;default:0"`
	CashAmount    decimal.Decimal     `gorm:"column:cash_amount;type:decimal(12,2);not null;default:0"`
	UPIAmount     decimal.Decimal     `gorm:"column:upi_amount;type:decimal(12,2);not null;default:0"`
	BalanceAmount decimal.Decimal     `gorm:"column:balance_amount;type:decimal(12,2);not null;default:0"`
	Outstanding   decimal.Decimal     `gorm:"column:outstanding;type:decimal(12,2);not null;default:0"`
	PaymentMode   enums.PaymentMode   `gorm:"column:payment_mode;type:text;not null;default:'credit'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Notes         *string             `gorm:"column:notes"`
	CreatedByID   uuid.UUID           `gorm:"column:created_by_id;type:uuid;not null"`
	Customer      *Customer           `gorm:"foreignKey:CustomerID"`
	Order         *Order              `gorm:"foreignKey:OrderID"`
	Items         []InvoiceItem       `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
