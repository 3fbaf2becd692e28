package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/pkg/enums"
)

// Order is a customer order. It becomes delivered when an invoice is
// generated from it, or cancelled.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   string              `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID    uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	AgentID       *uuid.UUID          `gorm:"column:agent_id;type:uuid"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Subtotal      decimal.Decimal     `gorm:"column:subtotal;type:decimal(12,2);not null"`
	TaxAmount     decimal.Decimal     `gorm:"column:tax_amount;type:decimal(12,2);not null;default:0"`
	TotalAmount   decimal.Decimal     `gorm:"column:total_amount;type:decimal(12,2);not null"`
	PaymentAmount decimal.Decimal     `gorm:"column:payment_amount;type:decimal(12,2);not null;default:0"`
	CashAmount    decimal.Decimal     `gorm:"column:cash_amount;type:decimal(12,2);not null;default:0"`
	UPIAmount     decimal.Decimal     `gorm:"column:upi_amount;type:decimal(12,2);not null;default:0"`
	BalanceAmount decimal.Decimal     `gorm:"column:balance_amount;type:decimal(12,2);not null;default:0"`
	PaymentMode   enums.PaymentMode   `gorm:"column:payment_mode;type:text;not null;default:'credit'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Notes         *string             `gorm:"column:notes"`
	Customer      *Customer           `gorm:"foreignKey:CustomerID"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	DeliveredAt   *time.Time          `gorm:"column:delivered_at"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
