package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/pkg/enums"
)

// Transaction is one row of the append-only audit ledger. Amount is signed:
// negative rows reduce what the customer holds or increase what they owe.
// Rows are never updated or deleted.
type Transaction struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID             `gorm:"column:customer_id;type:uuid;not null;index"`
	Type            enums.TransactionType `gorm:"column:type;type:text;not null"`
	Channel         *enums.PaymentChannel `gorm:"column:channel;type:text"`
	Amount          decimal.Decimal       `gorm:"column:amount;type:decimal(12,2);not null"`
	Description     string                `gorm:"column:description;not null"`
	ReferenceNumber string                `gorm:"column:reference_number;not null"`
	ActorUserID     uuid.UUID             `gorm:"column:actor_user_id;type:uuid;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}
