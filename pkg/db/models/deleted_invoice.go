package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeletedInvoice archives the full payload of a physically removed invoice so
// the audit trail survives deletion.
type DeletedInvoice struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	InvoiceID     uuid.UUID       `gorm:"column:invoice_id;type:uuid;not null"`
	InvoiceNumber string          `gorm:"column:invoice_number;not null"`
	CustomerID    uuid.UUID       `gorm:"column:customer_id;type:uuid;not null"`
	Payload       json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	DeletedByID   uuid.UUID       `gorm:"column:deleted_by_id;type:uuid;not null"`
	DeletedAt     time.Time       `gorm:"column:deleted_at;autoCreateTime"`
}
