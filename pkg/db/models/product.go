package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/pkg/enums"
)

// Product is immutable reference data for line items; invoices and orders
// snapshot the unit price at creation time.
type Product struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code      string            `gorm:"column:code;not null;uniqueIndex"`
	Name      string            `gorm:"column:name;not null"`
	Unit      enums.ProductUnit `gorm:"column:unit;type:text;not null;default:'piece'"`
	UnitPrice decimal.Decimal   `gorm:"column:unit_price;type:decimal(12,2);not null"`
	IsActive  bool              `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
