package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppSettings is the singleton configuration row. Tax settings apply to
// invoices created after a change; stored invoices keep the tax they were
// computed with.
type AppSettings struct {
	ID            int             `gorm:"column:id;primaryKey"`
	TaxEnabled    bool            `gorm:"column:tax_enabled;not null;default:true"`
	TaxRate       decimal.Decimal `gorm:"column:tax_rate;type:decimal(5,2);not null;default:18"`
	InvoicePrefix string          `gorm:"column:invoice_prefix;not null;default:'INV'"`
	OrderPrefix   string          `gorm:"column:order_prefix;not null;default:'ORD'"`
	BusinessName  string          `gorm:"column:business_name;not null;default:''"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the singleton in a clearly named table.
func (AppSettings) TableName() string {
	return "app_settings"
}
