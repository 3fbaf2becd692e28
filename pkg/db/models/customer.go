package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is a billed party. Balance is store credit the customer can spend;
// Outstanding is what the customer still owes. Both are mutated only through
// atomic conditional updates issued by the customers repository.
type Customer struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code        string          `gorm:"column:code;not null;uniqueIndex"`
	Name        string          `gorm:"column:name;not null"`
	Phone       *string         `gorm:"column:phone"`
	Email       *string         `gorm:"column:email"`
	Address     *string         `gorm:"column:address"`
	RouteID     *uuid.UUID      `gorm:"column:route_id;type:uuid"`
	Balance     decimal.Decimal `gorm:"column:balance;type:decimal(12,2);not null;default:0"`
	Outstanding decimal.Decimal `gorm:"column:outstanding;type:decimal(12,2);not null;default:0"`
	TotalOrders int             `gorm:"column:total_orders;not null;default:0"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	Route       *DeliveryRoute  `gorm:"foreignKey:RouteID"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
