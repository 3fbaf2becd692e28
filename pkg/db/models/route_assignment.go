package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/routebill/routebill-backend/pkg/enums"
	"github.com/routebill/routebill-backend/pkg/types"
)

// RouteAssignment records a delivery agent working a route for a day. Each
// lifecycle transition stamps its own timestamp; stock snapshots are taken at
// start and finish for delivery reconciliation.
type RouteAssignment struct {
	ID            uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AgentID       uuid.UUID              `gorm:"column:agent_id;type:uuid;not null;index"`
	RouteID       uuid.UUID              `gorm:"column:route_id;type:uuid;not null"`
	Status        enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'assigned'"`
	AssignedDate  time.Time              `gorm:"column:assigned_date;not null"`
	OpeningStock  types.StockSnapshot    `gorm:"column:opening_stock;type:jsonb"`
	ClosingStock  types.StockSnapshot    `gorm:"column:closing_stock;type:jsonb"`
	CollectedCash decimal.Decimal        `gorm:"column:collected_cash;type:decimal(12,2);not null;default:0"`
	CollectedUPI  decimal.Decimal        `gorm:"column:collected_upi;type:decimal(12,2);not null;default:0"`
	Notes         *string                `gorm:"column:notes"`
	Route         *DeliveryRoute         `gorm:"foreignKey:RouteID"`
	Agent         *User                  `gorm:"foreignKey:AgentID"`
	AcceptedAt    *time.Time             `gorm:"column:accepted_at"`
	StartedAt     *time.Time             `gorm:"column:started_at"`
	FinishedAt    *time.Time             `gorm:"column:finished_at"`
	CancelledAt   *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
