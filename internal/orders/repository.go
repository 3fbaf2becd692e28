package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

// ListFilters narrows order listings.
type ListFilters struct {
	CustomerID *uuid.UUID
	AgentID    *uuid.UUID
	Status     *enums.OrderStatus
}

// Repository persists orders and their line items. Status transitions go
// through guarded conditional updates so concurrent actors cannot double
// apply one.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// Create inserts an order together with its items.
func (r *Repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// FindByID loads an order with its items and customer.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Preload("Customer").First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns orders newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.Order{}).Preload("Items").Preload("Customer")
	if filters.CustomerID != nil {
		qb = qb.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.AgentID != nil {
		qb = qb.Where("agent_id = ?", *filters.AgentID)
	}
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := qb.Order("created_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}

// MarkProcessing moves a pending order to processing.
func (r *Repository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.transition(ctx, id,
		"UPDATE orders SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		enums.OrderStatusProcessing, id, enums.OrderStatusPending,
	)
}

// MarkDelivered closes an open order, stamping delivered_at.
func (r *Repository) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id,
		"UPDATE orders SET status = ?, delivered_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status IN (?, ?)",
		enums.OrderStatusDelivered, at, id, enums.OrderStatusPending, enums.OrderStatusProcessing,
	)
}

// MarkCancelled closes an open order, stamping cancelled_at.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id,
		"UPDATE orders SET status = ?, cancelled_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status IN (?, ?)",
		enums.OrderStatusCancelled, at, id, enums.OrderStatusPending, enums.OrderStatusProcessing,
	)
}

// AssignAgent sets the delivering agent.
func (r *Repository) AssignAgent(ctx context.Context, id uuid.UUID, agentID *uuid.UUID) error {
	result := r.db.WithContext(ctx).Exec(
		"UPDATE orders SET agent_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		agentID, id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (r *Repository) transition(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	result := r.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not in a state that allows this transition").
			WithDetails(map[string]any{"order_id": id.String()})
	}
	return nil
}

// DeleteCascade removes an order and its items.
func (r *Repository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Order{}).Error
}
