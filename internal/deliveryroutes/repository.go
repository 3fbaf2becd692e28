package deliveryroutes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

// Repository persists delivery routes.
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

// Create inserts a new route row.
func (r *Repository) Create(ctx context.Context, route *models.DeliveryRoute) (*models.DeliveryRoute, error) {
	if err := r.db.WithContext(ctx).Create(route).Error; err != nil {
		return nil, err
	}
	return route, nil
}

// Update saves an existing route row.
func (r *Repository) Update(ctx context.Context, route *models.DeliveryRoute) (*models.DeliveryRoute, error) {
	if err := r.db.WithContext(ctx).Save(route).Error; err != nil {
		return nil, err
	}
	return route, nil
}

// FindByID loads a route.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryRoute, error) {
	var route models.DeliveryRoute
	if err := r.db.WithContext(ctx).First(&route, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &route, nil
}

// List returns routes newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.DeliveryRoute, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.DeliveryRoute{})
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.DeliveryRoute
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

// IsReferenced reports whether any customer or assignment points at the route.
func (r *Repository) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("route_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.RouteAssignment{}).Where("route_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes a route row outright.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.DeliveryRoute{}).Error
}
