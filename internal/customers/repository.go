package customers

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/pkg/db/models"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

// Repository persists customers. Balance and outstanding are only ever
// mutated through the conditional atomic helpers below; callers must not
// read-modify-write those columns.
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

// Create inserts a new customer row.
func (r *Repository) Create(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := r.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

// Update saves an existing customer row.
func (r *Repository) Update(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := r.db.WithContext(ctx).Save(customer).Error; err != nil {
		return nil, err
	}
	return customer, nil
}

// FindByID loads a customer with its route preloaded.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Preload("Route").First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// List returns customers newest first with cursor pagination, optionally
// filtered by route.
func (r *Repository) List(ctx context.Context, routeID *uuid.UUID, params pagination.Params) ([]models.Customer, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.Customer{})
	if routeID != nil {
		qb = qb.Where("route_id = ?", *routeID)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Customer
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

// DeductBalance decrements balance by amount only when the customer holds at
// least that much credit. A zero row count means the guard failed.
func (r *Repository) DeductBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "deduction amount must be positive")
	}
	result := r.db.WithContext(ctx).Exec(
		"UPDATE customers SET balance = balance - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND balance >= ?",
		amount, id, amount,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient balance").
			WithDetails(map[string]any{"customer_id": id.String(), "amount": amount.String()})
	}
	return nil
}

// CreditBalance increments the customer's store credit.
func (r *Repository) CreditBalance(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	result := r.db.WithContext(ctx).Exec(
		"UPDATE customers SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		amount, id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return nil
}

// IncreaseOutstanding adds to what the customer owes.
func (r *Repository) IncreaseOutstanding(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "outstanding delta must be positive")
	}
	result := r.db.WithContext(ctx).Exec(
		"UPDATE customers SET outstanding = outstanding + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		amount, id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return nil
}

// ReduceOutstanding subtracts from what the customer owes, guarded so the
// column never goes negative.
func (r *Repository) ReduceOutstanding(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "outstanding delta must be positive")
	}
	result := r.db.WithContext(ctx).Exec(
		"UPDATE customers SET outstanding = outstanding - ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND outstanding >= ?",
		amount, id, amount,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "outstanding would go negative").
			WithDetails(map[string]any{"customer_id": id.String(), "amount": amount.String()})
	}
	return nil
}

// IncrementTotalOrders bumps the lifetime order counter.
func (r *Repository) IncrementTotalOrders(ctx context.Context, id uuid.UUID, delta int) error {
	return r.db.WithContext(ctx).Exec(
		"UPDATE customers SET total_orders = total_orders + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		delta, id,
	).Error
}

// HasHistory reports whether any invoice or order references the customer.
func (r *Repository) HasHistory(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("customer_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return true, nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("customer_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Delete removes a customer row outright. Callers should prefer deactivation
// when history exists.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Customer{}).Error
}
