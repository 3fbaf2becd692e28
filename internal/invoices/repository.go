package invoices

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

// ListFilters narrows invoice listings.
type ListFilters struct {
	CustomerID *uuid.UUID
	Status     *enums.InvoiceStatus
}

// Repository persists invoices, their line items, and the deleted-invoice
// archive.
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

// Create inserts an invoice together with its items.
func (r *Repository) Create(ctx context.Context, invoice *models.Invoice) (*models.Invoice, error) {
	if err := r.db.WithContext(ctx).Create(invoice).Error; err != nil {
		return nil, err
	}
	return invoice, nil
}

// FindByID loads an invoice with its items and customer.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Preload("Items").Preload("Customer").First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List returns invoices newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Invoice, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.Invoice{}).Preload("Items").Preload("Customer")
	if filters.CustomerID != nil {
		qb = qb.Where("customer_id = ?", *filters.CustomerID)
	}
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Invoice
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

// MarkCancelled flips an active invoice to cancelled. A zero row count means
// the invoice was already cancelled (or gone) and the caller must not apply
// reversal effects again.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).Exec(
		"UPDATE invoices SET status = ?, cancelled_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		enums.InvoiceStatusCancelled, at, id, enums.InvoiceStatusActive,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is not active").
			WithDetails(map[string]any{"invoice_id": id.String()})
	}
	return nil
}

// Archive stores the full payload of a removed invoice.
func (r *Repository) Archive(ctx context.Context, row *models.DeletedInvoice) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// DeleteCascade removes an invoice and its items.
func (r *Repository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", id).Delete(&models.InvoiceItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Invoice{}).Error
}

// ListDeleted returns archived invoice payloads newest first.
func (r *Repository) ListDeleted(ctx context.Context, params pagination.Params) ([]models.DeletedInvoice, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.DeletedInvoice{})
	if cursor != nil {
		qb = qb.Where("(deleted_at < ?) OR (deleted_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.DeletedInvoice
	if err := qb.Order("deleted_at DESC").Order("id DESC").Limit(limitWithBuffer).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.DeletedAt, ID: last.ID})
	}
	return rows, nextCursor, nil
}
