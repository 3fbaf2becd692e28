package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
	"github.com/routebill/routebill-backend/pkg/types"
)

// ListFilters narrows assignment listings.
type ListFilters struct {
	AgentID *uuid.UUID
	RouteID *uuid.UUID
	Status  *enums.AssignmentStatus
}

var activeStatuses = []enums.AssignmentStatus{
	enums.AssignmentStatusAssigned,
	enums.AssignmentStatusAccepted,
	enums.AssignmentStatusStarted,
}

// Repository persists route assignments. Transitions are guarded conditional
// updates keyed on the current status, so a transition applies at most once.
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

// Create inserts an assignment row.
func (r *Repository) Create(ctx context.Context, assignment *models.RouteAssignment) (*models.RouteAssignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

// FindByID loads an assignment with its route and agent.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RouteAssignment, error) {
	var assignment models.RouteAssignment
	if err := r.db.WithContext(ctx).Preload("Route").Preload("Agent").First(&assignment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindActiveByAgent returns the agent's current working assignment, if any.
func (r *Repository) FindActiveByAgent(ctx context.Context, agentID uuid.UUID) (*models.RouteAssignment, error) {
	var assignment models.RouteAssignment
	err := r.db.WithContext(ctx).Preload("Route").
		Where("agent_id = ? AND status IN ?", agentID, activeStatuses).
		Order("created_at DESC").
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// HasActiveForAgent reports whether the agent already has an open assignment.
func (r *Repository) HasActiveForAgent(ctx context.Context, agentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RouteAssignment{}).
		Where("agent_id = ? AND status IN ?", agentID, activeStatuses).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// List returns assignments newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.RouteAssignment, string, error) {
	pageSize := pagination.NormalizeLimit(params.Limit)
	limitWithBuffer := pagination.LimitWithBuffer(params.Limit)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	qb := r.db.WithContext(ctx).Model(&models.RouteAssignment{}).Preload("Route").Preload("Agent")
	if filters.AgentID != nil {
		qb = qb.Where("agent_id = ?", *filters.AgentID)
	}
	if filters.RouteID != nil {
		qb = qb.Where("route_id = ?", *filters.RouteID)
	}
	if filters.Status != nil {
		qb = qb.Where("status = ?", *filters.Status)
	}
	if cursor != nil {
		qb = qb.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.RouteAssignment
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

// MarkAccepted moves assigned -> accepted.
func (r *Repository) MarkAccepted(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id,
		"UPDATE route_assignments SET status = ?, accepted_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		enums.AssignmentStatusAccepted, at, id, enums.AssignmentStatusAssigned,
	)
}

// MarkStarted moves accepted -> started, recording the opening stock.
func (r *Repository) MarkStarted(ctx context.Context, id uuid.UUID, at time.Time, opening types.StockSnapshot) error {
	return r.transition(ctx, id,
		"UPDATE route_assignments SET status = ?, started_at = ?, opening_stock = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		enums.AssignmentStatusStarted, at, opening, id, enums.AssignmentStatusAccepted,
	)
}

// MarkFinished moves started -> finished, recording the closing stock and
// collected totals.
func (r *Repository) MarkFinished(ctx context.Context, id uuid.UUID, at time.Time, closing types.StockSnapshot, cash, upi decimal.Decimal, notes *string) error {
	return r.transition(ctx, id,
		"UPDATE route_assignments SET status = ?, finished_at = ?, closing_stock = ?, collected_cash = ?, collected_upi = ?, notes = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		enums.AssignmentStatusFinished, at, closing, cash, upi, notes, id, enums.AssignmentStatusStarted,
	)
}

// MarkCancelled moves assigned -> cancelled. Accepted or started work can no
// longer be cancelled.
func (r *Repository) MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, id,
		"UPDATE route_assignments SET status = ?, cancelled_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?",
		enums.AssignmentStatusCancelled, at, id, enums.AssignmentStatusAssigned,
	)
}

func (r *Repository) transition(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	result := r.db.WithContext(ctx).Exec(query, args...)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is not in a state that allows this transition").
			WithDetails(map[string]any{"assignment_id": id.String()})
	}
	return nil
}
