package assignments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
	"github.com/routebill/routebill-backend/pkg/types"
)

// Service runs the route assignment lifecycle: assigned -> accepted ->
// started -> finished, with cancellation possible only before acceptance.
type Service interface {
	Assign(ctx context.Context, input AssignInput) (*models.RouteAssignment, error)
	Accept(ctx context.Context, agentID, assignmentID uuid.UUID) (*models.RouteAssignment, error)
	Start(ctx context.Context, agentID, assignmentID uuid.UUID, opening types.StockSnapshot) (*models.RouteAssignment, error)
	Finish(ctx context.Context, agentID, assignmentID uuid.UUID, input FinishInput) (*models.RouteAssignment, error)
	Cancel(ctx context.Context, assignmentID uuid.UUID) (*models.RouteAssignment, error)
	Get(ctx context.Context, id uuid.UUID) (*models.RouteAssignment, error)
	MyAssignment(ctx context.Context, agentID uuid.UUID) (*models.RouteAssignment, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.RouteAssignment, string, error)
}

// AssignInput holds the validated payload to put an agent on a route.
type AssignInput struct {
	AgentID      uuid.UUID
	RouteID      uuid.UUID
	AssignedDate time.Time
}

// FinishInput holds what the agent reports when closing out a route.
type FinishInput struct {
	ClosingStock  types.StockSnapshot
	CollectedCash decimal.Decimal
	CollectedUPI  decimal.Decimal
	Notes         *string
}

type routeLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryRoute, error)
}

type service struct {
	repo   *Repository
	routes routeLoader
}

// NewService constructs the assignment service.
func NewService(repo *Repository, routes routeLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignment repository required")
	}
	if routes == nil {
		return nil, fmt.Errorf("route loader required")
	}
	return &service{repo: repo, routes: routes}, nil
}

// Assign creates a new assignment. One open assignment per agent: the service
// checks first and a partial unique index backs it up under concurrency.
func (s *service) Assign(ctx context.Context, input AssignInput) (*models.RouteAssignment, error) {
	if input.AgentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent id required")
	}
	if input.RouteID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "route id required")
	}

	route, err := s.routes.FindByID(ctx, input.RouteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "route not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load route")
	}
	if !route.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "route is not active")
	}

	hasActive, err := s.repo.HasActiveForAgent(ctx, input.AgentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active assignment")
	}
	if hasActive {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "agent already has an open assignment").
			WithDetails(map[string]any{"agent_id": input.AgentID.String()})
	}

	assignedDate := input.AssignedDate
	if assignedDate.IsZero() {
		assignedDate = time.Now().UTC()
	}

	assignment := &models.RouteAssignment{
		ID:           uuid.New(),
		AgentID:      input.AgentID,
		RouteID:      input.RouteID,
		Status:       enums.AssignmentStatusAssigned,
		AssignedDate: assignedDate,
	}
	created, err := s.repo.Create(ctx, assignment)
	if err != nil {
		if db.IsUniqueViolation(err, "idx_route_assignments_agent_active") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "agent already has an open assignment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert assignment")
	}
	return created, nil
}

func (s *service) Accept(ctx context.Context, agentID, assignmentID uuid.UUID) (*models.RouteAssignment, error) {
	assignment, err := s.ownedBy(ctx, agentID, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkAccepted(ctx, assignment.ID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, assignmentID)
}

func (s *service) Start(ctx context.Context, agentID, assignmentID uuid.UUID, opening types.StockSnapshot) (*models.RouteAssignment, error) {
	assignment, err := s.ownedBy(ctx, agentID, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := validateSnapshot(opening); err != nil {
		return nil, err
	}
	if err := s.repo.MarkStarted(ctx, assignment.ID, time.Now().UTC(), opening); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, assignmentID)
}

func (s *service) Finish(ctx context.Context, agentID, assignmentID uuid.UUID, input FinishInput) (*models.RouteAssignment, error) {
	assignment, err := s.ownedBy(ctx, agentID, assignmentID)
	if err != nil {
		return nil, err
	}
	if err := validateSnapshot(input.ClosingStock); err != nil {
		return nil, err
	}
	if input.CollectedCash.IsNegative() || input.CollectedUPI.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collected amounts cannot be negative")
	}
	err = s.repo.MarkFinished(ctx, assignment.ID, time.Now().UTC(),
		input.ClosingStock, input.CollectedCash.Round(2), input.CollectedUPI.Round(2), input.Notes)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, assignmentID)
}

func (s *service) Cancel(ctx context.Context, assignmentID uuid.UUID) (*models.RouteAssignment, error) {
	if err := s.repo.MarkCancelled(ctx, assignmentID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, assignmentID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.RouteAssignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	return assignment, nil
}

// MyAssignment returns the agent's current open assignment.
func (s *service) MyAssignment(ctx context.Context, agentID uuid.UUID) (*models.RouteAssignment, error) {
	assignment, err := s.repo.FindActiveByAgent(ctx, agentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no open assignment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	return assignment, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.RouteAssignment, string, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	return rows, next, nil
}

func (s *service) ownedBy(ctx context.Context, agentID, assignmentID uuid.UUID) (*models.RouteAssignment, error) {
	assignment, err := s.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.AgentID != agentID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "assignment belongs to a different agent")
	}
	return assignment, nil
}

func validateSnapshot(snapshot types.StockSnapshot) error {
	for code, qty := range snapshot {
		if qty < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock quantities cannot be negative").
				WithDetails(map[string]any{"product": code, "quantity": qty})
		}
	}
	return nil
}
