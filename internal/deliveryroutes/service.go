package deliveryroutes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/sequence"
	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/db/models"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

// Service exposes delivery route management operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.DeliveryRoute, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.DeliveryRoute, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DeliveryRoute, error)
	List(ctx context.Context, params pagination.Params) ([]models.DeliveryRoute, string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput holds the validated payload to create a route.
type CreateInput struct {
	Name        string
	Description *string
}

// UpdateInput holds optional mutation values for a route.
type UpdateInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo       *Repository
	runner     txRunner
	minter     *sequence.Minter
	codePrefix string
}

// NewService constructs a route service instance.
func NewService(repo *Repository, runner txRunner, minter *sequence.Minter, codePrefix string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("route repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if minter == nil {
		return nil, fmt.Errorf("sequence minter required")
	}
	if codePrefix == "" {
		codePrefix = "RT"
	}
	return &service{repo: repo, runner: runner, minter: minter, codePrefix: codePrefix}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.DeliveryRoute, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "route name required")
	}

	var created *models.DeliveryRoute
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		code, err := s.minter.WithTx(tx).NextNumber(ctx, sequence.NameRoute, s.codePrefix)
		if err != nil {
			return err
		}
		route := &models.DeliveryRoute{
			ID:          uuid.New(),
			Code:        code,
			Name:        name,
			Description: input.Description,
			IsActive:    true,
		}
		created, err = s.repo.WithTx(tx).Create(ctx, route)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "route code already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert route")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.DeliveryRoute, error) {
	route, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "route")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "route name cannot be empty")
		}
		route.Name = name
	}
	if input.Description != nil {
		route.Description = input.Description
	}
	if input.IsActive != nil {
		route.IsActive = *input.IsActive
	}

	updated, err := s.repo.Update(ctx, route)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update route")
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.DeliveryRoute, error) {
	route, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "route")
	}
	return route, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) ([]models.DeliveryRoute, string, error) {
	rows, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list routes")
	}
	return rows, next, nil
}

// Delete deactivates routes still referenced by customers or assignments;
// unreferenced routes are removed.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	route, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOrDependency(err, "route")
	}

	referenced, err := s.repo.IsReferenced(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check route references")
	}
	if referenced {
		route.IsActive = false
		if _, err := s.repo.Update(ctx, route); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate route")
		}
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete route")
	}
	return nil
}

func notFoundOrDependency(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
