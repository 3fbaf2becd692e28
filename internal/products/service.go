package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/sequence"
	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

// Service exposes catalog management operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, activeOnly bool, params pagination.Params) ([]models.Product, string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// CreateInput holds the validated payload to create a product.
type CreateInput struct {
	Name      string
	Unit      enums.ProductUnit
	UnitPrice decimal.Decimal
}

// UpdateInput holds optional mutation values for a product.
type UpdateInput struct {
	Name      *string
	Unit      *enums.ProductUnit
	UnitPrice *decimal.Decimal
	IsActive  *bool
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

// NewService constructs a product service instance.
func NewService(repo *Repository, runner txRunner, minter *sequence.Minter, codePrefix string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if minter == nil {
		return nil, fmt.Errorf("sequence minter required")
	}
	if codePrefix == "" {
		codePrefix = "PROD"
	}
	return &service{repo: repo, runner: runner, minter: minter, codePrefix: codePrefix}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	unit := input.Unit
	if unit == "" {
		unit = enums.ProductUnitPiece
	}
	if !unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown product unit %q", unit))
	}

	var created *models.Product
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		code, err := s.minter.WithTx(tx).NextNumber(ctx, sequence.NameProduct, s.codePrefix)
		if err != nil {
			return err
		}
		product := &models.Product{
			ID:        uuid.New(),
			Code:      code,
			Name:      name,
			Unit:      unit,
			UnitPrice: input.UnitPrice.Round(2),
			IsActive:  true,
		}
		created, err = s.repo.WithTx(tx).Create(ctx, product)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product code already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "product")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		product.Name = name
	}
	if input.Unit != nil {
		if !input.Unit.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown product unit %q", *input.Unit))
		}
		product.Unit = *input.Unit
	}
	if input.UnitPrice != nil {
		if input.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
		}
		product.UnitPrice = input.UnitPrice.Round(2)
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}

	updated, err := s.repo.Update(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "product")
	}
	return product, nil
}

func (s *service) List(ctx context.Context, activeOnly bool, params pagination.Params) ([]models.Product, string, error) {
	rows, next, err := s.repo.List(ctx, activeOnly, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return rows, next, nil
}

// Delete deactivates products referenced by historical line items so old
// invoices keep resolving; unreferenced products are removed.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOrDependency(err, "product")
	}

	referenced, err := s.repo.IsReferenced(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product references")
	}
	if referenced {
		product.IsActive = false
		if _, err := s.repo.Update(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
		}
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func notFoundOrDependency(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
