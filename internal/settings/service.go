package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/billing"
	"github.com/routebill/routebill-backend/pkg/db/models"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
)

// BillingSettings is the explicit configuration value object handed to the
// billing and numbering code, rather than read ambiently at call sites.
type BillingSettings struct {
	TaxEnabled    bool
	TaxRate       decimal.Decimal
	InvoicePrefix string
	OrderPrefix   string
	BusinessName  string
}

// Tax converts to the billing package's tax input.
func (b BillingSettings) Tax() billing.TaxSettings {
	return billing.TaxSettings{Enabled: b.TaxEnabled, Rate: b.TaxRate}
}

// UpdateInput holds optional mutations to the settings row.
type UpdateInput struct {
	TaxEnabled    *bool
	TaxRate       *decimal.Decimal
	InvoicePrefix *string
	OrderPrefix   *string
	BusinessName  *string
}

// Service exposes read/update operations on the singleton settings row.
type Service interface {
	Get(ctx context.Context) (BillingSettings, error)
	Update(ctx context.Context, input UpdateInput) (BillingSettings, error)
}

type repository interface {
	Get(ctx context.Context) (*models.AppSettings, error)
	Save(ctx context.Context, row *models.AppSettings) (*models.AppSettings, error)
}

type service struct {
	repo     repository
	defaults BillingSettings
}

// NewService constructs the settings service. Defaults are served when the
// row has not been seeded yet.
func NewService(repo repository, defaults BillingSettings) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo, defaults: defaults}, nil
}

func (s *service) Get(ctx context.Context) (BillingSettings, error) {
	row, err := s.repo.Get(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.defaults, nil
		}
		return BillingSettings{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
	}
	return fromModel(row), nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (BillingSettings, error) {
	current, err := s.repo.Get(ctx)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return BillingSettings{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load settings")
		}
		current = &models.AppSettings{
			TaxEnabled:    s.defaults.TaxEnabled,
			TaxRate:       s.defaults.TaxRate,
			InvoicePrefix: s.defaults.InvoicePrefix,
			OrderPrefix:   s.defaults.OrderPrefix,
			BusinessName:  s.defaults.BusinessName,
		}
	}

	if input.TaxEnabled != nil {
		current.TaxEnabled = *input.TaxEnabled
	}
	if input.TaxRate != nil {
		if input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(100)) {
			return BillingSettings{}, pkgerrors.New(pkgerrors.CodeValidation, "tax rate must be between 0 and 100")
		}
		current.TaxRate = *input.TaxRate
	}
	if input.InvoicePrefix != nil {
		prefix := strings.TrimSpace(*input.InvoicePrefix)
		if prefix == "" {
			return BillingSettings{}, pkgerrors.New(pkgerrors.CodeValidation, "invoice prefix cannot be empty")
		}
		current.InvoicePrefix = prefix
	}
	if input.OrderPrefix != nil {
		prefix := strings.TrimSpace(*input.OrderPrefix)
		if prefix == "" {
			return BillingSettings{}, pkgerrors.New(pkgerrors.CodeValidation, "order prefix cannot be empty")
		}
		current.OrderPrefix = prefix
	}
	if input.BusinessName != nil {
		current.BusinessName = strings.TrimSpace(*input.BusinessName)
	}

	saved, err := s.repo.Save(ctx, current)
	if err != nil {
		return BillingSettings{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save settings")
	}
	return fromModel(saved), nil
}

func fromModel(row *models.AppSettings) BillingSettings {
	return BillingSettings{
		TaxEnabled:    row.TaxEnabled,
		TaxRate:       row.TaxRate,
		InvoicePrefix: row.InvoicePrefix,
		OrderPrefix:   row.OrderPrefix,
		BusinessName:  row.BusinessName,
	}
}
