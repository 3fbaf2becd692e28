package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/sequence"
	"github.com/routebill/routebill-backend/internal/transactions"
	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

// Service exposes customer management operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Customer, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Customer, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, routeID *uuid.UUID, params pagination.Params) ([]models.Customer, string, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TopUpBalance(ctx context.Context, actorID, customerID uuid.UUID, amount decimal.Decimal, channel enums.PaymentChannel) (*models.Customer, error)
	PayOutstanding(ctx context.Context, actorID, customerID uuid.UUID, amount decimal.Decimal, channel enums.PaymentChannel) (*models.Customer, error)
}

// CreateInput holds the validated payload to create a customer.
type CreateInput struct {
	Name    string
	Phone   *string
	Email   *string
	Address *string
	RouteID *uuid.UUID
}

// UpdateInput holds optional mutation values for a customer.
type UpdateInput struct {
	Name     *string
	Phone    *string
	Email    *string
	Address  *string
	RouteID  *uuid.UUID
	IsActive *bool
}

// txRunner is the slice of *db.Client the service needs.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo       *Repository
	runner     txRunner
	minter     *sequence.Minter
	ledger     transactions.Service
	codePrefix string
}

// NewService constructs a customer service instance.
func NewService(repo *Repository, runner txRunner, minter *sequence.Minter, ledger transactions.Service, codePrefix string) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if minter == nil {
		return nil, fmt.Errorf("sequence minter required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("transaction service required")
	}
	if codePrefix == "" {
		codePrefix = "CUST"
	}
	return &service{
		repo:       repo,
		runner:     runner,
		minter:     minter,
		ledger:     ledger,
		codePrefix: codePrefix,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name required")
	}

	var created *models.Customer
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		code, err := s.minter.WithTx(tx).NextNumber(ctx, sequence.NameCustomer, s.codePrefix)
		if err != nil {
			return err
		}
		customer := &models.Customer{
			ID:       uuid.New(),
			Code:     code,
			Name:     name,
			Phone:    input.Phone,
			Email:    input.Email,
			Address:  input.Address,
			RouteID:  input.RouteID,
			IsActive: true,
		}
		created, err = s.repo.WithTx(tx).Create(ctx, customer)
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "customer code already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert customer")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "customer")
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name cannot be empty")
		}
		customer.Name = name
	}
	if input.Phone != nil {
		customer.Phone = input.Phone
	}
	if input.Email != nil {
		customer.Email = input.Email
	}
	if input.Address != nil {
		customer.Address = input.Address
	}
	if input.RouteID != nil {
		customer.RouteID = input.RouteID
	}
	if input.IsActive != nil {
		customer.IsActive = *input.IsActive
	}

	updated, err := s.repo.Update(ctx, customer)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer")
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "customer")
	}
	return customer, nil
}

func (s *service) List(ctx context.Context, routeID *uuid.UUID, params pagination.Params) ([]models.Customer, string, error) {
	rows, next, err := s.repo.List(ctx, routeID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}
	return rows, next, nil
}

// Delete deactivates customers with billing history and removes the row
// otherwise, so ledger references always resolve.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	customer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFoundOrDependency(err, "customer")
	}

	hasHistory, err := s.repo.HasHistory(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check customer history")
	}
	if hasHistory {
		customer.IsActive = false
		if _, err := s.repo.Update(ctx, customer); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate customer")
		}
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete customer")
	}
	return nil
}

func (s *service) TopUpBalance(ctx context.Context, actorID, customerID uuid.UUID, amount decimal.Decimal, channel enums.PaymentChannel) (*models.Customer, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top-up amount must be positive")
	}
	if channel == enums.PaymentChannelBalance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store credit cannot fund its own top-up")
	}
	if !channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment channel %q", channel))
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreditBalance(ctx, customerID, amount); err != nil {
			return err
		}
		_, err := s.ledger.WithTx(tx).Record(ctx, transactions.RecordInput{
			CustomerID:  customerID,
			Type:        enums.TransactionTypeBalanceTopUp,
			Channel:     &channel,
			Amount:      amount,
			Description: "balance top-up",
			ActorUserID: actorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, customerID)
}

func (s *service) PayOutstanding(ctx context.Context, actorID, customerID uuid.UUID, amount decimal.Decimal, channel enums.PaymentChannel) (*models.Customer, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	if channel == enums.PaymentChannelBalance {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outstanding cannot be paid from store credit")
	}
	if !channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment channel %q", channel))
	}

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).ReduceOutstanding(ctx, customerID, amount); err != nil {
			return err
		}
		_, err := s.ledger.WithTx(tx).Record(ctx, transactions.RecordInput{
			CustomerID:  customerID,
			Type:        enums.TransactionTypeOutstandingPayment,
			Channel:     &channel,
			Amount:      amount,
			Description: "outstanding payment received",
			ActorUserID: actorID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, customerID)
}

func notFoundOrDependency(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
