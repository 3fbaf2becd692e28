package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/billing"
	"github.com/routebill/routebill-backend/internal/customers"
	"github.com/routebill/routebill-backend/internal/products"
	"github.com/routebill/routebill-backend/internal/sequence"
	"github.com/routebill/routebill-backend/internal/settings"
	"github.com/routebill/routebill-backend/internal/transactions"
	"github.com/routebill/routebill-backend/pkg/db"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

// Service manages the order lifecycle. Creation runs the same reconciler as
// direct invoices; converting the order to an invoice later copies the split
// instead of re-applying it.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, actorID, orderID uuid.UUID) (*models.Order, error)
	AssignAgent(ctx context.Context, orderID uuid.UUID, agentID *uuid.UUID) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, string, error)
}

// ItemInput is one requested order line. UnitPrice overrides the catalog
// price when set.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice *decimal.Decimal
}

// PaymentInput is one payment row keyed by channel.
type PaymentInput struct {
	Channel enums.PaymentChannel
	Amount  decimal.Decimal
}

// CreateInput holds the validated payload to create an order. Payments are
// optional; an unpaid order is extended on credit.
type CreateInput struct {
	CustomerID uuid.UUID
	AgentID    *uuid.UUID
	Items      []ItemInput
	Payments   []PaymentInput
	Notes      *string
	ActorID    uuid.UUID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo      *Repository
	customers *customers.Repository
	products  *products.Repository
	ledger    transactions.Service
	settings  settings.Service
	minter    *sequence.Minter
	runner    txRunner
}

// NewService constructs the order service.
func NewService(
	repo *Repository,
	customerRepo *customers.Repository,
	productRepo *products.Repository,
	ledger transactions.Service,
	settingsSvc settings.Service,
	minter *sequence.Minter,
	runner txRunner,
) (Service, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("order repository required")
	case customerRepo == nil:
		return nil, fmt.Errorf("customer repository required")
	case productRepo == nil:
		return nil, fmt.Errorf("product repository required")
	case ledger == nil:
		return nil, fmt.Errorf("transaction service required")
	case settingsSvc == nil:
		return nil, fmt.Errorf("settings service required")
	case minter == nil:
		return nil, fmt.Errorf("sequence minter required")
	case runner == nil:
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      repo,
		customers: customerRepo,
		products:  productRepo,
		ledger:    ledger,
		settings:  settingsSvc,
		minter:    minter,
		runner:    runner,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}

	customer, err := s.customers.FindByID(ctx, input.CustomerID)
	if err != nil {
		return nil, notFoundOrDependency(err, "customer")
	}

	items, err := s.resolveItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	lines := make([]billing.LineItem, len(items))
	for i, item := range items {
		lines[i] = billing.LineItem{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	subtotal, err := billing.Aggregate(lines)
	if err != nil {
		return nil, err
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	taxAmount := billing.Tax(subtotal, cfg.Tax())
	grandTotal := subtotal.Add(taxAmount)

	splitter, err := billing.NewSplitter(grandTotal, customer.Balance)
	if err != nil {
		return nil, err
	}
	for _, payment := range input.Payments {
		if _, err := splitter.Add(payment.Channel, payment.Amount); err != nil {
			return nil, err
		}
	}
	settlement, err := splitter.Finalize()
	if err != nil {
		return nil, err
	}

	var created *models.Order
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		number, err := s.minter.WithTx(tx).NextNumber(ctx, sequence.NameOrder, cfg.OrderPrefix)
		if err != nil {
			return err
		}

		order := &models.Order{
			ID:            uuid.New(),
			OrderNumber:   number,
			CustomerID:    customer.ID,
			AgentID:       input.AgentID,
			Status:        enums.OrderStatusPending,
			Subtotal:      subtotal,
			TaxAmount:     taxAmount,
			TotalAmount:   grandTotal,
			PaymentAmount: settlement.TotalPaid,
			CashAmount:    settlement.Cash,
			UPIAmount:     settlement.UPI,
			BalanceAmount: settlement.Balance,
			PaymentMode:   settlement.Mode,
			PaymentStatus: settlement.Status,
			Notes:         input.Notes,
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		order.Items = items

		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order number already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}

		if err := s.applyCreateEffects(ctx, tx, order, settlement.Outstanding, input.ActorID); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) applyCreateEffects(ctx context.Context, tx *gorm.DB, order *models.Order, outstanding decimal.Decimal, actorID uuid.UUID) error {
	customerRepo := s.customers.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	if order.BalanceAmount.IsPositive() {
		if err := customerRepo.DeductBalance(ctx, order.CustomerID, order.BalanceAmount); err != nil {
			return err
		}
		channel := enums.PaymentChannelBalance
		if _, err := ledger.Record(ctx, transactions.RecordInput{
			CustomerID:      order.CustomerID,
			Type:            enums.TransactionTypeBalanceDeduction,
			Channel:         &channel,
			Amount:          order.BalanceAmount.Neg(),
			Description:     "store credit applied to " + order.OrderNumber,
			ReferenceNumber: order.OrderNumber,
			ActorUserID:     actorID,
		}); err != nil {
			return err
		}
	}

	if outstanding.IsPositive() {
		if err := customerRepo.IncreaseOutstanding(ctx, order.CustomerID, outstanding); err != nil {
			return err
		}
		if _, err := ledger.Record(ctx, transactions.RecordInput{
			CustomerID:      order.CustomerID,
			Type:            enums.TransactionTypeOutstandingIncrease,
			Amount:          outstanding.Neg(),
			Description:     "credit extended on " + order.OrderNumber,
			ReferenceNumber: order.OrderNumber,
			ActorUserID:     actorID,
		}); err != nil {
			return err
		}
	}

	return customerRepo.IncrementTotalOrders(ctx, order.CustomerID, 1)
}

func (s *service) MarkProcessing(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if err := s.repo.MarkProcessing(ctx, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Cancel closes an open order and reverses its reconciler effects.
func (s *service) Cancel(ctx context.Context, actorID, orderID uuid.UUID) (*models.Order, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOrDependency(err, "order")
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkCancelled(ctx, order.ID, time.Now().UTC()); err != nil {
			return err
		}

		customerRepo := s.customers.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		if order.BalanceAmount.IsPositive() {
			if err := customerRepo.CreditBalance(ctx, order.CustomerID, order.BalanceAmount); err != nil {
				return err
			}
			channel := enums.PaymentChannelBalance
			if _, err := ledger.Record(ctx, transactions.RecordInput{
				CustomerID:      order.CustomerID,
				Type:            enums.TransactionTypeBalanceRefund,
				Channel:         &channel,
				Amount:          order.BalanceAmount,
				Description:     "store credit refunded for " + order.OrderNumber,
				ReferenceNumber: order.OrderNumber,
				ActorUserID:     actorID,
			}); err != nil {
				return err
			}
		}

		outstanding := order.TotalAmount.Sub(order.PaymentAmount)
		if outstanding.IsPositive() {
			if err := customerRepo.ReduceOutstanding(ctx, order.CustomerID, outstanding); err != nil {
				return err
			}
			if _, err := ledger.Record(ctx, transactions.RecordInput{
				CustomerID:      order.CustomerID,
				Type:            enums.TransactionTypeOutstandingReversal,
				Amount:          outstanding,
				Description:     "credit reversed for " + order.OrderNumber,
				ReferenceNumber: order.OrderNumber,
				ActorUserID:     actorID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func (s *service) AssignAgent(ctx context.Context, orderID uuid.UUID, agentID *uuid.UUID) (*models.Order, error) {
	if err := s.repo.AssignAgent(ctx, orderID, agentID); err != nil {
		return nil, err
	}
	return s.Get(ctx, orderID)
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, string, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, next, nil
}

// resolveItems snapshots order lines from the product catalog.
func (s *service) resolveItems(ctx context.Context, inputs []ItemInput) ([]models.OrderItem, error) {
	if len(inputs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order requires at least one item")
	}

	ids := make([]uuid.UUID, 0, len(inputs))
	for _, item := range inputs {
		ids = append(ids, item.ProductID)
	}
	catalog, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(catalog))
	for _, product := range catalog {
		byID[product.ID] = product
	}

	items := make([]models.OrderItem, len(inputs))
	for i, item := range inputs {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		unitPrice := product.UnitPrice
		if item.UnitPrice != nil {
			unitPrice = item.UnitPrice.Round(2)
		}
		items[i] = models.OrderItem{
			ID:          uuid.New(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   unitPrice,
			TotalPrice:  unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2),
		}
	}
	return items, nil
}

func notFoundOrDependency(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
	}
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+entity)
}
