package invoices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/billing"
	"github.com/routebill/routebill-backend/internal/customers"
	"github.com/routebill/routebill-backend/internal/orders"
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

// Service reconciles invoices against customer balances. Every money-moving
// operation runs inside a single transaction so the invoice, its ledger rows,
// and the customer columns always move together.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Invoice, error)
	Cancel(ctx context.Context, actorID, invoiceID uuid.UUID) (*models.Invoice, error)
	Delete(ctx context.Context, actorID, invoiceID uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Invoice, string, error)
	ListDeleted(ctx context.Context, params pagination.Params) ([]models.DeletedInvoice, string, error)
}

// ItemInput is one requested invoice line. UnitPrice overrides the catalog
// price when set; otherwise the product's current price is snapshotted.
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

// CreateInput holds the validated payload to create an invoice. When OrderID
// is set the line items come from the order and Items must be empty.
type CreateInput struct {
	CustomerID uuid.UUID
	OrderID    *uuid.UUID
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
	orders    *orders.Repository
	products  *products.Repository
	ledger    transactions.Service
	settings  settings.Service
	minter    *sequence.Minter
	runner    txRunner
}

// NewService constructs the invoice reconciler.
func NewService(
	repo *Repository,
	customerRepo *customers.Repository,
	orderRepo *orders.Repository,
	productRepo *products.Repository,
	ledger transactions.Service,
	settingsSvc settings.Service,
	minter *sequence.Minter,
	runner txRunner,
) (Service, error) {
	switch {
	case repo == nil:
		return nil, fmt.Errorf("invoice repository required")
	case customerRepo == nil:
		return nil, fmt.Errorf("customer repository required")
	case orderRepo == nil:
		return nil, fmt.Errorf("order repository required")
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
		orders:    orderRepo,
		products:  productRepo,
		ledger:    ledger,
		settings:  settingsSvc,
		minter:    minter,
		runner:    runner,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Invoice, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	if input.OrderID != nil {
		return s.createFromOrder(ctx, input)
	}

	customer, err := s.customers.FindByID(ctx, input.CustomerID)
	if err != nil {
		return nil, notFoundOrDependency(err, "customer")
	}

	items, err := s.resolveItems(ctx, input)
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

	var created *models.Invoice
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		number, err := s.minter.WithTx(tx).NextNumber(ctx, sequence.NameInvoice, cfg.InvoicePrefix)
		if err != nil {
			return err
		}

		invoice := &models.Invoice{
			ID:            uuid.New(),
			InvoiceNumber: number,
			CustomerID:    customer.ID,
			Source:        enums.InvoiceSourceDirect,
			Status:        enums.InvoiceStatusActive,
			Subtotal:      subtotal,
			TaxRate:       cfg.TaxRate,
			TaxAmount:     taxAmount,
			TotalAmount:   grandTotal,
			PaymentAmount: settlement.TotalPaid,
			CashAmount:    settlement.Cash,
			UPIAmount:     settlement.UPI,
			BalanceAmount: settlement.Balance,
			Outstanding:   settlement.Outstanding,
			PaymentMode:   settlement.Mode,
			PaymentStatus: settlement.Status,
			Notes:         input.Notes,
			CreatedByID:   input.ActorID,
		}
		for i := range items {
			items[i].InvoiceID = invoice.ID
		}
		invoice.Items = items

		if _, err := s.repo.WithTx(tx).Create(ctx, invoice); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice number already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert invoice")
		}

		if err := s.applyCreateEffects(ctx, tx, invoice, input.ActorID); err != nil {
			return err
		}
		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// createFromOrder converts an open order into its billing document. The
// order's reconciler effects already ran when the order was created, so the
// financial split is copied verbatim and no customer column moves here.
func (s *service) createFromOrder(ctx context.Context, input CreateInput) (*models.Invoice, error) {
	if len(input.Items) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items cannot be supplied when invoicing an order")
	}
	if len(input.Payments) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payments are recorded on the order, not the generated invoice")
	}

	order, err := s.orders.FindByID(ctx, *input.OrderID)
	if err != nil {
		return nil, notFoundOrDependency(err, "order")
	}
	if order.CustomerID != input.CustomerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order belongs to a different customer")
	}
	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not open for invoicing").
			WithDetails(map[string]any{"order_id": order.ID.String(), "status": order.Status.String()})
	}
	if len(order.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}

	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	var created *models.Invoice
	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		number, err := s.minter.WithTx(tx).NextNumber(ctx, sequence.NameInvoice, cfg.InvoicePrefix)
		if err != nil {
			return err
		}

		invoice := &models.Invoice{
			ID:            uuid.New(),
			InvoiceNumber: number,
			CustomerID:    order.CustomerID,
			OrderID:       &order.ID,
			Source:        enums.InvoiceSourceOrder,
			Status:        enums.InvoiceStatusActive,
			Subtotal:      order.Subtotal,
			TaxRate:       taxRateFrom(order),
			TaxAmount:     order.TaxAmount,
			TotalAmount:   order.TotalAmount,
			PaymentAmount: order.PaymentAmount,
			CashAmount:    order.CashAmount,
			UPIAmount:     order.UPIAmount,
			BalanceAmount: order.BalanceAmount,
			Outstanding:   order.TotalAmount.Sub(order.PaymentAmount),
			PaymentMode:   order.PaymentMode,
			PaymentStatus: order.PaymentStatus,
			Notes:         input.Notes,
			CreatedByID:   input.ActorID,
		}
		items := make([]models.InvoiceItem, len(order.Items))
		for i, line := range order.Items {
			items[i] = models.InvoiceItem{
				ID:          uuid.New(),
				InvoiceID:   invoice.ID,
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				TotalPrice:  line.TotalPrice,
			}
		}
		invoice.Items = items

		if _, err := s.repo.WithTx(tx).Create(ctx, invoice); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "invoice number already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert invoice")
		}
		if err := s.orders.WithTx(tx).MarkDelivered(ctx, order.ID, time.Now().UTC()); err != nil {
			return err
		}
		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// taxRateFrom recovers the effective rate the order was billed at.
func taxRateFrom(order *models.Order) decimal.Decimal {
	if order.Subtotal.IsZero() || order.TaxAmount.IsZero() {
		return decimal.Zero
	}
	return order.TaxAmount.Mul(decimal.NewFromInt(100)).Div(order.Subtotal).Round(2)
}

// applyCreateEffects moves the customer columns and writes matching ledger
// rows. Amounts are signed from the customer's point of view: both the credit
// spend and the new debt are negative events.
func (s *service) applyCreateEffects(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, actorID uuid.UUID) error {
	customerRepo := s.customers.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	if invoice.BalanceAmount.IsPositive() {
		if err := customerRepo.DeductBalance(ctx, invoice.CustomerID, invoice.BalanceAmount); err != nil {
			return err
		}
		channel := enums.PaymentChannelBalance
		if _, err := ledger.Record(ctx, transactions.RecordInput{
			CustomerID:      invoice.CustomerID,
			Type:            enums.TransactionTypeBalanceDeduction,
			Channel:         &channel,
			Amount:          invoice.BalanceAmount.Neg(),
			Description:     "store credit applied to " + invoice.InvoiceNumber,
			ReferenceNumber: invoice.InvoiceNumber,
			ActorUserID:     actorID,
		}); err != nil {
			return err
		}
	}

	if invoice.Outstanding.IsPositive() {
		if err := customerRepo.IncreaseOutstanding(ctx, invoice.CustomerID, invoice.Outstanding); err != nil {
			return err
		}
		if _, err := ledger.Record(ctx, transactions.RecordInput{
			CustomerID:      invoice.CustomerID,
			Type:            enums.TransactionTypeOutstandingIncrease,
			Amount:          invoice.Outstanding.Neg(),
			Description:     "credit extended on " + invoice.InvoiceNumber,
			ReferenceNumber: invoice.InvoiceNumber,
			ActorUserID:     actorID,
		}); err != nil {
			return err
		}
	}

	return customerRepo.IncrementTotalOrders(ctx, invoice.CustomerID, 1)
}

// applyReversalEffects undoes what applyCreateEffects did: the spent credit
// comes back and the extended debt is retired.
func (s *service) applyReversalEffects(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, actorID uuid.UUID) error {
	customerRepo := s.customers.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	if invoice.BalanceAmount.IsPositive() {
		if err := customerRepo.CreditBalance(ctx, invoice.CustomerID, invoice.BalanceAmount); err != nil {
			return err
		}
		channel := enums.PaymentChannelBalance
		if _, err := ledger.Record(ctx, transactions.RecordInput{
			CustomerID:      invoice.CustomerID,
			Type:            enums.TransactionTypeBalanceRefund,
			Channel:         &channel,
			Amount:          invoice.BalanceAmount,
			Description:     "store credit refunded for " + invoice.InvoiceNumber,
			ReferenceNumber: invoice.InvoiceNumber,
			ActorUserID:     actorID,
		}); err != nil {
			return err
		}
	}

	if invoice.Outstanding.IsPositive() {
		if err := customerRepo.ReduceOutstanding(ctx, invoice.CustomerID, invoice.Outstanding); err != nil {
			return err
		}
		if _, err := ledger.Record(ctx, transactions.RecordInput{
			CustomerID:      invoice.CustomerID,
			Type:            enums.TransactionTypeOutstandingReversal,
			Amount:          invoice.Outstanding,
			Description:     "credit reversed for " + invoice.InvoiceNumber,
			ReferenceNumber: invoice.InvoiceNumber,
			ActorUserID:     actorID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) Cancel(ctx context.Context, actorID, invoiceID uuid.UUID) (*models.Invoice, error) {
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, notFoundOrDependency(err, "invoice")
	}

	err = s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).MarkCancelled(ctx, invoice.ID, time.Now().UTC()); err != nil {
			return err
		}
		return s.applyReversalEffects(ctx, tx, invoice, actorID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, invoiceID)
}

// Delete archives the invoice payload, reverses its effects when still
// active, and cascades the line items plus the originating order.
func (s *service) Delete(ctx context.Context, actorID, invoiceID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor id required")
	}
	invoice, err := s.repo.FindByID(ctx, invoiceID)
	if err != nil {
		return notFoundOrDependency(err, "invoice")
	}

	payload, err := json.Marshal(invoice)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal invoice payload")
	}

	return s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Archive(ctx, &models.DeletedInvoice{
			ID:            uuid.New(),
			InvoiceID:     invoice.ID,
			InvoiceNumber: invoice.InvoiceNumber,
			CustomerID:    invoice.CustomerID,
			Payload:       payload,
			DeletedByID:   actorID,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive invoice")
		}

		if invoice.Status == enums.InvoiceStatusActive {
			if err := s.applyReversalEffects(ctx, tx, invoice, actorID); err != nil {
				return err
			}
		}

		if err := repo.DeleteCascade(ctx, invoice.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete invoice")
		}
		if invoice.OrderID != nil {
			if err := s.orders.WithTx(tx).DeleteCascade(ctx, *invoice.OrderID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete source order")
			}
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOrDependency(err, "invoice")
	}
	return invoice, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Invoice, string, error) {
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	return rows, next, nil
}

func (s *service) ListDeleted(ctx context.Context, params pagination.Params) ([]models.DeletedInvoice, string, error) {
	rows, next, err := s.repo.ListDeleted(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list deleted invoices")
	}
	return rows, next, nil
}

// resolveItems snapshots invoice lines from the product catalog.
func (s *service) resolveItems(ctx context.Context, input CreateInput) ([]models.InvoiceItem, error) {
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invoice requires at least one item")
	}

	ids := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
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

	items := make([]models.InvoiceItem, len(input.Items))
	for i, item := range input.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		unitPrice := product.UnitPrice
		if item.UnitPrice != nil {
			unitPrice = item.UnitPrice.Round(2)
		}
		items[i] = models.InvoiceItem{
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
