package invoices

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/customers"
	"github.com/routebill/routebill-backend/internal/orders"
	"github.com/routebill/routebill-backend/internal/products"
	"github.com/routebill/routebill-backend/internal/sequence"
	"github.com/routebill/routebill-backend/internal/settings"
	"github.com/routebill/routebill-backend/internal/transactions"
	"github.com/routebill/routebill-backend/pkg/db/models"
	"github.com/routebill/routebill-backend/pkg/enums"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupInvoicesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	statements := []string{`
CREATE TABLE IF NOT EXISTS delivery_routes (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS customers (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  phone TEXT,
  email TEXT,
  address TEXT,
  route_id TEXT,
  balance NUMERIC NOT NULL DEFAULT 0,
  outstanding NUMERIC NOT NULL DEFAULT 0,
  total_orders INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  unit TEXT NOT NULL DEFAULT 'piece',
  unit_price NUMERIC NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  agent_id TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL,
  tax_amount NUMERIC NOT NULL DEFAULT 0,
  total_amount NUMERIC NOT NULL,
  payment_amount NUMERIC NOT NULL DEFAULT 0,
  cash_amount NUMERIC NOT NULL DEFAULT 0,
  upi_amount NUMERIC NOT NULL DEFAULT 0,
  balance_amount NUMERIC NOT NULL DEFAULT 0,
  payment_mode TEXT NOT NULL DEFAULT 'credit',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  notes TEXT,
  delivered_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  total_price NUMERIC NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  invoice_number TEXT NOT NULL UNIQUE,
  customer_id TEXT NOT NULL,
  order_id TEXT,
  source TEXT NOT NULL DEFAULT 'direct',
  status TEXT NOT NULL DEFAULT 'active',
  subtotal NUMERIC NOT NULL,
  tax_rate NUMERIC NOT NULL DEFAULT 0,
  tax_amount NUMERIC NOT NULL DEFAULT 0,
  total_amount NUMERIC NOT NULL,
  payment_amount NUMERIC NOT NULL DEFAULT 0,
  cash_amount NUMERIC NOT NULL DEFAULT 0,
  upi_amount NUMERIC NOT NULL DEFAULT 0,
  balance_amount NUMERIC NOT NULL DEFAULT 0,
  outstanding NUMERIC NOT NULL DEFAULT 0,
  payment_mode TEXT NOT NULL DEFAULT 'credit',
  payment_status TEXT NOT NULL DEFAULT 'pending',
  notes TEXT,
  created_by_id TEXT NOT NULL,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS invoice_items (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price NUMERIC NOT NULL,
  total_price NUMERIC NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  type TEXT NOT NULL,
  channel TEXT,
  amount NUMERIC NOT NULL,
  description TEXT NOT NULL,
  reference_number TEXT NOT NULL DEFAULT '',
  actor_user_id TEXT NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS deleted_invoices (
  id TEXT PRIMARY KEY,
  invoice_id TEXT NOT NULL,
  invoice_number TEXT NOT NULL,
  customer_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  deleted_by_id TEXT NOT NULL,
  deleted_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS app_settings (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  tax_enabled INTEGER NOT NULL DEFAULT 1,
  tax_rate NUMERIC NOT NULL DEFAULT 18,
  invoice_prefix TEXT NOT NULL DEFAULT 'INV',
  order_prefix TEXT NOT NULL DEFAULT 'ORD',
  business_name TEXT NOT NULL DEFAULT '',
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS sequences (
  name TEXT PRIMARY KEY,
  value INTEGER NOT NULL DEFAULT 0
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type invoiceHarness struct {
	svc          Service
	db           *gorm.DB
	customerRepo *customers.Repository
	orderRepo    *orders.Repository
}

func setupInvoiceService(t *testing.T) *invoiceHarness {
	t.Helper()

	db := setupInvoicesTestDB(t)
	minter, err := sequence.NewMinter(sequence.NewRepository(db), 5)
	require.NoError(t, err)
	ledger, err := transactions.NewService(transactions.NewRepository(db))
	require.NoError(t, err)
	settingsSvc, err := settings.NewService(settings.NewRepository(db), settings.BillingSettings{
		TaxEnabled:    false,
		TaxRate:       decimal.Zero,
		InvoicePrefix: "INV",
		OrderPrefix:   "ORD",
	})
	require.NoError(t, err)

	customerRepo := customers.NewRepository(db)
	orderRepo := orders.NewRepository(db)
	svc, err := NewService(
		NewRepository(db), customerRepo, orderRepo, products.NewRepository(db),
		ledger, settingsSvc, minter, gormTxRunner{db: db},
	)
	require.NoError(t, err)
	return &invoiceHarness{svc: svc, db: db, customerRepo: customerRepo, orderRepo: orderRepo}
}

func (h *invoiceHarness) newCustomer(t *testing.T, balance decimal.Decimal) *models.Customer {
	t.Helper()

	customer := &models.Customer{
		ID:       uuid.New(),
		Code:     "CUST-" + uuid.NewString()[:8],
		Name:     "Test Customer",
		Balance:  balance,
		IsActive: true,
	}
	require.NoError(t, h.db.Create(customer).Error)
	return customer
}

func (h *invoiceHarness) newProduct(t *testing.T, name string, price decimal.Decimal) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:        uuid.New(),
		Code:      "PROD-" + uuid.NewString()[:8],
		Name:      name,
		Unit:      enums.ProductUnitPiece,
		UnitPrice: price,
		IsActive:  true,
	}
	require.NoError(t, h.db.Create(product).Error)
	return product
}

func (h *invoiceHarness) newOrder(t *testing.T, customer *models.Customer, product *models.Product, qty int) *models.Order {
	t.Helper()

	total := product.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
	order := &models.Order{
		ID:          uuid.New(),
		OrderNumber: "ORD-" + uuid.NewString()[:8],
		CustomerID:  customer.ID,
		Status:      enums.OrderStatusPending,
		Subtotal:    total,
		TotalAmount: total,
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    qty,
			UnitPrice:   product.UnitPrice,
			TotalPrice:  total,
		}},
	}
	require.NoError(t, h.db.Create(order).Error)
	return order
}

func TestCreateDirectInvoice_mixedPayment(t *testing.T) {
	h := setupInvoiceService(t)
	ctx := context.Background()
	actor := uuid.New()

	customer := h.newCustomer(t, decimal.NewFromInt(100))
	product := h.newProduct(t, "Toned Milk Crate", decimal.NewFromInt(100))

	invoice, err := h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		Items:      []ItemInput{{ProductID: product.ID, Quantity: 3}},
		Payments: []PaymentInput{
			{Channel: enums.PaymentChannelCash, Amount: decimal.NewFromInt(150)},
			{Channel: enums.PaymentChannelBalance, Amount: decimal.NewFromInt(100)},
		},
		ActorID: actor,
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-00001", invoice.InvoiceNumber)
	assert.Equal(t, enums.InvoiceSourceDirect, invoice.Source)
	assert.True(t, invoice.Subtotal.Equal(decimal.NewFromInt(300)))
	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(300)))
	assert.True(t, invoice.CashAmount.Equal(decimal.NewFromInt(150)))
	assert.True(t, invoice.BalanceAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, invoice.Outstanding.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, enums.PaymentModeMixed, invoice.PaymentMode)
	assert.Equal(t, enums.PaymentStatusPartial, invoice.PaymentStatus)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, product.Name, invoice.Items[0].ProductName)

	after, err := h.customerRepo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.IsZero(), "balance is %s", after.Balance)
	assert.True(t, after.Outstanding.Equal(decimal.NewFromInt(50)), "outstanding is %s", after.Outstanding)
	assert.Equal(t, 1, after.TotalOrders)

	var ledgerRows []models.Transaction
	require.NoError(t, h.db.Where("customer_id = ?", customer.ID).Order("created_at").Find(&ledgerRows).Error)
	require.Len(t, ledgerRows, 2)
	types := map[enums.TransactionType]decimal.Decimal{}
	for _, row := range ledgerRows {
		types[row.Type] = row.Amount
	}
	assert.True(t, types[enums.TransactionTypeBalanceDeduction].Equal(decimal.NewFromInt(-100)))
	assert.True(t, types[enums.TransactionTypeOutstandingIncrease].Equal(decimal.NewFromInt(-50)))
}

func TestCreateInvoice_balanceClampedToAvailable(t *testing.T) {
	h := setupInvoiceService(t)
	ctx := context.Background()

	customer := h.newCustomer(t, decimal.NewFromInt(40))
	product := h.newProduct(t, "Curd Tub", decimal.NewFromInt(60))

	invoice, err := h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}},
		Payments:   []PaymentInput{{Channel: enums.PaymentChannelBalance, Amount: decimal.NewFromInt(500)}},
		ActorID:    uuid.New(),
	})
	require.NoError(t, err)
	assert.True(t, invoice.BalanceAmount.Equal(decimal.NewFromInt(40)), "balance amount is %s", invoice.BalanceAmount)
	assert.True(t, invoice.Outstanding.Equal(decimal.NewFromInt(20)))

	after, err := h.customerRepo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.IsZero())
}

func TestCancelInvoice_restoresCustomer(t *testing.T) {
	h := setupInvoiceService(t)
	ctx := context.Background()
	actor := uuid.New()

	customer := h.newCustomer(t, decimal.NewFromInt(100))
	product := h.newProduct(t, "Butter Block", decimal.NewFromInt(100))

	invoice, err := h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		Items:      []ItemInput{{ProductID: product.ID, Quantity: 3}},
		Payments: []PaymentInput{
			{Channel: enums.PaymentChannelCash, Amount: decimal.NewFromInt(150)},
			{Channel: enums.PaymentChannelBalance, Amount: decimal.NewFromInt(100)},
		},
		ActorID: actor,
	})
	require.NoError(t, err)

	cancelled, err := h.svc.Cancel(ctx, actor, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	after, err := h.customerRepo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(100)), "balance is %s", after.Balance)
	assert.True(t, after.Outstanding.IsZero(), "outstanding is %s", after.Outstanding)

	var count int64
	require.NoError(t, h.db.Model(&models.Transaction{}).Where("customer_id = ?", customer.ID).Count(&count).Error)
	assert.Equal(t, int64(4), count)

	// Cancelling twice must not double-refund.
	_, err = h.svc.Cancel(ctx, actor, invoice.ID)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())

	again, err := h.customerRepo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(decimal.NewFromInt(100)))
}

func TestCreateFromOrder(t *testing.T) {
	h := setupInvoiceService(t)
	ctx := context.Background()
	actor := uuid.New()

	customer := h.newCustomer(t, decimal.Zero)
	product := h.newProduct(t, "Paneer Block", decimal.NewFromInt(90))
	order := h.newOrder(t, customer, product, 2)

	invoice, err := h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		ActorID:    actor,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.InvoiceSourceOrder, invoice.Source)
	assert.True(t, invoice.Subtotal.Equal(decimal.NewFromInt(180)))
	assert.True(t, invoice.Outstanding.Equal(decimal.NewFromInt(180)))
	assert.Equal(t, enums.PaymentStatusPending, invoice.PaymentStatus)
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, product.Name, invoice.Items[0].ProductName)

	// The generated invoice copies the order's split; the customer's columns
	// moved when the order was created, not here.
	unchanged, err := h.customerRepo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.Outstanding.IsZero())

	// Fresh payments belong on the order, not the conversion.
	_, err = h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		Payments:   []PaymentInput{{Channel: enums.PaymentChannelCash, Amount: decimal.NewFromInt(180)}},
		ActorID:    actor,
	})
	require.Error(t, err)

	delivered, err := h.orderRepo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, delivered.Status)
	require.NotNil(t, delivered.DeliveredAt)

	// The order is closed now, so invoicing it again must fail.
	_, err = h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		OrderID:    &order.ID,
		ActorID:    actor,
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestDeleteInvoice_archivesAndCascades(t *testing.T) {
	h := setupInvoiceService(t)
	ctx := context.Background()
	actor := uuid.New()

	customer := h.newCustomer(t, decimal.NewFromInt(50))
	product := h.newProduct(t, "Ghee Jar", decimal.NewFromInt(250))
	order := h.newOrder(t, customer, product, 1)

	invoice, err := h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}},
		Payments:   []PaymentInput{{Channel: enums.PaymentChannelBalance, Amount: decimal.NewFromInt(50)}},
		ActorID:    actor,
	})
	require.NoError(t, err)

	// Tie the invoice to the order the way a conversion would, so delete
	// exercises the order cascade too.
	require.NoError(t, h.db.Exec(
		"UPDATE invoices SET order_id = ? WHERE id = ?", order.ID.String(), invoice.ID.String(),
	).Error)

	require.NoError(t, h.svc.Delete(ctx, actor, invoice.ID))

	_, err = h.svc.Get(ctx, invoice.ID)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())

	var itemCount int64
	require.NoError(t, h.db.Model(&models.InvoiceItem{}).Where("invoice_id = ?", invoice.ID).Count(&itemCount).Error)
	assert.Zero(t, itemCount)

	var orderCount int64
	require.NoError(t, h.db.Model(&models.Order{}).Where("id = ?", order.ID).Count(&orderCount).Error)
	assert.Zero(t, orderCount)

	archived, next, err := h.svc.ListDeleted(ctx, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Empty(t, next)
	assert.Equal(t, invoice.ID, archived[0].InvoiceID)
	assert.Equal(t, invoice.InvoiceNumber, archived[0].InvoiceNumber)
	assert.Equal(t, actor, archived[0].DeletedByID)

	// Still-active invoices get their balance effects reversed on delete.
	after, err := h.customerRepo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, after.Balance.Equal(decimal.NewFromInt(50)), "balance is %s", after.Balance)
	assert.True(t, after.Outstanding.IsZero())
}

func TestCreateInvoice_taxApplied(t *testing.T) {
	h := setupInvoiceService(t)
	ctx := context.Background()

	require.NoError(t, h.db.Exec(`
INSERT INTO app_settings (id, tax_enabled, tax_rate, invoice_prefix, order_prefix, business_name, updated_at)
VALUES (1, 1, 18, 'INV', 'ORD', '', ?)`, time.Now().UTC()).Error)

	customer := h.newCustomer(t, decimal.Zero)
	product := h.newProduct(t, "Cheese Slices", decimal.NewFromInt(100))

	invoice, err := h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}},
		ActorID:    uuid.New(),
	})
	require.NoError(t, err)
	assert.True(t, invoice.TaxAmount.Equal(decimal.NewFromInt(18)), "tax is %s", invoice.TaxAmount)
	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(118)))
	assert.Equal(t, enums.PaymentModeCredit, invoice.PaymentMode)
	assert.Equal(t, enums.PaymentStatusPending, invoice.PaymentStatus)
}

func TestCreateInvoice_validation(t *testing.T) {
	h := setupInvoiceService(t)
	ctx := context.Background()

	customer := h.newCustomer(t, decimal.Zero)
	product := h.newProduct(t, "Lassi Bottle", decimal.NewFromInt(20))

	cases := []struct {
		name  string
		input CreateInput
	}{
		{"no items", CreateInput{CustomerID: customer.ID, ActorID: uuid.New()}},
		{"zero quantity", CreateInput{
			CustomerID: customer.ID,
			Items:      []ItemInput{{ProductID: product.ID, Quantity: 0}},
			ActorID:    uuid.New(),
		}},
		{"missing actor", CreateInput{
			CustomerID: customer.ID,
			Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Create(ctx, tc.input)
			require.Error(t, err)
			appErr := pkgerrors.As(err)
			require.NotNil(t, appErr)
			assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
		})
	}

	_, err := h.svc.Create(ctx, CreateInput{
		CustomerID: customer.ID,
		Items:      []ItemInput{{ProductID: uuid.New(), Quantity: 1}},
		ActorID:    uuid.New(),
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}
