package customers

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

	"github.com/routebill/routebill-backend/pkg/db/models"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

func setupCustomersTestDB(t *testing.T) *gorm.DB {
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
CREATE TABLE IF NOT EXISTS invoices (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newCustomer(t *testing.T, db *gorm.DB, code string, created time.Time, routeID *uuid.UUID) *models.Customer {
	t.Helper()

	customer := &models.Customer{
		ID:        uuid.New(),
		Code:      code,
		Name:      "Customer " + code,
		RouteID:   routeID,
		IsActive:  true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	require.NoError(t, db.Create(customer).Error)
	return customer
}

func TestRepositoryDeductBalance_guard(t *testing.T) {
	db := setupCustomersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newCustomer(t, db, "CUST-00001", time.Now().UTC(), nil)
	require.NoError(t, repo.CreditBalance(ctx, customer.ID, decimal.NewFromInt(100)))

	require.NoError(t, repo.DeductBalance(ctx, customer.ID, decimal.NewFromInt(60)))

	err := repo.DeductBalance(ctx, customer.ID, decimal.NewFromInt(60))
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	loaded, err := repo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Balance.Equal(decimal.NewFromInt(40)), "balance is %s", loaded.Balance)
}

func TestRepositoryCreditBalance_missingCustomer(t *testing.T) {
	db := setupCustomersTestDB(t)
	repo := NewRepository(db)

	err := repo.CreditBalance(context.Background(), uuid.New(), decimal.NewFromInt(10))
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestRepositoryReduceOutstanding_guard(t *testing.T) {
	db := setupCustomersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newCustomer(t, db, "CUST-00002", time.Now().UTC(), nil)
	require.NoError(t, repo.IncreaseOutstanding(ctx, customer.ID, decimal.NewFromInt(75)))

	err := repo.ReduceOutstanding(ctx, customer.ID, decimal.NewFromInt(100))
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())

	require.NoError(t, repo.ReduceOutstanding(ctx, customer.ID, decimal.NewFromInt(75)))

	loaded, err := repo.FindByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Outstanding.IsZero(), "outstanding is %s", loaded.Outstanding)
}

func TestRepositoryList_paginationAndRouteFilter(t *testing.T) {
	db := setupCustomersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	routeID := uuid.New()
	require.NoError(t, db.Create(&models.DeliveryRoute{
		ID:       routeID,
		Code:     "RT-00001",
		Name:     "North Beat",
		IsActive: true,
	}).Error)

	now := time.Now().UTC()
	newCustomer(t, db, "CUST-00010", now.Add(-2*time.Hour), &routeID)
	newCustomer(t, db, "CUST-00011", now.Add(-time.Hour), &routeID)
	newCustomer(t, db, "CUST-00012", now, nil)

	page, next, err := repo.List(ctx, nil, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "CUST-00012", page[0].Code)
	assert.Equal(t, "CUST-00011", page[1].Code)
	require.NotEmpty(t, next)

	rest, last, err := repo.List(ctx, nil, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "CUST-00010", rest[0].Code)
	assert.Empty(t, last)

	onRoute, _, err := repo.List(ctx, &routeID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, onRoute, 2)
}

func TestRepositoryHasHistory(t *testing.T) {
	db := setupCustomersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	customer := newCustomer(t, db, "CUST-00020", time.Now().UTC(), nil)

	hasHistory, err := repo.HasHistory(ctx, customer.ID)
	require.NoError(t, err)
	assert.False(t, hasHistory)

	require.NoError(t, db.Exec(
		"INSERT INTO invoices (id, customer_id) VALUES (?, ?)", uuid.NewString(), customer.ID.String(),
	).Error)

	hasHistory, err = repo.HasHistory(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, hasHistory)
}
