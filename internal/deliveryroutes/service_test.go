package deliveryroutes

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/routebill/routebill-backend/internal/sequence"
	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
	"github.com/routebill/routebill-backend/pkg/pagination"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupRouteService(t *testing.T) (Service, *gorm.DB) {
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
  route_id TEXT
);`, `
CREATE TABLE IF NOT EXISTS route_assignments (
  id TEXT PRIMARY KEY,
  route_id TEXT NOT NULL
);`, `
CREATE TABLE IF NOT EXISTS sequences (
  name TEXT PRIMARY KEY,
  value INTEGER NOT NULL DEFAULT 0
);`}
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error)
	}

	minter, err := sequence.NewMinter(sequence.NewRepository(db), 5)
	require.NoError(t, err)
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, minter, "RT")
	require.NoError(t, err)
	return svc, db
}

func TestServiceCreate_mintsCode(t *testing.T) {
	svc, _ := setupRouteService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Name: "North Beat"})
	require.NoError(t, err)
	assert.Equal(t, "RT-00001", first.Code)
	assert.True(t, first.IsActive)

	second, err := svc.Create(ctx, CreateInput{Name: "South Beat"})
	require.NoError(t, err)
	assert.Equal(t, "RT-00002", second.Code)

	_, err = svc.Create(ctx, CreateInput{Name: " "})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestServiceDelete_deactivatesWhenReferenced(t *testing.T) {
	svc, db := setupRouteService(t)
	ctx := context.Background()

	referenced, err := svc.Create(ctx, CreateInput{Name: "Busy Beat"})
	require.NoError(t, err)
	require.NoError(t, db.Exec(
		"INSERT INTO customers (id, route_id) VALUES (?, ?)", uuid.NewString(), referenced.ID.String(),
	).Error)

	empty, err := svc.Create(ctx, CreateInput{Name: "Empty Beat"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, referenced.ID))
	kept, err := svc.Get(ctx, referenced.ID)
	require.NoError(t, err)
	assert.False(t, kept.IsActive)

	require.NoError(t, svc.Delete(ctx, empty.ID))
	_, err = svc.Get(ctx, empty.ID)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestServiceUpdate(t *testing.T) {
	svc, _ := setupRouteService(t)
	ctx := context.Background()

	route, err := svc.Create(ctx, CreateInput{Name: "Old Beat"})
	require.NoError(t, err)

	name := "Renamed Beat"
	desc := "Covers the market road shops"
	updated, err := svc.Update(ctx, route.ID, UpdateInput{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Beat", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)

	_, err = svc.Update(ctx, uuid.New(), UpdateInput{Name: &name})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestServiceList(t *testing.T) {
	svc, _ := setupRouteService(t)
	ctx := context.Background()

	for _, name := range []string{"Beat A", "Beat B", "Beat C"} {
		_, err := svc.Create(ctx, CreateInput{Name: name})
		require.NoError(t, err)
	}

	page, next, err := svc.List(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.NotEmpty(t, next)

	rest, last, err := svc.List(ctx, pagination.Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
	assert.Empty(t, last)
}
