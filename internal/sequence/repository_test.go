package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupSequenceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`
CREATE TABLE IF NOT EXISTS sequences (
  name TEXT PRIMARY KEY,
  value INTEGER NOT NULL DEFAULT 0
);`).Error)
	return db
}

func TestNextSeedsAndIncrements(t *testing.T) {
	db := setupSequenceTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first, err := repo.Next(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := repo.Next(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)

	other, err := repo.Next(ctx, "order")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	current, err := repo.Peek(ctx, "invoice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), current)
}

func TestNextUniqueUnderConcurrency(t *testing.T) {
	db := setupSequenceTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	const workers = 20
	values := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := repo.Next(ctx, "invoice")
			assert.NoError(t, err)
			values <- value
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool, workers)
	for value := range values {
		assert.False(t, seen[value], "duplicate sequence value %d", value)
		seen[value] = true
	}
	assert.Len(t, seen, workers)
}

func TestNextRejectsEmptyName(t *testing.T) {
	db := setupSequenceTestDB(t)
	repo := NewRepository(db)

	_, err := repo.Next(context.Background(), "")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "INV-00042", Format("INV", 5, 42))
	assert.Equal(t, "00007", Format("", 5, 7))
	assert.Equal(t, "CUST-00100", Format(" CUST ", 5, 100))
}

func TestMinterNextNumber(t *testing.T) {
	db := setupSequenceTestDB(t)
	minter, err := NewMinter(NewRepository(db), 5)
	require.NoError(t, err)

	number, err := minter.NextNumber(context.Background(), NameInvoice, "INV")
	require.NoError(t, err)
	assert.Equal(t, "INV-00001", number)
}
