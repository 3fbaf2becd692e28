package sequence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/routebill/routebill-backend/pkg/errors"
)

// Repository mints monotonically increasing counter values. The increment is
// a single UPDATE ... RETURNING so concurrent callers never see the same
// value.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Next increments the named counter and returns the new value, seeding the
// row on first use.
func (r *Repository) Next(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "sequence name is required")
	}

	tx := r.db.WithContext(ctx)
	if err := tx.Exec(
		"INSERT INTO sequences (name, value) VALUES (?, 0) ON CONFLICT (name) DO NOTHING", name,
	).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("seed sequence %q", name))
	}

	var value int64
	result := tx.Raw(
		"UPDATE sequences SET value = value + 1 WHERE name = ? RETURNING value", name,
	).Scan(&value)
	if result.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, fmt.Sprintf("increment sequence %q", name))
	}
	if result.RowsAffected == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("sequence %q missing after seed", name))
	}
	return value, nil
}

// Peek returns the current counter value without incrementing it. Missing
// counters read as zero.
func (r *Repository) Peek(ctx context.Context, name string) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).
		Raw("SELECT value FROM sequences WHERE name = ?", name).
		Scan(&value).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("read sequence %q", name))
	}
	return value, nil
}
