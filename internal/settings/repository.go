package settings

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/routebill/routebill-backend/pkg/db/models"
)

const singletonID = 1

// Repository persists the singleton app settings row.
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

// Get loads the settings row.
func (r *Repository) Get(ctx context.Context) (*models.AppSettings, error) {
	var row models.AppSettings
	if err := r.db.WithContext(ctx).First(&row, "id = ?", singletonID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Save upserts the settings row, keeping the singleton primary key.
func (r *Repository) Save(ctx context.Context, row *models.AppSettings) (*models.AppSettings, error) {
	row.ID = singletonID
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}
	return row, nil
}
