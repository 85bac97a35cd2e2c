package opensales

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/pkg/db/models"
)

// Repository persists open sales and their lot lines.
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

// FindByID loads the open sale.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OpenSale, error) {
	var sale models.OpenSale
	if err := r.db.WithContext(ctx).First(&sale, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

// ListAll returns every open sale, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]models.OpenSale, error) {
	var sales []models.OpenSale
	err := r.db.WithContext(ctx).
		Order("open_sale_date DESC").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// Lines returns the lot lines of one open sale.
func (r *Repository) Lines(ctx context.Context, saleID uuid.UUID) ([]models.ProductOpenSale, error) {
	var lines []models.ProductOpenSale
	err := r.db.WithContext(ctx).
		Where("open_sale_id = ?", saleID).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

// Create inserts the open sale header.
func (r *Repository) Create(ctx context.Context, sale *models.OpenSale) (*models.OpenSale, error) {
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

// CreateLines inserts the lot lines.
func (r *Repository) CreateLines(ctx context.Context, lines []models.ProductOpenSale) error {
	if len(lines) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&lines).Error
}
