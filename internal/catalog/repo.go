package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/pkg/db/models"
)

// Repository persists the product catalog: types, products and producers.
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

// FindProductByID loads the product.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProductByLabel matches the label case-insensitively.
func (r *Repository) FindProductByLabel(ctx context.Context, label string) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "LOWER(label) = LOWER(?)", label).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns the catalog ordered by label.
func (r *Repository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Order("label ASC").Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListProductsByType returns products in one catalog grouping.
func (r *Repository) ListProductsByType(ctx context.Context, typeID uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).
		Where("type_id = ?", typeID).
		Order("label ASC").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct inserts the product.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// FindTypeByID loads the product type.
func (r *Repository) FindTypeByID(ctx context.Context, id uuid.UUID) (*models.ProductType, error) {
	var typ models.ProductType
	if err := r.db.WithContext(ctx).First(&typ, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &typ, nil
}

// FindTypeByLabel matches the label case-insensitively.
func (r *Repository) FindTypeByLabel(ctx context.Context, label string) (*models.ProductType, error) {
	var typ models.ProductType
	if err := r.db.WithContext(ctx).First(&typ, "LOWER(label) = LOWER(?)", label).Error; err != nil {
		return nil, err
	}
	return &typ, nil
}

// ListTypes returns every product type ordered by label.
func (r *Repository) ListTypes(ctx context.Context) ([]models.ProductType, error) {
	var types []models.ProductType
	if err := r.db.WithContext(ctx).Order("label ASC").Find(&types).Error; err != nil {
		return nil, err
	}
	return types, nil
}

// CreateType inserts the product type.
func (r *Repository) CreateType(ctx context.Context, typ *models.ProductType) (*models.ProductType, error) {
	if err := r.db.WithContext(ctx).Create(typ).Error; err != nil {
		return nil, err
	}
	return typ, nil
}

// FindProducerByID loads the producer.
func (r *Repository) FindProducerByID(ctx context.Context, id uuid.UUID) (*models.Producer, error) {
	var producer models.Producer
	if err := r.db.WithContext(ctx).First(&producer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &producer, nil
}

// FindProducerByUserID loads the producer profile bound to a user account.
func (r *Repository) FindProducerByUserID(ctx context.Context, userID uuid.UUID) (*models.Producer, error) {
	var producer models.Producer
	if err := r.db.WithContext(ctx).First(&producer, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &producer, nil
}

// CreateProducer inserts the producer profile.
func (r *Repository) CreateProducer(ctx context.Context, producer *models.Producer) (*models.Producer, error) {
	if err := r.db.WithContext(ctx).Create(producer).Error; err != nil {
		return nil, err
	}
	return producer, nil
}
