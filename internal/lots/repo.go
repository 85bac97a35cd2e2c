package lots

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
)

// stateDisplayOrder sorts listings the way the pickup desk reads them:
// actionable states first, closed states last.
const stateDisplayOrder = `CASE state
WHEN 'pending' THEN 0
WHEN 'accepted' THEN 1
WHEN 'for_sale' THEN 2
WHEN 'rejected' THEN 3
WHEN 'sold_out' THEN 4
ELSE 5 END`

// Repository persists product lots.
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

// FindByID loads the lot without locking.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ProductLot, error) {
	var lot models.ProductLot
	if err := r.db.WithContext(ctx).First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

// FindByIDForUpdate loads the lot under a row lock. Must run inside a
// transaction; the lock is held until it commits or rolls back.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.ProductLot, error) {
	var lot models.ProductLot
	if err := r.lockingQuery(ctx).First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

// FindManyForUpdate loads several lots under row locks, always in ascending
// ID order so concurrent multi-lot transactions cannot deadlock each other.
func (r *Repository) FindManyForUpdate(ctx context.Context, ids []uuid.UUID) ([]*models.ProductLot, error) {
	ordered := make([]uuid.UUID, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	lots := make([]*models.ProductLot, 0, len(ordered))
	for _, id := range ordered {
		lot, err := r.FindByIDForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, nil
}

func (r *Repository) lockingQuery(ctx context.Context) *gorm.DB {
	tx := r.db.WithContext(ctx)
	// sqlite (tests) locks the whole database per write transaction and
	// rejects FOR UPDATE syntax.
	if r.db.Dialector.Name() == "postgres" {
		tx = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// ListOrderedByState returns every lot grouped by state in display order,
// newest proposals first within each group.
func (r *Repository) ListOrderedByState(ctx context.Context) ([]models.ProductLot, error) {
	var lots []models.ProductLot
	err := r.db.WithContext(ctx).
		Order(stateDisplayOrder).
		Order("proposal_date DESC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// ListByState returns lots in the given state, newest availability first.
func (r *Repository) ListByState(ctx context.Context, state enums.LotState) ([]models.ProductLot, error) {
	var lots []models.ProductLot
	err := r.db.WithContext(ctx).
		Where("state = ?", state).
		Order("availability_date DESC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// ListRecentForSale returns the most recently received lots on sale, capped
// at limit. Receipt date is stamped when the lot first goes on sale, so it
// tracks when stock actually hit the shelf.
func (r *Repository) ListRecentForSale(ctx context.Context, limit int) ([]models.ProductLot, error) {
	var lots []models.ProductLot
	err := r.db.WithContext(ctx).
		Where("state = ?", enums.LotStateForSale).
		Order("receipt_date DESC").
		Limit(limit).
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// ListByProducer returns every lot the producer has proposed.
func (r *Repository) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.ProductLot, error) {
	var lots []models.ProductLot
	err := r.db.WithContext(ctx).
		Where("producer_id = ?", producerID).
		Order("proposal_date DESC").
		Find(&lots).Error
	if err != nil {
		return nil, err
	}
	return lots, nil
}

// Create inserts the lot.
func (r *Repository) Create(ctx context.Context, lot *models.ProductLot) (*models.ProductLot, error) {
	if err := r.db.WithContext(ctx).Create(lot).Error; err != nil {
		return nil, err
	}
	return lot, nil
}

// Save persists all columns of an already-loaded lot.
func (r *Repository) Save(ctx context.Context, lot *models.ProductLot) error {
	return r.db.WithContext(ctx).Save(lot).Error
}
