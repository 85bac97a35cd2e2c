package lots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/pkg/auth"
	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
	"github.com/terroirco/farmlot-backend/pkg/metrics"
)

const recentLotLimit = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lotRepository interface {
	WithTx(tx *gorm.DB) *Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductLot, error)
	ListOrderedByState(ctx context.Context) ([]models.ProductLot, error)
	ListByState(ctx context.Context, state enums.LotState) ([]models.ProductLot, error)
	ListRecentForSale(ctx context.Context, limit int) ([]models.ProductLot, error)
	ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.ProductLot, error)
	Create(ctx context.Context, lot *models.ProductLot) (*models.ProductLot, error)
}

type catalogDirectory interface {
	FindProducerByUserID(ctx context.Context, userID uuid.UUID) (*models.Producer, error)
	EnsureProduct(ctx context.Context, label, description, unit, typeLabel string) (*models.Product, error)
}

// Service exposes lot lifecycle operations.
type Service interface {
	List(ctx context.Context, actor auth.Actor) ([]models.ProductLot, error)
	Catalog(ctx context.Context) ([]models.ProductLot, error)
	Recent(ctx context.Context) ([]models.ProductLot, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.ProductLot, error)
	Propose(ctx context.Context, actor auth.Actor, input ProposeInput) (*models.ProductLot, error)
	UpdateState(ctx context.Context, actor auth.Actor, id uuid.UUID, target enums.LotState) (*models.ProductLot, error)
	DecreaseQuantity(ctx context.Context, actor auth.Actor, id uuid.UUID, qty int) (*models.ProductLot, error)
}

// ProposeInput carries a producer's lot proposal. The product is named by
// label; unknown labels create a catalog entry on the fly, which needs the
// description, unit and type label filled in.
type ProposeInput struct {
	ProductLabel       string
	ProductDescription string
	Unit               string
	TypeLabel          string

	UnitPrice        decimal.Decimal
	Quantity         int
	AvailabilityDate time.Time
}

type service struct {
	tx      txRunner
	repo    lotRepository
	catalog catalogDirectory
	metrics *metrics.AllocationMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the lot service.
func NewService(
	tx txRunner,
	repo lotRepository,
	catalogDir catalogDirectory,
	allocMetrics *metrics.AllocationMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	if catalogDir == nil {
		return nil, fmt.Errorf("catalog directory required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		catalog: catalogDir,
		metrics: allocMetrics,
		logg:    logg,
		now:     time.Now,
	}, nil
}

// List returns the lots the actor may see: staff get the full board grouped
// by state, producers their own proposals, customers the live catalog.
func (s *service) List(ctx context.Context, actor auth.Actor) ([]models.ProductLot, error) {
	switch {
	case actor.Role.IsStaff():
		return s.repo.ListOrderedByState(ctx)
	case actor.Role == enums.UserRoleProducer:
		producer, err := s.catalog.FindProducerByUserID(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		return s.repo.ListByProducer(ctx, producer.ID)
	default:
		return s.repo.ListByState(ctx, enums.LotStateForSale)
	}
}

// Catalog returns every lot currently on sale. Public.
func (s *service) Catalog(ctx context.Context) ([]models.ProductLot, error) {
	return s.repo.ListByState(ctx, enums.LotStateForSale)
}

// Recent returns the newest lots on sale for the storefront banner.
func (s *service) Recent(ctx context.Context) ([]models.ProductLot, error) {
	return s.repo.ListRecentForSale(ctx, recentLotLimit)
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.ProductLot, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot id required")
	}
	lot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateLookupErr(err)
	}
	if err := s.authorizeRead(ctx, actor, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// authorizeRead hides lots the actor has no business seeing. Customers get
// NotFound rather than Forbidden so unsold proposals stay invisible.
func (s *service) authorizeRead(ctx context.Context, actor auth.Actor, lot *models.ProductLot) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.Role == enums.UserRoleProducer {
		producer, err := s.catalog.FindProducerByUserID(ctx, actor.UserID)
		if err == nil && producer.ID == lot.ProducerID {
			return nil
		}
	}
	if lot.State == enums.LotStateForSale || lot.State == enums.LotStateSoldOut {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
}

func (s *service) Propose(ctx context.Context, actor auth.Actor, input ProposeInput) (*models.ProductLot, error) {
	if actor.Role != enums.UserRoleProducer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only producers may propose lots")
	}
	if input.ProductLabel == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product label required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.UnitPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
	}
	if input.AvailabilityDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "availability date required")
	}

	producer, err := s.catalog.FindProducerByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "no producer profile for user")
		}
		return nil, err
	}

	product, err := s.catalog.EnsureProduct(ctx,
		input.ProductLabel, input.ProductDescription, input.Unit, input.TypeLabel)
	if err != nil {
		return nil, err
	}

	lot := &models.ProductLot{
		ProductID:         product.ID,
		ProducerID:        producer.ID,
		UnitPrice:         input.UnitPrice,
		InitialQuantity:   input.Quantity,
		RemainingQuantity: input.Quantity,
		State:             enums.LotStatePending,
		ProposalDate:      s.now().UTC(),
		AvailabilityDate:  input.AvailabilityDate,
	}

	created, err := s.repo.Create(ctx, lot)
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithLotID(ctx, created.ID.String())
	s.logg.Info(ctx, "lot proposed")
	return created, nil
}

// UpdateState moves the lot through its lifecycle. Only managers decide,
// and they may assign any administrative state at any time; sold_out stays
// ledger-driven. The receipt date is stamped once, when the lot first goes
// on sale, and never overwritten.
func (s *service) UpdateState(ctx context.Context, actor auth.Actor, id uuid.UUID, target enums.LotState) (*models.ProductLot, error) {
	if actor.Role != enums.UserRoleManager {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers may update lot state")
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot id required")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid lot state %q", target))
	}
	if !target.AdminAssignable() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("state %s cannot be assigned directly", target))
	}

	var updated *models.ProductLot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lot, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return translateLookupErr(err)
		}

		lot.State = target
		if target == enums.LotStateForSale && lot.ReceiptDate == nil {
			receipt := s.now().UTC()
			lot.ReceiptDate = &receipt
		}
		if err := repo.Save(ctx, lot); err != nil {
			return err
		}
		updated = lot
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"lot_id": id.String(), "state": target.String()})
	s.logg.Info(ctx, "lot state updated")
	return updated, nil
}

// DecreaseQuantity writes remaining stock off the lot under a row lock.
func (s *service) DecreaseQuantity(ctx context.Context, actor auth.Actor, id uuid.UUID, qty int) (*models.ProductLot, error) {
	if actor.Role != enums.UserRoleManager {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers may remove stock")
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot id required")
	}

	var updated *models.ProductLot
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lot, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			return translateLookupErr(err)
		}
		if err := RemoveStock(lot, qty); err != nil {
			s.metrics.ObserveRejected(OpRemoveStock)
			return err
		}
		if err := repo.Save(ctx, lot); err != nil {
			return err
		}
		updated = lot
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSuccess(OpRemoveStock, qty)
	ctx = s.logg.WithFields(ctx, map[string]any{"lot_id": id.String(), "removed": qty})
	s.logg.Info(ctx, "stock removed from lot")
	return updated, nil
}

func translateLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
	}
	return err
}
