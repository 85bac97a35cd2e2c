package opensales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/internal/lots"
	"github.com/terroirco/farmlot-backend/pkg/auth"
	"github.com/terroirco/farmlot-backend/pkg/db/models"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
	"github.com/terroirco/farmlot-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type openSaleRepository interface {
	WithTx(tx *gorm.DB) *Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.OpenSale, error)
	ListAll(ctx context.Context) ([]models.OpenSale, error)
	Lines(ctx context.Context, saleID uuid.UUID) ([]models.ProductOpenSale, error)
}

type lotRepository interface {
	WithTx(tx *gorm.DB) *lots.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductLot, error)
}

// Service records open sales: bulk walk-in sales rung up by staff. An open
// sale is final the moment it is written; there is nothing to cancel.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateInput) (*Detail, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, actor auth.Actor) ([]models.OpenSale, error)
}

// CreateInput carries a new open sale.
type CreateInput struct {
	OpenSaleDate time.Time
	Lines        []LineInput
}

// LineInput is one lot sold inside an open sale.
type LineInput struct {
	LotID    uuid.UUID
	Quantity int
}

// Detail is an open sale with its priced lines.
type Detail struct {
	Sale  models.OpenSale `json:"sale"`
	Lines []LineDetail    `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// LineDetail is one priced lot line.
type LineDetail struct {
	LotID     uuid.UUID       `json:"lot_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type service struct {
	tx       txRunner
	repo     openSaleRepository
	lotRepo  lotRepository
	metrics  *metrics.AllocationMetrics
	logg     *logger.Logger
	maxLines int
	now      func() time.Time
}

// NewService builds the open sale service.
func NewService(
	tx txRunner,
	repo openSaleRepository,
	lotRepo lotRepository,
	allocMetrics *metrics.AllocationMetrics,
	logg *logger.Logger,
	maxLines int,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("open sale repository required")
	}
	if lotRepo == nil {
		return nil, fmt.Errorf("lot repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if maxLines <= 0 {
		return nil, fmt.Errorf("max lines must be positive")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		lotRepo:  lotRepo,
		metrics:  allocMetrics,
		logg:     logg,
		maxLines: maxLines,
		now:      time.Now,
	}, nil
}

// Create sells stock straight off the shelf. Every line allocates or the
// whole sale rolls back; lots are locked in ascending ID order.
func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*Detail, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may record open sales")
	}
	lines, err := s.normalizeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	saleDate := input.OpenSaleDate
	if saleDate.IsZero() {
		saleDate = s.now().UTC()
	}

	var detail *Detail
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lotRepo.WithTx(tx)

		ids := make([]uuid.UUID, len(lines))
		for i, line := range lines {
			ids[i] = line.LotID
		}
		locked, err := lotRepo.FindManyForUpdate(ctx, ids)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			}
			return err
		}

		byID := make(map[uuid.UUID]*models.ProductLot, len(locked))
		for _, lot := range locked {
			byID[lot.ID] = lot
		}
		for _, line := range lines {
			lot := byID[line.LotID]
			if err := lots.AllocateSale(lot, line.Quantity); err != nil {
				s.metrics.ObserveRejected(lots.OpAllocateSale)
				return err
			}
		}
		for _, lot := range locked {
			if err := lotRepo.Save(ctx, lot); err != nil {
				return err
			}
		}

		sale := &models.OpenSale{OpenSaleDate: saleDate}
		if _, err := repo.Create(ctx, sale); err != nil {
			return err
		}
		rows := make([]models.ProductOpenSale, len(lines))
		for i, line := range lines {
			rows[i] = models.ProductOpenSale{
				LotID:      line.LotID,
				OpenSaleID: sale.ID,
				Quantity:   line.Quantity,
			}
		}
		if err := repo.CreateLines(ctx, rows); err != nil {
			return err
		}

		detail = s.buildDetail(sale, rows, byID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		s.metrics.ObserveSuccess(lots.OpAllocateSale, line.Quantity)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"open_sale_id": detail.Sale.ID.String(),
		"lines":        len(lines),
	})
	s.logg.Info(ctx, "open sale recorded")
	return detail, nil
}

func (s *service) normalizeLines(input []LineInput) ([]LineInput, error) {
	if len(input) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one lot line required")
	}
	if len(input) > s.maxLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("too many lot lines, limit is %d", s.maxLines))
	}
	merged := make([]LineInput, 0, len(input))
	index := make(map[uuid.UUID]int, len(input))
	for _, line := range input {
		if line.LotID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot id required on every line")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive on every line")
		}
		if i, ok := index[line.LotID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.LotID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Detail, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may view open sales")
	}
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "open sale id required")
	}
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "open sale not found")
		}
		return nil, err
	}
	rows, err := s.repo.Lines(ctx, sale.ID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*models.ProductLot, len(rows))
	for _, row := range rows {
		lot, err := s.lotRepo.FindByID(ctx, row.LotID)
		if err != nil {
			return nil, err
		}
		byID[row.LotID] = lot
	}
	return s.buildDetail(sale, rows, byID), nil
}

func (s *service) List(ctx context.Context, actor auth.Actor) ([]models.OpenSale, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may list open sales")
	}
	return s.repo.ListAll(ctx)
}

func (s *service) buildDetail(sale *models.OpenSale, rows []models.ProductOpenSale, lotsByID map[uuid.UUID]*models.ProductLot) *Detail {
	detail := &Detail{
		Sale:  *sale,
		Lines: make([]LineDetail, 0, len(rows)),
		Total: decimal.Zero,
	}
	for _, row := range rows {
		lot := lotsByID[row.LotID]
		lineTotal := lot.UnitPrice.Mul(decimal.NewFromInt(int64(row.Quantity)))
		detail.Lines = append(detail.Lines, LineDetail{
			LotID:     row.LotID,
			ProductID: lot.ProductID,
			Quantity:  row.Quantity,
			UnitPrice: lot.UnitPrice,
			LineTotal: lineTotal,
		})
		detail.Total = detail.Total.Add(lineTotal)
	}
	return detail
}
