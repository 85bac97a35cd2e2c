package reservations

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
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
	"github.com/terroirco/farmlot-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type reservationRepository interface {
	WithTx(tx *gorm.DB) *Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Reservation, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]models.Reservation, error)
	ListAll(ctx context.Context) ([]models.Reservation, error)
	Lines(ctx context.Context, reservationID uuid.UUID) ([]models.ProductReservation, error)
}

type lotRepository interface {
	WithTx(tx *gorm.DB) *lots.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProductLot, error)
}

// Service runs the reservation workflow: hold stock, then cancel, abandon
// or hand it over.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, input CreateInput) (*Detail, error)
	Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Reservation, error)
	UpdateState(ctx context.Context, actor auth.Actor, id uuid.UUID, target enums.ReservationState) (*models.Reservation, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Detail, error)
	ListForCustomer(ctx context.Context, actor auth.Actor) ([]models.Reservation, error)
	ListAll(ctx context.Context, actor auth.Actor) ([]models.Reservation, error)
}

// CreateInput carries a new reservation request.
type CreateInput struct {
	RecoveryDate time.Time
	Lines        []LineInput
}

// LineInput is one lot hold inside a reservation request.
type LineInput struct {
	LotID    uuid.UUID
	Quantity int
}

// Detail is a reservation with its priced lines.
type Detail struct {
	Reservation models.Reservation `json:"reservation"`
	Lines       []LineDetail       `json:"lines"`
	Total       decimal.Decimal    `json:"total"`
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
	repo     reservationRepository
	lotRepo  lotRepository
	metrics  *metrics.AllocationMetrics
	logg     *logger.Logger
	maxLines int
	now      func() time.Time
}

// NewService builds the reservation service.
func NewService(
	tx txRunner,
	repo reservationRepository,
	lotRepo lotRepository,
	allocMetrics *metrics.AllocationMetrics,
	logg *logger.Logger,
	maxLines int,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reservation repository required")
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

// Create holds stock on every requested lot atomically: either all lines
// allocate or none do. Lots are locked in ascending ID order inside one
// transaction, so two competing reservations serialize instead of
// deadlocking, and the loser sees the survivor's writes.
func (s *service) Create(ctx context.Context, actor auth.Actor, input CreateInput) (*Detail, error) {
	if actor.Role != enums.UserRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers may reserve lots")
	}
	lines, err := s.normalizeLines(input.Lines)
	if err != nil {
		return nil, err
	}
	if input.RecoveryDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recovery date required")
	}
	if input.RecoveryDate.Before(s.now().UTC().Truncate(24 * time.Hour)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recovery date cannot be in the past")
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
			if err := lots.AllocateReservation(lot, line.Quantity); err != nil {
				s.metrics.ObserveRejected(lots.OpAllocateReservation)
				return err
			}
		}
		for _, lot := range locked {
			if err := lotRepo.Save(ctx, lot); err != nil {
				return err
			}
		}

		reservation := &models.Reservation{
			CustomerID:      actor.UserID,
			State:           enums.ReservationStateReserved,
			ReservationDate: s.now().UTC(),
			RecoveryDate:    input.RecoveryDate,
		}
		if _, err := repo.Create(ctx, reservation); err != nil {
			return err
		}

		rows := make([]models.ProductReservation, len(lines))
		for i, line := range lines {
			rows[i] = models.ProductReservation{
				LotID:         line.LotID,
				ReservationID: reservation.ID,
				Quantity:      line.Quantity,
			}
		}
		if err := repo.CreateLines(ctx, rows); err != nil {
			return err
		}

		detail = s.buildDetail(reservation, rows, byID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		s.metrics.ObserveSuccess(lots.OpAllocateReservation, line.Quantity)
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"reservation_id": detail.Reservation.ID.String(),
		"lines":          len(lines),
	})
	s.logg.Info(ctx, "reservation created")
	return detail, nil
}

// normalizeLines validates the request and merges duplicate lot references
// by summing their quantities.
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

// Cancel releases every held line back to stock and closes the reservation.
// Only the owning customer may cancel; the desk resolves a no-show through
// UpdateState instead.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Reservation, error) {
	return s.close(ctx, actor, id, enums.ReservationStateCanceled)
}

// UpdateState resolves a reservation at the pickup desk: retrieved converts
// the held stock into sales, abandoned returns it to the shelf. Staff only.
func (s *service) UpdateState(ctx context.Context, actor auth.Actor, id uuid.UUID, target enums.ReservationState) (*models.Reservation, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may resolve reservations")
	}
	if target != enums.ReservationStateRetrieved && target != enums.ReservationStateAbandoned {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("reservations can only be resolved to retrieved or abandoned, not %q", target))
	}
	return s.close(ctx, actor, id, target)
}

func (s *service) close(ctx context.Context, actor auth.Actor, id uuid.UUID, target enums.ReservationState) (*models.Reservation, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}

	var closed *models.Reservation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		lotRepo := s.lotRepo.WithTx(tx)

		reservation, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
			}
			return err
		}
		if target == enums.ReservationStateCanceled {
			if actor.Role != enums.UserRoleCustomer || reservation.CustomerID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "reservation belongs to another customer")
			}
		}
		if !reservation.State.CanTransition(target) {
			msg := fmt.Sprintf("reservation is %s, cannot move to %s", reservation.State, target)
			if target == enums.ReservationStateCanceled {
				return pkgerrors.New(pkgerrors.CodeStateConflict, msg)
			}
			return pkgerrors.New(pkgerrors.CodeValidation, msg)
		}

		rows, err := repo.Lines(ctx, reservation.ID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, len(rows))
		qtyByLot := make(map[uuid.UUID]int, len(rows))
		for i, row := range rows {
			ids[i] = row.LotID
			qtyByLot[row.LotID] = row.Quantity
		}
		locked, err := lotRepo.FindManyForUpdate(ctx, ids)
		if err != nil {
			return err
		}

		op := lots.OpRelease
		apply := lots.Release
		if target == enums.ReservationStateRetrieved {
			op = lots.OpConfirmSold
			apply = lots.ConfirmSold
		}
		for _, lot := range locked {
			if err := apply(lot, qtyByLot[lot.ID]); err != nil {
				s.metrics.ObserveRejected(op)
				return err
			}
			if err := lotRepo.Save(ctx, lot); err != nil {
				return err
			}
			s.metrics.ObserveSuccess(op, qtyByLot[lot.ID])
		}

		reservation.State = target
		if err := repo.Save(ctx, reservation); err != nil {
			return err
		}
		closed = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"reservation_id": id.String(),
		"state":          target.String(),
	})
	s.logg.Info(ctx, "reservation resolved")
	return closed, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Detail, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation id required")
	}
	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
		}
		return nil, err
	}
	if !actor.Role.IsStaff() && reservation.CustomerID != actor.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}

	rows, err := s.repo.Lines(ctx, reservation.ID)
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
	return s.buildDetail(reservation, rows, byID), nil
}

func (s *service) ListForCustomer(ctx context.Context, actor auth.Actor) ([]models.Reservation, error) {
	return s.repo.ListByCustomer(ctx, actor.UserID)
}

func (s *service) ListAll(ctx context.Context, actor auth.Actor) ([]models.Reservation, error) {
	if !actor.Role.IsStaff() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only staff may list all reservations")
	}
	return s.repo.ListAll(ctx)
}

func (s *service) buildDetail(reservation *models.Reservation, rows []models.ProductReservation, lotsByID map[uuid.UUID]*models.ProductLot) *Detail {
	detail := &Detail{
		Reservation: *reservation,
		Lines:       make([]LineDetail, 0, len(rows)),
		Total:       decimal.Zero,
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
