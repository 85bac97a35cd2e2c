package reservations

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/internal/lots"
	"github.com/terroirco/farmlot-backend/pkg/auth"
	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
	"github.com/terroirco/farmlot-backend/pkg/metrics"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reservations_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProductLot{}, &models.Reservation{}, &models.ProductReservation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "reservations-test", Output: io.Discard})
	svc, err := NewService(
		gormTx{db: db},
		NewRepository(db),
		lots.NewRepository(db),
		metrics.NewAllocationMetrics(nil),
		logg,
		25,
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func seedForSaleLot(t *testing.T, db *gorm.DB, remaining int, price float64) *models.ProductLot {
	t.Helper()
	lot := &models.ProductLot{
		ProductID:         uuid.New(),
		ProducerID:        uuid.New(),
		UnitPrice:         decimal.NewFromFloat(price),
		InitialQuantity:   remaining,
		RemainingQuantity: remaining,
		State:             enums.LotStateForSale,
		ProposalDate:      time.Now().UTC(),
		AvailabilityDate:  time.Now().UTC(),
	}
	if err := db.Create(lot).Error; err != nil {
		t.Fatalf("seed lot: %v", err)
	}
	return lot
}

func loadLot(t *testing.T, db *gorm.DB, id uuid.UUID) *models.ProductLot {
	t.Helper()
	var lot models.ProductLot
	if err := db.First(&lot, "id = ?", id).Error; err != nil {
		t.Fatalf("load lot: %v", err)
	}
	return &lot
}

func customer() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
}

func volunteer() auth.Actor {
	return auth.Actor{UserID: uuid.New(), Role: enums.UserRoleVolunteer}
}

func recovery() time.Time {
	return time.Now().UTC().Add(48 * time.Hour)
}

func TestCreateReservationHoldsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lotA := seedForSaleLot(t, db, 10, 2.00)
	lotB := seedForSaleLot(t, db, 4, 1.50)

	detail, err := svc.Create(ctx, customer(), CreateInput{
		RecoveryDate: recovery(),
		Lines: []LineInput{
			{LotID: lotA.ID, Quantity: 3},
			{LotID: lotB.ID, Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if detail.Reservation.State != enums.ReservationStateReserved {
		t.Fatalf("expected reserved state, got %s", detail.Reservation.State)
	}
	if !detail.Total.Equal(decimal.NewFromFloat(12.00)) {
		t.Fatalf("expected total 12.00, got %s", detail.Total)
	}

	storedA := loadLot(t, db, lotA.ID)
	if storedA.RemainingQuantity != 7 || storedA.ReservedQuantity != 3 {
		t.Fatalf("lot A not held: %+v", storedA)
	}
	storedB := loadLot(t, db, lotB.ID)
	if storedB.RemainingQuantity != 0 || storedB.ReservedQuantity != 4 {
		t.Fatalf("lot B not held: %+v", storedB)
	}
	if storedB.State != enums.LotStateSoldOut {
		t.Fatalf("drained lot must flip to sold_out, got %s", storedB.State)
	}
}

func TestCreateReservationRejectsPastRecoveryDate(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	lot := seedForSaleLot(t, db, 10, 2.00)

	_, err := svc.Create(context.Background(), customer(), CreateInput{
		RecoveryDate: time.Now().UTC().Add(-48 * time.Hour),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 1}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	stored := loadLot(t, db, lot.ID)
	if stored.RemainingQuantity != 10 || stored.ReservedQuantity != 0 {
		t.Fatalf("rejected reservation must not hold stock: %+v", stored)
	}
}

func TestCreateReservationIsAllOrNothing(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lotA := seedForSaleLot(t, db, 10, 2.00)
	lotB := seedForSaleLot(t, db, 2, 1.50)

	_, err := svc.Create(ctx, customer(), CreateInput{
		RecoveryDate: recovery(),
		Lines: []LineInput{
			{LotID: lotA.ID, Quantity: 3},
			{LotID: lotB.ID, Quantity: 5},
		},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	storedA := loadLot(t, db, lotA.ID)
	if storedA.RemainingQuantity != 10 || storedA.ReservedQuantity != 0 {
		t.Fatalf("failed reservation must not touch lot A: %+v", storedA)
	}
	var count int64
	if err := db.Model(&models.Reservation{}).Count(&count).Error; err != nil {
		t.Fatalf("count reservations: %v", err)
	}
	if count != 0 {
		t.Fatalf("no reservation row may survive a failed create, got %d", count)
	}
}

func TestCreateReservationMergesDuplicateLines(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	lot := seedForSaleLot(t, db, 10, 1.00)

	detail, err := svc.Create(context.Background(), customer(), CreateInput{
		RecoveryDate: recovery(),
		Lines: []LineInput{
			{LotID: lot.ID, Quantity: 2},
			{LotID: lot.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(detail.Lines) != 1 || detail.Lines[0].Quantity != 5 {
		t.Fatalf("duplicate lot lines must merge: %+v", detail.Lines)
	}

	stored := loadLot(t, db, lot.ID)
	if stored.ReservedQuantity != 5 {
		t.Fatalf("expected 5 reserved, got %d", stored.ReservedQuantity)
	}
}

func TestCompetingReservationsSerialize(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lot := seedForSaleLot(t, db, 5, 1.00)

	if _, err := svc.Create(ctx, customer(), CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 4}},
	}); err != nil {
		t.Fatalf("first reservation: %v", err)
	}

	_, err := svc.Create(ctx, customer(), CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 4}},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("second reservation must lose: %v", err)
	}

	stored := loadLot(t, db, lot.ID)
	if stored.RemainingQuantity != 1 || stored.ReservedQuantity != 4 {
		t.Fatalf("unexpected lot state: %+v", stored)
	}
	if !stored.Balanced() {
		t.Fatalf("conservation broken: %+v", stored)
	}
}

func TestCancelReleasesStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lot := seedForSaleLot(t, db, 4, 1.00)
	owner := customer()

	detail, err := svc.Create(ctx, owner, CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if loadLot(t, db, lot.ID).State != enums.LotStateSoldOut {
		t.Fatal("lot should be sold out after full hold")
	}

	canceled, err := svc.Cancel(ctx, owner, detail.Reservation.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if canceled.State != enums.ReservationStateCanceled {
		t.Fatalf("expected canceled, got %s", canceled.State)
	}

	stored := loadLot(t, db, lot.ID)
	if stored.RemainingQuantity != 4 || stored.ReservedQuantity != 0 {
		t.Fatalf("cancel must return stock: %+v", stored)
	}
	if stored.State != enums.LotStateForSale {
		t.Fatalf("restocked lot must reopen, got %s", stored.State)
	}

	_, err = svc.Cancel(ctx, owner, detail.Reservation.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("double cancel must fail, got %v", err)
	}
}

func TestCancelRequiresOwnership(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lot := seedForSaleLot(t, db, 4, 1.00)
	owner := customer()

	detail, err := svc.Create(ctx, owner, CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Cancel(ctx, customer(), detail.Reservation.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	_, err = svc.Cancel(ctx, volunteer(), detail.Reservation.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("staff must not cancel on a customer's behalf, got %v", err)
	}

	if _, err := svc.Cancel(ctx, owner, detail.Reservation.ID); err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
}

func TestRetrievedConvertsHoldsToSales(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lot := seedForSaleLot(t, db, 6, 1.00)

	detail, err := svc.Create(ctx, customer(), CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved, err := svc.UpdateState(ctx, volunteer(), detail.Reservation.ID, enums.ReservationStateRetrieved)
	if err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	if resolved.State != enums.ReservationStateRetrieved {
		t.Fatalf("expected retrieved, got %s", resolved.State)
	}

	stored := loadLot(t, db, lot.ID)
	if stored.SoldQuantity != 2 || stored.ReservedQuantity != 0 || stored.RemainingQuantity != 4 {
		t.Fatalf("pickup must convert hold to sale: %+v", stored)
	}
	if !stored.Balanced() {
		t.Fatalf("conservation broken: %+v", stored)
	}
}

func TestAbandonedReturnsStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lot := seedForSaleLot(t, db, 6, 1.00)

	detail, err := svc.Create(ctx, customer(), CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.UpdateState(ctx, volunteer(), detail.Reservation.ID, enums.ReservationStateAbandoned); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	stored := loadLot(t, db, lot.ID)
	if stored.RemainingQuantity != 6 || stored.ReservedQuantity != 0 || stored.SoldQuantity != 0 {
		t.Fatalf("abandoned stock must return to the shelf: %+v", stored)
	}
}

func TestUpdateStateGuards(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lot := seedForSaleLot(t, db, 6, 1.00)
	owner := customer()

	detail, err := svc.Create(ctx, owner, CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.UpdateState(ctx, owner, detail.Reservation.ID, enums.ReservationStateRetrieved)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("customers must not resolve reservations, got %v", err)
	}

	_, err = svc.UpdateState(ctx, volunteer(), detail.Reservation.ID, enums.ReservationStateCanceled)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("canceled is not a desk resolution, got %v", err)
	}

	if _, err := svc.Cancel(ctx, owner, detail.Reservation.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	_, err = svc.UpdateState(ctx, volunteer(), detail.Reservation.ID, enums.ReservationStateRetrieved)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("resolving a closed reservation is a bad request, got %v", err)
	}
}

func TestGetAndListAccessControl(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	lot := seedForSaleLot(t, db, 10, 2.00)
	owner := customer()

	detail, err := svc.Create(ctx, owner, CreateInput{
		RecoveryDate: recovery(),
		Lines:        []LineInput{{LotID: lot.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, owner, detail.Reservation.ID)
	if err != nil {
		t.Fatalf("owner Get: %v", err)
	}
	if !got.Total.Equal(decimal.NewFromFloat(4.00)) {
		t.Fatalf("expected total 4.00, got %s", got.Total)
	}

	_, err = svc.Get(ctx, customer(), detail.Reservation.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("strangers must not see the reservation, got %v", err)
	}

	if _, err := svc.Get(ctx, volunteer(), detail.Reservation.ID); err != nil {
		t.Fatalf("staff Get: %v", err)
	}

	mine, err := svc.ListForCustomer(ctx, owner)
	if err != nil {
		t.Fatalf("ListForCustomer: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(mine))
	}

	_, err = svc.ListAll(ctx, owner)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("customers must not list all, got %v", err)
	}
	all, err := svc.ListAll(ctx, volunteer())
	if err != nil {
		t.Fatalf("staff ListAll: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 reservation, got %d", len(all))
	}
}
