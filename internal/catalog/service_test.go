package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/pkg/auth"
	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProductType{}, &models.Product{}, &models.Producer{}); err != nil {
		t.Fatalf("migrate catalog: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "catalog-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, db
}

func TestCreateProductRequiresKnownType(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	manager := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleManager}

	typ, err := svc.CreateType(ctx, manager, "Vegetables")
	if err != nil {
		t.Fatalf("CreateType: %v", err)
	}

	product, err := svc.CreateProduct(ctx, manager, ProductInput{
		TypeID: typ.ID,
		Label:  "Carrots",
		Unit:   "kg",
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if product.TypeID != typ.ID {
		t.Fatalf("product bound to wrong type: %s", product.TypeID)
	}

	_, err = svc.CreateProduct(ctx, manager, ProductInput{TypeID: uuid.New(), Label: "Leeks", Unit: "kg"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestCreateProductRejectsDuplicateLabel(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	manager := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleManager}

	typ, err := svc.CreateType(ctx, manager, "Fruit")
	if err != nil {
		t.Fatalf("CreateType: %v", err)
	}
	if _, err := svc.CreateProduct(ctx, manager, ProductInput{TypeID: typ.ID, Label: "Apples", Unit: "kg"}); err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	_, err = svc.CreateProduct(ctx, manager, ProductInput{TypeID: typ.ID, Label: "Apples", Unit: "kg"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestEnsureProductFindsOrCreates(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	manager := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleManager}

	typ, err := svc.CreateType(ctx, manager, "Vegetables")
	if err != nil {
		t.Fatalf("CreateType: %v", err)
	}
	existing, err := svc.CreateProduct(ctx, manager, ProductInput{TypeID: typ.ID, Label: "Potatoes", Unit: "kg"})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}

	// known label, even with different casing, returns the existing row
	found, err := svc.EnsureProduct(ctx, "potatoes", "", "", "")
	if err != nil {
		t.Fatalf("EnsureProduct existing: %v", err)
	}
	if found.ID != existing.ID {
		t.Fatalf("expected existing product, got %s", found.ID)
	}

	// unknown label without creation fields is a validation error
	_, err = svc.EnsureProduct(ctx, "Parsnips", "", "", "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	// unknown type label is a validation error
	_, err = svc.EnsureProduct(ctx, "Parsnips", "winter root", "kg", "Minerals")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}

	created, err := svc.EnsureProduct(ctx, "Parsnips", "winter root", "kg", "Vegetables")
	if err != nil {
		t.Fatalf("EnsureProduct create: %v", err)
	}
	if created.TypeID != typ.ID || created.Unit != "kg" {
		t.Fatalf("unexpected product: %+v", created)
	}
}

func TestCatalogWritesAreManagerOnly(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, role := range []enums.UserRole{enums.UserRoleCustomer, enums.UserRoleProducer, enums.UserRoleVolunteer} {
		actor := auth.Actor{UserID: uuid.New(), Role: role}
		if _, err := svc.CreateType(ctx, actor, "Dairy"); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
			t.Fatalf("role %s: expected forbidden on CreateType, got %v", role, err)
		}
		if _, err := svc.CreateProduct(ctx, actor, ProductInput{TypeID: uuid.New(), Label: "Milk", Unit: "l"}); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeForbidden {
			t.Fatalf("role %s: expected forbidden on CreateProduct, got %v", role, err)
		}
	}
}

func TestRegisterProducerOncePerUser(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	actor := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleProducer}

	created, err := svc.RegisterProducer(ctx, actor, ProducerInput{Name: "Ferme du Vallon"})
	if err != nil {
		t.Fatalf("RegisterProducer: %v", err)
	}

	found, err := svc.FindProducerByUserID(ctx, actor.UserID)
	if err != nil {
		t.Fatalf("FindProducerByUserID: %v", err)
	}
	if found.ID != created.ID {
		t.Fatalf("unexpected producer: %s", found.ID)
	}

	_, err = svc.RegisterProducer(ctx, actor, ProducerInput{Name: "Ferme du Vallon"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on second profile, got %v", err)
	}

	_, err = svc.RegisterProducer(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}, ProducerInput{Name: "Nope"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
