package users

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/pkg/auth"
	"github.com/terroirco/farmlot-backend/pkg/config"
	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate users: %v", err)
	}
	logg := logger.New(logger.Options{ServiceName: "users-test", Output: io.Discard})
	svc, err := NewService(NewRepository(db), config.JWTConfig{
		Secret:            "users-test-secret",
		Issuer:            "farmlot-test",
		ExpirationMinutes: 10,
	}, logg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func registerInput(email string, role enums.UserRole) RegisterInput {
	return RegisterInput{
		Email:     email,
		Password:  "correct-horse",
		FirstName: "Ada",
		LastName:  "Martin",
		Role:      role,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, registerInput("ada@example.org", enums.UserRoleCustomer))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if created.Role != enums.UserRoleCustomer {
		t.Fatalf("unexpected role %s", created.Role)
	}

	result, err := svc.Login(ctx, "Ada@Example.org", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a signed token")
	}
	if result.User.ID != created.ID {
		t.Fatalf("unexpected user: %s", result.User.ID)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, registerInput("bob@example.org", enums.UserRoleProducer)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.Login(ctx, "bob@example.org", "wrong-password")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	_, err = svc.Login(ctx, "nobody@example.org", "whatever-pass")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("unknown email must look like bad credentials, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, registerInput("dup@example.org", enums.UserRoleCustomer)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := svc.Register(ctx, registerInput("dup@example.org", enums.UserRoleProducer))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	cases := map[string]RegisterInput{
		"staff role": registerInput("m@example.org", enums.UserRoleManager),
		"bad email": {
			Email: "not-an-email", Password: "long-enough", FirstName: "A", LastName: "B",
			Role: enums.UserRoleCustomer,
		},
		"short password": {
			Email: "c@example.org", Password: "short", FirstName: "A", LastName: "B",
			Role: enums.UserRoleCustomer,
		},
		"missing name": {
			Email: "d@example.org", Password: "long-enough", Role: enums.UserRoleCustomer,
		},
	}
	for name, input := range cases {
		_, err := svc.Register(ctx, input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestCreateStaffIsManagerOnly(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()
	manager := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleManager}

	created, err := svc.CreateStaff(ctx, manager, registerInput("vol@example.org", enums.UserRoleVolunteer))
	if err != nil {
		t.Fatalf("CreateStaff: %v", err)
	}
	if created.Role != enums.UserRoleVolunteer {
		t.Fatalf("unexpected role %s", created.Role)
	}

	_, err = svc.CreateStaff(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleVolunteer},
		registerInput("vol2@example.org", enums.UserRoleVolunteer))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}

	_, err = svc.CreateStaff(ctx, manager, registerInput("cust@example.org", enums.UserRoleCustomer))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
