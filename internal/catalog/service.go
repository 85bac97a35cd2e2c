package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/terroirco/farmlot-backend/pkg/auth"
	"github.com/terroirco/farmlot-backend/pkg/db"
	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

type catalogRepository interface {
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductByLabel(ctx context.Context, label string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	ListProductsByType(ctx context.Context, typeID uuid.UUID) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) (*models.Product, error)
	FindTypeByID(ctx context.Context, id uuid.UUID) (*models.ProductType, error)
	FindTypeByLabel(ctx context.Context, label string) (*models.ProductType, error)
	ListTypes(ctx context.Context) ([]models.ProductType, error)
	CreateType(ctx context.Context, typ *models.ProductType) (*models.ProductType, error)
	FindProducerByUserID(ctx context.Context, userID uuid.UUID) (*models.Producer, error)
	CreateProducer(ctx context.Context, producer *models.Producer) (*models.Producer, error)
}

// Service manages the product catalog and producer profiles.
type Service interface {
	ListTypes(ctx context.Context) ([]models.ProductType, error)
	CreateType(ctx context.Context, actor auth.Actor, label string) (*models.ProductType, error)
	ListProducts(ctx context.Context, typeID *uuid.UUID) ([]models.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	CreateProduct(ctx context.Context, actor auth.Actor, input ProductInput) (*models.Product, error)
	EnsureProduct(ctx context.Context, label, description, unit, typeLabel string) (*models.Product, error)
	RegisterProducer(ctx context.Context, actor auth.Actor, input ProducerInput) (*models.Producer, error)
	FindProducerByUserID(ctx context.Context, userID uuid.UUID) (*models.Producer, error)
}

// ProductInput carries a new catalog listing.
type ProductInput struct {
	TypeID      uuid.UUID
	Label       string
	Description string
	Unit        string
}

// ProducerInput carries a new producer profile.
type ProducerInput struct {
	Name    string
	Address *string
}

type service struct {
	repo catalogRepository
	logg *logger.Logger
}

// NewService builds the catalog service.
func NewService(repo catalogRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) ListTypes(ctx context.Context) ([]models.ProductType, error) {
	return s.repo.ListTypes(ctx)
}

func (s *service) CreateType(ctx context.Context, actor auth.Actor, label string) (*models.ProductType, error) {
	if actor.Role != enums.UserRoleManager {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers may edit the catalog")
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label required")
	}

	created, err := s.repo.CreateType(ctx, &models.ProductType{Label: label})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product type already exists")
		}
		return nil, err
	}
	return created, nil
}

func (s *service) ListProducts(ctx context.Context, typeID *uuid.UUID) ([]models.Product, error) {
	if typeID != nil {
		return s.repo.ListProductsByType(ctx, *typeID)
	}
	return s.repo.ListProducts(ctx)
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindProductByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return product, nil
}

func (s *service) CreateProduct(ctx context.Context, actor auth.Actor, input ProductInput) (*models.Product, error) {
	if actor.Role != enums.UserRoleManager {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only managers may edit the catalog")
	}
	input.Label = strings.TrimSpace(input.Label)
	if input.Label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "label required")
	}
	if input.Unit == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit required")
	}
	if input.TypeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "type id required")
	}

	if _, err := s.repo.FindTypeByID(ctx, input.TypeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product type")
		}
		return nil, err
	}

	product := &models.Product{
		TypeID:      input.TypeID,
		Label:       input.Label,
		Description: input.Description,
		Unit:        input.Unit,
	}
	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "product label already exists")
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "product_id", created.ID.String()), "product created")
	return created, nil
}

// EnsureProduct returns the product with the given label, creating it when
// missing. Lot intake relies on this so producers can name produce the
// catalog has never seen; the extra fields are only required on creation.
func (s *service) EnsureProduct(ctx context.Context, label, description, unit, typeLabel string) (*models.Product, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product label required")
	}

	product, err := s.repo.FindProductByLabel(ctx, label)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if description == "" || unit == "" || typeLabel == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			"description, unit and type label are required for a new product")
	}
	typ, err := s.repo.FindTypeByLabel(ctx, typeLabel)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown product type label")
		}
		return nil, err
	}

	created, err := s.repo.CreateProduct(ctx, &models.Product{
		TypeID:      typ.ID,
		Label:       label,
		Description: description,
		Unit:        unit,
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			// lost a race with a concurrent intake for the same label
			return s.repo.FindProductByLabel(ctx, label)
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "product_id", created.ID.String()), "product created at lot intake")
	return created, nil
}

func (s *service) RegisterProducer(ctx context.Context, actor auth.Actor, input ProducerInput) (*models.Producer, error) {
	if actor.Role != enums.UserRoleProducer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only producer accounts may register a profile")
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}

	producer := &models.Producer{
		UserID:  actor.UserID,
		Name:    input.Name,
		Address: input.Address,
	}
	created, err := s.repo.CreateProducer(ctx, producer)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "producer profile already exists")
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "producer_id", created.ID.String()), "producer registered")
	return created, nil
}

func (s *service) FindProducerByUserID(ctx context.Context, userID uuid.UUID) (*models.Producer, error) {
	return s.repo.FindProducerByUserID(ctx, userID)
}
