package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/terroirco/farmlot-backend/api/middleware"
	"github.com/terroirco/farmlot-backend/api/responses"
	"github.com/terroirco/farmlot-backend/api/validators"
	"github.com/terroirco/farmlot-backend/internal/catalog"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

type createTypeRequest struct {
	Label string `json:"label" validate:"required"`
}

type createProductRequest struct {
	TypeID      string `json:"type_id" validate:"required,uuid4"`
	Label       string `json:"label" validate:"required"`
	Description string `json:"description"`
	Unit        string `json:"unit" validate:"required"`
}

type registerProducerRequest struct {
	Name    string  `json:"name" validate:"required"`
	Address *string `json:"address"`
}

func TypesList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListTypes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// TypesCreate adds a product type. Manager only.
func TypesCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createTypeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		created, err := svc.CreateType(r.Context(), actor, body.Label)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ProductsList returns catalog products, optionally filtered by type.
func ProductsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var typeID *uuid.UUID
		if raw := r.URL.Query().Get("type_id"); raw != "" {
			parsed, err := validators.ParseUUID(raw, "type_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			typeID = &parsed
		}

		list, err := svc.ListProducts(r.Context(), typeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func ProductsGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "productID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductsCreate adds a catalog product. Manager only.
func ProductsCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createProductRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		typeID, err := validators.ParseUUID(body.TypeID, "type_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		created, err := svc.CreateProduct(r.Context(), actor, catalog.ProductInput{
			TypeID:      typeID,
			Label:       body.Label,
			Description: body.Description,
			Unit:        body.Unit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// ProducersRegister creates the caller's producer profile.
func ProducersRegister(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerProducerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		created, err := svc.RegisterProducer(r.Context(), actor, catalog.ProducerInput{
			Name:    body.Name,
			Address: body.Address,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}
