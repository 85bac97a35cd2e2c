package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/terroirco/farmlot-backend/api/middleware"
	"github.com/terroirco/farmlot-backend/api/responses"
	"github.com/terroirco/farmlot-backend/api/validators"
	"github.com/terroirco/farmlot-backend/internal/lots"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

type proposeLotRequest struct {
	ProductLabel       string `json:"product_label" validate:"required"`
	ProductDescription string `json:"product_description"`
	Unit               string `json:"unit"`
	TypeLabel          string `json:"type_label"`
	UnitPrice          string `json:"unit_price" validate:"required"`
	Quantity           int    `json:"quantity" validate:"required,gt=0"`
	AvailabilityDate   string `json:"availability_date" validate:"required"`
}

type updateLotStateRequest struct {
	State string `json:"state" validate:"required"`
}

type decreaseQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// LotsList returns the lots visible to the authenticated actor.
func LotsList(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFromContext(r.Context())
		list, err := svc.List(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// LotsCatalog returns every lot currently on sale. Public.
func LotsCatalog(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Catalog(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// LotsRecent returns the newest lots on sale. Public.
func LotsRecent(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.Recent(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func LotsGet(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "lotID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		lot, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, lot)
	}
}

// LotsPropose lets a producer submit a new lot for review.
func LotsPropose(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body proposeLotRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := decimal.NewFromString(body.UnitPrice)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid unit_price"))
			return
		}
		availability, err := time.Parse(time.RFC3339, body.AvailabilityDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid availability_date"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		created, err := svc.Propose(r.Context(), actor, lots.ProposeInput{
			ProductLabel:       body.ProductLabel,
			ProductDescription: body.ProductDescription,
			Unit:               body.Unit,
			TypeLabel:          body.TypeLabel,
			UnitPrice:          price,
			Quantity:           body.Quantity,
			AvailabilityDate:   availability,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, created)
	}
}

// LotsUpdateState moves a lot through its lifecycle. Manager only.
func LotsUpdateState(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "lotID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateLotStateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseLotState(body.State)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid state"))
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		updated, err := svc.UpdateState(r.Context(), actor, id, target)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// LotsDecreaseQuantity writes remaining stock off a lot. Manager only.
func LotsDecreaseQuantity(svc lots.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "lotID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body decreaseQuantityRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		updated, err := svc.DecreaseQuantity(r.Context(), actor, id, body.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}
