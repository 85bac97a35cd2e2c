package controllers

import (
	"net/http"
	"time"

	"github.com/terroirco/farmlot-backend/api/middleware"
	"github.com/terroirco/farmlot-backend/api/responses"
	"github.com/terroirco/farmlot-backend/api/validators"
	"github.com/terroirco/farmlot-backend/internal/opensales"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

type openSaleLineRequest struct {
	LotID    string `json:"lot_id" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type createOpenSaleRequest struct {
	OpenSaleDate string                `json:"open_sale_date"`
	Lines        []openSaleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// OpenSalesCreate rings up a walk-in sale. Staff only.
func OpenSalesCreate(svc opensales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createOpenSaleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var saleDate time.Time
		if body.OpenSaleDate != "" {
			parsed, err := time.Parse(time.RFC3339, body.OpenSaleDate)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid open_sale_date"))
				return
			}
			saleDate = parsed
		}

		lines := make([]opensales.LineInput, 0, len(body.Lines))
		for _, line := range body.Lines {
			lotID, err := validators.ParseUUID(line.LotID, "lot_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			lines = append(lines, opensales.LineInput{LotID: lotID, Quantity: line.Quantity})
		}

		actor := middleware.ActorFromContext(r.Context())
		detail, err := svc.Create(r.Context(), actor, opensales.CreateInput{
			OpenSaleDate: saleDate,
			Lines:        lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

func OpenSalesGet(svc opensales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "saleID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		detail, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func OpenSalesList(svc opensales.Service, logg *logger.Logger) http.HandlerFunc {
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
