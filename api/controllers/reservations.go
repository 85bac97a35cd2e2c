package controllers

import (
	"net/http"
	"time"

	"github.com/terroirco/farmlot-backend/api/middleware"
	"github.com/terroirco/farmlot-backend/api/responses"
	"github.com/terroirco/farmlot-backend/api/validators"
	"github.com/terroirco/farmlot-backend/internal/reservations"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

type reservationLineRequest struct {
	LotID    string `json:"lot_id" validate:"required,uuid4"`
	Quantity int    `json:"quantity" validate:"required,gt=0"`
}

type createReservationRequest struct {
	RecoveryDate string                   `json:"recovery_date" validate:"required"`
	Lines        []reservationLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type updateReservationStateRequest struct {
	State string `json:"state" validate:"required"`
}

func reservationLines(raw []reservationLineRequest) ([]reservations.LineInput, error) {
	lines := make([]reservations.LineInput, 0, len(raw))
	for _, line := range raw {
		lotID, err := validators.ParseUUID(line.LotID, "lot_id")
		if err != nil {
			return nil, err
		}
		lines = append(lines, reservations.LineInput{LotID: lotID, Quantity: line.Quantity})
	}
	return lines, nil
}

// ReservationsCreate holds stock for a customer.
func ReservationsCreate(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createReservationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		recovery, err := time.Parse(time.RFC3339, body.RecoveryDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recovery_date"))
			return
		}
		lines, err := reservationLines(body.Lines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		detail, err := svc.Create(r.Context(), actor, reservations.CreateInput{
			RecoveryDate: recovery,
			Lines:        lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// ReservationsCancel releases a reservation's stock back to its lots.
func ReservationsCancel(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "reservationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.ActorFromContext(r.Context())
		updated, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// ReservationsUpdateState marks a reservation retrieved or abandoned. Staff only.
func ReservationsUpdateState(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "reservationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body updateReservationStateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, err := enums.ParseReservationState(body.State)
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

func ReservationsGet(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.UUIDParam(r, "reservationID")
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

// ReservationsListMine returns the caller's reservations.
func ReservationsListMine(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFromContext(r.Context())
		list, err := svc.ListForCustomer(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// ReservationsListAll returns every reservation. Staff only.
func ReservationsListAll(svc reservations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := middleware.ActorFromContext(r.Context())
		list, err := svc.ListAll(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}
