package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/terroirco/farmlot-backend/api/responses"
	"github.com/terroirco/farmlot-backend/internal/lots"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
	"github.com/terroirco/farmlot-backend/pkg/logger"
)

type salesStats interface {
	SalesPerDay(ctx context.Context, filter lots.SalesFilter) ([]lots.DaySales, error)
	LotsAndSales(ctx context.Context, filter lots.SalesFilter) (*lots.LotsAndSalesReport, error)
}

// StatsSalesPerDay aggregates retrieved reservations and open sales by day.
// Optional query params: product_label, month, year. Route is staff guarded.
func StatsSalesPerDay(stats salesStats, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := salesFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := stats.SalesPerDay(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, rows)
	}
}

// StatsLotsAndSales serves the combined intake and sales dashboard report.
// Takes the same query params as StatsSalesPerDay.
func StatsLotsAndSales(stats salesStats, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := salesFilterFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := stats.LotsAndSales(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func salesFilterFromQuery(r *http.Request) (lots.SalesFilter, error) {
	filter := lots.SalesFilter{
		ProductLabel: r.URL.Query().Get("product_label"),
	}
	var err error
	if filter.Month, err = intQueryParam(r, "month"); err != nil {
		return lots.SalesFilter{}, err
	}
	if filter.Year, err = intQueryParam(r, "year"); err != nil {
		return lots.SalesFilter{}, err
	}
	return filter, nil
}

func intQueryParam(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return value, nil
}
