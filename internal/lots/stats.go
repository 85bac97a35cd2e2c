package lots

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
)

// DaySales is one row of the sales-per-day report.
type DaySales struct {
	Day     string          `json:"day"`
	Units   int             `json:"units"`
	Revenue decimal.Decimal `json:"revenue"`
}

// DayQuantity is one row of the received-lots-per-day report.
type DayQuantity struct {
	Day   string `json:"day"`
	Units int    `json:"units"`
}

// LotsAndSalesReport pairs intake and sales for the dashboard: units
// received per day, units sold per day, and the two totals.
type LotsAndSalesReport struct {
	Received      []DayQuantity `json:"received"`
	Sales         []DaySales    `json:"sales"`
	TotalReceived int           `json:"total_received"`
	TotalSold     int           `json:"total_sold"`
}

// SalesFilter narrows the report. Zero values mean no filtering.
type SalesFilter struct {
	ProductLabel string
	Month        int
	Year         int
}

// Sales happen two ways: a retrieved reservation, counted on its recovery
// day, and an open sale, counted on its sale day. The report unions both so
// the desk sees one number per day.
const salesPerDayQuery = `
SELECT day, SUM(units) AS units, SUM(revenue) AS revenue
FROM (
  SELECT CAST(DATE(r.recovery_date) AS TEXT) AS day,
         pr.quantity AS units,
         pr.quantity * pl.unit_price AS revenue
  FROM product_reservations pr
  JOIN reservations r ON r.id = pr.reservation_id
  JOIN product_lots pl ON pl.id = pr.lot_id
  JOIN products p ON p.id = pl.product_id
  WHERE r.state = 'retrieved'
    AND (? = '' OR LOWER(p.label) = LOWER(?))
  UNION ALL
  SELECT CAST(DATE(os.open_sale_date) AS TEXT) AS day,
         pos.quantity AS units,
         pos.quantity * pl.unit_price AS revenue
  FROM product_open_sales pos
  JOIN open_sales os ON os.id = pos.open_sale_id
  JOIN product_lots pl ON pl.id = pos.lot_id
  JOIN products p ON p.id = pl.product_id
  WHERE (? = '' OR LOWER(p.label) = LOWER(?))
) sales
GROUP BY day
ORDER BY day
`

// Intake is keyed on receipt_date, which is stamped when the lot first goes
// on sale.
const receivedPerDayQuery = `
SELECT CAST(DATE(pl.receipt_date) AS TEXT) AS day,
       SUM(pl.initial_quantity) AS units
FROM product_lots pl
JOIN products p ON p.id = pl.product_id
WHERE pl.receipt_date IS NOT NULL
  AND (? = '' OR LOWER(p.label) = LOWER(?))
GROUP BY day
ORDER BY day
`

// StatsRepository serves the read-only sales reports.
type StatsRepository struct {
	db *gorm.DB
}

// NewStatsRepository builds a stats repository tied to the provided GORM DB.
func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// SalesPerDay aggregates confirmed sales by calendar day across retrieved
// reservations and open sales, optionally scoped to one product label and a
// month/year window.
func (r *StatsRepository) SalesPerDay(ctx context.Context, filter SalesFilter) ([]DaySales, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}

	var rows []DaySales
	err := r.db.WithContext(ctx).
		Raw(salesPerDayQuery,
			filter.ProductLabel, filter.ProductLabel,
			filter.ProductLabel, filter.ProductLabel).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	// The month/year window is applied on the aggregated day keys so the
	// query stays portable across postgres and the sqlite test databases.
	filtered := rows[:0]
	for _, row := range rows {
		if filter.inWindow(row.Day) {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// ReceivedPerDay aggregates lot intake by the day stock hit the shelf,
// optionally scoped like SalesPerDay.
func (r *StatsRepository) ReceivedPerDay(ctx context.Context, filter SalesFilter) ([]DayQuantity, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}

	var rows []DayQuantity
	err := r.db.WithContext(ctx).
		Raw(receivedPerDayQuery, filter.ProductLabel, filter.ProductLabel).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	filtered := rows[:0]
	for _, row := range rows {
		if filter.inWindow(row.Day) {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// LotsAndSales combines the intake and sales reports under one filter.
func (r *StatsRepository) LotsAndSales(ctx context.Context, filter SalesFilter) (*LotsAndSalesReport, error) {
	received, err := r.ReceivedPerDay(ctx, filter)
	if err != nil {
		return nil, err
	}
	sales, err := r.SalesPerDay(ctx, filter)
	if err != nil {
		return nil, err
	}

	report := &LotsAndSalesReport{Received: received, Sales: sales}
	for _, row := range received {
		report.TotalReceived += row.Units
	}
	for _, row := range sales {
		report.TotalSold += row.Units
	}
	return report, nil
}

func (f SalesFilter) validate() error {
	if f.Month < 0 || f.Month > 12 {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid month value: %d", f.Month))
	}
	return nil
}

// inWindow reports whether a day key falls inside the month/year window.
// Unparseable keys are dropped rather than guessed at.
func (f SalesFilter) inWindow(dayKey string) bool {
	if f.Month == 0 && f.Year == 0 {
		return true
	}
	day, err := time.Parse("2006-01-02", dayKey)
	if err != nil {
		return false
	}
	if f.Year != 0 && day.Year() != f.Year {
		return false
	}
	if f.Month != 0 && int(day.Month()) != f.Month {
		return false
	}
	return true
}
