package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/terroirco/farmlot-backend/pkg/enums"
)

// Reservation is a customer's hold on one or more lots. Line items live in
// ProductReservation rows keyed by ID, never as live object references.
type Reservation struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null"`

	State enums.ReservationState `gorm:"column:state;not null;default:reserved"`

	ReservationDate time.Time `gorm:"column:reservation_date;not null"`
	RecoveryDate    time.Time `gorm:"column:recovery_date;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductReservation links a reservation to a lot with the held quantity.
// Immutable once created.
type ProductReservation struct {
	LotID         uuid.UUID `gorm:"column:lot_id;type:uuid;primaryKey"`
	ReservationID uuid.UUID `gorm:"column:reservation_id;type:uuid;primaryKey"`
	Quantity      int       `gorm:"column:quantity;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
