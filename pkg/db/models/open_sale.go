package models

import (
	"time"

	"github.com/google/uuid"
)

// OpenSale is a manager-initiated bulk sale. It is a completed fact the
// moment it is created; there is no state machine.
type OpenSale struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OpenSaleDate time.Time `gorm:"column:open_sale_date;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ProductOpenSale links an open sale to a lot with the sold quantity.
// Immutable once created.
type ProductOpenSale struct {
	LotID      uuid.UUID `gorm:"column:lot_id;type:uuid;primaryKey"`
	OpenSaleID uuid.UUID `gorm:"column:open_sale_id;type:uuid;primaryKey"`
	Quantity   int       `gorm:"column:quantity;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
