package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/terroirco/farmlot-backend/pkg/enums"
)

// ProductLot is the stock ledger row: a finite batch of produce proposed by a
// producer. Quantity columns are mutated only through internal/lots ledger
// operations, always under a row lock.
type ProductLot struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProducerID uuid.UUID `gorm:"column:producer_id;type:uuid;not null"`

	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`

	InitialQuantity   int `gorm:"column:initial_quantity;not null"`
	RemainingQuantity int `gorm:"column:remaining_quantity;not null"`
	ReservedQuantity  int `gorm:"column:reserved_quantity;not null;default:0"`
	SoldQuantity      int `gorm:"column:sold_quantity;not null;default:0"`
	RemovedQuantity   int `gorm:"column:removed_quantity;not null;default:0"`

	State enums.LotState `gorm:"column:state;not null;default:pending"`

	ProposalDate     time.Time  `gorm:"column:proposal_date;not null"`
	AvailabilityDate time.Time  `gorm:"column:availability_date;not null"`
	ReceiptDate      *time.Time `gorm:"column:receipt_date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Balanced reports whether the conservation law holds: the initial quantity
// equals the sum of remaining, reserved, sold and removed stock.
func (l *ProductLot) Balanced() bool {
	return l.InitialQuantity ==
		l.RemainingQuantity+l.ReservedQuantity+l.SoldQuantity+l.RemovedQuantity
}
