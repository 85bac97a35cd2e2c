package lots

import (
	"fmt"

	"github.com/terroirco/farmlot-backend/pkg/db/models"
	"github.com/terroirco/farmlot-backend/pkg/enums"
	pkgerrors "github.com/terroirco/farmlot-backend/pkg/errors"
)

// Ledger operation names, used as metric labels.
const (
	OpAllocateReservation = "allocate_reservation"
	OpAllocateSale        = "allocate_sale"
	OpRelease             = "release"
	OpConfirmSold         = "confirm_sold"
	OpRemoveStock         = "remove_stock"
)

// AllocateReservation moves qty units from remaining into reserved. The only
// precondition is enough remaining stock; the lot's display state does not
// gate a hold. Draining the last unit flips a for-sale lot to sold out.
// Callers must hold the row lock.
func AllocateReservation(lot *models.ProductLot, qty int) error {
	if err := checkAllocatable(lot, qty); err != nil {
		return err
	}
	lot.RemainingQuantity -= qty
	lot.ReservedQuantity += qty
	flipIfDrained(lot)
	return nil
}

// AllocateSale moves qty units from remaining directly into sold. Used by
// open sales, where pickup is immediate and no hold phase exists, so the lot
// must actually be on sale.
func AllocateSale(lot *models.ProductLot, qty int) error {
	if lot.State != enums.LotStateForSale {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("lot is %s, not for sale", lot.State))
	}
	if err := checkAllocatable(lot, qty); err != nil {
		return err
	}
	lot.RemainingQuantity -= qty
	lot.SoldQuantity += qty
	flipIfDrained(lot)
	return nil
}

// Release returns qty reserved units to remaining, undoing an allocation.
// A sold-out lot that regains stock goes back on sale.
func Release(lot *models.ProductLot, qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	if qty > lot.ReservedQuantity {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("cannot release %d units, only %d reserved", qty, lot.ReservedQuantity))
	}
	lot.ReservedQuantity -= qty
	lot.RemainingQuantity += qty
	if lot.State == enums.LotStateSoldOut && lot.RemainingQuantity > 0 &&
		lot.State.CanTransition(enums.LotStateForSale) {
		lot.State = enums.LotStateForSale
	}
	return nil
}

// ConfirmSold converts qty reserved units into sold units when a customer
// picks up a reservation. Remaining stock is untouched, so the state never
// changes here.
func ConfirmSold(lot *models.ProductLot, qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	if qty > lot.ReservedQuantity {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("cannot confirm %d units, only %d reserved", qty, lot.ReservedQuantity))
	}
	lot.ReservedQuantity -= qty
	lot.SoldQuantity += qty
	return nil
}

// RemoveStock writes qty units off the remaining stock (spoilage, producer
// correction). Reserved and sold stock is never removed this way.
func RemoveStock(lot *models.ProductLot, qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	if qty > lot.RemainingQuantity {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("cannot remove %d units, only %d remaining", qty, lot.RemainingQuantity))
	}
	lot.RemainingQuantity -= qty
	lot.RemovedQuantity += qty
	flipIfDrained(lot)
	return nil
}

func checkAllocatable(lot *models.ProductLot, qty int) error {
	if err := checkQty(qty); err != nil {
		return err
	}
	if qty > lot.RemainingQuantity {
		return pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("requested %d units, only %d remaining", qty, lot.RemainingQuantity))
	}
	return nil
}

func checkQty(qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}

func flipIfDrained(lot *models.ProductLot) {
	if lot.RemainingQuantity == 0 && lot.State.CanTransition(enums.LotStateSoldOut) {
		lot.State = enums.LotStateSoldOut
	}
}
