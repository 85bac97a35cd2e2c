package enums

import "fmt"

// LotState represents the lifecycle state of a product lot.
type LotState string

const (
	LotStatePending  LotState = "pending"
	LotStateAccepted LotState = "accepted"
	LotStateRejected LotState = "rejected"
	LotStateForSale  LotState = "for_sale"
	LotStateSoldOut  LotState = "sold_out"
)

var validLotStates = []LotState{
	LotStatePending,
	LotStateAccepted,
	LotStateRejected,
	LotStateForSale,
	LotStateSoldOut,
}

// lotTransitions governs the ledger-driven moves between sale states.
// Managers set administrative states directly and do not consult the table.
var lotTransitions = map[LotState]map[LotState]bool{
	LotStatePending:  {LotStateAccepted: true, LotStateRejected: true},
	LotStateAccepted: {LotStateForSale: true},
	LotStateForSale:  {LotStateSoldOut: true},
	LotStateSoldOut:  {LotStateForSale: true},
	LotStateRejected: {},
}

// String implements fmt.Stringer.
func (s LotState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known LotState.
func (s LotState) IsValid() bool {
	for _, candidate := range validLotStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether the table allows moving from s to target.
func (s LotState) CanTransition(target LotState) bool {
	return lotTransitions[s][target]
}

// AdminAssignable reports whether a manager may set this state directly.
// SOLD_OUT is reached only through stock depletion, never by hand.
func (s LotState) AdminAssignable() bool {
	return s == LotStatePending || s == LotStateAccepted ||
		s == LotStateRejected || s == LotStateForSale
}

// DisplayOrder returns the rank used when listing lots grouped by state.
func (s LotState) DisplayOrder() int {
	switch s {
	case LotStatePending:
		return 0
	case LotStateAccepted:
		return 1
	case LotStateForSale:
		return 2
	case LotStateRejected:
		return 3
	case LotStateSoldOut:
		return 4
	default:
		return 5
	}
}

// ParseLotState converts raw input into a LotState.
func ParseLotState(value string) (LotState, error) {
	for _, candidate := range validLotStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lot state %q", value)
}
