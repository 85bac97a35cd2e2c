package enums

import "fmt"

// ReservationState represents the lifecycle state of a customer reservation.
type ReservationState string

const (
	ReservationStateReserved  ReservationState = "reserved"
	ReservationStateCanceled  ReservationState = "canceled"
	ReservationStateAbandoned ReservationState = "abandoned"
	ReservationStateRetrieved ReservationState = "retrieved"
)

var validReservationStates = []ReservationState{
	ReservationStateReserved,
	ReservationStateCanceled,
	ReservationStateAbandoned,
	ReservationStateRetrieved,
}

var reservationTransitions = map[ReservationState]map[ReservationState]bool{
	ReservationStateReserved: {
		ReservationStateCanceled:  true,
		ReservationStateAbandoned: true,
		ReservationStateRetrieved: true,
	},
	ReservationStateCanceled:  {},
	ReservationStateAbandoned: {},
	ReservationStateRetrieved: {},
}

// String implements fmt.Stringer.
func (s ReservationState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReservationState.
func (s ReservationState) IsValid() bool {
	for _, candidate := range validReservationStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves this state.
func (s ReservationState) IsTerminal() bool {
	return s.IsValid() && len(reservationTransitions[s]) == 0
}

// CanTransition reports whether the table allows moving from s to target.
func (s ReservationState) CanTransition(target ReservationState) bool {
	return reservationTransitions[s][target]
}

// ParseReservationState converts raw input into a ReservationState.
func ParseReservationState(value string) (ReservationState, error) {
	for _, candidate := range validReservationStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reservation state %q", value)
}
