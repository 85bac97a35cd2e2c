package auth

import (
	"github.com/google/uuid"

	"github.com/terroirco/farmlot-backend/pkg/enums"
)

// Actor is the explicit caller identity passed into every workflow.
// Services never read identity from ambient context.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsZero reports whether the actor carries no identity.
func (a Actor) IsZero() bool {
	return a.UserID == uuid.Nil
}
