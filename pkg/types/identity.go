package types

import "github.com/google/uuid"

// Identity is the resolved caller for cart-scoped operations: either an
// authenticated user or an anonymous session, never both.
type Identity struct {
	UserID     *uuid.UUID
	SessionKey *string
}

// IsAuthenticated reports whether the identity carries a user.
func (i Identity) IsAuthenticated() bool {
	return i.UserID != nil && *i.UserID != uuid.Nil
}

// IsAnonymous reports whether the identity is session-only.
func (i Identity) IsAnonymous() bool {
	return !i.IsAuthenticated() && i.SessionKey != nil && *i.SessionKey != ""
}

// Valid reports whether exactly one identity dimension is set.
func (i Identity) Valid() bool {
	return i.IsAuthenticated() || i.IsAnonymous()
}
