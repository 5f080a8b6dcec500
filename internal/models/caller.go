package models

import "github.com/google/uuid"

// Caller is the authenticated identity an operation runs on behalf of.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

func (c Caller) Is(role Role) bool { return c.Role == role }
