package entity

import (
	"time"

	"github.com/google/uuid"
)

// Base carries the store-owned columns. Callers never set them.
type Base struct {
	ID        uuid.UUID `db:"id"`
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
