package entity

import (
	"time"

	"github.com/google/uuid"
)

type Student struct {
	ID        uuid.UUID `db:"id"`
	FullName  string    `db:"full_name"`
	CreatedAt time.Time `db:"created_at"`
}
