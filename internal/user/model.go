package user

import (
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/storefront-service/internal/auth"
)

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         auth.Role `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

func (u User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Role: u.Role}
}
