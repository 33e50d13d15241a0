package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleBackoffice UserRole = "backoffice"
	RoleAccountant UserRole = "contador"
	RoleAdmin      UserRole = "admin"
)

type User struct {
	ID        uuid.UUID `db:"id"`
	Username  string    `db:"username"`
	Email     string    `db:"email"`
	Password  string    `db:"password"`
	Role      UserRole  `db:"role"`
	UnitID    string    `db:"unit_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}
