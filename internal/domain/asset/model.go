package asset

import (
	"time"

	"github.com/google/uuid"

	"github.com/medcore/hms/internal/platform/apperr"
)

const (
	StatusAvailable   = "available"
	StatusInUse       = "in_use"
	StatusMaintenance = "maintenance"
	StatusRetired     = "retired"
)

var (
	ErrNotFound     = apperr.NotFound("asset")
	ErrDuplicateTag = apperr.Conflict("asset tag already in use")
)

var validStatuses = map[string]bool{
	StatusAvailable:   true,
	StatusInUse:       true,
	StatusMaintenance: true,
	StatusRetired:     true,
}

// Retired is terminal. Assignment moves an asset into in_use and release
// moves it back, so those two are not reachable through a plain status change.
var transitions = map[string][]string{
	StatusAvailable:   {StatusMaintenance, StatusRetired},
	StatusInUse:       {StatusMaintenance},
	StatusMaintenance: {StatusAvailable, StatusRetired},
	StatusRetired:     {},
}

func canTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Asset struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	Tag            string     `db:"tag" json:"tag"`
	Name           string     `db:"name" json:"name"`
	Category       string     `db:"category" json:"category"`
	SerialNumber   *string    `db:"serial_number" json:"serial_number,omitempty"`
	Location       *string    `db:"location" json:"location,omitempty"`
	Status         string     `db:"status" json:"status"`
	DepartmentID   *uuid.UUID `db:"department_id" json:"department_id,omitempty"`
	AssignedAt     *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	PurchasedAt    *time.Time `db:"purchased_at" json:"purchased_at,omitempty"`
	LastServicedAt *time.Time `db:"last_serviced_at" json:"last_serviced_at,omitempty"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

type Filter struct {
	Status       string
	Category     string
	DepartmentID *uuid.UUID
}
