package domain

import (
	"time"
)

// Instrument represents a tradable entity listed on the exchange
type Instrument struct {
	ID          string    `json:"id" validate:"omitempty,uuid"`
	Symbol      string    `json:"symbol" validate:"required,min=1,max=12"`
	Name        string    `json:"name" validate:"required,max=200"`
	Sector      string    `json:"sector,omitempty" validate:"max=100"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}
