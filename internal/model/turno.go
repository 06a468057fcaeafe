package model

import "time"

// Turno is one court booking.
type Turno struct {
	ID        uint64    `json:"id"`
	Tenant    string    `json:"tenant"`
	Cancha    string    `json:"cancha"`
	Hora      string    `json:"hora"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
