package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Reservation struct {
	ID            uuid.UUID `json:"id"`
	UserID        int       `json:"usuario,omitempty"`
	StationID     int       `json:"estacion"`
	StationName   string    `json:"estacion_nombre"`
	SpaceID       int       `json:"espacio"`
	SpaceCode     string    `json:"espacio_codigo"`
	Status        string    `json:"estado"` // PENDIENTE, CONFIRMADA, EN_CURSO, FINALIZADA, CANCELADA, EXPIRADA
	StatusDisplay string    `json:"estado_display"`

	ReservedAt time.Time  `json:"fecha_reserva"`
	ExpiresAt  *time.Time `json:"fecha_expiracion_reserva"`
	EnteredAt  *time.Time `json:"fecha_entrada,omitempty"`
	ExitedAt   *time.Time `json:"fecha_salida,omitempty"`

	EntryQR string `json:"qr_entrada,omitempty"`
	ExitQR  string `json:"qr_salida,omitempty"`

	FreeHours  *int            `json:"horas_gratis"` // nil when the server sent none
	HourlyRate decimal.Decimal `json:"costo_hora_extra"`
	TotalCost  decimal.Decimal `json:"costo_total"`
	Paid       bool            `json:"pagado"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
}

type CreateReservationRequest struct {
	StationID int `json:"estacion"`
	SpaceID   int `json:"espacio"`
}

type QRRequest struct {
	QRCode string `json:"qr_code"`
}

// FinishResponse is returned by the exit scan endpoint.
type FinishResponse struct {
	Reservation Reservation `json:"reserva"`
	Message     string      `json:"mensaje"`
}
