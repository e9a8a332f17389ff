package models

import "github.com/shopspring/decimal"

type Station struct {
	ID              int             `json:"id"`
	Name            string          `json:"nombre"`
	Line            string          `json:"linea"`
	LineDisplay     string          `json:"linea_display"`
	Latitude        decimal.Decimal `json:"latitud"`
	Longitude       decimal.Decimal `json:"longitud"`
	Status          string          `json:"estado"`
	StatusDisplay   string          `json:"estado_display"`
	TotalSpaces     int             `json:"espacios_totales"`
	AvailableSpaces int             `json:"espacios_disponibles"`
}

type SpaceStatus string

const (
	SpaceAvailable   SpaceStatus = "DISPONIBLE"
	SpaceOccupied    SpaceStatus = "OCUPADO"
	SpaceReserved    SpaceStatus = "RESERVADO"
	SpaceMaintenance SpaceStatus = "MANTENIMIENTO"
)

// Color is the legend color used for a space in the station grid.
func (s SpaceStatus) Color() string {
	switch s {
	case SpaceAvailable:
		return "#10B981"
	case SpaceOccupied:
		return "#EF4444"
	case SpaceReserved:
		return "#3B82F6"
	case SpaceMaintenance:
		return "#F59E0B"
	default:
		return "#6B7280"
	}
}

type Space struct {
	ID            int         `json:"id"`
	Row           int         `json:"fila"`
	Column        string      `json:"columna"`
	Code          string      `json:"codigo"`
	Status        SpaceStatus `json:"estado"`
	StatusDisplay string      `json:"estado_display,omitempty"`
}

// Selectable reports whether the space can be picked for a new reservation.
func (s Space) Selectable() bool {
	return s.Status == SpaceAvailable
}
