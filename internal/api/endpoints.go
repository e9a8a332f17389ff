package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"bikemetro/internal/status"
	"bikemetro/models"

	"github.com/google/uuid"
)

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (models.Tokens, error) {
	var tokens models.Tokens
	err := c.do(ctx, request{
		endpoint: "auth_login",
		method:   http.MethodPost,
		path:     "/auth/login/",
		body:     models.LoginRequest{Username: username, Password: password},
	}, &tokens)
	return tokens, err
}

// Register creates an account. The server replies with the created user.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (models.Profile, error) {
	var user models.Profile
	err := c.do(ctx, request{
		endpoint: "auth_register",
		method:   http.MethodPost,
		path:     "/auth/register/",
		body:     req,
	}, &user)
	return user, err
}

func (c *Client) Me(ctx context.Context) (models.Profile, error) {
	var user models.Profile
	err := c.do(ctx, request{
		endpoint: "users_me",
		method:   http.MethodGet,
		path:     "/usuarios/me/",
		auth:     true,
	}, &user)
	return user, err
}

func (c *Client) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.Profile, error) {
	var user models.Profile
	err := c.do(ctx, request{
		endpoint: "users_update_profile",
		method:   http.MethodPut,
		path:     "/usuarios/update_profile/",
		body:     upd,
		auth:     true,
	}, &user)
	return user, err
}

func (c *Client) Stations(ctx context.Context) ([]models.Station, error) {
	var stations list[models.Station]
	err := c.do(ctx, request{
		endpoint: "stations_list",
		method:   http.MethodGet,
		path:     "/estaciones/",
		auth:     true,
	}, &stations)
	return stations, err
}

// Spaces returns the space matrix of a station ordered by row and column.
func (c *Client) Spaces(ctx context.Context, stationID int) ([]models.Space, error) {
	var spaces list[models.Space]
	err := c.do(ctx, request{
		endpoint: "stations_spaces",
		method:   http.MethodGet,
		path:     fmt.Sprintf("/estaciones/%d/espacios/", stationID),
		auth:     true,
	}, &spaces)
	return spaces, err
}

func (c *Client) CreateReservation(ctx context.Context, stationID, spaceID int) (models.Reservation, error) {
	var r models.Reservation
	err := c.do(ctx, request{
		endpoint: "reservations_create",
		method:   http.MethodPost,
		path:     "/reservas/",
		body:     models.CreateReservationRequest{StationID: stationID, SpaceID: spaceID},
		auth:     true,
	}, &r)
	return r, err
}

// ActiveReservations lists reservations in PENDIENTE, CONFIRMADA or EN_CURSO.
func (c *Client) ActiveReservations(ctx context.Context) ([]models.Reservation, error) {
	var rs list[models.Reservation]
	err := c.do(ctx, request{
		endpoint: "reservations_active",
		method:   http.MethodGet,
		path:     "/reservas/activas/",
		auth:     true,
	}, &rs)
	return rs, err
}

// ReservationHistory lists finished, cancelled and expired reservations.
func (c *Client) ReservationHistory(ctx context.Context) ([]models.Reservation, error) {
	var rs list[models.Reservation]
	err := c.do(ctx, request{
		endpoint: "reservations_history",
		method:   http.MethodGet,
		path:     "/reservas/historial/",
		auth:     true,
	}, &rs)
	return rs, err
}

func (c *Client) GetReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error) {
	var r models.Reservation
	err := c.do(ctx, request{
		endpoint: "reservations_get",
		method:   http.MethodGet,
		path:     "/reservas/" + id.String() + "/",
		auth:     true,
	}, &r)
	return r, err
}

// ConfirmReservation submits the entry QR payload.
func (c *Client) ConfirmReservation(ctx context.Context, id uuid.UUID, qr string) (models.Reservation, error) {
	var r models.Reservation
	err := c.do(ctx, request{
		endpoint: "reservations_confirm",
		method:   http.MethodPost,
		path:     "/reservas/" + id.String() + "/confirmar/",
		body:     models.QRRequest{QRCode: qr},
		auth:     true,
	}, &r)
	return r, err
}

// FinishReservation submits the exit QR payload and returns the final record.
func (c *Client) FinishReservation(ctx context.Context, id uuid.UUID, qr string) (models.FinishResponse, error) {
	var resp models.FinishResponse
	err := c.do(ctx, request{
		endpoint: "reservations_finish",
		method:   http.MethodPost,
		path:     "/reservas/" + id.String() + "/finalizar/",
		body:     models.QRRequest{QRCode: qr},
		auth:     true,
	}, &resp)
	return resp, err
}

// CancelReservation asks the server to cancel. The server may answer with
// the updated reservation or with a bare acknowledgement; in the latter
// case the returned reservation is nil and the caller must re-fetch.
func (c *Client) CancelReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		endpoint: "reservations_cancel",
		method:   http.MethodPost,
		path:     "/reservas/" + id.String() + "/cancelar/",
		auth:     true,
	}, &raw)
	if err != nil {
		return nil, err
	}

	var probe struct {
		ID     *uuid.UUID `json:"id"`
		Estado string     `json:"estado"`
	}
	if len(bytes.TrimSpace(raw)) == 0 || json.Unmarshal(raw, &probe) != nil || probe.ID == nil || probe.Estado == "" {
		return nil, nil
	}

	var r models.Reservation
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, status.Unexpected(http.StatusOK, fmt.Errorf("reservations_cancel: json.Unmarshal: %w", err))
	}
	return &r, nil
}
