// Package apitest runs an in-process stand-in for the reservation backend.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"bikemetro/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const (
	accessTTL      = 5 * time.Minute
	reservationTTL = 10 * time.Minute
)

type account struct {
	password string
	profile  models.Profile
}

type Server struct {
	*httptest.Server

	e      *echo.Echo
	secret []byte

	mu           sync.Mutex
	now          func() time.Time
	nextUserID   int
	users        map[string]*account
	stations     []models.Station
	spaces       map[int][]models.Space
	reservations map[uuid.UUID]*models.Reservation
	generation   int
	failRefresh  bool
	cancelRecord bool
	cancelGate   chan struct{}
	refreshGate  chan struct{}
	hits         map[string]int
}

// New starts the server. Call Close when done.
func New() *Server {
	s := &Server{
		e:            echo.New(),
		secret:       []byte("apitest-secret"),
		now:          time.Now,
		nextUserID:   1,
		users:        make(map[string]*account),
		spaces:       make(map[int][]models.Space),
		reservations: make(map[uuid.UUID]*models.Reservation),
		hits:         make(map[string]int),
	}
	s.e.HideBanner = true
	s.e.HidePort = true
	s.seed()
	s.routes()
	s.Server = httptest.NewServer(s.e)
	return s
}

// BaseURL is the API root to hand to the client.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

func (s *Server) routes() {
	s.e.Use(s.countHits)

	g := s.e.Group("/api")
	g.POST("/auth/login/", s.login)
	g.POST("/auth/refresh/", s.refresh)
	g.POST("/auth/register/", s.register)

	auth := g.Group("", s.requireAuth)
	auth.GET("/usuarios/me/", s.me)
	auth.PUT("/usuarios/update_profile/", s.updateProfile)
	auth.GET("/estaciones/", s.listStations)
	auth.GET("/estaciones/:id/espacios/", s.listSpaces)
	auth.POST("/reservas/", s.createReservation)
	auth.GET("/reservas/activas/", s.activeReservations)
	auth.GET("/reservas/historial/", s.historyReservations)
	auth.GET("/reservas/:id/", s.getReservation)
	auth.POST("/reservas/:id/confirmar/", s.confirmReservation)
	auth.POST("/reservas/:id/finalizar/", s.finishReservation)
	auth.POST("/reservas/:id/cancelar/", s.cancelReservation)
}

func (s *Server) seed() {
	s.stations = []models.Station{
		{
			ID: 1, Name: "Baquedano", Line: "L1", LineDisplay: "Línea 1",
			Latitude: decimal.RequireFromString("-33.437200"), Longitude: decimal.RequireFromString("-70.634400"),
			Status: "ACTIVO", StatusDisplay: "Activo",
		},
		{
			ID: 2, Name: "Los Héroes", Line: "L2", LineDisplay: "Línea 2",
			Latitude: decimal.RequireFromString("-33.446100"), Longitude: decimal.RequireFromString("-70.660500"),
			Status: "ACTIVO", StatusDisplay: "Activo",
		},
	}

	id := 1
	for _, st := range s.stations {
		for row := 1; row <= 2; row++ {
			for _, col := range []string{"A", "B", "C"} {
				s.spaces[st.ID] = append(s.spaces[st.ID], models.Space{
					ID:     id,
					Row:    row,
					Column: col,
					Code:   col + strconv.Itoa(row),
					Status: models.SpaceAvailable,
				})
				id++
			}
		}
	}
	// One occupied and one in maintenance at the first station.
	s.spaces[1][1].Status = models.SpaceOccupied
	s.spaces[1][5].Status = models.SpaceMaintenance
}

// Test controls

// AddUser registers an account directly.
func (s *Server) AddUser(nickname, password string) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(nickname, password, models.Profile{Nickname: nickname, Name: nickname, Email: nickname + "@example.com"})
}

func (s *Server) addUserLocked(nickname, password string, p models.Profile) models.Profile {
	p.ID = s.nextUserID
	s.nextUserID++
	s.users[nickname] = &account{password: password, profile: p}
	return p
}

// Tokens mints a valid pair for an existing user.
func (s *Server) Tokens(nickname string) models.Tokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.users[nickname]
	return s.tokensLocked(acc.profile.ID)
}

// SetNow replaces the server clock.
func (s *Server) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Server) clock() time.Time {
	s.mu.Lock()
	now := s.now
	s.mu.Unlock()
	return now()
}

// ExpireAccessTokens invalidates every access token issued so far.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

func (s *Server) SetRefreshFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetCancelReturnsRecord makes cancel answer with the reservation instead
// of a bare message.
func (s *Server) SetCancelReturnsRecord(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelRecord = v
}

// BlockCancel holds cancel requests until the returned release is called.
func (s *Server) BlockCancel() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.cancelGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// BlockRefresh holds refresh requests until the returned release is called.
func (s *Server) BlockRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetReservationStatus moves a reservation server-side.
func (s *Server) SetReservationStatus(id uuid.UUID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reservations[id]; ok {
		r.Status = status
	}
}

func (s *Server) Reservation(id uuid.UUID) (models.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return models.Reservation{}, false
	}
	return *r, true
}

// Hits counts requests by method and route pattern, e.g. "POST /api/reservas/:id/cancelar/".
func (s *Server) Hits(method, route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+route]
}

func (s *Server) countHits(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		s.mu.Lock()
		s.hits[c.Request().Method+" "+c.Path()]++
		s.mu.Unlock()
		return err
	}
}

// Auth

func (s *Server) tokensLocked(userID int) models.Tokens {
	now := s.now()
	access, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"gen":        s.generation,
		"exp":        now.Add(accessTTL).Unix(),
		"jti":        uuid.NewString(),
	}).SignedString(s.secret)
	refresh, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"token_type": "refresh",
		"user_id":    userID,
		"exp":        now.Add(24 * time.Hour).Unix(),
		"jti":        uuid.NewString(),
	}).SignedString(s.secret)
	return models.Tokens{Access: access, Refresh: refresh}
}

func (s *Server) parse(raw, tokenType string) (jwt.MapClaims, bool) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, echo.ErrUnauthorized
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock))
	if err != nil || !tok.Valid {
		return nil, false
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || claims["token_type"] != tokenType {
		return nil, false
	}
	return claims, true
}

func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Authentication credentials were not provided."})
		}
		claims, ok := s.parse(strings.TrimPrefix(auth, "Bearer "), "access")

		s.mu.Lock()
		gen := s.generation
		s.mu.Unlock()

		if !ok || int(claims["gen"].(float64)) != gen {
			return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Given token not valid for any token type", "code": "token_not_valid"})
		}
		c.Set("user_id", int(claims["user_id"].(float64)))
		return next(c)
	}
}

func (s *Server) login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.users[req.Username]
	if !ok || acc.password != req.Password {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "No active account found with the given credentials"})
	}
	return c.JSON(http.StatusOK, s.tokensLocked(acc.profile.ID))
}

func (s *Server) refresh(c echo.Context) error {
	var req models.RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error"})
	}
	if req.Refresh == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"refresh": []string{"This field is required."}})
	}

	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	claims, ok := s.parse(req.Refresh, "refresh")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok || s.failRefresh {
		return c.JSON(http.StatusUnauthorized, echo.Map{"detail": "Token is invalid or expired", "code": "token_not_valid"})
	}
	pair := s.tokensLocked(int(claims["user_id"].(float64)))
	return c.JSON(http.StatusOK, models.Tokens{Access: pair.Access})
}

func (s *Server) register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error"})
	}

	fieldErrs := echo.Map{}
	if req.Nickname == "" {
		fieldErrs["nickname"] = []string{"Este campo es requerido."}
	}
	if req.Email == "" {
		fieldErrs["email"] = []string{"Este campo es requerido."}
	}
	if req.Password != req.PasswordConfirm {
		fieldErrs["password"] = []string{"Las contraseñas no coinciden"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[req.Nickname]; exists {
		fieldErrs["nickname"] = []string{"Ya existe un usuario con este nickname."}
	}
	if len(fieldErrs) > 0 {
		return c.JSON(http.StatusBadRequest, fieldErrs)
	}

	p := s.addUserLocked(req.Nickname, req.Password, models.Profile{
		Nickname: req.Nickname,
		Name:     req.Name,
		Email:    req.Email,
		RUT:      req.RUT,
		Phone:    req.Phone,
	})
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) accountLocked(c echo.Context) *account {
	id, _ := c.Get("user_id").(int)
	for _, acc := range s.users {
		if acc.profile.ID == id {
			return acc
		}
	}
	return nil
}

func (s *Server) me(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accountLocked(c)
	if acc == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "No encontrado."})
	}
	return c.JSON(http.StatusOK, acc.profile)
}

func (s *Server) updateProfile(c echo.Context) error {
	var upd models.ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acc := s.accountLocked(c)
	if acc == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "No encontrado."})
	}
	if upd.Email != nil && !strings.Contains(*upd.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"email": []string{"Introduzca una dirección de correo electrónico válida."}})
	}
	if upd.Name != nil {
		acc.profile.Name = *upd.Name
	}
	if upd.Email != nil {
		acc.profile.Email = *upd.Email
	}
	if upd.Phone != nil {
		acc.profile.Phone = *upd.Phone
	}
	if upd.BipCardNumber != nil {
		acc.profile.BipCardNumber = *upd.BipCardNumber
	}
	return c.JSON(http.StatusOK, acc.profile)
}

// Stations

func (s *Server) listStations(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Station, 0, len(s.stations))
	for _, st := range s.stations {
		st.TotalSpaces = len(s.spaces[st.ID])
		for _, sp := range s.spaces[st.ID] {
			if sp.Selectable() {
				st.AvailableSpaces++
			}
		}
		out = append(out, st)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) listSpaces(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "No encontrado."})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	spaces, ok := s.spaces[id]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"detail": "No encontrado."})
	}
	return c.JSON(http.StatusOK, spaces)
}

// Reservations

func (s *Server) spaceLocked(stationID, spaceID int) *models.Space {
	for i := range s.spaces[stationID] {
		if s.spaces[stationID][i].ID == spaceID {
			return &s.spaces[stationID][i]
		}
	}
	return nil
}

func (s *Server) releaseLocked(r *models.Reservation) {
	if sp := s.spaceLocked(r.StationID, r.SpaceID); sp != nil {
		sp.Status = models.SpaceAvailable
	}
}

func (s *Server) touchLocked(r *models.Reservation) {
	now := s.now()
	r.UpdatedAt = &now
}

func (s *Server) createReservation(c echo.Context) error {
	var req models.CreateReservationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"detail": "JSON parse error"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sp := s.spaceLocked(req.StationID, req.SpaceID)
	if sp == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"espacio": []string{"Espacio inválido."}})
	}
	if !sp.Selectable() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "El espacio no está disponible"})
	}

	userID, _ := c.Get("user_id").(int)
	now := s.now()
	exp := now.Add(reservationTTL)
	freeHours := 2
	r := &models.Reservation{
		ID:          uuid.New(),
		UserID:      userID,
		StationID:   req.StationID,
		StationName: s.stationNameLocked(req.StationID),
		SpaceID:     sp.ID,
		SpaceCode:   sp.Code,
		Status:      "PENDIENTE",
		ReservedAt:  now,
		ExpiresAt:   &exp,
		EntryQR:     uuid.NewString(),
		ExitQR:      uuid.NewString(),
		FreeHours:   &freeHours,
		HourlyRate:  decimal.NewFromInt(500),
		TotalCost:   decimal.Zero,
		CreatedAt:   &now,
		UpdatedAt:   &now,
	}
	sp.Status = models.SpaceReserved
	s.reservations[r.ID] = r

	return c.JSON(http.StatusCreated, r)
}

func (s *Server) stationNameLocked(id int) string {
	for _, st := range s.stations {
		if st.ID == id {
			return st.Name
		}
	}
	return ""
}

func (s *Server) filterLocked(c echo.Context, statuses ...string) []models.Reservation {
	userID, _ := c.Get("user_id").(int)
	out := []models.Reservation{}
	for _, r := range s.reservations {
		if r.UserID != userID {
			continue
		}
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, *r)
				break
			}
		}
	}
	return out
}

func (s *Server) activeReservations(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.JSON(http.StatusOK, s.filterLocked(c, "PENDIENTE", "CONFIRMADA", "EN_CURSO"))
}

func (s *Server) historyReservations(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Paginated on purpose; the client accepts both shapes.
	results := s.filterLocked(c, "FINALIZADA", "CANCELADA", "EXPIRADA")
	return c.JSON(http.StatusOK, echo.Map{"count": len(results), "results": results})
}

func (s *Server) reservationLocked(c echo.Context) (*models.Reservation, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"detail": "No encontrado."})
	}
	r, ok := s.reservations[id]
	userID, _ := c.Get("user_id").(int)
	if !ok || r.UserID != userID {
		return nil, c.JSON(http.StatusNotFound, echo.Map{"detail": "No encontrado."})
	}
	return r, nil
}

func (s *Server) getReservation(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.reservationLocked(c)
	if r == nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) confirmReservation(c echo.Context) error {
	var req models.QRRequest
	_ = c.Bind(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.reservationLocked(c)
	if r == nil {
		return err
	}
	if r.Status != "PENDIENTE" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "La reserva no está en estado pendiente"})
	}
	if r.EntryQR != req.QRCode {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Código QR inválido"})
	}
	now := s.now()
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		r.Status = "EXPIRADA"
		s.releaseLocked(r)
		s.touchLocked(r)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "La reserva ha expirado"})
	}

	r.Status = "CONFIRMADA"
	r.EnteredAt = &now
	if sp := s.spaceLocked(r.StationID, r.SpaceID); sp != nil {
		sp.Status = models.SpaceOccupied
	}
	s.touchLocked(r)
	return c.JSON(http.StatusOK, r)
}

func (s *Server) finishReservation(c echo.Context) error {
	var req models.QRRequest
	_ = c.Bind(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.reservationLocked(c)
	if r == nil {
		return err
	}
	if r.Status != "CONFIRMADA" && r.Status != "EN_CURSO" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "La reserva no puede ser finalizada"})
	}
	if r.ExitQR != req.QRCode {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Código QR inválido"})
	}

	now := s.now()
	r.ExitedAt = &now
	r.Status = "FINALIZADA"
	r.TotalCost = decimal.Zero
	if r.EnteredAt != nil {
		free := 0
		if r.FreeHours != nil {
			free = *r.FreeHours
		}
		extra := now.Sub(*r.EnteredAt) - time.Duration(free)*time.Hour
		if extra > 0 {
			blocks := decimal.NewFromFloat(extra.Hours()*2 + 0.5).Floor()
			r.TotalCost = blocks.Mul(r.HourlyRate.Div(decimal.NewFromInt(2))).Round(2)
		}
	}
	s.releaseLocked(r)
	s.touchLocked(r)

	return c.JSON(http.StatusOK, echo.Map{
		"reserva": r,
		"mensaje": fmt.Sprintf("Reserva finalizada. Costo total: $%s", r.TotalCost.StringFixed(2)),
	})
}

func (s *Server) cancelReservation(c echo.Context) error {
	s.mu.Lock()
	gate := s.cancelGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.reservationLocked(c)
	if r == nil {
		return err
	}
	if r.Status != "PENDIENTE" && r.Status != "CONFIRMADA" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "La reserva no puede ser cancelada"})
	}

	r.Status = "CANCELADA"
	s.releaseLocked(r)
	s.touchLocked(r)

	if s.cancelRecord {
		return c.JSON(http.StatusOK, r)
	}
	return c.JSON(http.StatusOK, echo.Map{"mensaje": "Reserva cancelada exitosamente"})
}
