package reservation

import (
	"context"
	"sync"
	"time"

	"bikemetro/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func pendingReservation(expiresIn time.Duration) models.Reservation {
	exp := testNow.Add(expiresIn)
	return models.Reservation{
		ID:         uuid.MustParse("7b0a3c2e-5f1d-4c8e-9a6b-2d4e6f8a0b1c"),
		StationID:  3,
		SpaceID:    12,
		SpaceCode:  "B4",
		Status:     string(StatusPending),
		ReservedAt: testNow,
		ExpiresAt:  &exp,
	}
}

func withStatus(r models.Reservation, s Status) models.Reservation {
	r.Status = string(s)
	return r
}

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) GetReservation(ctx context.Context, id uuid.UUID) (models.Reservation, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Reservation), args.Error(1)
}

func (m *mockAPI) CancelReservation(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.Reservation)
	return r, args.Error(1)
}

func (m *mockAPI) ActiveReservations(ctx context.Context) ([]models.Reservation, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).([]models.Reservation)
	return r, args.Error(1)
}
