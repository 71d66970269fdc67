package services

import (
	"context"

	"github.com/onlinebus/booking-backend/internal/models"
)

// The stores below are satisfied by the repositories in internal/database.

// BookingStore persists seat bookings
type BookingStore interface {
	InsertConfirmed(ctx context.Context, booking *models.Booking) error
	IsSeatBooked(ctx context.Context, busID string, date models.Date, seatNumber string) (bool, error)
	BookedSeatNumbers(ctx context.Context, busID string, date models.Date) ([]string, error)
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	FindForFinalize(ctx context.Context, customerEmail, busID string, date models.Date, seatNumbers []string) ([]models.Booking, error)
	ListByCustomer(ctx context.Context, customerEmail string) ([]models.BookingWithBus, error)
	ListByAgent(ctx context.Context, agentID string) ([]models.BookingWithBus, error)
	Cancel(ctx context.Context, bookingID string) error
}

// BusStore persists buses
type BusStore interface {
	Create(ctx context.Context, bus *models.Bus) error
	GetByID(ctx context.Context, busID string) (*models.Bus, error)
	ListByAgent(ctx context.Context, agentID string) ([]models.Bus, error)
	ListByIDs(ctx context.Context, busIDs []string) (map[string]*models.Bus, error)
	ListAll(ctx context.Context) ([]models.Bus, error)
	Update(ctx context.Context, bus *models.Bus) error
	Delete(ctx context.Context, busID string) error
	StatsForAgent(ctx context.Context, agentID string) (*models.AgentStats, error)
}

// RouteStore persists routes
type RouteStore interface {
	Create(ctx context.Context, route *models.Route) error
	GetByID(ctx context.Context, routeID string) (*models.Route, error)
	ListAll(ctx context.Context) ([]models.Route, error)
	ListByBus(ctx context.Context, busID string) ([]models.Route, error)
	FirstByBus(ctx context.Context, busID string) (*models.Route, error)
	Update(ctx context.Context, route *models.Route) error
	Delete(ctx context.Context, routeID string) error
}

// ScheduleStore persists dated trip schedules
type ScheduleStore interface {
	Create(ctx context.Context, schedule *models.TripSchedule) error
	ListByRoutesAndDate(ctx context.Context, routeIDs []string, date models.Date) ([]models.TripSchedule, error)
	FirstByBusAndDate(ctx context.Context, busID string, date models.Date) (*models.TripSchedule, error)
	ListByBus(ctx context.Context, busID string) ([]models.TripSchedule, error)
	GetByID(ctx context.Context, scheduleID string) (*models.TripSchedule, error)
	Delete(ctx context.Context, scheduleID string) error
}

// SeatLayoutStore persists one seat layout per bus
type SeatLayoutStore interface {
	Upsert(ctx context.Context, layout *models.SeatLayout) error
	GetByBusID(ctx context.Context, busID string) (*models.SeatLayout, error)
	ListByBusIDs(ctx context.Context, busIDs []string) (map[string]*models.SeatLayout, error)
}

// StaffStore persists bus crew
type StaffStore interface {
	Create(ctx context.Context, staff *models.Staff) error
	GetByID(ctx context.Context, staffID string) (*models.Staff, error)
	ListByBus(ctx context.Context, busID string) ([]models.Staff, error)
	Update(ctx context.Context, staff *models.Staff) error
	Delete(ctx context.Context, staffID string) error
}

// UserStore persists accounts
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	ListByRole(ctx context.Context, role string) ([]models.User, error)
	DeleteWithRole(ctx context.Context, userID, role string) error
}

// SearchCache fronts the search aggregator. Implemented by internal/cache.
type SearchCache interface {
	Get(ctx context.Context, key string) (*models.SearchResponse, error)
	Set(ctx context.Context, key string, resp *models.SearchResponse) error
	InvalidateAll(ctx context.Context) error
}

// SeatNotifier publishes seat-map changes. Implemented by internal/websocket.
type SeatNotifier interface {
	SeatsBooked(busID, travelDate string, seatNumbers ...string)
	SeatsReleased(busID, travelDate string, seatNumbers ...string)
}

// Requester is the authenticated caller of an operation
type Requester struct {
	UserID string
	Email  string
	Role   string
}
