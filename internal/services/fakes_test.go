package services

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/onlinebus/booking-backend/internal/database"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/pkg/mailer"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memoryBookings enforces the confirmed-seat uniqueness the database index provides
type memoryBookings struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
	order    []string
	inserts  int
}

func newMemoryBookings() *memoryBookings {
	return &memoryBookings{bookings: map[string]*models.Booking{}}
}

func seatKey(busID string, date models.Date, seat string) string {
	return busID + "|" + date.String() + "|" + strings.ToUpper(seat)
}

func (m *memoryBookings) InsertConfirmed(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	key := seatKey(b.BusID, b.TravelDate, b.SeatNumber)
	for _, existing := range m.bookings {
		if existing.Status == models.BookingStatusConfirmed &&
			seatKey(existing.BusID, existing.TravelDate, existing.SeatNumber) == key {
			return database.ErrSeatTaken
		}
	}
	copied := *b
	copied.Status = models.BookingStatusConfirmed
	m.bookings[b.ID] = &copied
	m.order = append(m.order, b.ID)
	b.Status = models.BookingStatusConfirmed
	return nil
}

func (m *memoryBookings) IsSeatBooked(_ context.Context, busID string, date models.Date, seat string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := seatKey(busID, date, seat)
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusConfirmed && seatKey(b.BusID, b.TravelDate, b.SeatNumber) == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryBookings) BookedSeatNumbers(_ context.Context, busID string, date models.Date) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var seats []string
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusConfirmed && b.BusID == busID && b.TravelDate.Equal(date.Time) {
			seats = append(seats, b.SeatNumber)
		}
	}
	sort.Strings(seats)
	return seats, nil
}

func (m *memoryBookings) GetByID(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryBookings) FindForFinalize(_ context.Context, email, busID string, date models.Date, seats []string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[string]bool{}
	for _, s := range seats {
		wanted[strings.ToUpper(s)] = true
	}
	result := []models.Booking{}
	for _, id := range m.order {
		b := m.bookings[id]
		if strings.EqualFold(b.CustomerEmail, email) && b.BusID == busID && b.TravelDate.Equal(date.Time) &&
			b.Status == models.BookingStatusConfirmed && wanted[strings.ToUpper(b.SeatNumber)] {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (m *memoryBookings) ListByCustomer(_ context.Context, email string) ([]models.BookingWithBus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []models.BookingWithBus{}
	for _, id := range m.order {
		if b := m.bookings[id]; strings.EqualFold(b.CustomerEmail, email) {
			result = append(result, models.BookingWithBus{Booking: *b})
		}
	}
	return result, nil
}

func (m *memoryBookings) ListByAgent(context.Context, string) ([]models.BookingWithBus, error) {
	return []models.BookingWithBus{}, nil
}

func (m *memoryBookings) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != models.BookingStatusConfirmed {
		return models.ErrNotFound("confirmed booking", id)
	}
	b.Status = models.BookingStatusCancelled
	return nil
}

func (m *memoryBookings) confirmedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.bookings {
		if b.Status == models.BookingStatusConfirmed {
			n++
		}
	}
	return n
}

type memoryBuses struct {
	buses map[string]*models.Bus
	stats *models.AgentStats
}

func (m *memoryBuses) Create(_ context.Context, bus *models.Bus) error {
	for _, existing := range m.buses {
		if existing.BusNumber == bus.BusNumber {
			return database.ErrDuplicate
		}
	}
	m.buses[bus.ID] = bus
	return nil
}

func (m *memoryBuses) GetByID(_ context.Context, id string) (*models.Bus, error) {
	if b, ok := m.buses[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryBuses) ListByIDs(_ context.Context, ids []string) (map[string]*models.Bus, error) {
	result := map[string]*models.Bus{}
	for _, id := range ids {
		if b, ok := m.buses[id]; ok {
			result[id] = b
		}
	}
	return result, nil
}

func (m *memoryBuses) ListByAgent(_ context.Context, agentID string) ([]models.Bus, error) {
	result := []models.Bus{}
	for _, b := range m.buses {
		if b.AgentID == agentID {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (m *memoryBuses) ListAll(context.Context) ([]models.Bus, error) {
	result := []models.Bus{}
	for _, b := range m.buses {
		result = append(result, *b)
	}
	return result, nil
}

func (m *memoryBuses) Update(_ context.Context, bus *models.Bus) error {
	m.buses[bus.ID] = bus
	return nil
}

func (m *memoryBuses) Delete(_ context.Context, id string) error {
	delete(m.buses, id)
	return nil
}

func (m *memoryBuses) StatsForAgent(context.Context, string) (*models.AgentStats, error) {
	copied := *m.stats
	return &copied, nil
}

type memoryRoutes struct {
	routes []*models.Route
}

func (m *memoryRoutes) Create(_ context.Context, r *models.Route) error {
	m.routes = append(m.routes, r)
	return nil
}

func (m *memoryRoutes) GetByID(_ context.Context, id string) (*models.Route, error) {
	for _, r := range m.routes {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memoryRoutes) ListAll(context.Context) ([]models.Route, error) {
	result := make([]models.Route, 0, len(m.routes))
	for _, r := range m.routes {
		result = append(result, *r)
	}
	return result, nil
}

func (m *memoryRoutes) ListByBus(_ context.Context, busID string) ([]models.Route, error) {
	result := []models.Route{}
	for _, r := range m.routes {
		if r.BusID == busID {
			result = append(result, *r)
		}
	}
	return result, nil
}

func (m *memoryRoutes) FirstByBus(_ context.Context, busID string) (*models.Route, error) {
	for _, r := range m.routes {
		if r.BusID == busID {
			return r, nil
		}
	}
	return nil, nil
}

func (m *memoryRoutes) Update(context.Context, *models.Route) error { return nil }

func (m *memoryRoutes) Delete(_ context.Context, id string) error {
	for i, r := range m.routes {
		if r.ID == id {
			m.routes = append(m.routes[:i], m.routes[i+1:]...)
			return nil
		}
	}
	return models.ErrNotFound("route", id)
}

type memorySchedules struct {
	schedules []*models.TripSchedule
}

func (m *memorySchedules) Create(_ context.Context, s *models.TripSchedule) error {
	m.schedules = append(m.schedules, s)
	return nil
}

func (m *memorySchedules) ListByRoutesAndDate(_ context.Context, routeIDs []string, date models.Date) ([]models.TripSchedule, error) {
	wanted := map[string]bool{}
	for _, id := range routeIDs {
		wanted[id] = true
	}
	result := []models.TripSchedule{}
	for _, s := range m.schedules {
		if wanted[s.RouteID] && s.TravelDate.Equal(date.Time) {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *memorySchedules) FirstByBusAndDate(_ context.Context, busID string, date models.Date) (*models.TripSchedule, error) {
	for _, s := range m.schedules {
		if s.BusID == busID && s.TravelDate.Equal(date.Time) {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memorySchedules) ListByBus(_ context.Context, busID string) ([]models.TripSchedule, error) {
	result := []models.TripSchedule{}
	for _, s := range m.schedules {
		if s.BusID == busID {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *memorySchedules) GetByID(_ context.Context, id string) (*models.TripSchedule, error) {
	for _, s := range m.schedules {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, nil
}

func (m *memorySchedules) Delete(context.Context, string) error { return nil }

type memoryLayouts struct {
	layouts map[string]*models.SeatLayout
}

func (m *memoryLayouts) Upsert(_ context.Context, l *models.SeatLayout) error {
	if existing, ok := m.layouts[l.BusID]; ok {
		l.ID = existing.ID
	}
	m.layouts[l.BusID] = l
	return nil
}

func (m *memoryLayouts) GetByBusID(_ context.Context, busID string) (*models.SeatLayout, error) {
	return m.layouts[busID], nil
}

func (m *memoryLayouts) ListByBusIDs(_ context.Context, ids []string) (map[string]*models.SeatLayout, error) {
	result := map[string]*models.SeatLayout{}
	for _, id := range ids {
		if l, ok := m.layouts[id]; ok {
			result[id] = l
		}
	}
	return result, nil
}

type memoryStaff struct {
	staff map[string]*models.Staff
}

func (m *memoryStaff) Create(_ context.Context, s *models.Staff) error {
	m.staff[s.ID] = s
	return nil
}

func (m *memoryStaff) GetByID(_ context.Context, id string) (*models.Staff, error) {
	if s, ok := m.staff[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryStaff) ListByBus(_ context.Context, busID string) ([]models.Staff, error) {
	result := []models.Staff{}
	for _, s := range m.staff {
		if s.BusID == busID {
			result = append(result, *s)
		}
	}
	return result, nil
}

func (m *memoryStaff) Update(_ context.Context, s *models.Staff) error {
	m.staff[s.ID] = s
	return nil
}

func (m *memoryStaff) Delete(_ context.Context, id string) error {
	delete(m.staff, id)
	return nil
}

// memoryCache is a SearchCache kept in a map
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]models.SearchResponse
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]models.SearchResponse{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (*models.SearchResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp, ok := c.entries[key]; ok {
		return &resp, nil
	}
	return nil, nil
}

func (c *memoryCache) Set(_ context.Context, key string, resp *models.SearchResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = *resp
	c.sets++
	return nil
}

func (c *memoryCache) InvalidateAll(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]models.SearchResponse{}
	return nil
}

type recordingNotifier struct {
	mu             sync.Mutex
	booked         []string
	released       []string
	releasedTopics []string
}

func (n *recordingNotifier) SeatsBooked(_, _ string, seats ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, seats...)
}

func (n *recordingNotifier) SeatsReleased(busID, travelDate string, seats ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.released = append(n.released, seats...)
	n.releasedTopics = append(n.releasedTopics, busID+"|"+travelDate)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(t Ticket) ([]byte, error) {
	args := m.Called(t)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

type memoryArchive struct {
	saved map[string][]byte
}

func (a *memoryArchive) Save(_ context.Context, key string, data []byte) (string, error) {
	a.saved[key] = data
	return "mem://" + key, nil
}
