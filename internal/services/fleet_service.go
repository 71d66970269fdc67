package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/database"
	"github.com/onlinebus/booking-backend/internal/models"
)

// CacheInvalidator drops cached search results
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// FleetService lets agents manage their buses, routes, schedules, seat
// layouts and crew. Admins may act on any bus.
type FleetService struct {
	buses     BusStore
	routes    RouteStore
	schedules ScheduleStore
	layouts   SeatLayoutStore
	staff     StaffStore
	search    CacheInvalidator
	logger    *logrus.Logger
}

// NewFleetService creates a new fleet service. search may be nil.
func NewFleetService(buses BusStore, routes RouteStore, schedules ScheduleStore, layouts SeatLayoutStore, staff StaffStore, search CacheInvalidator, logger *logrus.Logger) *FleetService {
	return &FleetService{
		buses:     buses,
		routes:    routes,
		schedules: schedules,
		layouts:   layouts,
		staff:     staff,
		search:    search,
		logger:    logger,
	}
}

func (s *FleetService) invalidate(ctx context.Context) {
	if s.search != nil {
		s.search.InvalidateCache(ctx)
	}
}

// ownedBus loads a bus the requester may manage
func (s *FleetService) ownedBus(ctx context.Context, busID string, requester Requester) (*models.Bus, error) {
	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, models.ErrNotFound("bus", busID)
	}
	if requester.Role != models.RoleAdmin && bus.AgentID != requester.UserID {
		return nil, models.ErrForbidden("bus is operated by another agent")
	}
	return bus, nil
}

// CreateBus registers a bus for the requesting agent
func (s *FleetService) CreateBus(ctx context.Context, req *models.BusRequest, requester Requester) (*models.Bus, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	bus := &models.Bus{ID: uuid.New().String(), AgentID: requester.UserID}
	req.ApplyTo(bus)
	if err := s.buses.Create(ctx, bus); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, models.ErrConflict("DUPLICATE_BUS", "bus number already registered", err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"bus_id": bus.ID, "agent_id": bus.AgentID}).Info("Bus created")
	return bus, nil
}

// ListBuses returns the requester's buses, or every bus for admins
func (s *FleetService) ListBuses(ctx context.Context, requester Requester) ([]models.Bus, error) {
	if requester.Role == models.RoleAdmin {
		return s.buses.ListAll(ctx)
	}
	return s.buses.ListByAgent(ctx, requester.UserID)
}

// UpdateBus replaces a bus's details
func (s *FleetService) UpdateBus(ctx context.Context, busID string, req *models.BusRequest, requester Requester) (*models.Bus, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	bus, err := s.ownedBus(ctx, busID, requester)
	if err != nil {
		return nil, err
	}

	req.ApplyTo(bus)
	if err := s.buses.Update(ctx, bus); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, models.ErrConflict("DUPLICATE_BUS", "bus number already registered", err)
		}
		return nil, err
	}
	s.invalidate(ctx)
	return bus, nil
}

// DeleteBus removes a bus
func (s *FleetService) DeleteBus(ctx context.Context, busID string, requester Requester) error {
	if _, err := s.ownedBus(ctx, busID, requester); err != nil {
		return err
	}
	if err := s.buses.Delete(ctx, busID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// CreateRoute adds a route to a bus
func (s *FleetService) CreateRoute(ctx context.Context, req *models.RouteRequest, requester Requester) (*models.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.ownedBus(ctx, req.BusID, requester); err != nil {
		return nil, err
	}

	route := &models.Route{ID: uuid.New().String()}
	req.ApplyTo(route)
	if err := s.routes.Create(ctx, route); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return route, nil
}

// ListRoutes returns the routes of a bus
func (s *FleetService) ListRoutes(ctx context.Context, busID string, requester Requester) ([]models.Route, error) {
	if _, err := s.ownedBus(ctx, busID, requester); err != nil {
		return nil, err
	}
	return s.routes.ListByBus(ctx, busID)
}

func (s *FleetService) ownedRoute(ctx context.Context, routeID string, requester Requester) (*models.Route, error) {
	route, err := s.routes.GetByID(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, models.ErrNotFound("route", routeID)
	}
	if _, err := s.ownedBus(ctx, route.BusID, requester); err != nil {
		return nil, err
	}
	return route, nil
}

// UpdateRoute replaces a route's stops and endpoints. The bus cannot change.
func (s *FleetService) UpdateRoute(ctx context.Context, routeID string, req *models.RouteRequest, requester Requester) (*models.Route, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	route, err := s.ownedRoute(ctx, routeID, requester)
	if err != nil {
		return nil, err
	}

	req.BusID = route.BusID
	req.ApplyTo(route)
	if err := s.routes.Update(ctx, route); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return route, nil
}

// DeleteRoute removes a route
func (s *FleetService) DeleteRoute(ctx context.Context, routeID string, requester Requester) error {
	if _, err := s.ownedRoute(ctx, routeID, requester); err != nil {
		return err
	}
	if err := s.routes.Delete(ctx, routeID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// CreateSchedule schedules a bus on a date. Without a route id the bus's
// first route is used.
func (s *FleetService) CreateSchedule(ctx context.Context, req *models.CreateTripScheduleRequest, requester Requester) (*models.TripSchedule, error) {
	date, err := req.Validate()
	if err != nil {
		return nil, err
	}
	if _, err := s.ownedBus(ctx, req.BusID, requester); err != nil {
		return nil, err
	}

	var route *models.Route
	if req.RouteID != "" {
		route, err = s.routes.GetByID(ctx, req.RouteID)
	} else {
		route, err = s.routes.FirstByBus(ctx, req.BusID)
	}
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, models.ErrInvalidInput("bus has no route to schedule")
	}
	if route.BusID != req.BusID {
		return nil, models.ErrInvalidField("route_id", "route does not belong to this bus")
	}

	schedule := &models.TripSchedule{
		ID:            uuid.New().String(),
		BusID:         req.BusID,
		RouteID:       route.ID,
		TravelDate:    date,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
	}
	if err := s.schedules.Create(ctx, schedule); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return schedule, nil
}

// ListSchedules returns the schedules of a bus
func (s *FleetService) ListSchedules(ctx context.Context, busID string, requester Requester) ([]models.TripSchedule, error) {
	if _, err := s.ownedBus(ctx, busID, requester); err != nil {
		return nil, err
	}
	return s.schedules.ListByBus(ctx, busID)
}

// DeleteSchedule removes a schedule
func (s *FleetService) DeleteSchedule(ctx context.Context, scheduleID string, requester Requester) error {
	schedule, err := s.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if schedule == nil {
		return models.ErrNotFound("schedule", scheduleID)
	}
	if _, err := s.ownedBus(ctx, schedule.BusID, requester); err != nil {
		return err
	}
	if err := s.schedules.Delete(ctx, scheduleID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// SaveSeatLayout replaces the seat map of a bus
func (s *FleetService) SaveSeatLayout(ctx context.Context, busID string, req *models.SaveSeatLayoutRequest, requester Requester) (*models.SeatLayout, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.ownedBus(ctx, busID, requester); err != nil {
		return nil, err
	}

	layout := &models.SeatLayout{ID: uuid.New().String(), BusID: busID, Seats: models.Seats(req.Seats)}
	if err := s.layouts.Upsert(ctx, layout); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return layout, nil
}

// SeatLayout returns the public seat map of a bus
func (s *FleetService) SeatLayout(ctx context.Context, busID string) (*models.SeatLayout, error) {
	layout, err := s.layouts.GetByBusID(ctx, busID)
	if err != nil {
		return nil, err
	}
	if layout == nil {
		return nil, models.ErrNotFound("seat layout for bus", busID)
	}
	return layout, nil
}

// CreateStaff assigns a crew member to a bus
func (s *FleetService) CreateStaff(ctx context.Context, req *models.StaffRequest, requester Requester) (*models.Staff, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.ownedBus(ctx, req.BusID, requester); err != nil {
		return nil, err
	}

	member := &models.Staff{ID: uuid.New().String()}
	req.ApplyTo(member)
	if err := s.staff.Create(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// ListStaff returns the crew of a bus
func (s *FleetService) ListStaff(ctx context.Context, busID string, requester Requester) ([]models.Staff, error) {
	if _, err := s.ownedBus(ctx, busID, requester); err != nil {
		return nil, err
	}
	return s.staff.ListByBus(ctx, busID)
}

func (s *FleetService) ownedStaff(ctx context.Context, staffID string, requester Requester) (*models.Staff, error) {
	member, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, models.ErrNotFound("staff", staffID)
	}
	if _, err := s.ownedBus(ctx, member.BusID, requester); err != nil {
		return nil, err
	}
	return member, nil
}

// UpdateStaff replaces a crew member's details; moving to another bus
// requires owning that bus too
func (s *FleetService) UpdateStaff(ctx context.Context, staffID string, req *models.StaffRequest, requester Requester) (*models.Staff, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	member, err := s.ownedStaff(ctx, staffID, requester)
	if err != nil {
		return nil, err
	}
	if req.BusID != member.BusID {
		if _, err := s.ownedBus(ctx, req.BusID, requester); err != nil {
			return nil, err
		}
	}

	req.ApplyTo(member)
	if err := s.staff.Update(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// DeleteStaff removes a crew member
func (s *FleetService) DeleteStaff(ctx context.Context, staffID string, requester Requester) error {
	if _, err := s.ownedStaff(ctx, staffID, requester); err != nil {
		return err
	}
	return s.staff.Delete(ctx, staffID)
}
