package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/database"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/storage"
	"github.com/onlinebus/booking-backend/pkg/fare"
	"github.com/onlinebus/booking-backend/pkg/mailer"
)

// BookingOptions holds the booking rules taken from configuration
type BookingOptions struct {
	FareFloor       float64
	AllowClientFare bool
	Brand           string
	Currency        string
}

// BookingDependencies groups the collaborators of BookingService.
// Archive and Notifier are optional.
type BookingDependencies struct {
	Bookings  BookingStore
	Buses     BusStore
	Routes    RouteStore
	Schedules ScheduleStore
	Layouts   SeatLayoutStore
	Renderer  TicketRenderer
	Mailer    mailer.Mailer
	Archive   storage.TicketArchive
	Notifier  SeatNotifier
}

// BookingService books seats and issues tickets
type BookingService struct {
	deps   BookingDependencies
	guard  *SeatGuard
	calc   fare.Calculator
	opts   BookingOptions
	logger *logrus.Logger
}

// NewBookingService creates a new BookingService
func NewBookingService(deps BookingDependencies, opts BookingOptions, logger *logrus.Logger) *BookingService {
	if opts.Currency == "" {
		opts.Currency = "INR"
	}
	return &BookingService{
		deps:   deps,
		guard:  NewSeatGuard(deps.Bookings),
		calc:   fare.NewCalculator(opts.FareFloor),
		opts:   opts,
		logger: logger,
	}
}

// Guard exposes the seat availability guard used by this service
func (s *BookingService) Guard() *SeatGuard {
	return s.guard
}

// BookSeat confirms one seat for one passenger
func (s *BookingService) BookSeat(ctx context.Context, req *models.BookSeatRequest) (*models.BookSeatResponse, error) {
	date, err := req.Validate()
	if err != nil {
		return nil, err
	}

	mode := req.FareMode()
	if _, supplied := mode.(fare.ClientSuppliedFare); supplied && !s.opts.AllowClientFare {
		return nil, models.ErrInvalidField("fare", "client-supplied fares are not accepted")
	}

	booked, err := s.guard.IsBooked(ctx, req.BusID, date, req.SeatNumber)
	if err != nil {
		return nil, err
	}
	if booked {
		return nil, models.ErrSeatTaken(req.SeatNumber, nil)
	}

	bus, err := s.deps.Buses.GetByID(ctx, req.BusID)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, models.ErrNotFound("bus", req.BusID)
	}

	route, err := s.resolveRoute(ctx, bus.ID, req.RouteID, date)
	if err != nil {
		return nil, err
	}

	path := route.StopPath()
	if !path.IsValidMatch(req.From, req.To) {
		return nil, models.ErrInvalidInput("invalid stop selection")
	}
	fromIdx, toIdx := path.Locate(req.From, req.To)

	layout, err := s.deps.Layouts.GetByBusID(ctx, bus.ID)
	if err != nil {
		return nil, err
	}
	if layout == nil {
		return nil, models.ErrNotFound("seat layout for bus", bus.ID)
	}
	seat, ok := layout.FindSeat(req.SeatNumber)
	if !ok {
		return nil, models.ErrNotFound("seat", req.SeatNumber)
	}

	amount, err := s.calc.Resolve(mode, seat.Price, fromIdx, toIdx, path.Segments())
	if err != nil {
		if errors.Is(err, fare.ErrOutOfBounds) {
			return nil, models.ErrInvalidField("fare", err.Error())
		}
		return nil, models.ErrInvalidInput(err.Error())
	}

	customer := strings.ToLower(strings.TrimSpace(req.CustomerEmail))
	if customer == "" {
		customer = strings.ToLower(req.Passenger.Email)
	}

	booking := &models.Booking{
		ID:              uuid.New().String(),
		BusID:           bus.ID,
		TravelDate:      date,
		SeatNumber:      seat.SeatNumber,
		SeatType:        string(seat.Type),
		Fare:            amount,
		FareMode:        mode.Name(),
		PassengerName:   req.Passenger.Name,
		PassengerAge:    req.Passenger.Age,
		PassengerMobile: req.Passenger.Mobile,
		PassengerEmail:  req.Passenger.Email,
		FromStop:        req.From,
		ToStop:          req.To,
		CustomerEmail:   customer,
	}

	if err := s.deps.Bookings.InsertConfirmed(ctx, booking); err != nil {
		if errors.Is(err, database.ErrSeatTaken) {
			return nil, models.ErrSeatTaken(seat.SeatNumber, err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"bus_id":      booking.BusID,
		"travel_date": date.String(),
		"seat":        booking.SeatNumber,
		"fare":        booking.Fare,
		"fare_mode":   booking.FareMode,
	}).Info("Seat booked")

	if s.deps.Notifier != nil {
		s.deps.Notifier.SeatsBooked(booking.BusID, date.String(), booking.SeatNumber)
	}

	return &models.BookSeatResponse{
		BookingID:  booking.ID,
		SeatNumber: booking.SeatNumber,
		Fare:       booking.Fare,
		Status:     booking.Status,
	}, nil
}

// resolveRoute picks the route by explicit id, then by the schedule on the
// travel date, then the bus's first route
func (s *BookingService) resolveRoute(ctx context.Context, busID, routeID string, date models.Date) (*models.Route, error) {
	if routeID == "" {
		schedule, err := s.deps.Schedules.FirstByBusAndDate(ctx, busID, date)
		if err != nil {
			return nil, err
		}
		if schedule != nil {
			routeID = schedule.RouteID
		}
	}

	var (
		route *models.Route
		err   error
	)
	if routeID != "" {
		route, err = s.deps.Routes.GetByID(ctx, routeID)
	} else {
		route, err = s.deps.Routes.FirstByBus(ctx, busID)
	}
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, models.ErrNotFound("route for bus", busID)
	}
	if route.BusID != busID {
		return nil, models.ErrInvalidField("route_id", "route does not belong to this bus")
	}
	return route, nil
}

// BookSeats books several seats. The first failure cancels the seats already
// booked by this call and is returned.
func (s *BookingService) BookSeats(ctx context.Context, req *models.BookSeatsRequest) (*models.BookSeatsResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	date, err := models.ParseDate(req.TravelDate)
	if err != nil {
		return nil, err
	}
	busID := strings.TrimSpace(req.BusID)

	resp := &models.BookSeatsResponse{Bookings: make([]models.BookSeatResponse, 0, len(req.Seats))}
	for _, selection := range req.Seats {
		single := req.Single(selection)
		booked, err := s.BookSeat(ctx, &single)
		if err != nil {
			s.release(ctx, busID, date, resp.Bookings)
			return nil, err
		}
		resp.Bookings = append(resp.Bookings, *booked)
		resp.TotalFare += booked.Fare
	}
	resp.TotalFare = fare.Round2(resp.TotalFare)
	return resp, nil
}

func (s *BookingService) release(ctx context.Context, busID string, travelDate models.Date, booked []models.BookSeatResponse) {
	if len(booked) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	released := make([]string, 0, len(booked))
	for _, b := range booked {
		if err := s.deps.Bookings.Cancel(ctx, b.BookingID); err != nil {
			s.logger.WithError(err).WithField("booking_id", b.BookingID).Error("Failed to release seat after partial booking")
			continue
		}
		released = append(released, b.SeatNumber)
	}
	if s.deps.Notifier != nil && len(released) > 0 {
		s.deps.Notifier.SeatsReleased(busID, travelDate.String(), released...)
	}
}

// Finalize issues one ticket covering the customer's bookings for the
// requested seats. The customer defaults to the requester; finalizing for
// another customer is limited to admins and the agent operating the bus.
// Delivery failures do not undo the bookings: the result is returned together
// with a *models.DeliveryError.
func (s *BookingService) Finalize(ctx context.Context, req *models.FinalizeBookingRequest, requester Requester) (*models.FinalizeBookingResult, error) {
	if strings.TrimSpace(req.CustomerEmail) == "" {
		req.CustomerEmail = requester.Email
	}
	date, err := req.Validate()
	if err != nil {
		return nil, err
	}
	req.BusID = strings.TrimSpace(req.BusID)

	onBehalf := !strings.EqualFold(req.CustomerEmail, requester.Email)
	if onBehalf && requester.Role != models.RoleAdmin && requester.Role != models.RoleAgent {
		return nil, models.ErrForbidden("bookings belong to another customer")
	}

	bus, err := s.deps.Buses.GetByID(ctx, req.BusID)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, models.ErrNotFound("bus", req.BusID)
	}
	if onBehalf && requester.Role == models.RoleAgent && bus.AgentID != requester.UserID {
		return nil, models.ErrForbidden("bus is operated by another agent")
	}

	bookings, err := s.deps.Bookings.FindForFinalize(ctx, req.CustomerEmail, req.BusID, date, req.SeatNumbers)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, models.ErrNotFound("bookings for seats", strings.Join(req.SeatNumbers, ","))
	}

	schedule, err := s.scheduleFor(ctx, req.BusID, date)
	if err != nil {
		return nil, err
	}

	ticket := Ticket{Bus: bus, Schedule: schedule, Bookings: bookings}
	result := &models.FinalizeBookingResult{Bookings: bookings, TotalFare: ticket.Total()}

	entry := s.logger.WithFields(logrus.Fields{
		"bus_id":      req.BusID,
		"travel_date": date.String(),
		"seats":       len(bookings),
	})

	pdf, err := s.deps.Renderer.Render(ticket)
	if err != nil {
		return s.deliveryFailed(result, entry, "render", err)
	}

	result.TicketURL = s.archive(ctx, bookings[0], pdf)

	msg := ticketMessage(req.CustomerEmail, s.opts.Brand, s.opts.Currency, ticket, pdf)
	if err := s.deps.Mailer.Send(ctx, msg); err != nil {
		return s.deliveryFailed(result, entry, "mail", err)
	}

	result.TicketDelivered = true
	entry.Info("Ticket delivered")
	return result, nil
}

func (s *BookingService) deliveryFailed(result *models.FinalizeBookingResult, entry *logrus.Entry, stage string, err error) (*models.FinalizeBookingResult, error) {
	deliveryErr := &models.DeliveryError{Stage: stage, Err: err}
	result.DeliveryError = deliveryErr.Error()
	entry.WithError(err).WithField("stage", stage).Error("Ticket delivery failed")
	return result, deliveryErr
}

// archive stores the ticket when an archive is configured; failures are only logged
func (s *BookingService) archive(ctx context.Context, first models.Booking, pdf []byte) string {
	if s.deps.Archive == nil {
		return ""
	}
	key := fmt.Sprintf("tickets/%s/%s/%s.pdf", first.TravelDate.String(), first.BusID, first.ID)
	location, err := s.deps.Archive.Save(ctx, key, pdf)
	if err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("Failed to archive ticket")
		return ""
	}
	return location
}

// DownloadTicket renders the ticket of a single booking
func (s *BookingService) DownloadTicket(ctx context.Context, bookingID string, requester Requester) ([]byte, string, error) {
	booking, bus, err := s.authorizedBooking(ctx, bookingID, requester)
	if err != nil {
		return nil, "", err
	}

	schedule, err := s.scheduleFor(ctx, booking.BusID, booking.TravelDate)
	if err != nil {
		return nil, "", err
	}

	pdf, err := s.deps.Renderer.Render(Ticket{Bus: bus, Schedule: schedule, Bookings: []models.Booking{*booking}})
	if err != nil {
		return nil, "", err
	}
	return pdf, ticketFilename(booking.BusID, booking.TravelDate.String()), nil
}

// scheduleFor returns the schedule a ticket is issued against
func (s *BookingService) scheduleFor(ctx context.Context, busID string, date models.Date) (*models.TripSchedule, error) {
	schedule, err := s.deps.Schedules.FirstByBusAndDate(ctx, busID, date)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, models.ErrNotFound("schedule for bus on date", busID+" "+date.String())
	}
	return schedule, nil
}

// ListByCustomer returns the customer's bookings, newest first
func (s *BookingService) ListByCustomer(ctx context.Context, customerEmail string) ([]models.BookingWithBus, error) {
	if strings.TrimSpace(customerEmail) == "" {
		return nil, models.ErrInvalidField("email", "is required")
	}
	return s.deps.Bookings.ListByCustomer(ctx, customerEmail)
}

// Cancel releases a confirmed booking
func (s *BookingService) Cancel(ctx context.Context, bookingID string, requester Requester) error {
	booking, _, err := s.authorizedBooking(ctx, bookingID, requester)
	if err != nil {
		return err
	}
	if booking.Status != models.BookingStatusConfirmed {
		return models.ErrConflict("ALREADY_CANCELLED", "booking is already cancelled", nil)
	}

	if err := s.deps.Bookings.Cancel(ctx, booking.ID); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"seat":       booking.SeatNumber,
		"by":         requester.UserID,
	}).Info("Booking cancelled")

	if s.deps.Notifier != nil {
		s.deps.Notifier.SeatsReleased(booking.BusID, booking.TravelDate.String(), booking.SeatNumber)
	}
	return nil
}

// authorizedBooking loads a booking the requester may act on: their own,
// one on an agent's bus, or any for admins
func (s *BookingService) authorizedBooking(ctx context.Context, bookingID string, requester Requester) (*models.Booking, *models.Bus, error) {
	booking, err := s.deps.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking == nil {
		return nil, nil, models.ErrNotFound("booking", bookingID)
	}

	bus, err := s.deps.Buses.GetByID(ctx, booking.BusID)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case requester.Role == models.RoleAdmin:
	case strings.EqualFold(booking.CustomerEmail, requester.Email):
	case requester.Role == models.RoleAgent && bus != nil && bus.AgentID == requester.UserID:
	default:
		return nil, nil, models.ErrForbidden("booking belongs to another customer")
	}
	return booking, bus, nil
}
