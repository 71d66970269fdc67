package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/pkg/mailer"
)

const testDate = "2025-03-14"

type bookingFixture struct {
	service   *BookingService
	bookings  *memoryBookings
	buses     *memoryBuses
	routes    *memoryRoutes
	schedules *memorySchedules
	layouts   *memoryLayouts
	renderer  *mockRenderer
	mailer    *mockMailer
	archive   *memoryArchive
	notifier  *recordingNotifier
}

func setupBookingService(t *testing.T, opts BookingOptions) *bookingFixture {
	t.Helper()

	f := &bookingFixture{
		bookings: newMemoryBookings(),
		buses: &memoryBuses{buses: map[string]*models.Bus{
			"bus-1": {ID: "bus-1", AgentID: "agent-1", BusName: "Sahyadri Express", BusNumber: "MH-09-1234", Source: "Pune", Destination: "Kolhapur"},
		}},
		routes: &memoryRoutes{routes: []*models.Route{
			{ID: "route-1", BusID: "bus-1", Origin: "Pune", Stops: pq.StringArray{"Satara", "Karad"}, Destination: "Kolhapur"},
		}},
		schedules: &memorySchedules{schedules: []*models.TripSchedule{
			{ID: "sched-1", BusID: "bus-1", RouteID: "route-1", TravelDate: models.MustParseDate(testDate), DepartureTime: "21:30", ArrivalTime: "05:00"},
		}},
		layouts: &memoryLayouts{layouts: map[string]*models.SeatLayout{
			"bus-1": {ID: "layout-1", BusID: "bus-1", Seats: models.Seats{
				{SeatNumber: "L1", Type: models.SeatTypeSleeper, Deck: models.DeckLower, Price: 600},
				{SeatNumber: "L2", Type: models.SeatTypeSleeper, Deck: models.DeckLower, Price: 600},
				{SeatNumber: "S1", Type: models.SeatTypeSeater, Deck: models.DeckLower, Price: 90},
			}},
		}},
		renderer: &mockRenderer{},
		mailer:   &mockMailer{},
		archive:  &memoryArchive{saved: map[string][]byte{}},
		notifier: &recordingNotifier{},
	}

	f.service = NewBookingService(BookingDependencies{
		Bookings:  f.bookings,
		Buses:     f.buses,
		Routes:    f.routes,
		Schedules: f.schedules,
		Layouts:   f.layouts,
		Renderer:  f.renderer,
		Mailer:    f.mailer,
		Archive:   f.archive,
		Notifier:  f.notifier,
	}, opts, quietLogger())
	return f
}

func seatRequest(seat, from, to string) *models.BookSeatRequest {
	return &models.BookSeatRequest{
		BusID:         "bus-1",
		TravelDate:    testDate,
		SeatNumber:    seat,
		From:          from,
		To:            to,
		Passenger:     models.PassengerInfo{Name: "Asha Patil", Age: 31},
		CustomerEmail: "asha@example.com",
	}
}

func amount(v float64) *float64 { return &v }

func TestBookSeat_ComputedFares(t *testing.T) {
	tests := []struct {
		name     string
		seat     string
		from, to string
		expected float64
	}{
		{"full route", "L1", "Pune", "Kolhapur", 600},
		{"first segment", "L1", "Pune", "Satara", 200},
		{"tail segments", "L2", "Satara", "Kolhapur", 400},
		{"case insensitive stops", "L2", "karad", "KOLHAPUR", 200},
		{"floor applies", "S1", "Pune", "Satara", 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupBookingService(t, BookingOptions{AllowClientFare: true})
			resp, err := f.service.BookSeat(context.Background(), seatRequest(tt.seat, tt.from, tt.to))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, resp.Fare)
			assert.Equal(t, models.BookingStatusConfirmed, resp.Status)
			assert.NotEmpty(t, resp.BookingID)
		})
	}
}

func TestBookSeat_CanonicalSeatNumber(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})

	resp, err := f.service.BookSeat(context.Background(), seatRequest(" l1 ", "Pune", "Kolhapur"))
	require.NoError(t, err)
	assert.Equal(t, "L1", resp.SeatNumber)
	assert.Equal(t, []string{"L1"}, f.notifier.booked)

	_, err = f.service.BookSeat(context.Background(), seatRequest("L1", "Satara", "Karad"))
	assert.True(t, models.IsConflict(err))
}

func TestBookSeat_ClientSuppliedFare(t *testing.T) {
	t.Run("within bounds is kept", func(t *testing.T) {
		f := setupBookingService(t, BookingOptions{AllowClientFare: true})
		req := seatRequest("L1", "Pune", "Satara")
		req.Fare = amount(450)

		resp, err := f.service.BookSeat(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, 450.0, resp.Fare)

		stored, _ := f.bookings.GetByID(context.Background(), resp.BookingID)
		assert.Equal(t, "client_supplied", stored.FareMode)
	})

	t.Run("above seat price is rejected", func(t *testing.T) {
		f := setupBookingService(t, BookingOptions{AllowClientFare: true})
		req := seatRequest("L1", "Pune", "Satara")
		req.Fare = amount(601)

		_, err := f.service.BookSeat(context.Background(), req)
		assert.True(t, models.IsValidation(err))
		assert.Zero(t, f.bookings.confirmedCount())
	})

	t.Run("below floor is rejected", func(t *testing.T) {
		f := setupBookingService(t, BookingOptions{AllowClientFare: true})
		req := seatRequest("L1", "Pune", "Satara")
		req.Fare = amount(10)

		_, err := f.service.BookSeat(context.Background(), req)
		assert.True(t, models.IsValidation(err))
	})

	t.Run("disabled by configuration", func(t *testing.T) {
		f := setupBookingService(t, BookingOptions{AllowClientFare: false})
		req := seatRequest("L1", "Pune", "Satara")
		req.Fare = amount(200)

		_, err := f.service.BookSeat(context.Background(), req)
		assert.True(t, models.IsValidation(err))
	})
}

func TestBookSeat_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(r *models.BookSeatRequest)
		check func(error) bool
	}{
		{"reversed stops", func(r *models.BookSeatRequest) { r.From, r.To = "Kolhapur", "Pune" }, models.IsValidation},
		{"unknown stop", func(r *models.BookSeatRequest) { r.To = "Goa" }, models.IsValidation},
		{"same stop", func(r *models.BookSeatRequest) { r.To = "Pune" }, models.IsValidation},
		{"bad date", func(r *models.BookSeatRequest) { r.TravelDate = "14/03/2025" }, models.IsValidation},
		{"missing passenger", func(r *models.BookSeatRequest) { r.Passenger.Name = " " }, models.IsValidation},
		{"unknown bus", func(r *models.BookSeatRequest) { r.BusID = "bus-404" }, models.IsNotFound},
		{"unknown seat", func(r *models.BookSeatRequest) { r.SeatNumber = "Z9" }, models.IsNotFound},
		{"foreign route", func(r *models.BookSeatRequest) { r.RouteID = "route-2" }, models.IsValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupBookingService(t, BookingOptions{})
			f.routes.routes = append(f.routes.routes, &models.Route{ID: "route-2", BusID: "bus-2", Origin: "Pune", Destination: "Kolhapur"})

			req := seatRequest("L1", "Pune", "Kolhapur")
			tt.mut(req)
			_, err := f.service.BookSeat(context.Background(), req)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
			assert.Zero(t, f.bookings.confirmedCount())
		})
	}
}

func TestBookSeat_ConcurrentRequestsSingleWinner(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})

	const attempts = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			req := seatRequest("L2", "Pune", "Kolhapur")
			req.CustomerEmail = fmt.Sprintf("rider%d@example.com", i)
			_, err := f.service.BookSeat(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case models.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, f.bookings.confirmedCount())
}

func TestBookSeat_GuardShortCircuits(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	_, err := f.service.BookSeat(context.Background(), seatRequest("L1", "Pune", "Kolhapur"))
	require.NoError(t, err)
	inserts := f.bookings.inserts

	_, err = f.service.BookSeat(context.Background(), seatRequest("L1", "Pune", "Kolhapur"))
	var conflict *models.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "SEAT_TAKEN", conflict.Code)
	assert.Equal(t, inserts, f.bookings.inserts)
}

func TestBookSeats_RollsBackOnFailure(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	_, err := f.service.BookSeat(context.Background(), seatRequest("L2", "Pune", "Kolhapur"))
	require.NoError(t, err)

	req := &models.BookSeatsRequest{
		BusID:      "bus-1",
		TravelDate: testDate,
		From:       "Pune",
		To:         "Kolhapur",
		Seats: []models.SeatSelection{
			{SeatNumber: "L1", Passenger: models.PassengerInfo{Name: "Ravi"}},
			{SeatNumber: "L2", Passenger: models.PassengerInfo{Name: "Meera"}},
		},
		CustomerEmail: "ravi@example.com",
	}
	_, err = f.service.BookSeats(context.Background(), req)
	assert.True(t, models.IsConflict(err))

	booked, err := f.service.Guard().IsBooked(context.Background(), "bus-1", models.MustParseDate(testDate), "L1")
	require.NoError(t, err)
	assert.False(t, booked)
	assert.Equal(t, []string{"L1"}, f.notifier.released)
}

func TestBookSeats_ReleaseUsesNormalizedTopic(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	_, err := f.service.BookSeat(context.Background(), seatRequest("L2", "Pune", "Kolhapur"))
	require.NoError(t, err)

	_, err = f.service.BookSeats(context.Background(), &models.BookSeatsRequest{
		BusID:      " bus-1 ",
		TravelDate: " " + testDate + " ",
		From:       "Pune",
		To:         "Kolhapur",
		Seats: []models.SeatSelection{
			{SeatNumber: "L1", Passenger: models.PassengerInfo{Name: "Ravi"}},
			{SeatNumber: "L2", Passenger: models.PassengerInfo{Name: "Meera"}},
		},
		CustomerEmail: "ravi@example.com",
	})
	assert.True(t, models.IsConflict(err))
	assert.Equal(t, []string{"bus-1|" + testDate}, f.notifier.releasedTopics)
}

func TestBookSeats_Total(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})

	resp, err := f.service.BookSeats(context.Background(), &models.BookSeatsRequest{
		BusID:      "bus-1",
		TravelDate: testDate,
		From:       "Satara",
		To:         "Kolhapur",
		Seats: []models.SeatSelection{
			{SeatNumber: "L1", Passenger: models.PassengerInfo{Name: "Ravi"}},
			{SeatNumber: "S1", Passenger: models.PassengerInfo{Name: "Meera"}},
		},
		CustomerEmail: "ravi@example.com",
	})
	require.NoError(t, err)
	require.Len(t, resp.Bookings, 2)
	assert.Equal(t, 460.0, resp.TotalFare)
}

func TestBookSeats_DuplicateSeat(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})

	_, err := f.service.BookSeats(context.Background(), &models.BookSeatsRequest{
		BusID: "bus-1", TravelDate: testDate, From: "Pune", To: "Kolhapur",
		Seats: []models.SeatSelection{
			{SeatNumber: "L1", Passenger: models.PassengerInfo{Name: "Ravi"}},
			{SeatNumber: "l1", Passenger: models.PassengerInfo{Name: "Meera"}},
		},
	})
	assert.True(t, models.IsValidation(err))
	assert.Zero(t, f.bookings.confirmedCount())
}

func bookTwo(t *testing.T, f *bookingFixture) {
	t.Helper()
	for _, seat := range []string{"L1", "L2"} {
		_, err := f.service.BookSeat(context.Background(), seatRequest(seat, "Pune", "Satara"))
		require.NoError(t, err)
	}
}

var ashaRequester = Requester{UserID: "u-1", Email: "asha@example.com", Role: models.RoleUser}

func finalizeRequest() *models.FinalizeBookingRequest {
	return &models.FinalizeBookingRequest{
		CustomerEmail: "asha@example.com",
		BusID:         "bus-1",
		TravelDate:    testDate,
		SeatNumbers:   []string{"L1", "L2"},
	}
}

func TestFinalize_DeliversTicket(t *testing.T) {
	f := setupBookingService(t, BookingOptions{Brand: "Sahyadri Travels"})
	bookTwo(t, f)

	pdf := []byte("%PDF-1.3 test")
	f.renderer.On("Render", mock.MatchedBy(func(tk Ticket) bool {
		return len(tk.Bookings) == 2 && tk.Schedule != nil && tk.Schedule.DepartureTime == "21:30"
	})).Return(pdf, nil)
	f.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m mailer.Message) bool {
		return m.To == "asha@example.com" && len(m.Attachments) == 1 && m.Attachments[0].ContentType == "application/pdf"
	})).Return(nil)

	result, err := f.service.Finalize(context.Background(), finalizeRequest(), ashaRequester)
	require.NoError(t, err)
	assert.True(t, result.TicketDelivered)
	assert.Len(t, result.Bookings, 2)
	assert.Equal(t, 400.0, result.TotalFare)
	assert.Contains(t, result.TicketURL, "mem://tickets/2025-03-14/bus-1/")
	assert.Len(t, f.archive.saved, 1)

	f.renderer.AssertExpectations(t)
	f.mailer.AssertExpectations(t)
}

func TestFinalize_MailFailureKeepsBookings(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	bookTwo(t, f)

	f.renderer.On("Render", mock.Anything).Return([]byte("%PDF"), nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp: connection refused"))

	result, err := f.service.Finalize(context.Background(), finalizeRequest(), ashaRequester)
	require.Error(t, err)
	assert.True(t, models.IsDelivery(err))
	assert.False(t, models.IsConflict(err))

	require.NotNil(t, result)
	assert.False(t, result.TicketDelivered)
	assert.Len(t, result.Bookings, 2)
	assert.Contains(t, result.DeliveryError, "mail")
	assert.Equal(t, 2, f.bookings.confirmedCount())
}

func TestFinalize_RenderFailure(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	bookTwo(t, f)

	f.renderer.On("Render", mock.Anything).Return(nil, errors.New("font missing"))

	result, err := f.service.Finalize(context.Background(), finalizeRequest(), ashaRequester)
	var delivery *models.DeliveryError
	require.True(t, errors.As(err, &delivery))
	assert.Equal(t, "render", delivery.Stage)
	assert.Len(t, result.Bookings, 2)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestFinalize_NoBookings(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})

	_, err := f.service.Finalize(context.Background(), finalizeRequest(), ashaRequester)
	assert.True(t, models.IsNotFound(err))

	req := finalizeRequest()
	req.CustomerEmail = ""
	_, err = f.service.Finalize(context.Background(), req, Requester{Role: models.RoleUser})
	assert.True(t, models.IsValidation(err))
}

func TestFinalize_DefaultsToRequesterEmail(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	bookTwo(t, f)

	f.renderer.On("Render", mock.Anything).Return([]byte("%PDF"), nil)
	f.mailer.On("Send", mock.Anything, mock.MatchedBy(func(m mailer.Message) bool {
		return m.To == "asha@example.com"
	})).Return(nil)

	req := finalizeRequest()
	req.CustomerEmail = ""
	result, err := f.service.Finalize(context.Background(), req, ashaRequester)
	require.NoError(t, err)
	assert.Len(t, result.Bookings, 2)
}

func TestFinalize_OtherCustomersBookings(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	bookTwo(t, f)

	f.renderer.On("Render", mock.Anything).Return([]byte("%PDF"), nil)
	f.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	tests := []struct {
		name      string
		requester Requester
		allowed   bool
	}{
		{"another customer", Requester{UserID: "u-9", Email: "mallory@example.com", Role: models.RoleUser}, false},
		{"agent of another bus", Requester{UserID: "agent-2", Email: "agent2@example.com", Role: models.RoleAgent}, false},
		{"agent operating the bus", Requester{UserID: "agent-1", Email: "agent1@example.com", Role: models.RoleAgent}, true},
		{"admin", Requester{UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.service.Finalize(context.Background(), finalizeRequest(), tt.requester)
			if !tt.allowed {
				assert.True(t, models.IsForbidden(err))
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.Len(t, result.Bookings, 2)
		})
	}
}

func TestFinalize_MissingSchedule(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	bookTwo(t, f)
	f.schedules.schedules = nil

	result, err := f.service.Finalize(context.Background(), finalizeRequest(), ashaRequester)
	assert.True(t, models.IsNotFound(err))
	assert.Nil(t, result)
	f.renderer.AssertNotCalled(t, "Render", mock.Anything)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestCancel_Authorization(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	resp, err := f.service.BookSeat(context.Background(), seatRequest("L1", "Pune", "Kolhapur"))
	require.NoError(t, err)

	stranger := Requester{UserID: "u-9", Email: "someone@example.com", Role: models.RoleUser}
	otherAgent := Requester{UserID: "agent-2", Email: "agent2@example.com", Role: models.RoleAgent}
	owner := Requester{UserID: "u-1", Email: "ASHA@example.com", Role: models.RoleUser}

	assert.True(t, models.IsForbidden(f.service.Cancel(context.Background(), resp.BookingID, stranger)))
	assert.True(t, models.IsForbidden(f.service.Cancel(context.Background(), resp.BookingID, otherAgent)))

	require.NoError(t, f.service.Cancel(context.Background(), resp.BookingID, owner))
	assert.Equal(t, []string{"L1"}, f.notifier.released)

	err = f.service.Cancel(context.Background(), resp.BookingID, owner)
	assert.True(t, models.IsConflict(err))

	// released seat can be booked again
	_, err = f.service.BookSeat(context.Background(), seatRequest("L1", "Pune", "Kolhapur"))
	assert.NoError(t, err)
}

func TestCancel_AgentAndAdmin(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	first, err := f.service.BookSeat(context.Background(), seatRequest("L1", "Pune", "Kolhapur"))
	require.NoError(t, err)
	second, err := f.service.BookSeat(context.Background(), seatRequest("L2", "Pune", "Kolhapur"))
	require.NoError(t, err)

	assert.NoError(t, f.service.Cancel(context.Background(), first.BookingID, Requester{UserID: "agent-1", Role: models.RoleAgent}))
	assert.NoError(t, f.service.Cancel(context.Background(), second.BookingID, Requester{UserID: "admin-1", Role: models.RoleAdmin}))
	assert.True(t, models.IsNotFound(f.service.Cancel(context.Background(), "missing", Requester{Role: models.RoleAdmin})))
}

func TestDownloadTicket(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	resp, err := f.service.BookSeat(context.Background(), seatRequest("L1", "Pune", "Kolhapur"))
	require.NoError(t, err)

	f.renderer.On("Render", mock.MatchedBy(func(tk Ticket) bool { return len(tk.Bookings) == 1 })).Return([]byte("%PDF"), nil)

	data, filename, err := f.service.DownloadTicket(context.Background(), resp.BookingID, Requester{Email: "asha@example.com", Role: models.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
	assert.Equal(t, "ticket-bus-1-2025-03-14.pdf", filename)

	_, _, err = f.service.DownloadTicket(context.Background(), resp.BookingID, Requester{Email: "x@example.com", Role: models.RoleUser})
	assert.True(t, models.IsForbidden(err))
}

func TestDownloadTicket_MissingSchedule(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	resp, err := f.service.BookSeat(context.Background(), seatRequest("L1", "Pune", "Kolhapur"))
	require.NoError(t, err)
	f.schedules.schedules = nil

	_, _, err = f.service.DownloadTicket(context.Background(), resp.BookingID, ashaRequester)
	assert.True(t, models.IsNotFound(err))
	f.renderer.AssertNotCalled(t, "Render", mock.Anything)
}

func TestListByCustomer(t *testing.T) {
	f := setupBookingService(t, BookingOptions{})
	bookTwo(t, f)

	list, err := f.service.ListByCustomer(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.service.ListByCustomer(context.Background(), "  ")
	assert.True(t, models.IsValidation(err))
}
