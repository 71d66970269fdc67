package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onlinebus/booking-backend/internal/database"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/services"
	"github.com/onlinebus/booking-backend/pkg/jwt"
	"github.com/onlinebus/booking-backend/pkg/mailer"
)

type failingMailer struct{}

func (failingMailer) Send(context.Context, mailer.Message) error {
	return errors.New("smtp: 421 service not available")
}

type testServer struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	jwt    *jwt.Service
}

func setupTestServer(t *testing.T, mail mailer.Mailer) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := &database.PostgresDB{DB: sqlx.NewDb(mockDB, "sqlmock")}

	bookingRepo := database.NewBookingRepository(db)
	busRepo := database.NewBusRepository(db)
	routeRepo := database.NewRouteRepository(db)
	scheduleRepo := database.NewTripScheduleRepository(db)
	layoutRepo := database.NewSeatLayoutRepository(db)
	staffRepo := database.NewStaffRepository(db)
	userRepo := database.NewUserRepository(db)
	tokenRepo := database.NewRefreshTokenRepository(db)

	jwtService := jwt.NewService("handler-access-secret-0123456789abcd", "handler-refresh-secret-0123456789abc", time.Hour, 24*time.Hour)

	search := services.NewSearchService(routeRepo, scheduleRepo, busRepo, layoutRepo, nil, 50, logger)
	fleet := services.NewFleetService(busRepo, routeRepo, scheduleRepo, layoutRepo, staffRepo, search, logger)
	booking := services.NewBookingService(services.BookingDependencies{
		Bookings:  bookingRepo,
		Buses:     busRepo,
		Routes:    routeRepo,
		Schedules: scheduleRepo,
		Layouts:   layoutRepo,
		Renderer:  services.NewPDFTicketRenderer("Online Bus", "INR"),
		Mailer:    mail,
	}, services.BookingOptions{FareFloor: 50, Brand: "Online Bus"}, logger)
	auth := services.NewAuthService(userRepo, tokenRepo, jwtService, 24*time.Hour, 4, logger)
	agents := services.NewAgentService(busRepo, bookingRepo)

	router := gin.New()
	RegisterRoutes(router, Handlers{
		Auth:    NewAuthHandler(auth, services.NewRateLimitService(db), logger),
		Search:  NewSearchHandler(search, logger),
		Seats:   NewSeatHandler(booking.Guard(), fleet, nil, nil, logger),
		Booking: NewBookingHandler(booking, logger),
		Fleet:   NewFleetHandler(fleet, agents, logger),
	}, jwtService, logger)

	return &testServer{router: router, mock: mock, jwt: jwtService}
}

func (s *testServer) token(t *testing.T, email, role string) string {
	t.Helper()
	token, err := s.jwt.GenerateAccessToken(uuid.New(), email, role)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSearch(t *testing.T) {
	t.Run("missing parameters", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		w := s.do(http.MethodGet, "/api/v1/search?from=Pune", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)
	})

	t.Run("same origin and destination", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		s.mock.ExpectQuery(`FROM routes ORDER BY`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "bus_id", "origin", "destination"}).
				AddRow("r-1", "bus-1", "Pune", "Kolhapur"))

		w := s.do(http.MethodGet, "/api/v1/search?from=Pune&to=pune&date=2025-03-14", nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.SearchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Results)
		assert.NoError(t, s.mock.ExpectationsWereMet())
	})

	t.Run("invalid date", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		w := s.do(http.MethodGet, "/api/v1/search?from=Pune&to=Kolhapur&date=14-03-2025", nil, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_FAILED", decodeError(t, w).Code)
	})

	t.Run("no matching routes", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		s.mock.ExpectQuery(`FROM routes ORDER BY`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "bus_id", "origin", "destination"}).
				AddRow("r-1", "bus-1", "Kolhapur", "Pune"))

		w := s.do(http.MethodGet, "/api/v1/search?from=Pune&to=Kolhapur&date=2025-03-14", nil, "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp models.SearchResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Empty(t, resp.Results)
		assert.Equal(t, "2025-03-14", resp.Date)
		assert.NoError(t, s.mock.ExpectationsWereMet())
	})
}

func TestBookedSeats(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	s.mock.ExpectQuery(`SELECT seat_number FROM bookings`).
		WithArgs("bus-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow("L1").AddRow("U4"))

	w := s.do(http.MethodGet, "/api/v1/buses/bus-1/booked-seats?date=2025-03-14", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		BusID       string   `json:"bus_id"`
		BookedSeats []string `json:"booked_seats"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"L1", "U4"}, resp.BookedSeats)

	w = s.do(http.MethodGet, "/api/v1/buses/bus-1/booked-seats?date=14-03-2025", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStops_NotFound(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	s.mock.ExpectQuery(`FROM routes WHERE bus_id`).WithArgs("bus-x").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := s.do(http.MethodGet, "/api/v1/buses/bus-x/stops", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
}

func TestSeatEvents_Disabled(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	w := s.do(http.MethodGet, "/ws/seats?busId=bus-1&date=2025-03-14", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBookSeat(t *testing.T) {
	body := gin.H{
		"bus_id":      "bus-1",
		"travel_date": "2025-03-14",
		"seat_number": "L1",
		"from":        "Pune",
		"to":          "Kolhapur",
		"passenger":   gin.H{"name": "Asha", "age": 31},
	}

	t.Run("requires authentication", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		w := s.do(http.MethodPost, "/api/v1/bookings", body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		w := s.do(http.MethodPost, "/api/v1/bookings", gin.H{"bus_id": "bus-1"}, s.token(t, "asha@example.com", models.RoleUser))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("seat already booked", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		s.mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("bus-1", sqlmock.AnyArg(), "L1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		w := s.do(http.MethodPost, "/api/v1/bookings", body, s.token(t, "asha@example.com", models.RoleUser))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "SEAT_TAKEN", decodeError(t, w).Code)
		assert.NoError(t, s.mock.ExpectationsWereMet())
	})

	t.Run("unknown bus", func(t *testing.T) {
		s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
		s.mock.ExpectQuery(`SELECT EXISTS`).WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		s.mock.ExpectQuery(`FROM buses WHERE id`).WithArgs("bus-1").WillReturnRows(sqlmock.NewRows([]string{"id"}))

		w := s.do(http.MethodPost, "/api/v1/bookings", body, s.token(t, "asha@example.com", models.RoleUser))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestFinalize_DeliveryFailureReturnsMultiStatus(t *testing.T) {
	s := setupTestServer(t, failingMailer{})
	travel := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	expectFinalizeBus(s.mock)
	s.mock.ExpectQuery(`FROM bookings b WHERE LOWER\(b.customer_email\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "bus_id", "travel_date", "seat_number", "seat_type", "fare", "passenger_name", "customer_email", "from_stop", "to_stop", "status"}).
			AddRow("b-1", "bus-1", travel, "L1", "sleeper", 200.0, "Asha", "asha@example.com", "Pune", "Satara", "CONFIRMED").
			AddRow("b-2", "bus-1", travel, "L2", "sleeper", 200.0, "Ravi", "asha@example.com", "Pune", "Satara", "CONFIRMED"))
	s.mock.ExpectQuery(`FROM trip_schedules`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "bus_id", "route_id", "travel_date", "departure_time", "arrival_time"}).
			AddRow("sched-1", "bus-1", "route-1", travel, "21:30", "05:00"))

	w := s.do(http.MethodPost, "/api/v1/bookings/finalize", gin.H{
		"bus_id":       "bus-1",
		"travel_date":  "2025-03-14",
		"seat_numbers": []string{"L1", "L2"},
	}, s.token(t, "asha@example.com", models.RoleUser))

	require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
	var result models.FinalizeBookingResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Bookings, 2)
	assert.Equal(t, 400.0, result.TotalFare)
	assert.False(t, result.TicketDelivered)
	assert.Contains(t, result.DeliveryError, "mail")
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func expectFinalizeBus(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(`FROM buses WHERE id`).
		WithArgs("bus-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "agent_id", "bus_name", "source", "destination"}).
			AddRow("bus-1", "agent-1", "Night Rider", "Pune", "Kolhapur"))
}

func TestFinalize_OtherCustomerForbidden(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))

	w := s.do(http.MethodPost, "/api/v1/bookings/finalize", gin.H{
		"email":        "victim@example.com",
		"bus_id":       "bus-1",
		"travel_date":  "2025-03-14",
		"seat_numbers": []string{"L1"},
	}, s.token(t, "mallory@example.com", models.RoleUser))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, w).Code)
	assert.NotContains(t, w.Body.String(), "passenger_name")
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestFinalize_OtherAgentForbidden(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	expectFinalizeBus(s.mock)

	w := s.do(http.MethodPost, "/api/v1/bookings/finalize", gin.H{
		"email":        "victim@example.com",
		"bus_id":       "bus-1",
		"travel_date":  "2025-03-14",
		"seat_numbers": []string{"L1"},
	}, s.token(t, "ops@agents.example", models.RoleAgent))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestFinalize_MissingScheduleIsNotFound(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	travel := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	expectFinalizeBus(s.mock)
	s.mock.ExpectQuery(`FROM bookings b WHERE LOWER\(b.customer_email\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "bus_id", "travel_date", "seat_number", "seat_type", "fare", "passenger_name", "customer_email", "from_stop", "to_stop", "status"}).
			AddRow("b-1", "bus-1", travel, "L1", "sleeper", 200.0, "Asha", "asha@example.com", "Pune", "Satara", "CONFIRMED"))
	s.mock.ExpectQuery(`FROM trip_schedules`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := s.do(http.MethodPost, "/api/v1/bookings/finalize", gin.H{
		"bus_id":       "bus-1",
		"travel_date":  "2025-03-14",
		"seat_numbers": []string{"L1"},
	}, s.token(t, "asha@example.com", models.RoleUser))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, w).Code)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func expectLoginAttemptCounts(mock sqlmock.Sqlmock, emailCount, ipCount int) {
	mock.ExpectQuery("SELECT COUNT(.+) FROM login_attempts").
		WithArgs("nobody@example.com", "email", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "created_at"}).AddRow(emailCount, time.Now()))
	if emailCount >= 5 {
		return
	}
	mock.ExpectQuery("SELECT COUNT(.+) FROM login_attempts").
		WithArgs(sqlmock.AnyArg(), "ip", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count", "created_at"}).AddRow(ipCount, time.Now()))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	expectLoginAttemptCounts(s.mock, 0, 0)
	s.mock.ExpectQuery(`FROM users WHERE LOWER\(email\)`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	s.mock.ExpectExec("INSERT INTO login_attempts").
		WithArgs("nobody@example.com", "email").
		WillReturnResult(sqlmock.NewResult(1, 1))
	s.mock.ExpectExec("INSERT INTO login_attempts").
		WithArgs(sqlmock.AnyArg(), "ip").
		WillReturnResult(sqlmock.NewResult(2, 1))

	w := s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@example.com", "password": "whatever1"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decodeError(t, w).Code)
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestLogin_RateLimited(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	expectLoginAttemptCounts(s.mock, 5, 0)

	w := s.do(http.MethodPost, "/api/v1/auth/login", gin.H{"email": "nobody@example.com", "password": "whatever1"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decodeError(t, w).Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.NoError(t, s.mock.ExpectationsWereMet())
}

func TestRoleGuards(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	user := s.token(t, "asha@example.com", models.RoleUser)
	agent := s.token(t, "ops@agents.example", models.RoleAgent)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/agent/buses", nil, user).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/admin/agents", nil, agent).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/agent/stats", nil, "").Code)
}

func TestAgentStats(t *testing.T) {
	s := setupTestServer(t, mailer.NewLogMailer(logrus.New()))
	s.mock.ExpectQuery(`WITH agent_buses`).
		WillReturnRows(sqlmock.NewRows([]string{"total_buses", "total_routes", "total_schedules", "total_bookings", "total_revenue"}).
			AddRow(2, 3, 5, 4, 1250.556))

	w := s.do(http.MethodGet, "/api/v1/agent/stats", nil, s.token(t, "ops@agents.example", models.RoleAgent))
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.AgentStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalBuses)
	assert.Equal(t, 1250.56, stats.TotalRevenue)
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", models.ErrInvalidField("date", "bad"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"not found", models.ErrNotFound("bus", "b1"), http.StatusNotFound, "NOT_FOUND"},
		{"seat taken", models.ErrSeatTaken("L1", nil), http.StatusConflict, "SEAT_TAKEN"},
		{"forbidden", models.ErrForbidden("not yours"), http.StatusForbidden, "FORBIDDEN"},
		{"refresh", services.ErrInvalidRefreshToken, http.StatusUnauthorized, "INVALID_REFRESH_TOKEN"},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, logger, tt.err)
			assert.Equal(t, tt.status, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotContains(t, resp.Message, "connection reset")
		})
	}
}
