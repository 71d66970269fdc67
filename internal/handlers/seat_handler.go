package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/services"
	"github.com/onlinebus/booking-backend/internal/websocket"
)

// SeatHandler serves the public seat map of a bus: layout, booked seats and
// live updates
type SeatHandler struct {
	guard    *services.SeatGuard
	fleet    *services.FleetService
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *logrus.Logger
}

// NewSeatHandler creates a new seat handler. hub may be nil, which disables live updates.
func NewSeatHandler(guard *services.SeatGuard, fleet *services.FleetService, hub *websocket.Hub, allowedOrigins []string, logger *logrus.Logger) *SeatHandler {
	return &SeatHandler{
		guard:    guard,
		fleet:    fleet,
		hub:      hub,
		upgrader: websocket.Upgrader(allowedOrigins),
		logger:   logger,
	}
}

// BookedSeats handles GET /api/v1/buses/:id/booked-seats?date=
// @Summary List booked seats
// @Tags Seats
// @Produce json
// @Param id path string true "Bus ID"
// @Param date query string true "Travel date (YYYY-MM-DD)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/buses/{id}/booked-seats [get]
func (h *SeatHandler) BookedSeats(c *gin.Context) {
	busID := c.Param("id")
	date, err := models.ParseDate(c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	seats, err := h.guard.BookedSeats(c.Request.Context(), busID, date)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"bus_id":       busID,
		"travel_date":  date.String(),
		"booked_seats": seats,
	})
}

// SeatLayout handles GET /api/v1/buses/:id/seat-layout
func (h *SeatHandler) SeatLayout(c *gin.Context) {
	layout, err := h.fleet.SeatLayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, layout)
}

// SeatEvents handles GET /ws/seats?busId=&date=
func (h *SeatHandler) SeatEvents(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "Live seat updates are disabled",
			Code:    "WEBSOCKET_DISABLED",
		})
		return
	}

	busID := c.Query("busId")
	if busID == "" {
		respondError(c, h.logger, models.ErrInvalidField("busId", "is required"))
		return
	}
	date, err := models.ParseDate(c.Query("date"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	// Upgrade writes its own error response on failure
	if err := h.hub.Serve(h.upgrader, c.Writer, c.Request, busID, date.String()); err != nil {
		h.logger.WithError(err).WithField("bus_id", busID).Debug("WebSocket upgrade failed")
	}
}
