package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/middleware"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/services"
)

// BookingHandler handles seat booking and ticket endpoints
type BookingHandler struct {
	service *services.BookingService
	logger  *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(service *services.BookingService, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		logger:  logger,
	}
}

// BookSeat handles POST /api/v1/bookings
// @Summary Book one seat
// @Description Confirms a seat for one passenger. The fare is computed from the seat price and the stop selection.
// @Tags Bookings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body models.BookSeatRequest true "Booking"
// @Success 201 {object} models.BookSeatResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Seat already booked"
// @Router /api/v1/bookings [post]
func (h *BookingHandler) BookSeat(c *gin.Context) {
	var req models.BookSeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CustomerEmail = middleware.MustGetUserContext(c).Email

	resp, err := h.service.BookSeat(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// BookSeats handles POST /api/v1/bookings/batch
func (h *BookingHandler) BookSeats(c *gin.Context) {
	var req models.BookSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.CustomerEmail = middleware.MustGetUserContext(c).Email

	resp, err := h.service.BookSeats(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Finalize handles POST /api/v1/bookings/finalize
// @Summary Issue the ticket for booked seats
// @Description Renders one PDF ticket for the seats and emails it. A 207 response means the
// @Description seats are booked but the ticket could not be delivered.
// @Tags Bookings
// @Security BearerAuth
// @Param body body models.FinalizeBookingRequest true "Seats to finalize"
// @Success 200 {object} models.FinalizeBookingResult
// @Success 207 {object} models.FinalizeBookingResult "Booked, delivery failed"
// @Failure 403 {object} ErrorResponse "Bookings of another customer"
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/bookings/finalize [post]
func (h *BookingHandler) Finalize(c *gin.Context) {
	var req models.FinalizeBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.service.Finalize(c.Request.Context(), &req, requester(c))
	var delivery *models.DeliveryError
	switch {
	case errors.As(err, &delivery) && result != nil:
		c.JSON(http.StatusMultiStatus, result)
	case err != nil:
		respondError(c, h.logger, err)
	default:
		c.JSON(http.StatusOK, result)
	}
}

// MyBookings handles GET /api/v1/bookings/me
func (h *BookingHandler) MyBookings(c *gin.Context) {
	user := middleware.MustGetUserContext(c)
	bookings, err := h.service.ListByCustomer(c.Request.Context(), user.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// DownloadTicket handles GET /api/v1/bookings/:id/ticket
func (h *BookingHandler) DownloadTicket(c *gin.Context) {
	pdf, filename, err := h.service.DownloadTicket(c.Request.Context(), c.Param("id"), requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Cancel handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	bookingID := c.Param("id")
	if err := h.service.Cancel(c.Request.Context(), bookingID, requester(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking_id": bookingID, "status": models.BookingStatusCancelled})
}
