package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/services"
)

// SearchHandler handles HTTP requests for bus search
type SearchHandler struct {
	service *services.SearchService
	logger  *logrus.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(service *services.SearchService, logger *logrus.Logger) *SearchHandler {
	return &SearchHandler{
		service: service,
		logger:  logger,
	}
}

// SearchBuses handles GET /api/v1/search
// @Summary Search for buses between two stops
// @Description Lists scheduled buses whose route passes the boarding stop before the alighting stop
// @Tags Search
// @Produce json
// @Param from query string true "Boarding stop"
// @Param to query string true "Alighting stop"
// @Param date query string true "Travel date (YYYY-MM-DD)"
// @Success 200 {object} models.SearchResponse
// @Failure 400 {object} ErrorResponse "Invalid request"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /api/v1/search [get]
func (h *SearchHandler) SearchBuses(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.WithError(err).Debug("Invalid search query")
		badRequest(c, err)
		return
	}

	resp, err := h.service.SearchBuses(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Stops handles GET /api/v1/buses/:id/stops
func (h *SearchHandler) Stops(c *gin.Context) {
	busID := c.Param("id")
	stops, err := h.service.Stops(c.Request.Context(), busID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bus_id": busID, "stops": stops})
}
