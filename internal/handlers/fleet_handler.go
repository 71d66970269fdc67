package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/services"
)

// FleetHandler handles agent endpoints for buses, routes, schedules, seat
// layouts, crew and reporting
type FleetHandler struct {
	fleet  *services.FleetService
	agents *services.AgentService
	logger *logrus.Logger
}

// NewFleetHandler creates a new fleet handler
func NewFleetHandler(fleet *services.FleetService, agents *services.AgentService, logger *logrus.Logger) *FleetHandler {
	return &FleetHandler{
		fleet:  fleet,
		agents: agents,
		logger: logger,
	}
}

// ===== Buses =====

// CreateBus handles POST /api/v1/agent/buses
// @Summary Register a bus
// @Tags Agent
// @Security BearerAuth
// @Param body body models.BusRequest true "Bus"
// @Success 201 {object} models.Bus
// @Failure 409 {object} ErrorResponse "Bus number already registered"
// @Router /api/v1/agent/buses [post]
func (h *FleetHandler) CreateBus(c *gin.Context) {
	var req models.BusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	bus, err := h.fleet.CreateBus(c.Request.Context(), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, bus)
}

// ListBuses handles GET /api/v1/agent/buses
func (h *FleetHandler) ListBuses(c *gin.Context) {
	buses, err := h.fleet.ListBuses(c.Request.Context(), requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buses": buses, "total": len(buses)})
}

// UpdateBus handles PUT /api/v1/agent/buses/:id
func (h *FleetHandler) UpdateBus(c *gin.Context) {
	var req models.BusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	bus, err := h.fleet.UpdateBus(c.Request.Context(), c.Param("id"), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bus)
}

// DeleteBus handles DELETE /api/v1/agent/buses/:id
func (h *FleetHandler) DeleteBus(c *gin.Context) {
	if err := h.fleet.DeleteBus(c.Request.Context(), c.Param("id"), requester(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bus deleted"})
}

// SaveSeatLayout handles PUT /api/v1/agent/buses/:id/seat-layout
func (h *FleetHandler) SaveSeatLayout(c *gin.Context) {
	var req models.SaveSeatLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	layout, err := h.fleet.SaveSeatLayout(c.Request.Context(), c.Param("id"), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, layout)
}

// ===== Routes =====

// CreateRoute handles POST /api/v1/agent/routes
func (h *FleetHandler) CreateRoute(c *gin.Context) {
	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	route, err := h.fleet.CreateRoute(c.Request.Context(), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, route)
}

// ListRoutes handles GET /api/v1/agent/buses/:id/routes
func (h *FleetHandler) ListRoutes(c *gin.Context) {
	routes, err := h.fleet.ListRoutes(c.Request.Context(), c.Param("id"), requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes, "total": len(routes)})
}

// UpdateRoute handles PUT /api/v1/agent/routes/:id
func (h *FleetHandler) UpdateRoute(c *gin.Context) {
	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	route, err := h.fleet.UpdateRoute(c.Request.Context(), c.Param("id"), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

// DeleteRoute handles DELETE /api/v1/agent/routes/:id
func (h *FleetHandler) DeleteRoute(c *gin.Context) {
	if err := h.fleet.DeleteRoute(c.Request.Context(), c.Param("id"), requester(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted"})
}

// ===== Schedules =====

// CreateSchedule handles POST /api/v1/agent/schedules
func (h *FleetHandler) CreateSchedule(c *gin.Context) {
	var req models.CreateTripScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	schedule, err := h.fleet.CreateSchedule(c.Request.Context(), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

// ListSchedules handles GET /api/v1/agent/buses/:id/schedules
func (h *FleetHandler) ListSchedules(c *gin.Context) {
	schedules, err := h.fleet.ListSchedules(c.Request.Context(), c.Param("id"), requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules, "total": len(schedules)})
}

// DeleteSchedule handles DELETE /api/v1/agent/schedules/:id
func (h *FleetHandler) DeleteSchedule(c *gin.Context) {
	if err := h.fleet.DeleteSchedule(c.Request.Context(), c.Param("id"), requester(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Schedule deleted"})
}

// ===== Staff =====

// CreateStaff handles POST /api/v1/agent/staff
func (h *FleetHandler) CreateStaff(c *gin.Context) {
	var req models.StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	member, err := h.fleet.CreateStaff(c.Request.Context(), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

// ListStaff handles GET /api/v1/agent/buses/:id/staff
func (h *FleetHandler) ListStaff(c *gin.Context) {
	crew, err := h.fleet.ListStaff(c.Request.Context(), c.Param("id"), requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staff": crew, "total": len(crew)})
}

// UpdateStaff handles PUT /api/v1/agent/staff/:id
func (h *FleetHandler) UpdateStaff(c *gin.Context) {
	var req models.StaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	member, err := h.fleet.UpdateStaff(c.Request.Context(), c.Param("id"), &req, requester(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

// DeleteStaff handles DELETE /api/v1/agent/staff/:id
func (h *FleetHandler) DeleteStaff(c *gin.Context) {
	if err := h.fleet.DeleteStaff(c.Request.Context(), c.Param("id"), requester(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Staff member deleted"})
}

// ===== Reporting =====

// Bookings handles GET /api/v1/agent/bookings
func (h *FleetHandler) Bookings(c *gin.Context) {
	bookings, err := h.agents.Bookings(c.Request.Context(), requester(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "total": len(bookings)})
}

// Stats handles GET /api/v1/agent/stats
func (h *FleetHandler) Stats(c *gin.Context) {
	stats, err := h.agents.Stats(c.Request.Context(), requester(c).UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
