package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/middleware"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/pkg/jwt"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Auth    *AuthHandler
	Search  *SearchHandler
	Seats   *SeatHandler
	Booking *BookingHandler
	Fleet   *FleetHandler
}

// RegisterRoutes mounts the API on router
func RegisterRoutes(router *gin.Engine, h Handlers, jwtService *jwt.Service, logger *logrus.Logger) {
	authRequired := middleware.AuthMiddleware(jwtService, logger)

	router.GET("/ws/seats", h.Seats.SeatEvents)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", authRequired, h.Auth.Logout)
		}

		v1.GET("/search", h.Search.SearchBuses)

		buses := v1.Group("/buses/:id")
		{
			buses.GET("/stops", h.Search.Stops)
			buses.GET("/booked-seats", h.Seats.BookedSeats)
			buses.GET("/seat-layout", h.Seats.SeatLayout)
		}

		bookings := v1.Group("/bookings")
		bookings.Use(authRequired)
		{
			bookings.POST("", h.Booking.BookSeat)
			bookings.POST("/batch", h.Booking.BookSeats)
			bookings.POST("/finalize", h.Booking.Finalize)
			bookings.GET("/me", h.Booking.MyBookings)
			bookings.GET("/:id/ticket", h.Booking.DownloadTicket)
			bookings.POST("/:id/cancel", h.Booking.Cancel)
		}

		agent := v1.Group("/agent")
		agent.Use(authRequired, middleware.RequireRole(models.RoleAgent, models.RoleAdmin))
		{
			agent.POST("/buses", h.Fleet.CreateBus)
			agent.GET("/buses", h.Fleet.ListBuses)
			agent.PUT("/buses/:id", h.Fleet.UpdateBus)
			agent.DELETE("/buses/:id", h.Fleet.DeleteBus)
			agent.PUT("/buses/:id/seat-layout", h.Fleet.SaveSeatLayout)
			agent.GET("/buses/:id/routes", h.Fleet.ListRoutes)
			agent.GET("/buses/:id/schedules", h.Fleet.ListSchedules)
			agent.GET("/buses/:id/staff", h.Fleet.ListStaff)

			agent.POST("/routes", h.Fleet.CreateRoute)
			agent.PUT("/routes/:id", h.Fleet.UpdateRoute)
			agent.DELETE("/routes/:id", h.Fleet.DeleteRoute)

			agent.POST("/schedules", h.Fleet.CreateSchedule)
			agent.DELETE("/schedules/:id", h.Fleet.DeleteSchedule)

			agent.POST("/staff", h.Fleet.CreateStaff)
			agent.PUT("/staff/:id", h.Fleet.UpdateStaff)
			agent.DELETE("/staff/:id", h.Fleet.DeleteStaff)

			agent.GET("/bookings", h.Fleet.Bookings)
			agent.GET("/stats", h.Fleet.Stats)
		}

		admin := v1.Group("/admin")
		admin.Use(authRequired, middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/agents", h.Auth.CreateAgent)
			admin.GET("/agents", h.Auth.ListAgents)
			admin.DELETE("/agents/:id", h.Auth.DeleteAgent)
		}
	}
}
