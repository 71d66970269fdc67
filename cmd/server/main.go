package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/cache"
	"github.com/onlinebus/booking-backend/internal/config"
	"github.com/onlinebus/booking-backend/internal/database"
	"github.com/onlinebus/booking-backend/internal/handlers"
	"github.com/onlinebus/booking-backend/internal/middleware"
	"github.com/onlinebus/booking-backend/internal/services"
	"github.com/onlinebus/booking-backend/internal/storage"
	"github.com/onlinebus/booking-backend/internal/websocket"
	"github.com/onlinebus/booking-backend/pkg/jwt"
	"github.com/onlinebus/booking-backend/pkg/mailer"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_time": buildTime,
	}).Info("Starting bus booking backend")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	db, err := database.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(ctx, db, logger)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Repositories
	bookingRepository := database.NewBookingRepository(db)
	busRepository := database.NewBusRepository(db)
	routeRepository := database.NewRouteRepository(db)
	scheduleRepository := database.NewTripScheduleRepository(db)
	layoutRepository := database.NewSeatLayoutRepository(db)
	staffRepository := database.NewStaffRepository(db)
	userRepository := database.NewUserRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)

	// Optional search cache
	var searchCache services.SearchCache
	if cfg.Redis.URL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, search cache disabled")
		} else {
			defer client.Close()
			searchCache = cache.NewSearchCache(client, cfg.Redis.CacheTTL, logger)
			logger.Info("Search cache enabled")
		}
	}

	archive, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize ticket storage: %v", err)
	}

	var ticketMailer mailer.Mailer
	if cfg.Mail.Enabled {
		ticketMailer = mailer.NewSMTPMailer(mailer.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
		}, logger)
	} else {
		logger.Warn("Mail disabled, tickets are logged instead of sent")
		ticketMailer = mailer.NewLogMailer(logger)
	}

	hub := websocket.NewHub(logger)
	go hub.Run()

	// Services
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	searchService := services.NewSearchService(routeRepository, scheduleRepository, busRepository, layoutRepository, searchCache, cfg.Booking.FareFloor, logger)
	fleetService := services.NewFleetService(busRepository, routeRepository, scheduleRepository, layoutRepository, staffRepository, searchService, logger)
	bookingService := services.NewBookingService(services.BookingDependencies{
		Bookings:  bookingRepository,
		Buses:     busRepository,
		Routes:    routeRepository,
		Schedules: scheduleRepository,
		Layouts:   layoutRepository,
		Renderer:  services.NewPDFTicketRenderer(cfg.Booking.OperatorBrandName, cfg.Booking.Currency),
		Mailer:    ticketMailer,
		Archive:   archive,
		Notifier:  hub,
	}, services.BookingOptions{
		FareFloor:       cfg.Booking.FareFloor,
		AllowClientFare: cfg.Booking.AllowClientFare,
		Brand:           cfg.Booking.OperatorBrandName,
		Currency:        cfg.Booking.Currency,
	}, logger)
	authService := services.NewAuthService(userRepository, refreshTokenRepository, jwtService, cfg.JWT.RefreshTokenExpiry, cfg.Security.BcryptCost, logger)
	agentService := services.NewAgentService(busRepository, bookingRepository)

	rateLimitService := services.NewRateLimitService(db)

	cronService := services.NewCronService(refreshTokenRepository, searchService, cfg.Security.TokenRetention, logger)
	cronService.SetLoginAttemptCleaner(rateLimitService)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))

	handlers.RegisterRoutes(router, handlers.Handlers{
		Auth:    handlers.NewAuthHandler(authService, rateLimitService, logger),
		Search:  handlers.NewSearchHandler(searchService, logger),
		Seats:   handlers.NewSeatHandler(bookingService.Guard(), fleetService, hub, cfg.CORS.AllowedOrigins, logger),
		Booking: handlers.NewBookingHandler(bookingService, logger),
		Fleet:   handlers.NewFleetHandler(fleetService, agentService, logger),
	}, jwtService, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	cronService.Stop()
	hub.Stop()

	logger.Info("Server exited")
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
