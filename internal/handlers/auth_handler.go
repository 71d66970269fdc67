package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/middleware"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/services"
)

// AuthHandler handles account and token endpoints
type AuthHandler struct {
	service     *services.AuthService
	rateLimiter *services.RateLimitService
	logger      *logrus.Logger
}

// NewAuthHandler creates a new auth handler. rateLimiter may be nil to disable login throttling.
func NewAuthHandler(service *services.AuthService, rateLimiter *services.RateLimitService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{
		service:     service,
		rateLimiter: rateLimiter,
		logger:      logger,
	}
}

// Register handles POST /api/v1/auth/register
// @Summary Register a passenger account
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body models.RegisterRequest true "Account details"
// @Success 201 {object} models.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Email already registered"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Register(c.Request.Context(), &req, clientMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login
// @Summary Log in with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body models.LoginRequest true "Credentials"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse "Too many failed logins"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	meta := clientMeta(c)

	if h.rateLimiter != nil {
		if err := h.rateLimiter.CheckLoginRateLimit(ctx, req.Email, meta.IPAddress); err != nil {
			var rateLimitErr *services.RateLimitError
			if errors.As(err, &rateLimitErr) {
				h.logger.WithFields(logrus.Fields{
					"ip":          meta.IPAddress,
					"type":        rateLimitErr.Type,
					"retry_after": rateLimitErr.RetryAfter,
				}).Warn("Login rate limit exceeded")
				c.Header("Retry-After", rateLimitErr.RetryAfter.UTC().Format(http.TimeFormat))
				c.JSON(http.StatusTooManyRequests, ErrorResponse{
					Error:   "rate_limit_exceeded",
					Message: rateLimitErr.Message,
					Code:    "RATE_LIMITED",
				})
				return
			}
			respondError(c, h.logger, err)
			return
		}
	}

	resp, err := h.service.Login(ctx, &req, meta)
	if err != nil {
		if h.rateLimiter != nil && errors.Is(err, services.ErrInvalidCredentials) {
			if recordErr := h.rateLimiter.RecordFailedLogin(ctx, req.Email, meta.IPAddress); recordErr != nil {
				h.logger.WithError(recordErr).Warn("Failed to record login attempt")
			}
		}
		respondError(c, h.logger, err)
		return
	}

	if h.rateLimiter != nil {
		if err := h.rateLimiter.ClearFailures(ctx, req.Email); err != nil {
			h.logger.WithError(err).Warn("Failed to clear login attempts")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"user_id": resp.User.ID,
		"role":    resp.User.Role,
	}).Info("User logged in")
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /api/v1/auth/refresh
// @Summary Exchange a refresh token for a new token pair
// @Tags Auth
// @Param body body models.RefreshTokenRequest true "Refresh token"
// @Success 200 {object} models.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LogoutRequest revokes a refresh token, or every token of the caller
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	LogoutAll    bool   `json:"logout_all"`
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user := middleware.MustGetUserContext(c)
	if err := h.service.Logout(c.Request.Context(), user.UserID.String(), req.RefreshToken, req.LogoutAll); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// CreateAgent handles POST /api/v1/admin/agents
func (h *AuthHandler) CreateAgent(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	agent, err := h.service.CreateAgent(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, agent)
}

// ListAgents handles GET /api/v1/admin/agents
func (h *AuthHandler) ListAgents(c *gin.Context) {
	agents, err := h.service.ListAgents(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents, "total": len(agents)})
}

// DeleteAgent handles DELETE /api/v1/admin/agents/:id
func (h *AuthHandler) DeleteAgent(c *gin.Context) {
	if err := h.service.DeleteAgent(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent deleted"})
}
