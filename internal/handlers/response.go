package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/middleware"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/internal/services"
	"github.com/onlinebus/booking-backend/internal/utils"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "invalid_request",
		Message: err.Error(),
		Code:    "INVALID_REQUEST",
	})
}

// respondError maps service errors onto HTTP status codes. Unknown errors are
// logged and reported without details.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	var (
		validation *models.ValidationError
		notFound   *models.NotFoundError
		conflict   *models.ConflictError
		forbidden  *models.ForbiddenError
	)

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: validation.Error(), Code: "VALIDATION_FAILED"})
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: notFound.Error(), Code: "NOT_FOUND"})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: conflict.Message, Code: conflict.Code})
	case errors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: forbidden.Error(), Code: "FORBIDDEN"})
	case errors.Is(err, services.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: err.Error(), Code: "INVALID_CREDENTIALS"})
	case errors.Is(err, services.ErrInvalidRefreshToken):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: err.Error(), Code: "INVALID_REFRESH_TOKEN"})
	default:
		logger.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Something went wrong. Please try again later.",
			Code:    "INTERNAL_ERROR",
		})
	}
}

// requester converts the authenticated caller for the service layer
func requester(c *gin.Context) services.Requester {
	user := middleware.MustGetUserContext(c)
	return services.Requester{
		UserID: user.UserID.String(),
		Email:  user.Email,
		Role:   user.Role,
	}
}

// clientMeta describes the device a token is issued to
func clientMeta(c *gin.Context) models.ClientMeta {
	userAgent := c.GetHeader("User-Agent")
	return models.ClientMeta{
		IPAddress:  utils.GetRealIP(c),
		UserAgent:  userAgent,
		DeviceType: utils.ParseUserAgent(userAgent).DeviceType,
	}
}
