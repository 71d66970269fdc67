package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// UserContext represents the authenticated caller
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
}

func abortUnauthorized(c *gin.Context, message, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": message,
		"code":    code,
	})
}

// AuthMiddleware validates the bearer access token and stores the caller in the context
func AuthMiddleware(jwtService *jwt.Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry := logger.WithFields(logrus.Fields{
			"path": c.Request.URL.Path,
			"ip":   c.ClientIP(),
		})

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			entry.Debug("Auth failed: missing authorization header")
			abortUnauthorized(c, "Authorization header is required", "MISSING_AUTH_HEADER")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			entry.Debug("Auth failed: invalid authorization format")
			abortUnauthorized(c, "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT")
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			abortUnauthorized(c, "Token cannot be empty", "EMPTY_TOKEN")
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if errors.Is(err, gojwt.ErrTokenExpired) {
				entry.Debug("Auth failed: token expired")
				abortUnauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
				return
			}
			entry.WithError(err).Warn("Auth failed: invalid token")
			abortUnauthorized(c, "Invalid or malformed token", "INVALID_TOKEN")
			return
		}

		c.Set(UserContextKey, UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Role:   claims.Role,
		})
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
// Must be installed after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUserContext(c)
		if !ok {
			abortUnauthorized(c, "Authentication required", "UNAUTHENTICATED")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You do not have permission to access this resource",
			"code":    "INSUFFICIENT_ROLE",
		})
	}
}

// GetUserContext returns the authenticated caller, if any
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}
	user, ok := value.(UserContext)
	return user, ok
}

// MustGetUserContext panics when called on a route without AuthMiddleware
func MustGetUserContext(c *gin.Context) UserContext {
	user, ok := GetUserContext(c)
	if !ok {
		panic("user context not found: AuthMiddleware not installed on this route")
	}
	return user
}
