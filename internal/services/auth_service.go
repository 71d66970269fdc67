package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/onlinebus/booking-backend/internal/database"
	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/pkg/jwt"
)

// ErrInvalidCredentials is returned for an unknown email or a wrong password
var ErrInvalidCredentials = errors.New("invalid email or password")

// ErrInvalidRefreshToken is returned when a refresh token is unknown, revoked or expired
var ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")

// TokenStore persists issued refresh tokens
type TokenStore interface {
	Store(ctx context.Context, userID, token string, meta models.ClientMeta, expiresAt time.Time) error
	Get(ctx context.Context, token string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	MarkUsed(ctx context.Context, token string) error
}

// AuthService registers accounts and issues tokens
type AuthService struct {
	users         UserStore
	tokens        TokenStore
	jwtService    *jwt.Service
	refreshExpiry time.Duration
	bcryptCost    int
	logger        *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users UserStore,
	tokens TokenStore,
	jwtService *jwt.Service,
	refreshExpiry time.Duration,
	bcryptCost int,
	logger *logrus.Logger,
) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:         users,
		tokens:        tokens,
		jwtService:    jwtService,
		refreshExpiry: refreshExpiry,
		bcryptCost:    bcryptCost,
		logger:        logger,
	}
}

// Register creates a passenger account and logs it in
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest, meta models.ClientMeta) (*models.AuthResponse, error) {
	user, err := s.createUser(ctx, req, models.RoleUser)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, user, meta)
}

// CreateAgent creates a bus operator account; it is not logged in
func (s *AuthService) CreateAgent(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	return s.createUser(ctx, req, models.RoleAgent)
}

func (s *AuthService) createUser(ctx context.Context, req *models.RegisterRequest, role string) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:            uuid.New().String(),
		Name:          req.Name,
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         req.Email,
		Phone:         strings.TrimSpace(req.Phone),
		PasswordHash:  string(hash),
		Role:          role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, models.ErrConflict("EMAIL_TAKEN", "an account with this email already exists", err)
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "role": role}).Info("Account created")
	return user, nil
}

// Login verifies credentials and issues a token pair
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest, meta models.ClientMeta) (*models.AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, user, meta)
}

// Refresh exchanges a refresh token for a new pair; the old token is revoked
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta models.ClientMeta) (*models.AuthResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	stored, err := s.tokens.Get(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || !stored.IsUsable(time.Now()) {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.UserID.String())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}

	if err := s.tokens.MarkUsed(ctx, refreshToken); err != nil {
		s.logger.WithError(err).Warn("Failed to update refresh token usage")
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.issue(ctx, user, meta)
}

// Logout revokes one refresh token, or all of the user's tokens when everywhere is set
func (s *AuthService) Logout(ctx context.Context, userID, refreshToken string, everywhere bool) error {
	if everywhere {
		return s.tokens.RevokeAllForUser(ctx, userID)
	}
	if refreshToken == "" {
		return models.ErrInvalidField("refresh_token", "is required")
	}
	return s.tokens.Revoke(ctx, refreshToken)
}

// ListAgents returns every agent account
func (s *AuthService) ListAgents(ctx context.Context) ([]models.User, error) {
	return s.users.ListByRole(ctx, models.RoleAgent)
}

// DeleteAgent removes an agent account
func (s *AuthService) DeleteAgent(ctx context.Context, agentID string) error {
	return s.users.DeleteWithRole(ctx, agentID, models.RoleAgent)
}

func (s *AuthService) issue(ctx context.Context, user *models.User, meta models.ClientMeta) (*models.AuthResponse, error) {
	userID, err := uuid.Parse(user.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", user.ID, err)
	}

	accessToken, err := s.jwtService.GenerateAccessToken(userID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(userID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.tokens.Store(ctx, user.ID, refreshToken, meta, time.Now().Add(s.refreshExpiry)); err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.AccessTokenExpiry().Seconds()),
		User:         user,
	}, nil
}
