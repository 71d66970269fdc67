package services

import (
	"context"

	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/pkg/fare"
)

// AgentService reports on an agent's fleet
type AgentService struct {
	buses    BusStore
	bookings BookingStore
}

// NewAgentService creates a new agent service
func NewAgentService(buses BusStore, bookings BookingStore) *AgentService {
	return &AgentService{buses: buses, bookings: bookings}
}

// Stats returns fleet counts and confirmed revenue
func (s *AgentService) Stats(ctx context.Context, agentID string) (*models.AgentStats, error) {
	stats, err := s.buses.StatsForAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	stats.TotalRevenue = fare.Round2(stats.TotalRevenue)
	return stats, nil
}

// Bookings lists bookings on the agent's buses
func (s *AgentService) Bookings(ctx context.Context, agentID string) ([]models.BookingWithBus, error) {
	return s.bookings.ListByAgent(ctx, agentID)
}
