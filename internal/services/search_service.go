package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/onlinebus/booking-backend/internal/models"
	"github.com/onlinebus/booking-backend/pkg/fare"
)

// SearchService finds buses running between two stops on a date
type SearchService struct {
	routes    RouteStore
	schedules ScheduleStore
	buses     BusStore
	layouts   SeatLayoutStore
	cache     SearchCache
	calc      fare.Calculator
	logger    *logrus.Logger
}

// NewSearchService creates a new search service. cache may be nil.
func NewSearchService(routes RouteStore, schedules ScheduleStore, buses BusStore, layouts SeatLayoutStore, cache SearchCache, fareFloor float64, logger *logrus.Logger) *SearchService {
	return &SearchService{
		routes:    routes,
		schedules: schedules,
		buses:     buses,
		layouts:   layouts,
		cache:     cache,
		calc:      fare.NewCalculator(fareFloor),
		logger:    logger,
	}
}

type routeMatch struct {
	route    *models.Route
	fromIdx  int
	toIdx    int
	segments int
}

// SearchBuses lists every scheduled bus whose route passes from before to on the date
func (s *SearchService) SearchBuses(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	startTime := time.Now()

	date, err := req.Validate()
	if err != nil {
		return nil, err
	}
	key := req.CacheKey()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warn("Search cache unavailable, scanning routes")
		} else if cached != nil {
			cached.Cached = true
			cached.SearchTimeMs = time.Since(startTime).Milliseconds()
			return cached, nil
		}
	}

	results, err := s.scan(ctx, req.From, req.To, date)
	if err != nil {
		return nil, err
	}

	resp := &models.SearchResponse{
		From:    req.From,
		To:      req.To,
		Date:    date.String(),
		Results: results,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp); err != nil {
			s.logger.WithError(err).Warn("Failed to cache search results")
		}
	}

	resp.SearchTimeMs = time.Since(startTime).Milliseconds()
	s.logger.WithFields(logrus.Fields{
		"from":    req.From,
		"to":      req.To,
		"date":    resp.Date,
		"results": len(results),
		"ms":      resp.SearchTimeMs,
	}).Info("Search completed")
	return resp, nil
}

func (s *SearchService) scan(ctx context.Context, from, to string, date models.Date) ([]models.SearchResult, error) {
	routes, err := s.routes.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	matches := make(map[string]routeMatch)
	routeIDs := make([]string, 0)
	for i := range routes {
		route := &routes[i]
		path := route.StopPath()
		if !path.IsValidMatch(from, to) {
			continue
		}
		fromIdx, toIdx := path.Locate(from, to)
		matches[route.ID] = routeMatch{route: route, fromIdx: fromIdx, toIdx: toIdx, segments: path.Segments()}
		routeIDs = append(routeIDs, route.ID)
	}

	results := []models.SearchResult{}
	if len(routeIDs) == 0 {
		return results, nil
	}

	schedules, err := s.schedules.ListByRoutesAndDate(ctx, routeIDs, date)
	if err != nil {
		return nil, err
	}
	if len(schedules) == 0 {
		return results, nil
	}

	busIDs := make([]string, 0, len(schedules))
	seen := make(map[string]bool, len(schedules))
	for _, sc := range schedules {
		if !seen[sc.BusID] {
			seen[sc.BusID] = true
			busIDs = append(busIDs, sc.BusID)
		}
	}

	buses, err := s.buses.ListByIDs(ctx, busIDs)
	if err != nil {
		return nil, err
	}
	layouts, err := s.layouts.ListByBusIDs(ctx, busIDs)
	if err != nil {
		return nil, err
	}

	for _, sc := range schedules {
		match, ok := matches[sc.RouteID]
		bus := buses[sc.BusID]
		if !ok || bus == nil {
			continue
		}

		estimated := 0.0
		if layout := layouts[sc.BusID]; layout != nil {
			estimated = s.calc.MinimumFare(layout.Prices(), match.fromIdx, match.toIdx, match.segments)
		}

		results = append(results, models.SearchResult{
			BusID:         bus.ID,
			BusName:       bus.BusName,
			BusNumber:     bus.BusNumber,
			BusType:       bus.BusType,
			RouteID:       match.route.ID,
			ScheduleID:    sc.ID,
			DepartureTime: sc.DepartureTime,
			ArrivalTime:   sc.ArrivalTime,
			EstimatedFare: estimated,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.DepartureTime != b.DepartureTime {
			return a.DepartureTime < b.DepartureTime
		}
		if a.BusName != b.BusName {
			return a.BusName < b.BusName
		}
		return a.ScheduleID < b.ScheduleID
	})
	return results, nil
}

// Stops returns the boarding points of the bus's first route, in order
func (s *SearchService) Stops(ctx context.Context, busID string) ([]string, error) {
	route, err := s.routes.FirstByBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, models.ErrNotFound("route for bus", busID)
	}

	stops := make([]string, 0, len(route.Stops)+2)
	stops = append(stops, route.Origin)
	for _, stop := range route.Stops {
		if stop = strings.TrimSpace(stop); stop != "" {
			stops = append(stops, stop)
		}
	}
	return append(stops, route.Destination), nil
}

// InvalidateCache drops cached searches after a route, schedule or layout change
func (s *SearchService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate search cache")
	}
}
