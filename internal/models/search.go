package models

import (
	"strings"
)

// SearchRequest represents a passenger's search query
type SearchRequest struct {
	From string `form:"from" json:"from" binding:"required"` // Boarding stop name (e.g., "Pune")
	To   string `form:"to" json:"to" binding:"required"`     // Alighting stop name (e.g., "Kolhapur")
	Date string `form:"date" json:"date" binding:"required"` // Travel date, YYYY-MM-DD
}

// Validate validates the search request and returns the parsed date
func (r *SearchRequest) Validate() (Date, error) {
	r.From = strings.TrimSpace(r.From)
	r.To = strings.TrimSpace(r.To)

	if r.From == "" {
		return Date{}, ErrInvalidField("from", "origin stop is required")
	}
	if r.To == "" {
		return Date{}, ErrInvalidField("to", "destination stop is required")
	}
	return ParseDate(r.Date)
}

// CacheKey returns the normalized key identifying this query
func (r *SearchRequest) CacheKey() string {
	return strings.ToLower(r.From) + "|" + strings.ToLower(r.To) + "|" + strings.TrimSpace(r.Date)
}

// SearchResult is one bus running the requested segment on the requested date
type SearchResult struct {
	BusID         string  `json:"bus_id"`
	BusName       string  `json:"bus_name"`
	BusNumber     string  `json:"bus_number"`
	BusType       string  `json:"bus_type"`
	RouteID       string  `json:"route_id"`
	ScheduleID    string  `json:"schedule_id"`
	DepartureTime string  `json:"departure_time"`
	ArrivalTime   string  `json:"arrival_time"`
	EstimatedFare float64 `json:"estimated_fare"`
}

// SearchResponse wraps search results
type SearchResponse struct {
	From         string         `json:"from"`
	To           string         `json:"to"`
	Date         string         `json:"date"`
	Results      []SearchResult `json:"results"`
	Cached       bool           `json:"cached"`
	SearchTimeMs int64          `json:"search_time_ms"`
}
