package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// MessageType represents the type of a seat-map event
type MessageType string

const (
	MessageTypeSeatBooked   MessageType = "seat_booked"
	MessageTypeSeatReleased MessageType = "seat_released"
)

// Message is pushed to every client watching the same bus on the same date
type Message struct {
	Type        MessageType `json:"type"`
	BusID       string      `json:"bus_id"`
	TravelDate  string      `json:"travel_date"`
	SeatNumbers []string    `json:"seat_numbers"`
	Timestamp   int64       `json:"timestamp"`
}

// Hub fans seat events out to clients grouped by bus and travel date
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logrus.Logger
}

// NewHub creates a new Hub. Call Run in its own goroutine.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

func topic(busID, travelDate string) string {
	return busID + "|" + travelDate
}

// Run is the hub's main loop; it returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for key, clients := range h.clients {
				for client := range clients {
					close(client.send)
				}
				delete(h.clients, key)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.topic] == nil {
				h.clients[client.topic] = make(map[*Client]bool)
			}
			h.clients[client.topic][client] = true
			count := len(h.clients[client.topic])
			h.mu.Unlock()
			h.logger.WithFields(logrus.Fields{"topic": client.topic, "clients": count}).Debug("Seat map client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.WithError(err).Error("Failed to marshal seat event")
				continue
			}

			h.mu.Lock()
			for client := range h.clients[topic(message.BusID, message.TravelDate)] {
				select {
				case client.send <- data:
				default:
					// slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.topic]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.topic)
	}
}

// Stop terminates Run and closes every client's send channel
func (h *Hub) Stop() {
	close(h.done)
}

func (h *Hub) publish(msgType MessageType, busID, travelDate string, seatNumbers []string) {
	msg := &Message{
		Type:        msgType,
		BusID:       busID,
		TravelDate:  travelDate,
		SeatNumbers: seatNumbers,
		Timestamp:   time.Now().UnixMilli(),
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WithFields(logrus.Fields{"bus_id": busID, "type": msgType}).Warn("Seat event dropped, broadcast queue full")
	}
}

// SeatsBooked notifies watchers that seats were taken
func (h *Hub) SeatsBooked(busID, travelDate string, seatNumbers ...string) {
	h.publish(MessageTypeSeatBooked, busID, travelDate, seatNumbers)
}

// SeatsReleased notifies watchers that seats became available again
func (h *Hub) SeatsReleased(busID, travelDate string, seatNumbers ...string) {
	h.publish(MessageTypeSeatReleased, busID, travelDate, seatNumbers)
}

// ClientCount returns the number of clients watching a bus on a date
func (h *Hub) ClientCount(busID, travelDate string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic(busID, travelDate)])
}
