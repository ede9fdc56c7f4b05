package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ridetrack/internal/domain"
	"ridetrack/internal/service"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamMessage is the envelope written to tracking stream subscribers.
type StreamMessage struct {
	Type         string                 `json:"type"` // "state" or "notification"
	RideID       string                 `json:"ride_id"`
	State        *TrackingStateResponse `json:"state,omitempty"`
	Notification *NotificationMessage   `json:"notification,omitempty"`
}

// NotificationMessage is a rider notification pushed over the stream.
type NotificationMessage struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// streamClient is one websocket subscriber of a ride.
type streamClient struct {
	id     string
	rideID string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub fans tracking states and notifications out to the websocket clients
// watching each ride.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[string]*streamClient
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[string]*streamClient)}
}

var (
	_ service.StateBroadcaster = (*Hub)(nil)
	_ service.Sender           = (*Hub)(nil)
)

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ride, ok := h.clients[c.rideID]
	if !ok {
		ride = make(map[string]*streamClient)
		h.clients[c.rideID] = ride
	}
	ride[c.id] = c
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	ride, ok := h.clients[c.rideID]
	if ok {
		if _, present := ride[c.id]; present {
			delete(ride, c.id)
			if len(ride) == 0 {
				delete(h.clients, c.rideID)
			}
		}
	}
	h.mu.Unlock()
	c.close()
}

// Subscribers returns the number of clients watching a ride.
func (h *Hub) Subscribers(rideID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[rideID])
}

// BroadcastState pushes a tracking state to every client watching the ride.
func (h *Hub) BroadcastState(rideID string, state domain.TrackingState) {
	resp := newTrackingStateResponse(state)
	h.broadcast(rideID, StreamMessage{Type: "state", RideID: rideID, State: &resp})
}

// Send pushes a notification to the clients watching the ride it concerns.
// Notifications without a ride are dropped.
func (h *Hub) Send(_ context.Context, n service.Notification) error {
	rideID, _ := n.Data["ride_id"].(string)
	if rideID == "" {
		return nil
	}
	h.broadcast(rideID, StreamMessage{
		Type:   "notification",
		RideID: rideID,
		Notification: &NotificationMessage{
			Type:    string(n.Type),
			Title:   n.Title,
			Message: n.Message,
		},
	})
	return nil
}

func (h *Hub) broadcast(rideID string, msg StreamMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[STREAM] Failed to encode %s message for ride %s: %v", msg.Type, rideID, err)
		return
	}

	var slow []*streamClient
	h.mu.RLock()
	for _, c := range h.clients[rideID] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("[STREAM] Dropping slow client %s on ride %s", c.id, rideID)
		h.remove(c)
	}
}

// Serve upgrades the request and streams the ride's messages until the client
// goes away. initial, when non-nil, is written before anything else.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, rideID string, initial *domain.TrackingState) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[STREAM] Upgrade failed for ride %s: %v", rideID, err)
		return
	}

	c := &streamClient{
		id:     uuid.New().String(),
		rideID: rideID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}

	if initial != nil {
		resp := newTrackingStateResponse(*initial)
		if payload, err := json.Marshal(StreamMessage{Type: "state", RideID: rideID, State: &resp}); err == nil {
			c.send <- payload
		}
	}

	h.add(c)
	log.Printf("[STREAM] Client %s subscribed to ride %s", c.id, rideID)

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and keeps the read deadline alive on pong.
func (h *Hub) readPump(c *streamClient) {
	defer func() {
		h.remove(c)
		log.Printf("[STREAM] Client %s left ride %s", c.id, c.rideID)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *streamClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("[STREAM] Write failed for client %s: %v", c.id, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				log.Printf("[STREAM] Ping failed for client %s: %v", c.id, err)
				return
			}
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*streamClient
	for _, ride := range h.clients {
		for _, c := range ride {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[string]*streamClient)
	h.mu.Unlock()

	for _, c := range all {
		c.close()
	}
}
