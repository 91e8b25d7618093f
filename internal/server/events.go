package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/clmpro/clmsetup/internal/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event types pushed to /api/events subscribers.
const (
	EventUserStep         = "user.step"
	EventUserSubscription = "user.subscription"
	EventDeviceCreated    = "device.created"
	EventDeviceUpdated    = "device.updated"
)

// Event is one message on the event stream.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Buffered events per subscriber before it is dropped
	subscriberBuffer = 16
)

type subscriber struct {
	userID int64
	send   chan Event
}

// Hub fans events out to the websocket subscribers of each user.
type Hub struct {
	mu   sync.Mutex
	subs map[int64]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int64]map[*subscriber]struct{})}
}

func (h *Hub) subscribe(userID int64) *subscriber {
	sub := &subscriber{userID: userID, send: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[*subscriber]struct{})
	}
	h.subs[userID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.userID]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			close(sub.send)
		}
		if len(set) == 0 {
			delete(h.subs, sub.userID)
		}
	}
}

// Publish sends ev to every subscriber of userID. Slow subscribers whose
// buffer is full are disconnected.
func (h *Hub) Publish(userID int64, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[userID] {
		select {
		case sub.send <- ev:
		default:
			logging.Warn("Dropping slow event subscriber", zap.Int64("user_id", userID))
			delete(h.subs[userID], sub)
			close(sub.send)
		}
	}
}

// Subscribers returns the number of subscribers of userID.
func (h *Hub) Subscribers(userID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.subs {
		for sub := range set {
			close(sub.send)
		}
		delete(h.subs, userID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin; the session cookie authorises the stream.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleEvents upgrades to a websocket and streams the user's events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	sub := s.hub.subscribe(user.ID)
	logging.Debug("Event subscriber connected", zap.Int64("user_id", user.ID))

	go readPump(conn, func() { s.hub.unsubscribe(sub) })
	writePump(conn, sub)
	logging.Debug("Event subscriber disconnected", zap.Int64("user_id", user.ID))
}

// readPump discards client messages and handles pongs. It calls stop when
// the connection fails.
func readPump(conn *websocket.Conn, stop func()) {
	defer stop()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump writes events and keepalive pings until the subscription ends.
func writePump(conn *websocket.Conn, sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-sub.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
