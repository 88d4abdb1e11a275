package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"shopdesk/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

var (
	openConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopdesk_ws_connections",
		Help: "Open websocket connections",
	})

	framesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopdesk_ws_frames_received_total",
			Help: "Inbound websocket frames by type",
		},
		[]string{"type"},
	)

	slowClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopdesk_ws_slow_clients_total",
		Help: "Connections dropped because their send buffer was full",
	})
)

// Handler receives the frames of one connection. Handle runs on the connection's read goroutine, so
// frames of one client are handled in arrival order. Closed is called once, after the read loop exits.
type Handler interface {
	Handle(ctx context.Context, client *Client, frame Frame)
	Closed(client *Client)
}

// Client is one websocket connection. A user may hold several.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// SendJSON queues v for the write pump. It never blocks: a client whose buffer is full is disconnected.
func (c *Client) SendJSON(v interface{}) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		logger.Error("WebSocket: failed to encode frame for %s: %v", c.UserID, err)
		return false
	}

	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		slowClients.Inc()
		logger.Warn("WebSocket: send buffer full for client %s (user %s), closing", c.ID, c.UserID)
		c.Close()
		return false
	}
}

// Close stops both pumps. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Manager tracks the open connections per user.
type Manager struct {
	clients map[string]map[string]*Client
	mutex   sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		clients: make(map[string]map[string]*Client),
	}
}

// Start closes every connection once ctx is done.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		m.Shutdown()
	}()
}

func (m *Manager) Register(client *Client) {
	m.mutex.Lock()
	if m.clients[client.UserID] == nil {
		m.clients[client.UserID] = make(map[string]*Client)
	}
	m.clients[client.UserID][client.ID] = client
	m.mutex.Unlock()

	openConnections.Inc()
	logger.Info("WebSocket: client %s registered for user %s", client.ID, client.UserID)
}

func (m *Manager) Unregister(client *Client) {
	m.mutex.Lock()
	userClients, ok := m.clients[client.UserID]
	if ok {
		if _, ok = userClients[client.ID]; ok {
			delete(userClients, client.ID)
			if len(userClients) == 0 {
				delete(m.clients, client.UserID)
			}
		}
	}
	m.mutex.Unlock()

	client.Close()
	if ok {
		openConnections.Dec()
		logger.Info("WebSocket: client %s unregistered for user %s", client.ID, client.UserID)
	}
}

// SendToUser queues v on every connection of userID and returns how many accepted it.
func (m *Manager) SendToUser(userID string, v interface{}) int {
	m.mutex.RLock()
	targets := make([]*Client, 0, len(m.clients[userID]))
	for _, c := range m.clients[userID] {
		targets = append(targets, c)
	}
	m.mutex.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.SendJSON(v) {
			sent++
		}
	}
	return sent
}

// Count returns the number of open connections.
func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	n := 0
	for _, userClients := range m.clients {
		n += len(userClients)
	}
	return n
}

func (m *Manager) Shutdown() {
	m.mutex.RLock()
	all := make([]*Client, 0)
	for _, userClients := range m.clients {
		for _, c := range userClients {
			all = append(all, c)
		}
	}
	m.mutex.RUnlock()

	for _, c := range all {
		c.Close()
	}
	logger.Info("WebSocket: closed %d connections on shutdown", len(all))
}

// Serve registers client, runs its write pump and blocks in the read pump until the connection ends.
func (m *Manager) Serve(ctx context.Context, client *Client, handler Handler) {
	m.Register(client)
	go client.WritePump()
	client.ReadPump(ctx, m, handler)
}

// ReadPump reads frames until the connection fails or the client is closed.
func (c *Client) ReadPump(ctx context.Context, m *Manager, handler Handler) {
	defer func() {
		m.Unregister(c)
		handler.Closed(c)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket: read error for client %s: %v", c.ID, err)
			}
			return
		}

		frame, err := ParseFrame(payload)
		if err != nil {
			c.SendJSON(ErrorReply(Frame{}, "BAD_REQUEST", err.Error()))
			continue
		}
		framesReceived.WithLabelValues(frame.Type).Inc()
		handler.Handle(ctx, c, frame)
	}
}

// WritePump drains the send buffer and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warn("WebSocket: write error for client %s: %v", c.ID, err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes what is still buffered, so a final frame such as signed_out reaches the browser.
func (c *Client) flush() {
	for {
		select {
		case payload := <-c.send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		default:
			return
		}
	}
}
