// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Corphon/CampaignStudio/internal/services"
	"github.com/Corphon/CampaignStudio/internal/utils"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = 54 * time.Second
	wsSendQueue    = 64
	wsCleanupEvery = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotificationMessage is the frame pushed to session subscribers.
type NotificationMessage struct {
	Type      string                    `json:"type"`
	SessionID string                    `json:"session_id"`
	Kind      services.NotificationKind `json:"kind,omitempty"`
	Message   string                    `json:"message,omitempty"`
	Timestamp time.Time                 `json:"timestamp"`
}

// hubClient is one websocket subscriber of a session.
type hubClient struct {
	conn      *websocket.Conn
	sessionID string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	lastPing  atomic.Int64
	createdAt time.Time
}

func newHubClient(conn *websocket.Conn, sessionID string) *hubClient {
	c := &hubClient{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan []byte, wsSendQueue),
		done:      make(chan struct{}),
		createdAt: time.Now(),
	}
	c.touch()
	return c
}

func (c *hubClient) touch() {
	c.lastPing.Store(time.Now().UnixNano())
}

func (c *hubClient) expired(timeout time.Duration) bool {
	return time.Since(time.Unix(0, c.lastPing.Load())) > timeout
}

// close stops the write pump and closes the connection; send is never closed, so
// concurrent broadcasts cannot panic.
func (c *hubClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *hubClient) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// NotificationHub fans session notifications out to websocket subscribers.
type NotificationHub struct {
	connections map[string]map[*hubClient]struct{} // sessionID -> clients
	mutex       sync.RWMutex
	register    chan *hubClient
	unregister  chan *hubClient
	stop        chan struct{}
	stopped     chan struct{}
	stopOnce    sync.Once
	started     atomic.Bool
	pingTimeout time.Duration
	logger      *utils.Logger
}

// NewNotificationHub creates a hub. Call Start before serving connections.
func NewNotificationHub(logger *utils.Logger) *NotificationHub {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &NotificationHub{
		connections: make(map[string]map[*hubClient]struct{}),
		register:    make(chan *hubClient, 16),
		unregister:  make(chan *hubClient, 16),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
		pingTimeout: wsPongWait,
		logger:      logger,
	}
}

// Start runs the hub loop until Stop.
func (h *NotificationHub) Start() {
	if h.started.CompareAndSwap(false, true) {
		go h.run()
	}
}

// Stop closes every connection and waits for the hub loop to exit.
func (h *NotificationHub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	if h.started.Load() {
		<-h.stopped
	}
}

func (h *NotificationHub) run() {
	defer close(h.stopped)
	ticker := time.NewTicker(wsCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case <-ticker.C:
			h.cleanupExpiredConnections()
		case <-h.stop:
			h.shutdown()
			return
		}
	}
}

func (h *NotificationHub) registerClient(client *hubClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.connections[client.sessionID] == nil {
		h.connections[client.sessionID] = make(map[*hubClient]struct{})
	}
	h.connections[client.sessionID][client] = struct{}{}
	h.logger.Debug("websocket subscriber connected", map[string]interface{}{"session_id": client.sessionID})
}

func (h *NotificationHub) unregisterClient(client *hubClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(client)
}

func (h *NotificationHub) removeLocked(client *hubClient) {
	if clients, ok := h.connections[client.sessionID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.connections, client.sessionID)
		}
	}
	client.close()
}

func (h *NotificationHub) cleanupExpiredConnections() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, clients := range h.connections {
		for client := range clients {
			if client.isClosed() || client.expired(h.pingTimeout) {
				h.removeLocked(client)
			}
		}
	}
}

func (h *NotificationHub) shutdown() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, clients := range h.connections {
		for client := range clients {
			client.close()
		}
	}
	h.connections = make(map[string]map[*hubClient]struct{})
}

// Broadcast sends message to every subscriber of sessionID. Subscribers with a full
// queue are dropped.
func (h *NotificationHub) Broadcast(sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("encode websocket message", map[string]interface{}{"error": err.Error()})
		return
	}

	h.mutex.RLock()
	targets := make([]*hubClient, 0, len(h.connections[sessionID]))
	for client := range h.connections[sessionID] {
		if !client.isClosed() {
			targets = append(targets, client)
		}
	}
	h.mutex.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- data:
		default:
			client.close()
			select {
			case h.unregister <- client:
			case <-h.stop:
			}
		}
	}
}

// Notifier returns the notification sink of one session.
func (h *NotificationHub) Notifier(sessionID string) services.NotificationSink {
	return services.NotifierFunc(func(kind services.NotificationKind, message string) {
		h.Broadcast(sessionID, NotificationMessage{
			Type:      "notification",
			SessionID: sessionID,
			Kind:      kind,
			Message:   message,
			Timestamp: time.Now(),
		})
	})
}

// CloseSession disconnects every subscriber of sessionID.
func (h *NotificationHub) CloseSession(sessionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.connections[sessionID] {
		h.removeLocked(client)
	}
}

// Subscribers returns the number of open connections for sessionID.
func (h *NotificationHub) Subscribers(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.connections[sessionID])
}

// GetStatus summarizes open connections per session.
func (h *NotificationHub) GetStatus() map[string]interface{} {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	sessions := make(map[string]interface{}, len(h.connections))
	total := 0
	for sessionID, clients := range h.connections {
		oldest := time.Time{}
		for client := range clients {
			if oldest.IsZero() || client.createdAt.Before(oldest) {
				oldest = client.createdAt
			}
		}
		sessions[sessionID] = map[string]interface{}{
			"client_count":     len(clients),
			"oldest_connected": oldest.Format(time.RFC3339),
		}
		total += len(clients)
	}
	return map[string]interface{}{
		"total_sessions":    len(h.connections),
		"total_connections": total,
		"sessions":          sessions,
	}
}

// Serve upgrades the request and streams notifications of sessionID until the peer
// disconnects or the hub stops.
func (h *NotificationHub) Serve(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	client := newHubClient(conn, sessionID)
	select {
	case h.register <- client:
	case <-h.stop:
		client.close()
		return nil
	}
	defer func() {
		client.close()
		select {
		case h.unregister <- client:
		case <-h.stop:
		}
	}()

	go h.writePump(client)

	welcome, _ := json.Marshal(NotificationMessage{Type: "connected", SessionID: sessionID, Timestamp: time.Now()})
	select {
	case client.send <- welcome:
	default:
	}

	h.readPump(client)
	return nil
}

func (h *NotificationHub) readPump(client *hubClient) {
	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		client.touch()
		return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", map[string]interface{}{
					"session_id": client.sessionID,
					"error":      err.Error(),
				})
			}
			return
		}
		client.touch()

		var msg struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(NotificationMessage{Type: "pong", SessionID: client.sessionID, Timestamp: time.Now()})
			select {
			case client.send <- pong:
			default:
			}
		}
	}
}

func (h *NotificationHub) writePump(client *hubClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		client.close()
	}()

	for {
		select {
		case message := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-client.done:
			client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			client.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
