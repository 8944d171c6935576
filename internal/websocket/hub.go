package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/danuharapan/senandika/server/domain/entities"
	"github.com/danuharapan/senandika/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of connected app clients and pushes every appended
// conversation turn to the clients subscribed to that device.
type Hub struct {
	// Registered clients.
	clients map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	sessions  *usecase.SessionService
	validator *MessageValidator

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub and hooks it into the session engine's
// turn stream.
func NewHub(sessions *usecase.SessionService, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sessions:   sessions,
		validator:  NewMessageValidator(),
		logger:     logger,
	}
	sessions.OnTurn(h.pushTurn)
	return h
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered", zap.String("userID", client.userID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("userID", client.userID))
		}
	}
}

// pushTurn fans an appended turn out to every subscribed client. A client
// whose send buffer is full is skipped rather than blocking the stream.
func (h *Hub) pushTurn(deviceID string, turn entities.ConversationTurn) {
	payload, err := json.Marshal(CreateTurnMessage(deviceID, turn))
	if err != nil {
		h.logger.Error("Failed to encode turn message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.subscribedTo(deviceID) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			h.logger.Warn("Dropping turn for slow client",
				zap.String("userID", client.userID),
				zap.String("deviceID", deviceID))
		}
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Authenticated app user for this client
	userID string

	// Logger
	logger *zap.Logger

	// Device subscription; empty means all devices.
	mu       sync.Mutex
	deviceID string
}

func (c *Client) subscribedTo(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceID == "" || c.deviceID == deviceID
}

// HandleWebSocket handles websocket requests with a pre-authenticated user ID.
func HandleWebSocket(hub *Hub, ctx echo.Context, userID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: userID,
		logger: logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}
		c.processMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage processes one incoming client message
func (c *Client) processMessage(message []byte) {
	parsed, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected client message", zap.Error(err))
		c.reply(CreateErrorMessage("invalid_message", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *SubscribeMessage:
		c.mu.Lock()
		c.deviceID = msg.DeviceID
		c.mu.Unlock()
		c.logger.Info("Client subscription changed",
			zap.String("userID", c.userID),
			zap.String("deviceID", msg.DeviceID))

	case *SendMessageMessage:
		if _, err := c.hub.sessions.SendMessage(msg.DeviceID, msg.Text); err != nil {
			c.logger.Warn("Failed to submit turn over socket",
				zap.String("deviceID", msg.DeviceID),
				zap.Error(err))
			c.reply(CreateErrorMessage("send_failed", err.Error()))
		}

	case *PingMessage:
		c.reply(CreatePongMessage(msg.Data))
	}
}

func (c *Client) reply(message interface{}) {
	payload, err := json.Marshal(message)
	if err != nil {
		c.logger.Error("Failed to encode reply", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
