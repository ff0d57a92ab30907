// Package ws serves chat over a websocket. Each text frame carries one chat
// message and is answered with one frame holding the reply segments or an error.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"talking-avatar/backend/internal/auth"
	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/pkg/errors"
	"talking-avatar/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Messages waiting behind the one being answered
	maxQueuedMessages = 4
)

// Replier is implemented by pipeline.Orchestrator
type Replier interface {
	Run(ctx context.Context, utterance string) ([]models.ReplySegment, error)
}

// TokenResolver reports whether a bearer token is still live. It is consulted
// before every frame so a logout ends the socket's access.
type TokenResolver interface {
	Resolve(token string) (string, bool)
}

// Hub tracks open chat connections
type Hub struct {
	replier  Replier
	sessions TokenResolver
	upgrader websocket.Upgrader
	log      *logger.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// Client is one websocket connection. Frames are answered in order by a single
// worker so replies never interleave.
type Client struct {
	id       string
	username string
	token    string
	conn     *websocket.Conn
	hub      *Hub
	log      *logger.Logger

	send     chan []byte
	jobs     chan string
	quit     chan struct{}
	quitOnce sync.Once
}

// NewHub creates a hub. allowedOrigins of ["*"] accepts any origin.
func NewHub(replier Replier, sessions TokenResolver, allowedOrigins []string, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.GetGlobal()
	}
	h := &Hub{
		replier:  replier,
		sessions: sessions,
		log:      log.With("component", "ws"),
		clients:  make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:      originChecker(allowedOrigins),
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Count returns the number of open connections
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	c.log.Info("websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		c.log.Info("websocket client disconnected")
	}
}

// ServeWS upgrades an authenticated request. The session guard must run first.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}

	id := uuid.NewString()
	identity, _ := auth.IdentityFrom(c.Request.Context())
	username := identity.Username
	client := &Client{
		id:       id,
		username: username,
		token:    identity.Token,
		conn:     conn,
		hub:      h,
		log:      h.log.With("client_id", id, "username", username),
		send:     make(chan []byte, 8),
		jobs:     make(chan string, maxQueuedMessages),
		quit:     make(chan struct{}),
	}

	h.register(client)

	// Runs outlive the HTTP request that opened the socket
	ctx := context.WithoutCancel(c.Request.Context())
	go client.writePump()
	go client.worker(ctx)
	go client.readPump()
}

// close signals the pumps; writePump owns closing the connection
func (c *Client) close() {
	c.quitOnce.Do(func() { close(c.quit) })
}

func (c *Client) readPump() {
	defer func() {
		close(c.jobs)
		c.hub.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read failed", "error", err.Error())
			}
			return
		}

		var frame models.ChatRequest
		if err := json.Unmarshal(data, &frame); err != nil {
			c.sendError(errors.NewValidationError("Invalid message format"))
			continue
		}

		select {
		case c.jobs <- frame.Message:
		default:
			c.sendError(errors.NewRateLimitError("Too many pending messages"))
		}
	}
}

func (c *Client) worker(ctx context.Context) {
	for message := range c.jobs {
		select {
		case <-c.quit:
			// Nobody is listening, drop what is left
			continue
		default:
		}

		if !c.sessionLive() {
			c.log.Info("websocket session revoked, closing")
			c.sendError(errors.NewUnauthorizedError(auth.ErrInvalidToken.Error()))
			c.close()
			return
		}

		segments, err := c.hub.replier.Run(ctx, message)
		if err != nil {
			c.log.LogError(err, "websocket reply failed")
			c.sendError(errors.NewUpstreamError("Failed to generate a reply", err))
			continue
		}
		c.sendJSON(models.ChatResponse{Messages: segments})
	}
}

// sessionLive re-resolves the token the socket was opened with
func (c *Client) sessionLive() bool {
	if c.hub.sessions == nil {
		return true
	}
	_, ok := c.hub.sessions.Resolve(c.token)
	return ok
}

func (c *Client) sendError(appErr *errors.AppError) {
	c.sendJSON(gin.H{"error": gin.H{"code": appErr.Code, "message": appErr.Message}})
}

func (c *Client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		c.log.LogError(err, "failed to encode websocket frame")
		return
	}
	select {
	case c.send <- data:
	case <-c.quit:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.quit:
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}

// flush writes frames queued before quit, such as the reason for closing
func (c *Client) flush() {
	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		default:
			return
		}
	}
}
