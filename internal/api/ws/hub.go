package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/extsync/internal/domain/projection"
	"github.com/GriffinCanCode/extsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/extsync/internal/shared/advisory"
)

// Message types.
const (
	TypeSystem      = "system"
	TypeTreeChanged = "tree_changed"
	TypeAdvisory    = "advisory"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeRefresh     = "refresh"
	TypeError       = "error"
)

const (
	sendBuffer = 32
	writeWait  = 10 * time.Second
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type      string             `json:"type"`
	ClientID  string             `json:"client_id,omitempty"`
	Message   string             `json:"message,omitempty"`
	Event     *projection.Event  `json:"event,omitempty"`
	Advisory  *advisory.Advisory `json:"advisory,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// Refresher starts a catalog refresh on client request.
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

type client struct {
	id   string
	send chan Message
}

// Hub tracks connected clients and fans messages out to them. Clients that
// fall behind lose messages rather than stalling the broadcaster.
type Hub struct {
	upgrader  websocket.Upgrader
	refresher Refresher
	logger    *zap.Logger
	metrics   *monitoring.Metrics

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates a hub. refresher may be nil, in which case refresh requests
// are answered with an error.
func NewHub(refresher Refresher, logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			// Origin checks happen in the CORS middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		refresher: refresher,
		logger:    logger,
		metrics:   metrics,
		clients:   make(map[string]*client),
	}
}

// SetRefresher sets the target of client refresh requests. Call before
// serving connections.
func (h *Hub) SetRefresher(r Refresher) {
	h.refresher = r
}

// Attach forwards tree change events to clients until the returned cancel is
// called.
func (h *Hub) Attach(tree *projection.Tree) (cancel func()) {
	return tree.Subscribe(func(ev projection.Event) {
		h.Broadcast(Message{Type: TypeTreeChanged, Event: &ev})
	})
}

// Notify implements advisory.Notifier.
func (h *Hub) Notify(a advisory.Advisory) {
	h.Broadcast(Message{Type: TypeAdvisory, Advisory: &a})
}

// Broadcast queues msg for every client.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().Unix()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger.Warn("Dropping message for slow websocket client",
				zap.String("client_id", c.id),
				zap.String("type", msg.Type),
			)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleConnection upgrades the request and serves the client until it
// disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{id: uuid.NewString(), send: make(chan Message, sendBuffer)}
	h.register(cl)
	defer h.unregister(cl)

	log := h.logger.With(zap.String("client_id", cl.id))
	log.Debug("WebSocket client connected")

	done := make(chan struct{})
	go h.writeLoop(conn, cl, done)

	cl.send <- Message{Type: TypeSystem, ClientID: cl.id, Message: "connected", Timestamp: time.Now().Unix()}

	ctx := c.Request.Context()
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case TypePing:
			h.reply(cl, Message{Type: TypePong})
		case TypeRefresh:
			if h.refresher == nil {
				h.reply(cl, Message{Type: TypeError, Message: "refresh unavailable"})
				continue
			}
			// The resulting tree_changed event is the reply.
			go func() {
				if _, err := h.refresher.Refresh(ctx); err != nil {
					log.Debug("Client refresh incomplete", zap.Error(err))
				}
			}()
		default:
			h.reply(cl, Message{Type: TypeError, Message: "unknown message type"})
		}
	}

	close(done)
	conn.Close()
	log.Debug("WebSocket client disconnected")
}

func (h *Hub) reply(cl *client, msg Message) {
	msg.Timestamp = time.Now().Unix()
	select {
	case cl.send <- msg:
	default:
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, cl *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("WebSocket write failed", zap.String("client_id", cl.id), zap.Error(err))
				conn.Close()
				return
			}
			h.metrics.RecordWSMessage("out", msg.Type)
		}
	}
}

func (h *Hub) register(cl *client) {
	h.mu.Lock()
	h.clients[cl.id] = cl
	h.mu.Unlock()
	h.metrics.IncWSConnections()
}

func (h *Hub) unregister(cl *client) {
	h.mu.Lock()
	delete(h.clients, cl.id)
	h.mu.Unlock()
	h.metrics.DecWSConnections()
}
