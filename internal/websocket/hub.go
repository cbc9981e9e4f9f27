package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"smartreply-backend/internal/middleware"
	"smartreply-backend/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type replyGenerator interface {
	Generate(ctx context.Context, messages []models.ConversationMessage) models.SmartReplyResult
}

// Hub serves live smart-reply suggestions. Each connection has at most one
// generation in flight; a newer suggest request cancels the older one and the
// older result is never sent.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	cancelFuncs map[string]context.CancelFunc
	redisClient *redis.Client
	auth        *middleware.JWTAuth
	generator   replyGenerator
	log         *zap.Logger
}

type client struct {
	id     string
	userID string
	conn   *websocket.Conn

	writeMu sync.Mutex

	// mu serializes suggest bookkeeping with result delivery, so a result is
	// written only while its request is still the newest on the connection.
	mu       sync.Mutex
	seq      uint64
	inFlight context.CancelFunc
}

// fanoutMessage is what travels over Redis. Origin names the connection that
// asked; it already has the frame and is skipped on every instance.
type fanoutMessage struct {
	Origin string          `json:"origin"`
	Frame  json.RawMessage `json:"frame"`
}

// NewHub wires the hub. redisClient may be nil, in which case results only
// reach connections on this instance.
func NewHub(generator replyGenerator, redisClient *redis.Client, auth *middleware.JWTAuth, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		connections: make(map[string][]*client),
		cancelFuncs: make(map[string]context.CancelFunc),
		redisClient: redisClient,
		auth:        auth,
		generator:   generator,
		log:         logger,
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticate(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{id: uuid.NewString(), userID: userID, conn: conn}
	h.registerConnection(c)

	// Keep connection alive and handle disconnect
	go h.readLoop(c)
}

func (h *Hub) authenticate(r *http.Request) (string, bool) {
	if h.auth == nil || !h.auth.Enabled() {
		if user := r.URL.Query().Get("user"); user != "" {
			return user, true
		}
		return middleware.AnonymousUser, true
	}

	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		return "", false
	}
	userID, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		return "", false
	}
	return userID, true
}

func (h *Hub) readLoop(c *client) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		h.unregisterConnection(c)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req models.WSSuggestRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Type != models.WSTypeSuggest {
			h.writeTo(c, models.WSMessage{
				Type:    models.WSTypeError,
				Payload: models.ErrorEvent{ErrorCode: "VALIDATION_ERROR", ErrorMessage: "expected a suggest message"},
			})
			continue
		}
		if req.RequestID == "" {
			req.RequestID = uuid.NewString()
		}

		h.suggest(ctx, c, req)
	}
}

// suggest supersedes any in-flight generation on c.
func (h *Hub) suggest(parent context.Context, c *client, req models.WSSuggestRequest) {
	ctx, cancel := context.WithCancel(parent)

	c.mu.Lock()
	if c.inFlight != nil {
		c.inFlight()
	}
	c.seq++
	seq := c.seq
	c.inFlight = cancel
	c.mu.Unlock()

	go func() {
		defer cancel()

		result := h.generator.Generate(ctx, req.Messages)

		data, err := json.Marshal(models.WSMessage{
			Type:      models.WSTypeSmartReplies,
			RequestID: req.RequestID,
			Payload:   result,
		})
		if err != nil {
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if ctx.Err() != nil || seq != c.seq {
			h.log.Debug("Dropping superseded smart replies", zap.String("request_id", req.RequestID))
			return
		}
		c.write(data)
		h.fanOut(c, data)
	}()
}

// fanOut copies a frame already written to origin to the user's other
// connections, through Redis when configured so other instances see it too.
func (h *Hub) fanOut(origin *client, data []byte) {
	if h.redisClient != nil {
		payload, err := json.Marshal(fanoutMessage{Origin: origin.id, Frame: data})
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err = h.redisClient.Publish(ctx, channelFor(origin.userID), payload).Err()
			cancel()
		}
		if err == nil {
			return
		}
		h.log.Warn("Redis publish failed, delivering locally", zap.String("user_id", origin.userID), zap.Error(err))
	}
	h.broadcast(origin.userID, origin.id, data)
}

func (h *Hub) registerConnection(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[c.userID] = append(h.connections[c.userID], c)

	// Start pub/sub subscription if this is the first connection for this user
	if h.redisClient != nil && len(h.connections[c.userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[c.userID] = cancel
		go h.subscribeToPubSub(ctx, c.userID)
	}

	h.log.Info("WebSocket connected", zap.String("user_id", c.userID), zap.Int("total", len(h.connections[c.userID])))
}

func (h *Hub) unregisterConnection(c *client) {
	c.mu.Lock()
	if c.inFlight != nil {
		c.inFlight()
		c.inFlight = nil
	}
	c.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[c.userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[c.userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[c.userID]) == 0 {
		delete(h.connections, c.userID)
		if cancel, ok := h.cancelFuncs[c.userID]; ok {
			cancel()
			delete(h.cancelFuncs, c.userID)
		}
	}

	h.log.Info("WebSocket disconnected", zap.String("user_id", c.userID))
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID string) {
	pubsub := h.redisClient.Subscribe(ctx, channelFor(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var fm fanoutMessage
			if err := json.Unmarshal([]byte(msg.Payload), &fm); err != nil {
				h.log.Warn("Dropping malformed fan-out message", zap.String("user_id", userID), zap.Error(err))
				continue
			}
			h.broadcast(userID, fm.Origin, fm.Frame)
		}
	}
}

// broadcast writes data to every local connection of userID except skipID.
func (h *Hub) broadcast(userID, skipID string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if c.id == skipID {
			continue
		}
		c.write(data)
	}
}

func (h *Hub) writeTo(c *client, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.write(data)
}

// ConnectionCount reports live connections for userID.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

func (c *client) write(data []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.TextMessage, data)
}

func channelFor(userID string) string {
	return "smart_replies:" + userID
}
