// Package realtime streams live tally updates to WebSocket clients watching
// a question's results.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait (seconds) drive the heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// RedisPublisher publishes question events to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishQuestionEvent(questionID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to question channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeQuestion(questionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// Hub maintains question_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// questionID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per question
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a question room. Starts the Redis subscription
// for this question when the first client joins.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.QuestionID] == nil {
		h.rooms[c.QuestionID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeQuestion(c.QuestionID, func(event string, payload []byte) {
				h.BroadcastToQuestion(c.QuestionID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.QuestionID] = cancel
			}
		}
	}
	h.rooms[c.QuestionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined question room", zap.String("client_id", c.ID), zap.String("question_id", c.QuestionID.String()))
}

// Unregister removes a client from a question room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.QuestionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.QuestionID)
			if cancel, ok := h.subs[c.QuestionID]; ok {
				cancel()
				delete(h.subs, c.QuestionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left question room", zap.String("client_id", c.ID), zap.String("question_id", c.QuestionID.String()))
}

// BroadcastToQuestion sends a message to all clients watching a question (local only).
func (h *Hub) BroadcastToQuestion(questionID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	// Snapshot under the read lock; iterating the live map would race with
	// Register/Unregister mutating it.
	h.mu.RLock()
	room := h.rooms[questionID]
	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToQuestionAndPublish sends to local clients and publishes to Redis
// for other instances.
func (h *Hub) BroadcastToQuestionAndPublish(questionID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToQuestion(questionID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishQuestionEvent(questionID, event, data)
	}
}

// WatcherCount returns the number of connected clients watching a question.
func (h *Hub) WatcherCount(questionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[questionID])
}
