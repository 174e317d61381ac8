// Package websocket pushes live hospital events (appointment changes, queue
// calls, lab results) to browser clients subscribed to topics.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Topics clients may subscribe to.
const (
	TopicAppointments = "appointments"
	TopicLab          = "lab"
	queueTopicPrefix  = "queue/"
)

// QueueTopic is the per-doctor waiting room topic.
func QueueTopic(doctorID uuid.UUID) string {
	return queueTopicPrefix + doctorID.String()
}

// ValidTopic reports whether name is a topic the hub serves.
func ValidTopic(name string) bool {
	switch name {
	case TopicAppointments, TopicLab:
		return true
	}
	if id, ok := strings.CutPrefix(name, queueTopicPrefix); ok {
		_, err := uuid.Parse(id)
		return err == nil
	}
	return false
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Event is the envelope sent to subscribers.
type Event struct {
	Type       string          `json:"type"`
	Topic      string          `json:"topic"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entityId,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an event, encoding payload as JSON.
func NewEvent(topic, typ, entity string, id uuid.UUID, payload interface{}) (Event, error) {
	ev := Event{
		Type:       typ,
		Topic:      topic,
		Entity:     entity,
		OccurredAt: time.Now().UTC(),
	}
	if id != uuid.Nil {
		ev.EntityID = id.String()
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Publisher is what domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Client is one connected socket.
type Client struct {
	ID     string
	Topics map[string]struct{}
	Send   chan []byte
}

func newClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		Topics: make(map[string]struct{}),
		Send:   make(chan []byte, sendBuffer),
	}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	dropped atomic.Uint64
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "ws_hub").Logger(),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	for topic := range c.Topics {
		h.addLocked(topic, c)
	}
}

// Unregister drops the client from every topic and closes its Send channel.
// Calling it twice is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	for topic := range c.Topics {
		h.removeLocked(topic, c)
	}
	delete(h.clients, c)
	close(c.Send)
}

// Subscribe adds topics to a client. Unknown topic names are returned and
// not subscribed.
func (h *Hub) Subscribe(c *Client, topics []string) (rejected []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		if !ValidTopic(topic) {
			rejected = append(rejected, topic)
			continue
		}
		c.Topics[topic] = struct{}{}
		h.addLocked(topic, c)
	}
	return rejected
}

func (h *Hub) Unsubscribe(c *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		delete(c.Topics, topic)
		h.removeLocked(topic, c)
	}
}

func (h *Hub) addLocked(topic string, c *Client) {
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*Client]struct{})
	}
	h.topics[topic][c] = struct{}{}
}

func (h *Hub) removeLocked(topic string, c *Client) {
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(h.topics, topic)
	}
}

// Publish fans the event out to the subscribers of event.Topic. Slow clients
// whose buffer is full miss the event rather than block the publisher.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[event.Topic] {
		select {
		case c.Send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Warn().Str("client_id", c.ID).Str("topic", event.Topic).Msg("client buffer full, event dropped")
		}
	}
	return nil
}

// Dropped counts events skipped because a client was too slow.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.topics = make(map[string]map[*Client]struct{})
}

// ack is written back after a client message is processed.
type ack struct {
	Type     string   `json:"type"`
	Action   string   `json:"action"`
	Topics   []string `json:"topics"`
	Rejected []string `json:"rejected,omitempty"`
}

func (h *Hub) handleMessage(c *Client, raw []byte) []byte {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		out, _ := json.Marshal(ack{Type: "error", Action: "parse"})
		return out
	}
	resp := ack{Type: "ack", Action: msg.Action, Topics: msg.Topics}
	switch msg.Action {
	case "subscribe":
		resp.Rejected = h.Subscribe(c, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(c, msg.Topics)
	default:
		resp.Type = "error"
	}
	out, _ := json.Marshal(resp)
	return out
}

// Handler upgrades HTTP requests to websocket connections bound to a hub.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler allows the given origins; an empty list or "*" allows any.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSpace(o)] = struct{}{}
	}
	_, allowAll := allowed["*"]
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowAll || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.Connect)
}

// Connect upgrades the request and starts the read and write pumps. Initial
// topics may be passed as ?topics=appointments,lab.
func (h *Handler) Connect(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := newClient()
	h.hub.Register(client)
	if q := c.QueryParam("topics"); q != "" {
		h.hub.Subscribe(client, strings.Split(q, ","))
	}
	h.hub.logger.Debug().Str("client_id", client.ID).Msg("websocket client connected")

	replies := make(chan []byte, 8)
	go h.writePump(client, ws, replies)
	go h.readPump(client, ws, replies)
	return nil
}

func (h *Handler) readPump(c *Client, ws *gorillawebsocket.Conn, replies chan<- []byte) {
	defer func() {
		h.hub.Unregister(c)
		close(replies)
		ws.Close()
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}
		select {
		case replies <- h.hub.handleMessage(c, message):
		default:
		}
	}
}

func (h *Handler) writePump(c *Client, ws *gorillawebsocket.Conn, replies <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, nil)
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
				return
			}
		case msg, ok := <-replies:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
