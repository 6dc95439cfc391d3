package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"oispurts/internal/infrastructure"
	"oispurts/pkg/contracts/events"
)

// broadcastQueue bounds the messages waiting for the hub loop
const broadcastQueue = 64

// Stats is a point-in-time view of the hub counters
type Stats struct {
	ActiveClients    int   `json:"active_clients"`
	TotalConnections int64 `json:"total_connections"`
	MessagesSent     int64 `json:"messages_sent"`
	DroppedMessages  int64 `json:"dropped_messages"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *OTelMetrics
	now     func() time.Time

	totalConnections int64
	messagesSent     int64
	droppedMessages  int64

	// Control
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *OTelMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		now:        time.Now,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine. Calling it twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop ends the hub loop and closes every client. It waits for the loop
// to exit.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "normal")

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))
	h.metrics.RecordConnection(ctx, count)

	greeting, err := h.encode(ctx, events.MessageTypeConnect, map[string]interface{}{
		"status":    "connected",
		"message":   "Connected to OI spurts feed",
		"client_id": client.id,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- greeting:
	default:
		h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
			slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	connected := h.now().Sub(client.connectedAt)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", connected))
	h.metrics.RecordDisconnection(ctx, connected, count, reason)
}

// fanOut hands message to every client. A client whose buffer is full is
// disconnected rather than allowed to stall the others.
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	var slow []*Client
	sent := 0
	for _, client := range clients {
		select {
		case client.send <- message:
			sent++
		default:
			slow = append(slow, client)
		}
	}

	h.mu.Lock()
	h.messagesSent += int64(sent)
	h.droppedMessages += int64(len(slow))
	h.mu.Unlock()

	for _, client := range slow {
		h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		h.metrics.RecordDropped(context.Background(), "client")
		h.removeClient(client, "slow_consumer")
	}

	h.logger.Debug("Broadcast message to clients",
		slog.Int("client_count", len(clients)),
		slog.Int("message_size", len(message)))
}

func (h *Hub) encode(ctx context.Context, msgType events.MessageType, data interface{}) ([]byte, error) {
	msg := events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      msgType,
			Timestamp: h.now().UTC(),
			TraceID:   infrastructure.GetTraceID(ctx),
		},
		Data: data,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("message_type", string(msgType)),
			slog.String("error", err.Error()))
		return nil, err
	}
	return payload, nil
}

// Publish queues an event for every connected client. It never blocks the
// caller: when the hub queue is full the message is dropped and logged.
func (h *Hub) Publish(ctx context.Context, msgType events.MessageType, data interface{}) {
	payload, err := h.encode(ctx, msgType, data)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.mu.Lock()
		h.droppedMessages++
		h.mu.Unlock()
		h.metrics.RecordDropped(ctx, "hub")
		h.logger.WarnContext(ctx, "Broadcast queue full, dropping message",
			slog.String("message_type", string(msgType)))
	}
}

// BroadcastCollection publishes a finished collection cycle
func (h *Hub) BroadcastCollection(ctx context.Context, event events.CollectionEvent) {
	h.Publish(ctx, events.MessageTypeCollectionComplete, event)
}

// BroadcastRollover publishes a date change of the live store
func (h *Hub) BroadcastRollover(ctx context.Context, previousDate, currentDate string) {
	h.Publish(ctx, events.MessageTypeDayRollover, events.RolloverEvent{
		PreviousDate: previousDate,
		CurrentDate:  currentDate,
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns the hub counters
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return Stats{
		ActiveClients:    len(h.clients),
		TotalConnections: h.totalConnections,
		MessagesSent:     h.messagesSent,
		DroppedMessages:  h.droppedMessages,
	}
}
