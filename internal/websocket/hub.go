// Package websocket streams domain events to browser clients over
// gorilla/websocket.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"borsapulse/internal/infrastructure"
	"borsapulse/pkg/contracts"
	"borsapulse/pkg/contracts/events"
)

type frame struct {
	typ     events.Type
	traceID string
	payload []byte
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan frame
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	logger  *slog.Logger
	metrics *infrastructure.DomainMetrics
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *infrastructure.DomainMetrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan frame, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
	}
}

// Start runs the hub loop in a new goroutine
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

// Stop ends the hub loop and closes every client's send channel
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
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			ctx := client.context()
			h.metrics.WSClientDelta(ctx, 1)
			h.logger.InfoContext(ctx, "client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			if msg, err := encode(events.TypeConnected, client.traceID, events.Connected{
				ClientID: client.id,
				Version:  contracts.Version,
			}); err == nil {
				select {
				case client.send <- msg:
				default:
					h.logger.WarnContext(ctx, "client buffer full before connect message",
						slog.String("client_id", client.id))
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			_, ok := h.clients[client]
			if ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			if ok {
				ctx := client.context()
				h.metrics.WSClientDelta(ctx, -1)
				h.logger.InfoContext(ctx, "client unregistered",
					slog.Int("total_clients", count),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case f := <-h.broadcast:
			h.deliver(f)
		}
	}
}

func (h *Hub) deliver(f frame) {
	ctx := context.Background()
	if f.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, f.traceID)
	}

	h.mu.Lock()
	delivered, dropped := 0, 0
	for client := range h.clients {
		select {
		case client.send <- f.payload:
			delivered++
		default:
			// Slow consumer; WritePump sees the closed channel and hangs up.
			close(client.send)
			delete(h.clients, client)
			dropped++
		}
	}
	h.mu.Unlock()

	if dropped > 0 {
		h.metrics.WSClientDelta(ctx, -int64(dropped))
		h.logger.WarnContext(ctx, "disconnected clients with full buffers",
			slog.String("type", string(f.typ)),
			slog.Int("dropped", dropped))
	}
	h.metrics.RecordEvent(ctx, string(f.typ), delivered)
	h.logger.DebugContext(ctx, "event broadcast",
		slog.String("type", string(f.typ)),
		slog.Int("delivered", delivered),
		slog.Int("payload_size", len(f.payload)))
}

// Publish broadcasts an event to every connected client. It is a no-op when
// the hub is not running and gives up when ctx ends before the event is
// queued.
func (h *Hub) Publish(ctx context.Context, typ events.Type, data any) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	traceID := infrastructure.GetTraceID(ctx)
	payload, err := encode(typ, traceID, data)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal event",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- frame{typ: typ, traceID: traceID, payload: payload}:
	case <-h.quit:
	case <-ctx.Done():
		h.logger.WarnContext(ctx, "event dropped", slog.String("type", string(typ)))
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

func (h *Hub) remove(client *Client) {
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

func encode(typ events.Type, traceID string, data any) ([]byte, error) {
	return json.Marshal(events.Message{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Data:      data,
	})
}
