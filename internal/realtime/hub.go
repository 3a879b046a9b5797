// Package realtime pushes committed stock and order changes to websocket
// subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/beataims/backend/internal/domain/inventory"
	"github.com/beataims/backend/internal/infrastructure/config"
)

// Event types carried in the websocket envelope.
const (
	EventStockUpdate = "stock_update"
	EventOrderStatus = "order_status_update"
)

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub fans committed events out to every connected websocket client. All
// client bookkeeping happens on the run loop goroutine, so registration,
// removal and broadcast never race.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	logger     *zap.Logger
	config     config.RealtimeConfig

	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	running bool
}

// NewHub creates a hub. Run must be started before clients connect.
func NewHub(cfg config.RealtimeConfig, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
		config:     cfg,
	}
}

// Start launches the run loop. Calling Start twice is a no-op.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true

	ctx, h.cancel = context.WithCancel(ctx)
	h.done = make(chan struct{})
	go h.run(ctx)
}

// Stop closes every client connection and halts the run loop.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	cancel()
	<-done
}

// doneCh returns the channel closed when the run loop exits. Before Start it
// returns an already-closed channel, so pumps treat a never-started hub the
// same as a stopped one.
func (h *Hub) doneCh() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return h.done
}

func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.close()
			}
			h.clients = make(map[*Client]bool)
			return
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("Websocket client connected",
				zap.String("remote_addr", client.remoteAddr),
				zap.Int("clients", len(h.clients)),
			)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.logger.Info("Websocket client disconnected",
					zap.String("remote_addr", client.remoteAddr),
					zap.Int("clients", len(h.clients)),
				)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// A client that cannot keep up gets dropped rather than
					// stalling delivery to everyone else.
					delete(h.clients, client)
					client.close()
					h.logger.Warn("Dropped slow websocket client",
						zap.String("remote_addr", client.remoteAddr),
					)
				}
			}
		}
	}
}

// Broadcast queues an event for every connected client. Broadcast never
// blocks the caller; when the hub's queue is full the event is dropped.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(envelope{Type: eventType, Data: payload})
	if err != nil {
		h.logger.Error("Failed to encode websocket event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("Websocket broadcast queue full, event dropped",
			zap.String("type", eventType),
		)
	}
}

// Publish implements the stock event sink: each committed stock change is
// broadcast as an absolute snapshot.
func (h *Hub) Publish(event inventory.StockChanged) {
	h.Broadcast(EventStockUpdate, event)
}

// PublishOrderStatus announces an order lifecycle transition.
func (h *Hub) PublishOrderStatus(orderNumber, status string) {
	h.Broadcast(EventOrderStatus, map[string]string{
		"order_number": orderNumber,
		"status":       status,
	})
}
