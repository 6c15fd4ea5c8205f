package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/javandres/bultti-inspections-api/internal/models"
)

// Metrics is the slice of instrumentation the hub needs.
type Metrics interface {
	RecordDroppedEvent()
}

// Hub fans inspection events out to every subscriber of an inspection id.
// With a Redis client attached, events travel through pub/sub so that
// subscribers on every instance see every commit; without one the hub
// degrades to in-process delivery. Delivery is fire-and-forget: a slow
// subscriber loses events rather than blocking a commit, and ordering is
// not guaranteed, which is why events carry a sequence for receivers to
// discard stale ones.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[int]chan models.InspectionEvent
	nextID      int
	buffer      int

	redis   *redis.Client
	channel string
	metrics Metrics
	logger  *zap.Logger
}

// HubOption configures the hub.
type HubOption func(*Hub)

// WithRedis attaches the cross-instance bridge.
func WithRedis(client *redis.Client, channel string) HubOption {
	return func(h *Hub) {
		h.redis = client
		if channel != "" {
			h.channel = channel
		}
	}
}

// WithMetrics wires drop instrumentation.
func WithMetrics(metrics Metrics) HubOption {
	return func(h *Hub) { h.metrics = metrics }
}

// NewHub constructs a hub. Buffer is the per-subscriber channel capacity.
func NewHub(buffer int, logger *zap.Logger, opts ...HubOption) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		subscribers: make(map[string]map[int]chan models.InspectionEvent),
		buffer:      buffer,
		channel:     "inspection-events",
		logger:      logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Run consumes the Redis bridge until the context ends. Without Redis it
// returns immediately; local delivery needs no pump.
func (h *Hub) Run(ctx context.Context) {
	if h.redis == nil {
		return
	}
	pubsub := h.redis.PSubscribe(ctx, h.channel+":*")
	defer pubsub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var ev models.InspectionEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.logger.Warn("discarding malformed event payload", zap.Error(err))
				continue
			}
			h.fanout(ev)
		}
	}
}

// Publish delivers an event to all subscribers of its inspection id. With
// the bridge attached the event goes through Redis so every instance's
// subscribers receive it exactly once; local fanout then happens in Run.
func (h *Hub) Publish(ctx context.Context, ev models.InspectionEvent) {
	if h.redis != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("failed to marshal event", zap.Error(err))
			return
		}
		channel := fmt.Sprintf("%s:%s", h.channel, ev.InspectionID)
		if err := h.redis.Publish(ctx, channel, payload).Err(); err != nil {
			h.logger.Warn("redis publish failed, delivering locally", zap.Error(err))
			h.fanout(ev)
		}
		return
	}
	h.fanout(ev)
}

// Subscribe registers interest in one inspection id. The returned cancel
// func must be called to release the subscription.
func (h *Hub) Subscribe(inspectionID string) (<-chan models.InspectionEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	ch := make(chan models.InspectionEvent, h.buffer)
	if h.subscribers[inspectionID] == nil {
		h.subscribers[inspectionID] = make(map[int]chan models.InspectionEvent)
	}
	h.subscribers[inspectionID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[inspectionID]; ok {
			if _, ok := subs[id]; ok {
				delete(subs, id)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subscribers, inspectionID)
			}
		}
	}
	return ch, cancel
}

func (h *Hub) fanout(ev models.InspectionEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers[ev.InspectionID] {
		select {
		case ch <- ev:
		default:
			if h.metrics != nil {
				h.metrics.RecordDroppedEvent()
			}
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("inspection_id", ev.InspectionID),
				zap.String("kind", string(ev.Kind)),
			)
		}
	}
}
