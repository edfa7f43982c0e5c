package stream

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Matanel980/TaxiBot-sub003/internal/observability"
	"github.com/Matanel980/TaxiBot-sub003/internal/presence"

	"github.com/redis/go-redis/v9"
)

// Hub fans broadcast payloads out to the websocket observers of each
// station. With redis attached, payloads travel through pub/sub so every
// instance delivers to its own connections; without it the hub degrades
// to single-instance local fanout.
type Hub struct {
	rdb     *redis.Client
	log     *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	StationID  string
	ObserverID string
	Send       chan []byte
}

func NewHub(rdb *redis.Client, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	h := &Hub{
		rdb:     rdb,
		log:     log,
		clients: map[string]map[*Client]struct{}{},
	}

	if rdb != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(stationID, observerID string) *Client {
	client := &Client{
		StationID:  stationID,
		ObserverID: observerID,
		Send:       make(chan []byte, 64),
	}

	h.mu.Lock()
	if h.clients[stationID] == nil {
		h.clients[stationID] = map[*Client]struct{}{}
	}
	h.clients[stationID][client] = struct{}{}
	h.mu.Unlock()

	observability.ConnectedObservers.Inc()
	if h.rdb != nil {
		if err := presence.Publish(context.Background(), h.rdb, stationID, presence.Signal{Join: observerID}); err != nil {
			h.log.Warn("presence join publish failed", "station_id", stationID, "error", err)
		}
	}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if stationClients, ok := h.clients[client.StationID]; ok {
		delete(stationClients, client)
		if len(stationClients) == 0 {
			delete(h.clients, client.StationID)
		}
	}
	// Closed under the same lock fanout sends under, so a concurrent
	// broadcast can never hit a closed channel.
	close(client.Send)
	h.mu.Unlock()

	observability.ConnectedObservers.Dec()
	if h.rdb != nil {
		if err := presence.Publish(context.Background(), h.rdb, client.StationID, presence.Signal{Leave: client.ObserverID}); err != nil {
			h.log.Warn("presence leave publish failed", "station_id", client.StationID, "error", err)
		}
	}
}

// Broadcast delivers a payload to every observer of the station. With
// redis the payload goes through pub/sub once and comes back via
// subscribeRedis, so it is never delivered twice locally.
func (h *Hub) Broadcast(stationID string, payload []byte) {
	if h.rdb != nil {
		err := h.rdb.Publish(context.Background(), broadcastChannel(stationID), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis broadcast failed, falling back to local fanout", "station_id", stationID, "error", err)
	}
	h.fanout(stationID, payload)
}

// fanout sends while holding the read lock. Sends are non-blocking, so
// holding it is cheap, and Unregister closes Send under the write lock.
func (h *Hub) fanout(stationID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[stationID] {
		select {
		case client.Send <- payload:
		default:
			// Slow consumer; drop rather than stall the station.
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.rdb.PSubscribe(ctx, "dispatch:*:broadcast")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.fanout(stationFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func broadcastChannel(stationID string) string {
	return "dispatch:" + stationID + ":broadcast"
}

func stationFromChannel(ch string) string {
	// dispatch:{station}:broadcast
	const prefix = "dispatch:"
	const suffix = ":broadcast"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
