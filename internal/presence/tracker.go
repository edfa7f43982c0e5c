package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Signal is one heartbeat-channel message. Exactly one field is set.
type Signal struct {
	// Sync keeps its empty value on the wire: an empty station must
	// still replace a stale non-empty set.
	Sync  []string `json:"sync"`
	Join  string   `json:"join,omitempty"`
	Leave string   `json:"leave,omitempty"`
}

// Tracker keeps an advisory "connected now" set per driver. It is a
// liveness signal allowed to lag by seconds; DriverState.Online stays
// authoritative for dispatchability.
type Tracker struct {
	mu        sync.RWMutex
	connected map[string]bool
	version   uint64
}

func NewTracker() *Tracker {
	return &Tracker{connected: map[string]bool{}}
}

func (t *Tracker) Apply(sig Signal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case sig.Sync != nil:
		if t.sameKeySet(sig.Sync) {
			return
		}
		next := make(map[string]bool, len(sig.Sync))
		for _, id := range sig.Sync {
			next[id] = true
		}
		t.connected = next
		t.version++
	case sig.Join != "":
		if t.connected[sig.Join] {
			return
		}
		t.connected[sig.Join] = true
		t.version++
	case sig.Leave != "":
		if !t.connected[sig.Leave] {
			return
		}
		delete(t.connected, sig.Leave)
		t.version++
	}
}

// sameKeySet guards sync against structural no-ops so downstream
// consumers are not churned by identical snapshots.
func (t *Tracker) sameKeySet(keys []string) bool {
	if len(keys) != len(t.connected) {
		return false
	}
	for _, id := range keys {
		if !t.connected[id] {
			return false
		}
	}
	return true
}

func (t *Tracker) Connected(driverID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected[driverID]
}

func (t *Tracker) Snapshot() map[string]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]bool, len(t.connected))
	for id := range t.connected {
		out[id] = true
	}
	return out
}

// Version increments on every effective change; unchanged syncs leave
// it alone.
func (t *Tracker) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

func Channel(stationID string) string {
	return "presence:" + stationID
}

// Publish sends a heartbeat signal over the station's presence channel.
func Publish(ctx context.Context, rdb *redis.Client, stationID string, sig Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return rdb.Publish(ctx, Channel(stationID), payload).Err()
}

// Listen feeds channel signals into the tracker until the context ends.
// Pub/sub drops are retried; the last-known set keeps serving meanwhile.
func (t *Tracker) Listen(ctx context.Context, rdb *redis.Client, stationID string, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	for {
		if err := t.consume(ctx, rdb, stationID); err != nil && ctx.Err() == nil {
			log.Warn("presence channel dropped, retrying", "station_id", stationID, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (t *Tracker) consume(ctx context.Context, rdb *redis.Client, stationID string) error {
	pubsub := rdb.Subscribe(ctx, Channel(stationID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var sig Signal
			if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
				continue
			}
			t.Apply(sig)
		}
	}
}
