package feed

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	TypeInsert = "insert"
	TypeUpdate = "update"
	TypeDelete = "delete"
)

// Event is one row-change notification. Events for a single key arrive
// in commit order; no ordering holds across keys.
type Event struct {
	Type  string          `json:"type"`
	Table string          `json:"table"`
	Old   json.RawMessage `json:"old,omitempty"`
	New   json.RawMessage `json:"new,omitempty"`
}

func Channel(stationID, table string) string {
	return "feed:" + stationID + ":" + table
}

func channelPattern(stationID string) string {
	return "feed:" + stationID + ":*"
}

// tableFromChannel extracts the table from "feed:{station}:{table}".
func tableFromChannel(ch string) string {
	parts := strings.SplitN(ch, ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

// Publisher pushes change events onto the station's feed channels.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, stationID, table, eventType string, oldRow, newRow any) error {
	ev := Event{Type: eventType, Table: table}

	if oldRow != nil {
		raw, err := json.Marshal(oldRow)
		if err != nil {
			return err
		}
		ev.Old = raw
	}
	if newRow != nil {
		raw, err := json.Marshal(newRow)
		if err != nil {
			return err
		}
		ev.New = raw
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(stationID, table), payload).Err()
}
