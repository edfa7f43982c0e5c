package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Heartbeat refreshes the driver's liveness key. The key expires on its
// own, so a driver that stops reporting falls out of the set without any
// cleanup pass.
func Heartbeat(ctx context.Context, rdb *redis.Client, stationID, driverID string, ttl time.Duration) error {
	return rdb.Set(ctx, beatKey(stationID, driverID), "1", ttl).Err()
}

// ConnectedDrivers lists the drivers whose heartbeat keys are still live.
func ConnectedDrivers(ctx context.Context, rdb *redis.Client, stationID string) ([]string, error) {
	prefix := beatKey(stationID, "")
	var ids []string
	iter := rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// SyncLoop periodically publishes the heartbeat-derived driver set as a
// sync signal. Trackers ignore syncs that change nothing, so a quiet
// station produces no downstream churn.
func SyncLoop(ctx context.Context, rdb *redis.Client, stationID string, interval time.Duration, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := ConnectedDrivers(ctx, rdb, stationID)
			if err != nil {
				log.Warn("heartbeat scan failed", "station_id", stationID, "error", err)
				continue
			}
			if ids == nil {
				ids = []string{}
			}
			if err := Publish(ctx, rdb, stationID, Signal{Sync: ids}); err != nil {
				log.Warn("presence sync publish failed", "station_id", stationID, "error", err)
			}
		}
	}
}

func beatKey(stationID, driverID string) string {
	return "presence:" + stationID + ":beat:" + driverID
}
