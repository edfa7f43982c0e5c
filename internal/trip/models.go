package trip

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Record is one ride request. Pickup and destination are immutable after
// creation; DriverID is set only by a successful acceptance (or as a
// not-yet-confirmed candidate offer while status is still pending).
type Record struct {
	ID         string     `json:"id"`
	StationID  string     `json:"station_id"`
	Status     Status     `json:"status"`
	DriverID   *string    `json:"driver_id,omitempty"`
	PickupLat  float64    `json:"pickup_lat"`
	PickupLng  float64    `json:"pickup_lng"`
	DestLat    float64    `json:"dest_lat"`
	DestLng    float64    `json:"dest_lng"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}
