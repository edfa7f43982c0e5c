package zone

import "time"

type Zone struct {
	ID        string    `json:"id"`
	StationID string    `json:"station_id"`
	Name      string    `json:"name"`
	CenterLat float64   `json:"center_lat"`
	CenterLng float64   `json:"center_lng"`
	CreatedAt time.Time `json:"created_at"`
}
