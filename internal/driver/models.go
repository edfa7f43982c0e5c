package driver

import "time"

// State is the persisted record for one driver. Lat/Lng are nil until
// the first valid fix; they are never written back to nil afterwards.
type State struct {
	ID         string     `json:"id"`
	StationID  string     `json:"station_id"`
	Name       string     `json:"name"`
	Phone      string     `json:"phone"`
	ZoneID     *string    `json:"zone_id,omitempty"`
	Lat        *float64   `json:"lat,omitempty"`
	Lng        *float64   `json:"lng,omitempty"`
	Heading    float64    `json:"heading"`
	Online     bool       `json:"online"`
	LastUpdate *time.Time `json:"last_update,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// HasFix reports whether the driver has a usable position.
func (s *State) HasFix() bool {
	return s != nil && s.Lat != nil && s.Lng != nil
}

// Dispatchable drivers are online with a validated position.
func (s *State) Dispatchable() bool {
	return s != nil && s.Online && s.HasFix()
}
