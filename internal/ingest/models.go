package ingest

import "time"

// Sample is one raw GPS reading from a driver client.
type Sample struct {
	DriverID   string    `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Heading    *float64  `json:"heading,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type Outcome string

const (
	// OutcomePersisted: the position passed both gates and was written.
	OutcomePersisted Outcome = "persisted"
	// OutcomeHeadingOnly: position gated, but the heading changed
	// enough to write on its own (stationary vehicle turning).
	OutcomeHeadingOnly Outcome = "heading_only"
	// OutcomeThrottled: valid sample, dropped by the movement/interval
	// gates. Not an error.
	OutcomeThrottled Outcome = "throttled"
	// OutcomeRejected: the sample failed validation; stored state is
	// untouched.
	OutcomeRejected Outcome = "rejected"
)

type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}
