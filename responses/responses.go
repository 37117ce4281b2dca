package responses

import "time"

// Put - acknowledgement of a stored resource
type Put struct {
	// did it work or not
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// Heartbeat - liveness reply, every heartbeat postpones the idle shutdown
type Heartbeat struct {
	Alive     bool      `json:"alive"`
	Timestamp time.Time `json:"timestamp"`
}
