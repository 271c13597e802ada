package syncengine

import "time"

// Stats aggregates the work done by one sync cycle.
type Stats struct {
	Pushed    int           `json:"pushed"`
	Pulled    int           `json:"pulled"`
	Conflicts int           `json:"conflicts"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
}

// Result is the outcome of one sync cycle, reported to subscribers and then
// discarded.
type Result struct {
	Success bool `json:"success"`
	// NoOp is set when a cycle was requested while another was already
	// running; no network traffic happened.
	NoOp  bool  `json:"no_op,omitempty"`
	Stats Stats `json:"stats"`
	Err   error `json:"-"`
}
