package entity

// BatchStats summarizes the lifecycle states of a batch. It is derived from
// item states and kept consistent with them on every transition.
type BatchStats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Processing int `json:"processing"`
}

// Pending returns the number of items not yet dispatched.
func (s BatchStats) Pending() int {
	return s.Total - s.Completed - s.Failed - s.Processing
}

// Resolved reports whether every item has reached a terminal state.
func (s BatchStats) Resolved() bool {
	return s.Completed+s.Failed == s.Total
}
