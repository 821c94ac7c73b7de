package models

import "time"

// Summary is a point-in-time copy of a run's statistics.
type Summary struct {
	Mode             Mode      `json:"mode"`
	Interrupted      bool      `json:"interrupted"`
	ObjectsQueued    int64     `json:"objects_queued"`    // Objects registered for processing
	ObjectsProcessed int64     `json:"objects_processed"` // Objects whose tasks have all completed
	Datastreams      int64     `json:"datastreams"`       // Datastreams queued (one per datastream)
	Versions         int64     `json:"versions"`          // Tasks queued (one per datastream version)
	Results          int64     `json:"results"`           // Results consumed by the reporter
	OK               int64     `json:"ok"`
	Invalid          int64     `json:"invalid"`
	Missing          int64     `json:"missing"`
	Errors           int64     `json:"errors"`
	Updated          int64     `json:"updated"`
	Skipped          int64     `json:"skipped"`
	Started          time.Time `json:"started"`
	Finished         time.Time `json:"finished,omitzero"`
}

// Elapsed returns the wall-clock duration of the run.
func (s Summary) Elapsed() time.Duration {
	if s.Started.IsZero() || s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}
