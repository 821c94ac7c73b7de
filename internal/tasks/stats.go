package tasks

import (
	"sync/atomic"

	"github.com/desertthunder/fixity/internal/models"
)

// Stats holds the live counters of a run.
//
// Each counter has a single writer: the coordinator owns the queued counters, workers own ObjectsProcessed
// and the reporter owns the rest. Readers may load any counter at any time.
type Stats struct {
	ObjectsQueued    atomic.Int64
	ObjectsProcessed atomic.Int64
	Datastreams      atomic.Int64
	Versions         atomic.Int64
	Results          atomic.Int64
	OK               atomic.Int64
	Invalid          atomic.Int64
	Missing          atomic.Int64
	Errors           atomic.Int64
	Updated          atomic.Int64
	Skipped          atomic.Int64
}

// Snapshot copies the counters into a [models.Summary].
func (s *Stats) Snapshot(mode models.Mode) models.Summary {
	return models.Summary{
		Mode:             mode,
		ObjectsQueued:    s.ObjectsQueued.Load(),
		ObjectsProcessed: s.ObjectsProcessed.Load(),
		Datastreams:      s.Datastreams.Load(),
		Versions:         s.Versions.Load(),
		Results:          s.Results.Load(),
		OK:               s.OK.Load(),
		Invalid:          s.Invalid.Load(),
		Missing:          s.Missing.Load(),
		Errors:           s.Errors.Load(),
		Updated:          s.Updated.Load(),
		Skipped:          s.Skipped.Load(),
	}
}
