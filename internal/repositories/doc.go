// Package repositories implements the SQLite run store.
//
// A run is one validate or repair pass. [RunRepository] creates a run when the pipeline starts, appends every
// result the reporter consumes through a [RunRecorder] and stores the final counters when the run finishes or
// is interrupted.
//
// Sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
