package tasks

import "sync/atomic"

// Phase is the lifecycle state of a [Pipeline].
type Phase int32

const (
	Init Phase = iota
	Enumerating
	Draining
	Summarizing
	Done
)

func (p Phase) String() string {
	switch p {
	case Init:
		return "init"
	case Enumerating:
		return "enumerating"
	case Draining:
		return "draining"
	case Summarizing:
		return "summarizing"
	case Done:
		return "done"
	default:
		return ""
	}
}

// ProgressUpdate is one refresh of the progress display.
type ProgressUpdate struct {
	Done  int64 // Objects fully processed
	Total int64 // Best known number of objects in the run
}

// progressTracker turns live counters into display updates whose done count never moves backwards.
//
// The total is fixed while ids come from a known list and follows the queued count otherwise.
// It is never less than the done count.
type progressTracker struct {
	expected atomic.Int64 // zero follows the queued count
	shown    int64
}

func (t *progressTracker) expect(total int64) {
	t.expected.Store(total)
}

// next computes the update for the current counters. Not safe for concurrent use.
func (t *progressTracker) next(processed, queued int64) ProgressUpdate {
	t.shown = max(t.shown, processed)

	total := t.expected.Load()
	if total <= 0 {
		total = queued
	}
	return ProgressUpdate{Done: t.shown, Total: max(total, t.shown)}
}
