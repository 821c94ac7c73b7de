package models

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
)

// Run is one validate or repair pass as kept in the run store.
type Run struct {
	ID       string    `json:"id"`
	Sequence int       `json:"sequence"`
	Status   RunStatus `json:"status"`
	Summary  Summary   `json:"summary"` // Mode, counters and timestamps
}

// StatusFor returns the final status of a run that produced s.
func StatusFor(s Summary) RunStatus {
	if s.Interrupted {
		return RunInterrupted
	}
	return RunCompleted
}
