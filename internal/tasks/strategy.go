package tasks

import (
	"context"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/services"
)

// Notifier receives one-line human-readable messages from the reporter.
type Notifier interface {
	Notify(msg string)
}

// Display shows run progress. Update is only called from the reporter goroutine
// until the run is summarizing, then once more from the coordinator.
type Display interface {
	Notifier
	Update(done, total int64)
	Finish()
	Abort()
}

// ResultRecorder persists every result consumed by the reporter.
type ResultRecorder interface {
	RecordResult(res models.Result) error
}

// Strategy supplies the mode-specific steps of a run.
//
// Plan runs on the coordinator, Process on workers (concurrently, each with its own session)
// and Handle on the single reporter goroutine.
type Strategy interface {
	Mode() models.Mode

	// Plan returns the tasks to queue for one datastream of obj.
	Plan(ctx context.Context, repo services.Repository, obj *models.ObjectProfile, dsid string) ([]models.Task, error)

	// Process performs the remote operation for task. Failures are reported through the returned result.
	Process(ctx context.Context, repo services.Repository, task models.Task) models.Result

	// Handle tallies res into stats and reports it. A returned error means output could not be written.
	Handle(res models.Result, stats *Stats, notify Notifier) error

	// Release drops any per-object state once every task of pid has been processed.
	Release(pid string)
}

type nopDisplay struct{}

func (nopDisplay) Notify(string)       {}
func (nopDisplay) Update(int64, int64) {}
func (nopDisplay) Finish()             {}
func (nopDisplay) Abort()              {}
