package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/services"
	"github.com/desertthunder/fixity/internal/shared"
	"golang.org/x/sync/errgroup"
)

const (
	defaultConcurrency = 5
	defaultQueueSize   = 1024
)

// PipelineOpts configures a [Pipeline].
type PipelineOpts struct {
	Concurrency int            // Number of workers (default: 5)
	QueueSize   int            // Capacity of the todo and done queues (default: 1024)
	Max         int            // Stop queueing new objects after this many; zero means no cap
	Quiet       bool           // Suppress per-item messages
	Logger      *log.Logger    // Diagnostics; defaults to a discarding logger
	Display     Display        // Progress display; optional
	Recorder    ResultRecorder // Receives every result; optional
}

// Pipeline runs one validate or repair pass over a set of objects.
//
// The coordinator (the goroutine calling [Pipeline.Run]) enumerates objects and queues tasks on todo,
// a fixed pool of workers turns each task into exactly one result on done, and a single reporter
// consumes results. A Pipeline runs once.
type Pipeline struct {
	opts     PipelineOpts
	strategy Strategy
	sessions services.SessionFactory
	logger   *log.Logger
	display  Display
	notifier Notifier

	stats    Stats
	pending  *PendingTable
	progress progressTracker

	todo     chan models.Task
	done     chan models.Result
	inflight sync.WaitGroup

	phase       atomic.Int32
	interrupted atomic.Bool
	outputErr   error // reporter-owned
}

// NewPipeline creates a [Pipeline] that opens repository sessions from sessions.
func NewPipeline(strategy Strategy, sessions services.SessionFactory, opts PipelineOpts) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	p := &Pipeline{
		opts:     opts,
		strategy: strategy,
		sessions: sessions,
		logger:   opts.Logger,
		display:  opts.Display,
		pending:  NewPendingTable(),
	}
	if p.display == nil {
		p.display = nopDisplay{}
	}
	p.notifier = p.display
	if opts.Quiet {
		p.notifier = nopDisplay{}
	}
	return p
}

// Interrupt stops enumeration at the next checkpoint. Queued tasks still run to completion.
// It reports whether this call set the flag.
func (p *Pipeline) Interrupt() bool {
	if !p.interrupted.CompareAndSwap(false, true) {
		return false
	}
	p.logger.Warn("Interrupt received, finishing queued work (interrupt again to exit immediately)")
	return true
}

// Interrupted reports whether [Pipeline.Interrupt] has been called.
func (p *Pipeline) Interrupted() bool {
	return p.interrupted.Load()
}

// Phase returns the current lifecycle phase.
func (p *Pipeline) Phase() Phase {
	return Phase(p.phase.Load())
}

// setupFailed aborts the display of a run that could not start.
func (p *Pipeline) setupFailed(err error) error {
	p.display.Abort()
	return fmt.Errorf("failed to open repository session: %w", err)
}

func (p *Pipeline) setPhase(phase Phase) {
	p.phase.Store(int32(phase))
	p.logger.Debug("pipeline phase", "phase", phase)
}

// Run enumerates src, processes every queued task and returns the final statistics.
//
// Repository sessions are opened before any task is queued; failing to open one aborts the run and
// the display, and the returned summary has a zero Finished time.
// Per-item failures never abort a run. A non-nil error alongside a summary means enumeration stopped
// early or results could not be written.
func (p *Pipeline) Run(ctx context.Context, src Source) (models.Summary, error) {
	if !p.phase.CompareAndSwap(int32(Init), int32(Enumerating)) {
		return models.Summary{}, fmt.Errorf("%w: pipeline already started", shared.ErrInvalidArgument)
	}
	started := time.Now()
	defer p.setPhase(Done)

	coordinator, err := p.sessions()
	if err != nil {
		return models.Summary{}, p.setupFailed(err)
	}
	workerRepos := make([]services.Repository, p.opts.Concurrency)
	for i := range workerRepos {
		if workerRepos[i], err = p.sessions(); err != nil {
			return models.Summary{}, p.setupFailed(err)
		}
	}

	p.todo = make(chan models.Task, p.opts.QueueSize)
	p.done = make(chan models.Result, p.opts.QueueSize)
	if src.Total > 0 {
		total := src.Total
		if p.opts.Max > 0 && p.opts.Max < total {
			total = p.opts.Max
		}
		p.progress.expect(int64(total))
	}

	var workers, reporter errgroup.Group
	for i, repo := range workerRepos {
		workers.Go(func() error {
			p.work(ctx, i+1, repo)
			return nil
		})
	}
	reporter.Go(p.report)

	p.logger.Debug("pipeline started", "mode", p.strategy.Mode(), "workers", p.opts.Concurrency)
	enumErr := p.enumerate(ctx, coordinator, src)

	p.setPhase(Draining)
	p.progress.expect(0)
	p.inflight.Wait()
	close(p.todo)
	workers.Wait()
	close(p.done)
	reporter.Wait()

	if n := p.pending.Outstanding(); n > 0 {
		p.logger.Error("Objects left incomplete after drain", "count", n)
	}
	p.logger.Debug("pipeline drained", "objects", p.pending.Len())

	p.setPhase(Summarizing)
	summary := p.stats.Snapshot(p.strategy.Mode())
	summary.Interrupted = p.Interrupted()
	summary.Started = started
	summary.Finished = time.Now()

	final := p.progress.next(summary.ObjectsProcessed, summary.ObjectsQueued)
	p.display.Update(final.Done, final.Total)
	if summary.Interrupted {
		p.display.Abort()
	} else {
		p.display.Finish()
	}

	closeErr := p.release()
	return summary, errors.Join(enumErr, p.outputErr, closeErr)
}

// enumerate queues tasks for each object of src until the source is exhausted, the cap is reached
// or the run is interrupted.
func (p *Pipeline) enumerate(ctx context.Context, repo services.Repository, src Source) error {
	if src.PIDs == nil {
		return nil
	}

	for pid, err := range src.PIDs {
		if err != nil {
			p.logger.Error("Object enumeration failed", "error", err)
			return fmt.Errorf("object enumeration stopped: %w", err)
		}
		if p.capReached() {
			break
		}

		p.enqueueObject(ctx, repo, pid)

		if p.Interrupted() || ctx.Err() != nil {
			p.logger.Warn("Enumeration interrupted", "queued", p.stats.ObjectsQueued.Load())
			break
		}
		if p.capReached() {
			p.logger.Info("Object limit reached", "max", p.opts.Max)
			break
		}
	}
	return nil
}

func (p *Pipeline) capReached() bool {
	return p.opts.Max > 0 && p.stats.ObjectsQueued.Load() >= int64(p.opts.Max)
}

// enqueueObject registers pid and queues a task for every datastream version the strategy plans.
func (p *Pipeline) enqueueObject(ctx context.Context, repo services.Repository, pid string) {
	obj, err := repo.GetObject(ctx, pid)
	if err != nil {
		if errors.Is(err, shared.ErrObjectNotFound) || errors.Is(err, shared.ErrUnauthorized) {
			p.logger.Warn(fmt.Sprintf("%s does not exist or is inaccessible", pid))
		} else {
			p.logger.Error("Failed to fetch object", "pid", pid, "error", err)
		}
		return
	}

	// an object whose datastreams cannot be listed is never registered; it counts as one error
	dsids, err := repo.ListDatastreams(ctx, pid)
	if err != nil {
		p.logger.Error("Failed to list datastreams", "pid", pid, "error", err)
		p.stats.Errors.Add(1)
		return
	}

	if !p.pending.Register(pid) {
		p.logger.Warn("Skipping repeated object", "pid", pid)
		return
	}
	p.stats.ObjectsQueued.Add(1)

	for _, dsid := range dsids {
		tasks, err := p.strategy.Plan(ctx, repo, obj, dsid)
		if err != nil {
			if errors.Is(err, shared.ErrHistoryUnavailable) {
				p.logger.Warn(fmt.Sprintf("Unable to list versions of %s/%s", pid, dsid), "error", err)
			} else {
				p.logger.Error("Failed to plan datastream", "pid", pid, "dsid", dsid, "error", err)
			}
			continue
		}
		if len(tasks) == 0 {
			continue
		}

		p.stats.Datastreams.Add(1)
		for _, task := range tasks {
			p.pending.Add(pid)
			p.inflight.Add(1)
			p.stats.Versions.Add(1)
			p.todo <- task
		}
	}

	if p.pending.Seal(pid) {
		p.complete(pid)
	}
}

// work is a worker goroutine: one result per task, until todo is closed.
func (p *Pipeline) work(ctx context.Context, id int, repo services.Repository) {
	logger := shared.WithLogger(p.logger, "worker", id)
	for task := range p.todo {
		res := p.strategy.Process(ctx, repo, task)
		logger.Debug("processed", "task", task, "outcome", res.Outcome())
		p.done <- res

		if p.pending.Done(task.PID) {
			p.complete(task.PID)
		}
	}
}

func (p *Pipeline) complete(pid string) {
	p.stats.ObjectsProcessed.Add(1)
	p.strategy.Release(pid)
}

// report is the reporter goroutine: handles results one at a time until done is closed.
func (p *Pipeline) report() error {
	for res := range p.done {
		p.stats.Results.Add(1)
		if err := p.strategy.Handle(res, &p.stats, p.notifier); err != nil {
			p.outputFailed(err)
		}
		if p.opts.Recorder != nil {
			if err := p.opts.Recorder.RecordResult(res); err != nil {
				p.outputFailed(err)
			}
		}

		update := p.progress.next(p.stats.ObjectsProcessed.Load(), p.stats.ObjectsQueued.Load())
		p.display.Update(update.Done, update.Total)
		p.inflight.Done()
	}
	return nil
}

func (p *Pipeline) outputFailed(err error) {
	if p.outputErr == nil {
		p.outputErr = err
		p.logger.Error("Failed to write result", "error", err)
		return
	}
	p.logger.Debug("Failed to write result", "error", err)
}

// release closes strategy output opened for the run.
func (p *Pipeline) release() error {
	if c, ok := p.strategy.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close output: %w", err)
		}
	}
	return nil
}
