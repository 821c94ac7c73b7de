package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/desertthunder/fixity/internal/formatter"
	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/repositories"
	"github.com/desertthunder/fixity/internal/services"
	"github.com/desertthunder/fixity/internal/shared"
	"github.com/desertthunder/fixity/internal/tasks"
	"github.com/desertthunder/fixity/internal/ui"
	"github.com/urfave/cli/v3"
)

// Validate checks the checksum of every selected datastream.
func (r *Runner) Validate(ctx context.Context, cmd *cli.Command) error {
	config, err := r.auditConfig(cmd)
	if err != nil {
		return err
	}

	opts := tasks.ValidateOpts{
		AllVersions: cmd.Bool("all-versions"),
		AllResults:  cmd.Bool("all"),
		MissingOnly: cmd.Bool("missing-only"),
	}

	var writer *formatter.ResultWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	// the CSV file is created only once the repository is reachable
	return r.runAudit(ctx, cmd, config, func() (tasks.Strategy, error) {
		if path := cmd.String("csv"); path != "" {
			var err error
			if writer, err = formatter.NewResultWriter(path); err != nil {
				return nil, fmt.Errorf("failed to open output: %w", err)
			}
			opts.Output = writer
			r.logger.Info("writing results", "path", writer.Path())
		}
		return tasks.NewValidateStrategy(opts), nil
	})
}

// Repair sets a checksum on datastreams that lack one, or on every forced datastream.
func (r *Runner) Repair(ctx context.Context, cmd *cli.Command) error {
	config, err := r.auditConfig(cmd)
	if err != nil {
		return err
	}
	if checksumType := cmd.String("checksum-type"); checksumType != "" {
		config.Audit.ChecksumType = checksumType
	}
	if message := cmd.String("message"); message != "" {
		config.Audit.LogMessage = message
	}

	strategy, err := tasks.NewRepairStrategy(tasks.RepairOpts{
		ChecksumType: config.Audit.ChecksumType,
		Force:        cmd.StringSlice("force"),
		LogMessage:   config.Audit.LogMessage,
	})
	if err != nil {
		return err
	}

	return r.runAudit(ctx, cmd, config, func() (tasks.Strategy, error) { return strategy, nil })
}

// auditConfig loads the config file and applies the flags shared by validate and repair.
func (r *Runner) auditConfig(cmd *cli.Command) (*shared.Config, error) {
	r.setLogLevel(cmd)

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	if url := cmd.String("url"); url != "" {
		config.Fedora.BaseURL = url
	}
	if cmd.IsSet("concurrency") {
		config.Audit.Concurrency = cmd.Int("concurrency")
	}
	if model := cmd.String("content-model"); model != "" {
		config.Audit.ContentModel = model
	}
	if db := cmd.String("db"); db != "" {
		config.Database.Path = db
	}
	if cmd.Int("max") < 0 {
		return nil, fmt.Errorf("%w: --max must not be negative", shared.ErrInvalidArgument)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// runAudit resolves the objects to visit, runs the pipeline and prints its summary.
//
// Nothing is written to disk until a repository session opens: newStrategy, which may create an
// output file, runs after that check and before the run is recorded.
func (r *Runner) runAudit(ctx context.Context, cmd *cli.Command, config *shared.Config, newStrategy func() (tasks.Strategy, error)) error {
	sessions, err := r.sessionFactory(config)
	if err != nil {
		return err
	}
	if _, err := sessions(); err != nil {
		return fmt.Errorf("failed to open repository session: %w", err)
	}

	src, err := tasks.ResolveSource(ctx, cmd.Args().Slice(), cmd.String("file"), sessions, config.Audit.ContentModel)
	if err != nil {
		return fmt.Errorf("failed to resolve objects: %w", err)
	}

	strategy, err := newStrategy()
	if err != nil {
		return err
	}

	store, err := r.openRunStore(config)
	if err != nil {
		return err
	}
	var (
		runs     *repositories.RunRepository
		run      *models.Run
		recorder tasks.ResultRecorder
	)
	if store != nil {
		defer store.Close()
		runs = repositories.NewRunRepository(store)
		if run, err = runs.Create(strategy.Mode(), time.Now()); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		recorder = repositories.NewRunRecorder(runs, run.ID)
		r.logger.Debug("recording run", "id", run.ID, "sequence", run.Sequence)
	}

	display := r.display
	if display == nil {
		display = ui.NewDisplay(r.output)
	}

	quiet := cmd.Bool("quiet")
	pipeline := tasks.NewPipeline(strategy, sessions, tasks.PipelineOpts{
		Concurrency: config.Audit.Concurrency,
		QueueSize:   config.Audit.QueueSize,
		Max:         cmd.Int("max"),
		Quiet:       quiet,
		Logger:      r.logger,
		Display:     display,
		Recorder:    recorder,
	})

	stop := interruptOnSignal(pipeline)
	summary, runErr := pipeline.Run(ctx, src)
	stop()

	if summary.Finished.IsZero() {
		// the pipeline never started; it has already aborted the display
		if run != nil {
			if err := runs.Delete(run.ID); err != nil {
				r.logger.Warn("failed to remove unstarted run", "id", run.ID, "error", err)
			}
		}
		return runErr
	}

	if run != nil {
		if err := runs.Finish(run.ID, summary); err != nil {
			r.logger.Warn("failed to store run summary", "id", run.ID, "error", err)
		}
	}

	if quiet {
		r.writePlain("%s\n", formatter.SummaryLine(summary))
	} else {
		r.writePlain("%s\n", formatter.SummaryTable(summary))
	}
	return runErr
}

// sessionFactory returns the override given to the runner or builds a Fedora client from config.
func (r *Runner) sessionFactory(config *shared.Config) (services.SessionFactory, error) {
	if r.sessions != nil {
		return r.sessions, nil
	}

	if err := r.ensurePassword(config); err != nil {
		return nil, err
	}

	fedora, err := services.NewFedoraService(services.FedoraOpts{
		BaseURL:           config.Fedora.BaseURL,
		Username:          config.Fedora.Username,
		Password:          config.Fedora.Password,
		Token:             config.Fedora.Token,
		Timeout:           config.RequestTimeout(),
		RequestsPerSecond: config.Fedora.RequestsPerSecond,
	})
	if err != nil {
		return nil, err
	}
	r.logger.Debug("connecting to repository", "url", fedora.BaseURL())
	return fedora.Sessions(), nil
}

// openRunStore opens and migrates the run store. It returns nil when no database is configured.
func (r *Runner) openRunStore(config *shared.Config) (*sql.DB, error) {
	path := strings.TrimSpace(config.Database.Path)
	if path == "" {
		return nil, nil
	}

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// interruptOnSignal stops enumeration on the first SIGINT and restores the default handler,
// so a second SIGINT terminates the process.
func interruptOnSignal(p *tasks.Pipeline) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)

	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			signal.Reset(os.Interrupt)
			p.Interrupt()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigs)
		close(done)
	}
}
