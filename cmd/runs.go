package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/fixity/internal/formatter"
	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/repositories"
	"github.com/desertthunder/fixity/internal/shared"
	"github.com/urfave/cli/v3"
)

// runDetail is the JSON form of runs show.
type runDetail struct {
	*models.Run
	Results  int            `json:"results"`
	Outcomes map[string]int `json:"outcomes"`
}

// RunsList prints the most recent recorded runs.
func (r *Runner) RunsList(ctx context.Context, cmd *cli.Command) error {
	db, path, err := r.runStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	if len(runs) == 0 {
		return r.writePlain("No runs recorded in %s\n", path)
	}
	return r.writePlain("%s\n", formatter.RunsTable(runs))
}

// RunsShow prints one run's summary and the number of stored results per outcome.
func (r *Runner) RunsShow(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return fmt.Errorf("%w: run id is required", shared.ErrInvalidArgument)
	}

	db, _, err := r.runStore(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewRunRepository(db)
	run, err := repo.Get(id)
	if err != nil {
		return err
	}

	detail := runDetail{Run: run, Outcomes: map[string]int{}}
	if detail.Results, err = repo.CountResults(run.ID, ""); err != nil {
		return err
	}
	outcomes := resultOutcomes(run.Summary.Mode)
	for _, outcome := range outcomes {
		if detail.Outcomes[outcome], err = repo.CountResults(run.ID, outcome); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(detail, true)
	}

	counts := make([]string, 0, len(outcomes))
	for _, outcome := range outcomes {
		counts = append(counts, fmt.Sprintf("%s=%d", outcome, detail.Outcomes[outcome]))
	}
	return r.writePlain("Run %s (#%d) %s\n%s\nStored results: %d (%s)\n",
		run.ID, run.Sequence, run.Status,
		formatter.SummaryTable(run.Summary),
		detail.Results, strings.Join(counts, ", "),
	)
}

// runStore opens the database named by --db or database.path.
func (r *Runner) runStore(cmd *cli.Command) (*sql.DB, string, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, "", err
	}
	if db := cmd.String("db"); db != "" {
		config.Database.Path = db
	}
	if strings.TrimSpace(config.Database.Path) == "" {
		return nil, "", fmt.Errorf("%w: no run store configured (set database.path or pass --db)", shared.ErrInvalidConfig)
	}

	db, err := r.openRunStore(config)
	if err != nil {
		return nil, "", err
	}
	return db, config.Database.Path, nil
}

// resultOutcomes lists the outcomes a run of mode can store.
func resultOutcomes(mode models.Mode) []string {
	if mode == models.ModeRepair {
		return []string{"saved", "skipped", "error"}
	}
	return []string{
		string(models.StatusOK),
		string(models.StatusInvalid),
		string(models.StatusMissing),
		string(models.StatusError),
	}
}
