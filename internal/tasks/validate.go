package tasks

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/services"
	"github.com/desertthunder/fixity/internal/shared"
)

// ResultWriter writes structured validation records.
type ResultWriter interface {
	WriteResult(res models.ValidationResult) error
}

// ValidateOpts configures a [ValidateStrategy].
type ValidateOpts struct {
	AllVersions bool         // Queue one task per stored version instead of the current version only
	AllResults  bool         // Record ok results too
	MissingOnly bool         // Report and record only missing checksums
	Output      ResultWriter // Optional structured output
}

// ValidateStrategy checks stored checksums against repository content.
type ValidateStrategy struct {
	opts ValidateOpts
	// content models per object, written by Plan and read by Process
	cmodels sync.Map
}

func NewValidateStrategy(opts ValidateOpts) *ValidateStrategy {
	return &ValidateStrategy{opts: opts}
}

func (v *ValidateStrategy) Mode() models.Mode { return models.ModeValidate }

func (v *ValidateStrategy) Plan(ctx context.Context, repo services.Repository, obj *models.ObjectProfile, dsid string) ([]models.Task, error) {
	v.cmodels.Store(obj.PID, slices.Clone(obj.ContentModels))

	if !v.opts.AllVersions {
		return []models.Task{models.NewTask(obj.PID, dsid)}, nil
	}

	versions, err := repo.DatastreamHistory(ctx, obj.PID, dsid)
	if err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0, len(versions))
	for _, ver := range versions {
		tasks = append(tasks, models.NewVersionTask(obj.PID, dsid, ver.Created))
	}
	return tasks, nil
}

// Process asks the repository to verify the checksum of one datastream version.
func (v *ValidateStrategy) Process(ctx context.Context, repo services.Repository, task models.Task) models.Result {
	res := models.ValidationResult{
		PID:           task.PID,
		DSID:          task.DSID,
		Date:          task.Version,
		ContentModels: v.contentModels(task.PID),
	}

	ds, err := repo.GetDatastream(ctx, task.PID, task.DSID, task.Version)
	if err != nil {
		res.Status, res.Err = models.StatusError, err
		return res
	}
	res.MIMEType = ds.MIMEType
	res.Versionable = ds.Versionable
	res.ControlGroup = ds.ControlGroup
	if res.Date.IsZero() {
		res.Date = ds.Created
	}

	valid, err := repo.ValidateChecksum(ctx, task.PID, task.DSID, task.Version)
	if err != nil {
		res.Status, res.Err = models.StatusError, err
		return res
	}
	res.Status = ClassifyChecksum(valid, *ds)
	return res
}

// ClassifyChecksum maps a repository validation answer to a [models.Status].
//
// A datastream without a usable checksum is missing even when the repository reports it valid.
func ClassifyChecksum(valid bool, ds models.DatastreamProfile) models.Status {
	switch {
	case !valid:
		return models.StatusInvalid
	case !ds.HasChecksum():
		return models.StatusMissing
	default:
		return models.StatusOK
	}
}

func (v *ValidateStrategy) Handle(res models.Result, stats *Stats, notify Notifier) error {
	r, ok := res.(models.ValidationResult)
	if !ok {
		return fmt.Errorf("%w: unexpected result type %T", shared.ErrInvalidArgument, res)
	}

	switch r.Status {
	case models.StatusOK:
		stats.OK.Add(1)
	case models.StatusInvalid:
		stats.Invalid.Add(1)
	case models.StatusMissing:
		stats.Missing.Add(1)
	default:
		stats.Errors.Add(1)
	}

	if v.reportable(r) {
		notify.Notify(validationMessage(r))
	}
	if v.opts.Output != nil && v.recordable(r) {
		if err := v.opts.Output.WriteResult(r); err != nil {
			return fmt.Errorf("failed to write result for %s/%s: %w", r.PID, r.DSID, err)
		}
	}
	return nil
}

func (v *ValidateStrategy) Release(pid string) {
	v.cmodels.Delete(pid)
}

// Close closes the structured output when it holds an open resource.
func (v *ValidateStrategy) Close() error {
	if c, ok := v.opts.Output.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (v *ValidateStrategy) reportable(r models.ValidationResult) bool {
	if v.opts.MissingOnly {
		return r.Status == models.StatusMissing
	}
	return r.Status != models.StatusOK
}

func (v *ValidateStrategy) recordable(r models.ValidationResult) bool {
	if v.opts.MissingOnly {
		return r.Status == models.StatusMissing
	}
	return v.opts.AllResults || r.Status != models.StatusOK
}

func (v *ValidateStrategy) contentModels(pid string) []string {
	if m, ok := v.cmodels.Load(pid); ok {
		return m.([]string)
	}
	return nil
}

func validationMessage(r models.ValidationResult) string {
	target := r.PID + "/" + r.DSID
	switch r.Status {
	case models.StatusInvalid:
		return fmt.Sprintf("Invalid checksum for %s (%s)", target, models.FormatDate(r.Date))
	case models.StatusMissing:
		return fmt.Sprintf("Missing checksum for %s", target)
	default:
		return fmt.Sprintf("Error validating %s: %v", target, r.Err)
	}
}
