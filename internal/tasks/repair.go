package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/services"
	"github.com/desertthunder/fixity/internal/shared"
)

// RepairOpts configures a [RepairStrategy].
type RepairOpts struct {
	ChecksumType string   // Algorithm to set on datastreams without a checksum
	Force        []string // Datastream ids re-saved even when they already carry a checksum
	LogMessage   string   // Audit message stored with the modification
}

// RepairStrategy adds checksums to datastreams that lack one.
type RepairStrategy struct {
	checksumType string
	logMessage   string
	force        map[string]struct{}
}

// NewRepairStrategy validates opts and creates a [RepairStrategy].
func NewRepairStrategy(opts RepairOpts) (*RepairStrategy, error) {
	if !models.IsChecksumType(opts.ChecksumType) {
		return nil, fmt.Errorf("%w: unsupported checksum type %q (want one of %s)",
			shared.ErrInvalidArgument, opts.ChecksumType, strings.Join(models.ChecksumTypes, ", "))
	}

	force := make(map[string]struct{}, len(opts.Force))
	for _, dsid := range opts.Force {
		if dsid = strings.TrimSpace(dsid); dsid != "" {
			force[dsid] = struct{}{}
		}
	}
	return &RepairStrategy{checksumType: opts.ChecksumType, logMessage: opts.LogMessage, force: force}, nil
}

func (r *RepairStrategy) Mode() models.Mode { return models.ModeRepair }

// Plan queues the current version of every datastream.
func (r *RepairStrategy) Plan(_ context.Context, _ services.Repository, obj *models.ObjectProfile, dsid string) ([]models.Task, error) {
	return []models.Task{models.NewTask(obj.PID, dsid)}, nil
}

// Forced reports whether dsid is re-saved regardless of its current checksum.
func (r *RepairStrategy) Forced(dsid string) bool {
	_, ok := r.force[dsid]
	return ok
}

func (r *RepairStrategy) Process(ctx context.Context, repo services.Repository, task models.Task) models.Result {
	res := models.RepairResult{PID: task.PID, DSID: task.DSID}

	ds, err := repo.GetDatastream(ctx, task.PID, task.DSID, task.Version)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if ds.HasChecksum() && !r.Forced(task.DSID) {
		return res
	}

	if err := repo.SetChecksumType(ctx, task.PID, task.DSID, r.checksumType, r.logMessage); err != nil {
		res.Error = err.Error()
		return res
	}
	res.Saved = true
	return res
}

func (r *RepairStrategy) Handle(res models.Result, stats *Stats, notify Notifier) error {
	rr, ok := res.(models.RepairResult)
	if !ok {
		return fmt.Errorf("%w: unexpected result type %T", shared.ErrInvalidArgument, res)
	}

	switch {
	case rr.Error != "":
		stats.Errors.Add(1)
		notify.Notify(fmt.Sprintf("Error saving %s/%s: %s", rr.PID, rr.DSID, rr.Error))
	case rr.Saved:
		stats.Updated.Add(1)
	default:
		stats.Skipped.Add(1)
	}
	return nil
}

func (r *RepairStrategy) Release(string) {}

var (
	_ Strategy = (*ValidateStrategy)(nil)
	_ Strategy = (*RepairStrategy)(nil)
)
