package testing

import (
	"context"
	"crypto/sha1"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/shared"
)

// FakeCreated is the creation date given to every fake datastream.
var FakeCreated = time.Date(2012, 1, 31, 17, 9, 46, 421000000, time.UTC)

// FakeDatastream is one datastream held by a [FakeRepository].
type FakeDatastream struct {
	Profile     models.DatastreamProfile
	Valid       bool // Returned by ValidateChecksum
	Versions    []models.DatastreamVersion
	GetErr      error
	ValidateErr error
	HistoryErr  error
	SaveErr     error
}

// FakeObject is one object held by a [FakeRepository].
type FakeObject struct {
	Profile     models.ObjectProfile
	Err         error // Returned by GetObject when set
	ListErr     error // Returned by ListDatastreams when set
	dsids       []string
	datastreams map[string]*FakeDatastream
}

// AddDatastream adds a datastream with a valid checksum unless checksum is empty or checksumType is DISABLED.
func (o *FakeObject) AddDatastream(dsid, checksumType, checksum string) *FakeDatastream {
	ds := &FakeDatastream{
		Profile: models.DatastreamProfile{
			PID:          o.Profile.PID,
			DSID:         dsid,
			Label:        dsid,
			VersionID:    dsid + ".0",
			MIMEType:     "text/xml",
			ControlGroup: "X",
			Versionable:  true,
			State:        "A",
			ChecksumType: checksumType,
			Checksum:     checksum,
			Created:      FakeCreated,
		},
		Valid: true,
	}
	o.dsids = append(o.dsids, dsid)
	o.datastreams[dsid] = ds
	return ds
}

// Datastream returns a datastream previously added with [FakeObject.AddDatastream].
func (o *FakeObject) Datastream(dsid string) *FakeDatastream {
	return o.datastreams[dsid]
}

// FakeRepository is an in-memory object store safe for concurrent use by many sessions.
type FakeRepository struct {
	mu      sync.Mutex
	objects map[string]*FakeObject
	order   []string
	calls   map[string]int

	// Delay is added to every datastream call.
	Delay time.Duration
	// DiscoverErr is yielded after the last discovered pid.
	DiscoverErr error
	// OnGetObject is invoked before GetObject answers.
	OnGetObject func(ctx context.Context, pid string)
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{objects: make(map[string]*FakeObject), calls: make(map[string]int)}
}

// AddObject adds an object with the given content models.
func (f *FakeRepository) AddObject(pid string, contentModels ...string) *FakeObject {
	obj := &FakeObject{
		Profile:     models.ObjectProfile{PID: pid, Label: pid, State: "A", ContentModels: contentModels, Created: FakeCreated},
		datastreams: make(map[string]*FakeDatastream),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[pid] = obj
	f.order = append(f.order, pid)
	return obj
}

// Object returns an object previously added with [FakeRepository.AddObject].
func (f *FakeRepository) Object(pid string) *FakeObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[pid]
}

// Calls returns how many times the named method was invoked.
func (f *FakeRepository) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeRepository) record(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *FakeRepository) wait(ctx context.Context) error {
	if f.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(f.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeRepository) datastream(pid, dsid string) (*FakeDatastream, error) {
	obj, ok := f.objects[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrObjectNotFound, pid)
	}
	ds, ok := obj.datastreams[dsid]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", shared.ErrDatastreamNotFound, pid, dsid)
	}
	return ds, nil
}

func (f *FakeRepository) GetObject(ctx context.Context, pid string) (*models.ObjectProfile, error) {
	f.record("GetObject")
	if f.OnGetObject != nil {
		f.OnGetObject(ctx, pid)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrObjectNotFound, pid)
	}
	if obj.Err != nil {
		return nil, obj.Err
	}
	profile := obj.Profile
	profile.ContentModels = slices.Clone(obj.Profile.ContentModels)
	return &profile, nil
}

func (f *FakeRepository) ListDatastreams(ctx context.Context, pid string) ([]string, error) {
	f.record("ListDatastreams")
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[pid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrObjectNotFound, pid)
	}
	if obj.ListErr != nil {
		return nil, obj.ListErr
	}
	return slices.Clone(obj.dsids), nil
}

func (f *FakeRepository) GetDatastream(ctx context.Context, pid, dsid string, asOf time.Time) (*models.DatastreamProfile, error) {
	f.record("GetDatastream")
	if err := f.wait(ctx); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ds, err := f.datastream(pid, dsid)
	if err != nil {
		return nil, err
	}
	if ds.GetErr != nil {
		return nil, ds.GetErr
	}
	profile := ds.Profile
	if !asOf.IsZero() {
		profile.Created = asOf
	}
	return &profile, nil
}

func (f *FakeRepository) DatastreamHistory(ctx context.Context, pid, dsid string) ([]models.DatastreamVersion, error) {
	f.record("DatastreamHistory")
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, err := f.datastream(pid, dsid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrHistoryUnavailable, err)
	}
	if ds.HistoryErr != nil {
		return nil, ds.HistoryErr
	}
	if len(ds.Versions) == 0 {
		return []models.DatastreamVersion{{VersionID: ds.Profile.VersionID, Created: ds.Profile.Created}}, nil
	}
	return slices.Clone(ds.Versions), nil
}

func (f *FakeRepository) ValidateChecksum(ctx context.Context, pid, dsid string, asOf time.Time) (bool, error) {
	f.record("ValidateChecksum")
	if err := f.wait(ctx); err != nil {
		return false, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ds, err := f.datastream(pid, dsid)
	if err != nil {
		return false, err
	}
	if ds.ValidateErr != nil {
		return false, ds.ValidateErr
	}
	return ds.Valid, nil
}

// SetChecksumType stores a fresh checksum computed from the pid and datastream id.
func (f *FakeRepository) SetChecksumType(ctx context.Context, pid, dsid, checksumType, logMessage string) error {
	f.record("SetChecksumType")
	if err := f.wait(ctx); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	ds, err := f.datastream(pid, dsid)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSaveFailed, err)
	}
	if ds.SaveErr != nil {
		return ds.SaveErr
	}
	ds.Profile.ChecksumType = checksumType
	ds.Profile.Checksum = fmt.Sprintf("%x", sha1.Sum([]byte(pid+"/"+dsid)))
	ds.Valid = true
	return nil
}

// DiscoverObjects yields pids in insertion order, keeping only objects with contentModel when it is set.
func (f *FakeRepository) DiscoverObjects(ctx context.Context, contentModel string) iter.Seq2[string, error] {
	f.record("DiscoverObjects")
	model := strings.TrimPrefix(contentModel, "info:fedora/")

	f.mu.Lock()
	var pids []string
	for _, pid := range f.order {
		if model == "" || slices.ContainsFunc(f.objects[pid].Profile.ContentModels, func(m string) bool {
			return strings.TrimPrefix(m, "info:fedora/") == model
		}) {
			pids = append(pids, pid)
		}
	}
	discoverErr := f.DiscoverErr
	f.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, pid := range pids {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(pid, nil) {
				return
			}
		}
		if discoverErr != nil {
			yield("", discoverErr)
		}
	}
}
