package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/services"
	"github.com/desertthunder/fixity/internal/shared"
	tu "github.com/desertthunder/fixity/internal/testing"
)

func sessionsFor(repo *tu.FakeRepository) services.SessionFactory {
	return func() (services.Repository, error) { return repo, nil }
}

type memoryRecorder struct {
	mu      sync.Mutex
	results []models.Result
}

func (m *memoryRecorder) RecordResult(res models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return nil
}

// threeObjects builds 3 objects with 2 datastreams each, one of them without a checksum.
func threeObjects() *tu.FakeRepository {
	repo := tu.NewFakeRepository()
	for i := 1; i <= 3; i++ {
		obj := repo.AddObject(fmt.Sprintf("demo:%d", i))
		obj.AddDatastream("DC", "SHA-1", "abc")
		if i == 2 {
			obj.AddDatastream("IMAGE", "DISABLED", "none")
		} else {
			obj.AddDatastream("IMAGE", "MD5", "def")
		}
	}
	return repo
}

// mixedRepository builds objects whose datastreams cover every validation outcome.
func mixedRepository(objects int) *tu.FakeRepository {
	repo := tu.NewFakeRepository()
	for i := range objects {
		obj := repo.AddObject(fmt.Sprintf("demo:%d", i))
		obj.AddDatastream("DC", "SHA-1", "abc")
		switch i % 4 {
		case 0:
			obj.AddDatastream("IMAGE", "DISABLED", "none")
		case 1:
			obj.AddDatastream("IMAGE", "MD5", "def").Valid = false
		case 2:
			obj.AddDatastream("IMAGE", "MD5", "def").ValidateErr = shared.ErrServiceUnavailable
		}
	}
	return repo
}

func pidList(n int) []string {
	pids := make([]string, n)
	for i := range pids {
		pids[i] = fmt.Sprintf("demo:%d", i)
	}
	return pids
}

func TestPipelineValidate(t *testing.T) {
	t.Run("Three Objects One Missing Checksum", func(t *testing.T) {
		repo := threeObjects()
		display := &tu.RecordingDisplay{}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{Concurrency: 4, Display: display})

		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1", "demo:2", "demo:3"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if sum.ObjectsQueued != 3 || sum.ObjectsProcessed != 3 {
			t.Errorf("expected objects=3, got queued=%d processed=%d", sum.ObjectsQueued, sum.ObjectsProcessed)
		}
		if sum.Datastreams != 6 || sum.Versions != 6 || sum.Results != 6 {
			t.Errorf("expected datastreams=6, got datastreams=%d versions=%d results=%d", sum.Datastreams, sum.Versions, sum.Results)
		}
		if sum.Missing != 1 || sum.Invalid != 0 || sum.OK != 5 || sum.Errors != 0 {
			t.Errorf("expected ok=5 missing=1, got %+v", sum)
		}
		for _, pid := range []string{"demo:1", "demo:2", "demo:3"} {
			if n, ok := p.pending.remaining(pid); !ok || n != 0 {
				t.Errorf("%s: expected pending count 0, got %d (registered=%v)", pid, n, ok)
			}
		}
		if p.Phase() != Done {
			t.Errorf("expected phase done, got %s", p.Phase())
		}
		if !display.Finished() || display.Aborted() {
			t.Error("expected display to be finished")
		}
		if msgs := display.Messages(); len(msgs) != 1 || msgs[0] != "Missing checksum for demo:2/IMAGE" {
			t.Errorf("unexpected messages %v", msgs)
		}
	})

	t.Run("Exactly One Result Per Task", func(t *testing.T) {
		repo := mixedRepository(40)
		repo.Delay = time.Millisecond
		recorder := &memoryRecorder{}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{Concurrency: 8, QueueSize: 4, Recorder: recorder})

		sum, err := p.Run(context.Background(), IDSource(pidList(40)))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		seen := make(map[string]int)
		for _, res := range recorder.results {
			seen[res.Parent()+"/"+res.Item()]++
		}
		if int64(len(recorder.results)) != sum.Versions {
			t.Errorf("expected %d results, got %d", sum.Versions, len(recorder.results))
		}
		for key, n := range seen {
			if n != 1 {
				t.Errorf("%s: expected one result, got %d", key, n)
			}
		}
		if sum.ObjectsProcessed != 40 || p.pending.Outstanding() != 0 {
			t.Errorf("expected every object complete, got processed=%d outstanding=%d", sum.ObjectsProcessed, p.pending.Outstanding())
		}
	})

	t.Run("Concurrency Does Not Change Statistics", func(t *testing.T) {
		run := func(concurrency int) models.Summary {
			p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(mixedRepository(25)), PipelineOpts{Concurrency: concurrency})
			sum, err := p.Run(context.Background(), IDSource(pidList(25)))
			if err != nil {
				t.Fatalf("concurrency %d: expected no error, got %v", concurrency, err)
			}
			sum.Started, sum.Finished = time.Time{}, time.Time{}
			return sum
		}

		one, eight := run(1), run(8)
		if one != eight {
			t.Errorf("statistics differ:\n  concurrency 1: %+v\n  concurrency 8: %+v", one, eight)
		}
		if one.Invalid == 0 || one.Missing == 0 || one.Errors == 0 || one.OK == 0 {
			t.Errorf("expected every outcome to occur, got %+v", one)
		}
	})

	t.Run("All Versions", func(t *testing.T) {
		repo := tu.NewFakeRepository()
		obj := repo.AddObject("demo:1")
		obj.AddDatastream("DC", "SHA-1", "abc").Versions = []models.DatastreamVersion{
			{VersionID: "DC.1", Created: time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)},
			{VersionID: "DC.0", Created: time.Date(2012, 1, 1, 0, 0, 0, 0, time.UTC)},
		}
		obj.AddDatastream("IMAGE", "SHA-1", "abc").HistoryErr = shared.ErrHistoryUnavailable
		obj.AddDatastream("RELS-EXT", "SHA-1", "abc")

		p := NewPipeline(NewValidateStrategy(ValidateOpts{AllVersions: true}), sessionsFor(repo), PipelineOpts{})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if sum.Datastreams != 2 {
			t.Errorf("expected the datastream without history to be skipped, got datastreams=%d", sum.Datastreams)
		}
		if sum.Versions != 3 || sum.OK != 3 {
			t.Errorf("expected 3 versions checked, got versions=%d ok=%d", sum.Versions, sum.OK)
		}
		if sum.ObjectsProcessed != 1 {
			t.Errorf("expected object to complete, got %d", sum.ObjectsProcessed)
		}
	})

	t.Run("Skips Missing And Inaccessible Objects", func(t *testing.T) {
		repo := threeObjects()
		repo.Object("demo:3").Err = shared.ErrUnauthorized

		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1", "demo:404", "demo:3"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sum.ObjectsQueued != 1 || sum.Datastreams != 2 {
			t.Errorf("expected only demo:1 to be queued, got %+v", sum)
		}
		if _, ok := p.pending.remaining("demo:404"); ok {
			t.Error("expected missing object to never be registered")
		}
	})

	t.Run("Object Without Datastreams", func(t *testing.T) {
		repo := tu.NewFakeRepository()
		repo.AddObject("demo:empty")

		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:empty"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sum.ObjectsQueued != 1 || sum.ObjectsProcessed != 1 || sum.Results != 0 {
			t.Errorf("expected empty object to complete without tasks, got %+v", sum)
		}
	})

	t.Run("Unlistable Object Is An Error", func(t *testing.T) {
		repo := threeObjects()
		repo.Object("demo:2").ListErr = shared.ErrServiceUnavailable

		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1", "demo:2", "demo:3"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sum.ObjectsQueued != 2 || sum.ObjectsProcessed != 2 || sum.Errors != 1 {
			t.Errorf("expected demo:2 skipped and counted as an error, got %+v", sum)
		}
		if _, ok := p.pending.remaining("demo:2"); ok {
			t.Error("expected unlistable object to never be registered")
		}
	})

	t.Run("Every Item Fails", func(t *testing.T) {
		repo := threeObjects()
		for i := 1; i <= 3; i++ {
			obj := repo.Object(fmt.Sprintf("demo:%d", i))
			obj.Datastream("DC").GetErr = shared.ErrServiceUnavailable
			obj.Datastream("IMAGE").GetErr = shared.ErrServiceUnavailable
		}

		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{Concurrency: 3})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1", "demo:2", "demo:3"}))
		if err != nil {
			t.Fatalf("per-item failures should not fail the run, got %v", err)
		}
		if sum.Errors != 6 || sum.ObjectsProcessed != 3 {
			t.Errorf("expected 6 errors over 3 objects, got %+v", sum)
		}
	})

	t.Run("Quiet", func(t *testing.T) {
		display := &tu.RecordingDisplay{}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(threeObjects()), PipelineOpts{Quiet: true, Display: display})
		if _, err := p.Run(context.Background(), IDSource([]string{"demo:2"})); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(display.Messages()) != 0 {
			t.Errorf("expected no messages, got %v", display.Messages())
		}
		if len(display.Updates()) == 0 {
			t.Error("expected progress updates in quiet mode")
		}
	})

	t.Run("Progress Is Monotonic", func(t *testing.T) {
		display := &tu.RecordingDisplay{}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(mixedRepository(30)), PipelineOpts{Concurrency: 6, Display: display})
		if _, err := p.Run(context.Background(), IDSource(pidList(30))); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var last int64
		for _, u := range display.Updates() {
			if u.Done < last {
				t.Fatalf("progress moved backwards from %d to %d", last, u.Done)
			}
			if u.Total < u.Done {
				t.Fatalf("total %d below done %d", u.Total, u.Done)
			}
			last = u.Done
		}
		updates := display.Updates()
		if final := updates[len(updates)-1]; final.Done != 30 || final.Total != 30 {
			t.Errorf("expected final progress 30/30, got %d/%d", final.Done, final.Total)
		}
	})

	t.Run("Closes Output", func(t *testing.T) {
		out := &recordingWriter{}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{Output: out, AllResults: true}), sessionsFor(threeObjects()), PipelineOpts{})
		if _, err := p.Run(context.Background(), IDSource([]string{"demo:1"})); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if out.closed != 1 {
			t.Errorf("expected output closed once, got %d", out.closed)
		}
		if len(out.records) != 2 {
			t.Errorf("expected 2 records, got %d", len(out.records))
		}
	})

	t.Run("Output Failure Is Reported After Summary", func(t *testing.T) {
		out := &recordingWriter{err: errors.New("disk full")}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{Output: out}), sessionsFor(threeObjects()), PipelineOpts{})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1", "demo:2", "demo:3"}))
		if err == nil {
			t.Fatal("expected output error")
		}
		if sum.Results != 6 {
			t.Errorf("expected run to finish despite output errors, got %d results", sum.Results)
		}
	})
}

func TestPipelineRepair(t *testing.T) {
	t.Run("Force List", func(t *testing.T) {
		repo := threeObjects()
		strategy, err := NewRepairStrategy(RepairOpts{ChecksumType: "SHA-1", Force: []string{"DC"}})
		if err != nil {
			t.Fatalf("failed to create strategy: %v", err)
		}

		recorder := &memoryRecorder{}
		p := NewPipeline(strategy, sessionsFor(repo), PipelineOpts{Concurrency: 2, Recorder: recorder})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1", "demo:3"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if sum.Updated != 2 || sum.Skipped != 2 || sum.Errors != 0 {
			t.Errorf("expected forced DC saves only, got %+v", sum)
		}
		for _, res := range recorder.results {
			rr := res.(models.RepairResult)
			if rr.Saved != (rr.DSID == "DC") {
				t.Errorf("%s/%s: unexpected saved=%v", rr.PID, rr.DSID, rr.Saved)
			}
		}
	})

	t.Run("Second Run Saves Nothing", func(t *testing.T) {
		repo := threeObjects()
		ids := []string{"demo:1", "demo:2", "demo:3"}

		for run, wantUpdated := range []int64{1, 0} {
			strategy, _ := NewRepairStrategy(RepairOpts{ChecksumType: "SHA-1"})
			p := NewPipeline(strategy, sessionsFor(repo), PipelineOpts{Concurrency: 3})
			sum, err := p.Run(context.Background(), IDSource(ids))
			if err != nil {
				t.Fatalf("run %d: expected no error, got %v", run, err)
			}
			if sum.Updated != wantUpdated {
				t.Errorf("run %d: expected %d updated, got %d", run, wantUpdated, sum.Updated)
			}
		}
	})

	t.Run("Save Errors Are Counted", func(t *testing.T) {
		repo := threeObjects()
		repo.Object("demo:2").Datastream("IMAGE").SaveErr = shared.ErrSaveFailed
		display := &tu.RecordingDisplay{}

		strategy, _ := NewRepairStrategy(RepairOpts{ChecksumType: "SHA-1"})
		p := NewPipeline(strategy, sessionsFor(repo), PipelineOpts{Display: display})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:2"}))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sum.Errors != 1 || sum.Updated != 0 {
			t.Errorf("expected one save error, got %+v", sum)
		}
		if len(display.Messages()) != 1 {
			t.Errorf("expected one error message, got %v", display.Messages())
		}
	})
}

func TestPipelineControl(t *testing.T) {
	t.Run("Interrupt Stops New Objects", func(t *testing.T) {
		repo := mixedRepository(10)
		display := &tu.RecordingDisplay{}

		var p *Pipeline
		repo.OnGetObject = func(_ context.Context, pid string) {
			if pid == "demo:3" {
				p.Interrupt()
			}
		}
		p = NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{Concurrency: 2, Display: display})

		sum, err := p.Run(context.Background(), IDSource(pidList(10)))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !sum.Interrupted {
			t.Error("expected summary to be marked interrupted")
		}
		if sum.ObjectsQueued != 4 || p.pending.Len() != 4 {
			t.Errorf("expected enumeration to stop after demo:3, got queued=%d registered=%d", sum.ObjectsQueued, p.pending.Len())
		}
		if sum.Results != sum.Versions || sum.ObjectsProcessed != 4 {
			t.Errorf("expected queued work to drain, got %+v", sum)
		}
		if !display.Aborted() || display.Finished() {
			t.Error("expected display to be aborted rather than finished")
		}
		updates := display.Updates()
		if final := updates[len(updates)-1]; final.Total != 4 {
			t.Errorf("expected progress total to shrink to the queued count, got %d", final.Total)
		}
		if p.Interrupt() {
			t.Error("expected a second interrupt to report the flag was already set")
		}
	})

	t.Run("Cap", func(t *testing.T) {
		repo := mixedRepository(10)
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{Max: 3})

		sum, err := p.Run(context.Background(), IDSource(pidList(10)))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sum.ObjectsQueued != 3 || sum.ObjectsProcessed != 3 {
			t.Errorf("expected 3 objects, got %+v", sum)
		}
		if repo.Calls("GetObject") != 3 {
			t.Errorf("expected no lookups past the cap, got %d", repo.Calls("GetObject"))
		}
	})

	t.Run("Cap Counts Only Queued Objects", func(t *testing.T) {
		repo := mixedRepository(4)
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{Max: 2})

		sum, _ := p.Run(context.Background(), IDSource([]string{"demo:404", "demo:0", "demo:1", "demo:2"}))
		if sum.ObjectsQueued != 2 {
			t.Errorf("expected 2 queued objects, got %d", sum.ObjectsQueued)
		}
	})

	t.Run("Session Failure Is Fatal", func(t *testing.T) {
		repo := threeObjects()
		sessions := func() (services.Repository, error) {
			return nil, shared.ErrInvalidConfig
		}

		display := &tu.RecordingDisplay{}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessions, PipelineOpts{Display: display})
		sum, err := p.Run(context.Background(), IDSource([]string{"demo:1"}))
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
		if !sum.Finished.IsZero() {
			t.Error("expected no finish time for a run that never started")
		}
		if repo.Calls("GetObject") != 0 {
			t.Error("expected no repository activity")
		}
		if !display.Aborted() || display.Finished() {
			t.Error("expected display to be aborted")
		}
	})

	t.Run("Worker Session Failure Aborts Display", func(t *testing.T) {
		repo := threeObjects()
		opened := 0
		sessions := func() (services.Repository, error) {
			if opened++; opened > 1 {
				return nil, shared.ErrServiceUnavailable
			}
			return repo, nil
		}

		display := &tu.RecordingDisplay{}
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessions, PipelineOpts{Display: display})
		if _, err := p.Run(context.Background(), IDSource([]string{"demo:1"})); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if !display.Aborted() {
			t.Error("expected display to be aborted")
		}
	})

	t.Run("Runs Once", func(t *testing.T) {
		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(threeObjects()), PipelineOpts{})
		if _, err := p.Run(context.Background(), IDSource([]string{"demo:1"})); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := p.Run(context.Background(), IDSource([]string{"demo:1"})); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Discovery", func(t *testing.T) {
		repo := threeObjects()
		repo.Object("demo:2").Profile.ContentModels = []string{"info:fedora/demo:ImageCModel"}

		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{})
		sum, err := p.Run(context.Background(), DiscoverySource(context.Background(), repo, "demo:ImageCModel"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sum.ObjectsQueued != 1 || sum.Missing != 1 {
			t.Errorf("expected only demo:2 to be discovered, got %+v", sum)
		}
	})

	t.Run("Discovery Failure", func(t *testing.T) {
		repo := threeObjects()
		repo.DiscoverErr = shared.ErrServiceUnavailable

		p := NewPipeline(NewValidateStrategy(ValidateOpts{}), sessionsFor(repo), PipelineOpts{})
		sum, err := p.Run(context.Background(), DiscoverySource(context.Background(), repo, ""))
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if sum.ObjectsProcessed != 3 {
			t.Errorf("expected objects found before the failure to be processed, got %d", sum.ObjectsProcessed)
		}
	})
}

func TestResolveSource(t *testing.T) {
	repo := threeObjects()

	t.Run("Explicit IDs", func(t *testing.T) {
		src, err := ResolveSource(context.Background(), []string{"demo:2", "demo:1", "demo:2"}, "ignored.txt", sessionsFor(repo), "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if src.Total != 2 {
			t.Errorf("expected duplicates removed, got total %d", src.Total)
		}
		var got []string
		for pid := range src.PIDs {
			got = append(got, pid)
		}
		if len(got) != 2 || got[0] != "demo:2" || got[1] != "demo:1" {
			t.Errorf("unexpected order %v", got)
		}
	})

	t.Run("ID File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "pids.txt")
		if err := os.WriteFile(path, []byte("# objects\ndemo:1\n\ndemo:3\ndemo:1\n"), 0644); err != nil {
			t.Fatalf("failed to write id file: %v", err)
		}
		src, err := ResolveSource(context.Background(), nil, path, sessionsFor(repo), "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if src.Total != 2 {
			t.Errorf("expected 2 ids, got %d", src.Total)
		}
	})

	t.Run("Discovery", func(t *testing.T) {
		src, err := ResolveSource(context.Background(), []string{" "}, "", sessionsFor(repo), "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if src.Total != 0 {
			t.Errorf("expected unknown total for discovery, got %d", src.Total)
		}
		n := 0
		for range src.PIDs {
			n++
		}
		if n != 3 {
			t.Errorf("expected 3 discovered objects, got %d", n)
		}
	})
}
