package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("failed to enable foreign keys: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("NextSequence failed: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for a table without a sequence")
	}
}

func TestRunRepository(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run, err := repo.Create(models.ModeValidate, started)
		if err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID == "" || run.Sequence != 1 || run.Status != models.RunRunning {
			t.Errorf("unexpected run %+v", run)
		}

		got, err := repo.Get(run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Summary.Mode != models.ModeValidate || !got.Summary.Started.Equal(started) {
			t.Errorf("unexpected stored run %+v", got)
		}
		if !got.Summary.Finished.IsZero() {
			t.Error("expected running run to have no finish time")
		}
	})

	t.Run("Create Rejects Unknown Mode", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewRunRepository(db).Create(models.Mode(9), started); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Finish", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run, _ := repo.Create(models.ModeRepair, started)

		summary := models.Summary{
			Mode:             models.ModeRepair,
			Interrupted:      true,
			ObjectsQueued:    4,
			ObjectsProcessed: 4,
			Datastreams:      9,
			Versions:         9,
			Updated:          2,
			Skipped:          6,
			Errors:           1,
			Finished:         started.Add(time.Minute),
		}
		if err := repo.Finish(run.ID, summary); err != nil {
			t.Fatalf("failed to finish run: %v", err)
		}

		got, err := repo.Get(run.ID)
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunInterrupted || !got.Summary.Interrupted {
			t.Errorf("expected interrupted run, got %s", got.Status)
		}
		if got.Summary.Updated != 2 || got.Summary.Skipped != 6 || got.Summary.Errors != 1 || got.Summary.Datastreams != 9 {
			t.Errorf("unexpected counters %+v", got.Summary)
		}
		if got.Summary.Elapsed() != time.Minute {
			t.Errorf("expected elapsed 1m, got %v", got.Summary.Elapsed())
		}
	})

	t.Run("Finish Unknown Run", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewRunRepository(db).Finish("missing", models.Summary{}); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Get Unknown Run", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := NewRunRepository(db).Get("missing"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		for i := range 3 {
			if _, err := repo.Create(models.ModeValidate, started.Add(time.Duration(i)*time.Hour)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.List(0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 3 || runs[0].Sequence != 3 || runs[2].Sequence != 1 {
			t.Errorf("expected newest first, got %d runs", len(runs))
		}

		limited, err := repo.List(2)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d", len(limited))
		}
	})

	t.Run("Results", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run, _ := repo.Create(models.ModeValidate, started)
		recorder := NewRunRecorder(repo, run.ID)

		results := []models.Result{
			models.ValidationResult{PID: "demo:1", DSID: "DC", Status: models.StatusOK},
			models.ValidationResult{PID: "demo:1", DSID: "IMAGE", Status: models.StatusMissing},
			models.ValidationResult{PID: "demo:2", DSID: "DC", Status: models.StatusError, Err: shared.ErrServiceUnavailable},
		}
		for _, res := range results {
			if err := recorder.RecordResult(res); err != nil {
				t.Fatalf("failed to record result: %v", err)
			}
		}

		if n, _ := repo.CountResults(run.ID, ""); n != 3 {
			t.Errorf("expected 3 results, got %d", n)
		}
		if n, _ := repo.CountResults(run.ID, "missing"); n != 1 {
			t.Errorf("expected 1 missing result, got %d", n)
		}

		var detail sql.NullString
		if err := db.QueryRow(`SELECT detail FROM results WHERE outcome = 'error'`).Scan(&detail); err != nil {
			t.Fatalf("failed to read detail: %v", err)
		}
		if detail.String != shared.ErrServiceUnavailable.Error() {
			t.Errorf("expected error detail, got %q", detail.String)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewRunRepository(db)
		run, _ := repo.Create(models.ModeValidate, started)
		if err := repo.SaveResult(run.ID, models.ValidationResult{PID: "demo:1", DSID: "DC", Status: models.StatusOK}); err != nil {
			t.Fatalf("failed to save result: %v", err)
		}

		if err := repo.Delete(run.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := repo.Get(run.ID); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound after delete, got %v", err)
		}
		if n, _ := repo.CountResults(run.ID, ""); n != 0 {
			t.Errorf("expected results to be deleted, got %d", n)
		}
		if err := repo.Delete(run.ID); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound for a second delete, got %v", err)
		}
	})

	t.Run("Results Require Run", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		err := NewRunRepository(db).SaveResult("missing", models.RepairResult{PID: "demo:1", DSID: "DC", Saved: true})
		if err == nil {
			t.Error("expected foreign key violation for an unknown run")
		}
	})
}
