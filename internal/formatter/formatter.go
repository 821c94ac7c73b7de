// package formatter writes validation records as CSV and renders run summaries as tables
package formatter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/desertthunder/fixity/internal/shared"
	"github.com/gofrs/flock"
)

// CSVHeaders are the columns of a validation report.
var CSVHeaders = []string{"pid", "datastream id", "date", "status", "mimetype", "versionable", "control group", "content models"}

// ResultWriter appends validation records to a CSV file.
//
// The file is guarded by an advisory lock on a sibling ".lock" file for as long as the writer is open,
// so two runs cannot interleave records in one report.
type ResultWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	csv    *csv.Writer
	lock   *flock.Flock
	closed bool
}

// NewResultWriter locks and truncates path, then writes the header row.
func NewResultWriter(path string) (*ResultWriter, error) {
	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrOutputLocked, path)
	}

	file, err := os.Create(path)
	if err != nil {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w := &ResultWriter{path: path, file: file, csv: csv.NewWriter(file), lock: lock}
	if err := w.csv.Write(CSVHeaders); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	return w, nil
}

// Path returns the output file path.
func (w *ResultWriter) Path() string {
	return w.path
}

// WriteResult appends one record and flushes it to disk.
func (w *ResultWriter) WriteResult(res models.ValidationResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("%w: output %s is closed", shared.ErrInvalidArgument, w.path)
	}

	if err := w.csv.Write(ValidationRecord(res)); err != nil {
		return fmt.Errorf("failed to write CSV record: %w", err)
	}
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// Close flushes the file and releases the lock. Closing twice is a no-op.
func (w *ResultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	w.csv.Flush()
	errs := []error{w.csv.Error(), w.file.Close(), w.lock.Unlock()}
	if err := os.Remove(w.lock.Path()); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidationRecord converts a result into a CSV row matching [CSVHeaders].
func ValidationRecord(res models.ValidationResult) []string {
	return []string{
		res.PID,
		res.DSID,
		models.FormatDate(res.Date),
		string(res.Status),
		res.MIMEType,
		strconv.FormatBool(res.Versionable),
		res.ControlGroup,
		models.JoinModels(res.ContentModels),
	}
}
