package models

import (
	"fmt"
	"strings"
	"time"
)

// Task identifies one unit of work: a datastream of an object, optionally pinned to a version.
//
// Tasks are values and are never modified after creation. Duplicate tasks are legal and are processed independently.
type Task struct {
	PID     string    // Parent object
	DSID    string    // Datastream within the object
	Version time.Time // Version date; zero means the current version
}

// NewTask creates a [Task] for the current version of a datastream.
func NewTask(pid, dsid string) Task {
	return Task{PID: pid, DSID: dsid}
}

// NewVersionTask creates a [Task] pinned to the datastream version created at version.
func NewVersionTask(pid, dsid string, version time.Time) Task {
	return Task{PID: pid, DSID: dsid, Version: version.UTC()}
}

// Versioned reports whether the task targets a specific historical version.
func (t Task) Versioned() bool {
	return !t.Version.IsZero()
}

func (t Task) String() string {
	if t.Versioned() {
		return fmt.Sprintf("%s/%s@%s", t.PID, t.DSID, FormatDate(t.Version))
	}
	return t.PID + "/" + t.DSID
}

// Status is the outcome of validating one datastream checksum.
type Status string

const (
	StatusOK      Status = "ok"
	StatusInvalid Status = "invalid"
	StatusMissing Status = "missing"
	StatusError   Status = "error"
)

// Result is produced by a worker for exactly one [Task] and consumed once by the reporter.
type Result interface {
	Parent() string  // Parent returns the object pid
	Item() string    // Item returns the datastream id
	Outcome() string // Outcome returns a short machine-readable outcome
	Detail() string  // Detail returns an optional human-readable explanation
}

// ValidationResult records the outcome of checking one datastream checksum.
type ValidationResult struct {
	PID           string
	DSID          string
	Date          time.Time
	Status        Status
	MIMEType      string
	Versionable   bool
	ControlGroup  string
	ContentModels []string
	Err           error
}

func (r ValidationResult) Parent() string  { return r.PID }
func (r ValidationResult) Item() string    { return r.DSID }
func (r ValidationResult) Outcome() string { return string(r.Status) }

func (r ValidationResult) Detail() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}

// RepairResult records whether a datastream was re-saved with a new checksum.
type RepairResult struct {
	PID   string
	DSID  string
	Saved bool
	Error string // Empty when the save succeeded or no save was attempted
}

func (r RepairResult) Parent() string { return r.PID }
func (r RepairResult) Item() string   { return r.DSID }
func (r RepairResult) Detail() string { return r.Error }

func (r RepairResult) Outcome() string {
	switch {
	case r.Error != "":
		return "error"
	case r.Saved:
		return "saved"
	default:
		return "skipped"
	}
}

// FormatDate renders t the way the repository prints datastream dates.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// JoinModels renders a content model list for single-line output.
func JoinModels(models []string) string {
	return strings.Join(models, ", ")
}

var (
	_ Result = ValidationResult{}
	_ Result = RepairResult{}
)
