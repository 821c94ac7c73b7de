// package models defines the data model for checksum audits
package models

import (
	"strings"
	"time"
)

// Checksum types understood by the repository. [ChecksumDisabled] means the
// repository does not compute or store a checksum for the datastream.
const (
	ChecksumDisabled = "DISABLED"
	ChecksumMD5      = "MD5"
	ChecksumSHA1     = "SHA-1"
	ChecksumSHA256   = "SHA-256"
	ChecksumSHA384   = "SHA-384"
	ChecksumSHA512   = "SHA-512"

	// ChecksumNone is the value reported for a datastream without a stored checksum.
	ChecksumNone = "none"
)

// ChecksumTypes lists the checksum algorithms a datastream can be configured with.
var ChecksumTypes = []string{ChecksumMD5, ChecksumSHA1, ChecksumSHA256, ChecksumSHA384, ChecksumSHA512}

// IsChecksumType reports whether name is a supported (non-disabled) checksum algorithm.
func IsChecksumType(name string) bool {
	for _, t := range ChecksumTypes {
		if t == name {
			return true
		}
	}
	return false
}

// Mode selects which operation a run performs.
type Mode int

const (
	ModeValidate Mode = iota
	ModeRepair
)

func (m Mode) String() string {
	switch m {
	case ModeValidate:
		return "validate"
	case ModeRepair:
		return "repair"
	default:
		return ""
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode converts a mode name into a [Mode].
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "validate":
		return ModeValidate, true
	case "repair":
		return ModeRepair, true
	default:
		return ModeValidate, false
	}
}

// ObjectProfile is the subset of a digital object's profile used by audits.
type ObjectProfile struct {
	PID           string
	Label         string
	State         string
	ContentModels []string
	Created       time.Time
	Modified      time.Time
}

// DatastreamProfile describes one datastream (optionally one version of it).
type DatastreamProfile struct {
	PID          string
	DSID         string
	Label        string
	VersionID    string
	MIMEType     string
	ControlGroup string
	Versionable  bool
	State        string
	Size         int64
	ChecksumType string
	Checksum     string
	Created      time.Time
}

// HasChecksum reports whether the datastream carries a usable checksum.
//
// A disabled checksum type, or a stored value of "none", both count as no checksum.
func (d DatastreamProfile) HasChecksum() bool {
	if d.ChecksumType == "" || strings.EqualFold(d.ChecksumType, ChecksumDisabled) {
		return false
	}
	v := strings.TrimSpace(d.Checksum)
	return v != "" && !strings.EqualFold(v, ChecksumNone)
}

// DatastreamVersion identifies one entry in a datastream's version history.
type DatastreamVersion struct {
	VersionID string
	Created   time.Time
}
