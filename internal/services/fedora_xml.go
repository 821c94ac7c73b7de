package services

import (
	"strings"
	"time"

	"github.com/desertthunder/fixity/internal/models"
)

// fedoraObjectProfile is the body of GET /objects/{pid}?format=xml
type fedoraObjectProfile struct {
	PID        string   `xml:"pid,attr"`
	Label      string   `xml:"objLabel"`
	Models     []string `xml:"objModels>model"`
	CreateDate string   `xml:"objCreateDate"`
	ModDate    string   `xml:"objLastModDate"`
	State      string   `xml:"objState"`
}

// fedoraDatastreamList is the body of GET /objects/{pid}/datastreams?format=xml
type fedoraDatastreamList struct {
	PID         string `xml:"pid,attr"`
	Datastreams []struct {
		DSID     string `xml:"dsid,attr"`
		Label    string `xml:"label,attr"`
		MIMEType string `xml:"mimeType,attr"`
	} `xml:"datastream"`
}

// fedoraDatastreamProfile is the body of GET /objects/{pid}/datastreams/{dsid}?format=xml
// and the repeated element of a datastream history.
type fedoraDatastreamProfile struct {
	PID           string `xml:"pid,attr"`
	DSID          string `xml:"dsID,attr"`
	Label         string `xml:"dsLabel"`
	VersionID     string `xml:"dsVersionID"`
	CreateDate    string `xml:"dsCreateDate"`
	State         string `xml:"dsState"`
	MIMEType      string `xml:"dsMIME"`
	ControlGroup  string `xml:"dsControlGroup"`
	Size          int64  `xml:"dsSize"`
	Versionable   string `xml:"dsVersionable"`
	ChecksumType  string `xml:"dsChecksumType"`
	Checksum      string `xml:"dsChecksum"`
	ChecksumValid string `xml:"dsChecksumValid"`
}

// fedoraDatastreamHistory is the body of GET /objects/{pid}/datastreams/{dsid}/history?format=xml
type fedoraDatastreamHistory struct {
	Profiles []fedoraDatastreamProfile `xml:"datastreamProfile"`
}

// fedoraFindResult is the body of GET /objects?resultFormat=xml
type fedoraFindResult struct {
	Token string   `xml:"listSession>token"`
	PIDs  []string `xml:"resultList>objectFields>pid"`
}

func (p fedoraObjectProfile) toModel(pid string) *models.ObjectProfile {
	if p.PID != "" {
		pid = p.PID
	}
	cmodels := make([]string, 0, len(p.Models))
	for _, m := range p.Models {
		if m = strings.TrimSpace(m); m != "" {
			cmodels = append(cmodels, m)
		}
	}
	return &models.ObjectProfile{
		PID:           pid,
		Label:         p.Label,
		State:         p.State,
		ContentModels: cmodels,
		Created:       parseFedoraDate(p.CreateDate),
		Modified:      parseFedoraDate(p.ModDate),
	}
}

func (p fedoraDatastreamProfile) toModel(pid, dsid string) *models.DatastreamProfile {
	if p.PID != "" {
		pid = p.PID
	}
	if p.DSID != "" {
		dsid = p.DSID
	}
	return &models.DatastreamProfile{
		PID:          pid,
		DSID:         dsid,
		Label:        p.Label,
		VersionID:    p.VersionID,
		MIMEType:     p.MIMEType,
		ControlGroup: p.ControlGroup,
		Versionable:  strings.EqualFold(strings.TrimSpace(p.Versionable), "true"),
		State:        p.State,
		Size:         p.Size,
		ChecksumType: strings.TrimSpace(p.ChecksumType),
		Checksum:     strings.TrimSpace(p.Checksum),
		Created:      parseFedoraDate(p.CreateDate),
	}
}

// parseFedoraDate parses the repository's UTC timestamps (e.g. 2012-01-31T17:09:46.421Z).
// Unparseable values yield the zero time.
func parseFedoraDate(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
