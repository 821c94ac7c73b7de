package formatter

import (
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/fixity/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// SummaryLine is the one-line totals of a run.
func SummaryLine(s models.Summary) string {
	line := fmt.Sprintf("objects=%d, datastreams=%d", s.ObjectsProcessed, s.Datastreams)
	if s.Versions != s.Datastreams {
		line += fmt.Sprintf(", versions=%d", s.Versions)
	}

	switch s.Mode {
	case models.ModeRepair:
		line += fmt.Sprintf(", updated=%d, errors=%d", s.Updated, s.Errors)
	default:
		line += fmt.Sprintf(", ok=%d, invalid=%d, missing=%d, errors=%d", s.OK, s.Invalid, s.Missing, s.Errors)
	}
	if s.Interrupted {
		line += " (interrupted)"
	}
	return line
}

// SummaryTable renders the mode-specific counters of a run.
func SummaryTable(s models.Summary) string {
	rows := [][]string{
		{"Objects queued", count(s.ObjectsQueued)},
		{"Objects processed", count(s.ObjectsProcessed)},
		{"Datastreams", count(s.Datastreams)},
		{"Versions", count(s.Versions)},
	}

	switch s.Mode {
	case models.ModeRepair:
		rows = append(rows,
			[]string{"Updated", count(s.Updated)},
			[]string{"Unchanged", count(s.Skipped)},
			[]string{"Errors", count(s.Errors)},
		)
	default:
		rows = append(rows,
			[]string{"OK", count(s.OK)},
			[]string{"Invalid", count(s.Invalid)},
			[]string{"Missing", count(s.Missing)},
			[]string{"Errors", count(s.Errors)},
		)
	}

	if elapsed := s.Elapsed(); elapsed > 0 {
		rows = append(rows, []string{"Elapsed", elapsed.Round(time.Millisecond).String()})
	}
	if s.Interrupted {
		rows = append(rows, []string{"Interrupted", "yes"})
	}

	title := s.Mode.String()
	if title == "" {
		title = "summary"
	}
	return renderTable([]string{title, ""}, rows, []columnAlignment{alignLeft, alignRight})
}

// RunsTable renders stored runs, newest first as given.
func RunsTable(runs []*models.Run) string {
	headers := []string{"#", "ID", "Mode", "Status", "Started", "Objects", "Datastreams", "Problems", "Updated"}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		s := r.Summary
		problems := s.Invalid + s.Missing + s.Errors
		if s.Mode == models.ModeRepair {
			problems = s.Errors
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Sequence),
			r.ID,
			s.Mode.String(),
			string(r.Status),
			s.Started.Local().Format("2006-01-02 15:04:05"),
			count(s.ObjectsProcessed),
			count(s.Datastreams),
			count(problems),
			count(s.Updated),
		})
	}
	return renderTable(headers, rows, []columnAlignment{
		alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight,
	})
}

func count(n int64) string {
	return strconv.FormatInt(n, 10)
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
