// Package render formats retrieval and inspection results for the CLI tools:
// lipgloss-styled tables for terminals, plus CSV and JSON writers for piping
// into files.
package render

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/archman/goarchappl/archiver"
)

// Format selects the output rendering.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatTable:
		return FormatTable, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported output format %q (want table, csv, or json)", s)
}

// Output opens the destination for rendered results: the named file, or
// stdout when path is empty. The caller owns Close.
func Output(path string) (io.WriteCloser, error) {
	if strings.TrimSpace(path) == "" {
		return os.Stdout, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return f, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	pvStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const displayTimeLayout = "2006-01-02T15:04:05.000Z"

// WriteSeriesSet renders a multi-PV retrieval result. PVs are emitted in
// lexical order for stable output.
func WriteSeriesSet(w io.Writer, f Format, set map[string]*archiver.TimeSeries) error {
	pvs := make([]string, 0, len(set))
	for pv := range set {
		pvs = append(pvs, pv)
	}
	sort.Strings(pvs)

	switch f {
	case FormatCSV:
		return writeSeriesCSV(w, pvs, set)
	case FormatJSON:
		return writeSeriesJSON(w, pvs, set)
	default:
		return writeSeriesTable(w, pvs, set)
	}
}

func writeSeriesTable(w io.Writer, pvs []string, set map[string]*archiver.TimeSeries) error {
	header := fmt.Sprintf("%-26s %16s %8s %9s", "time", "val", "status", "severity")
	for _, pv := range pvs {
		series := set[pv]
		title := pv
		if series.Meta.EGU != "" {
			title += mutedStyle.Render(" ["+series.Meta.EGU+"]")
		}
		if _, err := fmt.Fprintln(w, pvStyle.Render(title)); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, headerStyle.Render(header)); err != nil {
			return err
		}
		for _, s := range series.Samples {
			line := fmt.Sprintf("%-26s %16s %8d %9d",
				s.Time.UTC().Format(displayTimeLayout), s.ValString(), s.Status, s.Severity)
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d samples", len(series.Samples)))); err != nil {
			return err
		}
	}
	return nil
}

func writeSeriesCSV(w io.Writer, pvs []string, set map[string]*archiver.TimeSeries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time", "pv", "val", "status", "severity"}); err != nil {
		return err
	}
	for _, pv := range pvs {
		for _, s := range set[pv].Samples {
			record := []string{
				s.Time.UTC().Format(displayTimeLayout),
				pv,
				s.ValString(),
				strconv.Itoa(s.Status),
				strconv.Itoa(s.Severity),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// jsonSample is the stable JSON projection of a sample.
type jsonSample struct {
	Time     time.Time       `json:"time"`
	Val      json.RawMessage `json:"val"`
	Status   int             `json:"status"`
	Severity int             `json:"severity"`
}

func writeSeriesJSON(w io.Writer, pvs []string, set map[string]*archiver.TimeSeries) error {
	out := make(map[string][]jsonSample, len(pvs))
	for _, pv := range pvs {
		samples := make([]jsonSample, 0, len(set[pv].Samples))
		for _, s := range set[pv].Samples {
			samples = append(samples, jsonSample{
				Time:     s.Time.UTC(),
				Val:      s.Val,
				Status:   s.Status,
				Severity: s.Severity,
			})
		}
		out[pv] = samples
	}
	return WriteJSON(w, out)
}

// WritePVList renders a PV listing.
func WritePVList(w io.Writer, f Format, pvs []string) error {
	switch f {
	case FormatCSV:
		cw := csv.NewWriter(w)
		for _, pv := range pvs {
			if err := cw.Write([]string{pv}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case FormatJSON:
		return WriteJSON(w, pvs)
	default:
		for _, pv := range pvs {
			if _, err := fmt.Fprintln(w, pv); err != nil {
				return err
			}
		}
		return nil
	}
}

// WritePVStatuses renders a status map as a table or JSON.
func WritePVStatuses(w io.Writer, f Format, statuses map[string]archiver.PVStatus) error {
	if f == FormatJSON {
		return WriteJSON(w, statuses)
	}
	pvs := make([]string, 0, len(statuses))
	width := 2
	for pv := range statuses {
		pvs = append(pvs, pv)
		if len(pv) > width {
			width = len(pv)
		}
	}
	sort.Strings(pvs)

	header := fmt.Sprintf("%-*s %-18s %-12s %-10s", width, "pv", "status", "appliance", "monitored")
	if _, err := fmt.Fprintln(w, headerStyle.Render(header)); err != nil {
		return err
	}
	for _, pv := range pvs {
		s := statuses[pv]
		line := fmt.Sprintf("%-*s %-18s %-12s %-10s", width, pv, s.Status, s.Appliance, s.IsMonitored)
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSON emits indented JSON, the default rendering for inspection
// payloads.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
