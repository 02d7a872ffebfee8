// Package output renders a detection summary and run metrics.
package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"filetally/config"
	"filetally/detect"
	"filetally/logger"
	"filetally/systeminfo"
	"filetally/tally"
)

// SchemaVersion identifies the layout of json and csv reports.
const SchemaVersion = "1.0"

type Metrics struct {
	StartTime    string `json:"start_time"`
	EndTime      string `json:"end_time"`
	TotalFiles   int    `json:"total_files"`
	FilesScanned int    `json:"files_scanned"`
	FilesSkipped int    `json:"files_skipped"`
	ReadErrors   int    `json:"read_errors"`
	Interrupted  bool   `json:"interrupted,omitempty"`
}

// Writer emits one report per run. The destination is opened by New so that
// an unwritable output path fails before the scan starts.
type Writer struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	format  string
	sysInfo *systeminfo.SystemInfo
	metrics *Metrics
	otel    *otelExporter
	written bool
}

func New(cfg *config.Config, sysInfo *systeminfo.SystemInfo, m *Metrics) (*Writer, error) {
	format := "text"
	name := ""
	if cfg != nil {
		format = strings.ToLower(strings.TrimSpace(cfg.OutputFormat))
		name = cfg.OutputFileName
	}
	switch format {
	case "":
		format = "text"
	case "text", "json", "csv":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	w := &Writer{format: format, sysInfo: sysInfo, metrics: m}
	var out io.Writer = os.Stdout
	if name != "" {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open output %s: %w", name, err)
		}
		w.file = f
		out = f
	}
	w.buf = bufio.NewWriterSize(out, 64*1024)

	if otel, err := newOtelExporter(cfg); err != nil {
		logger.Warnf("OTEL export disabled: %v", err)
	} else if otel != nil {
		logger.Debugf("Exporting summary to %s", otel.Endpoint())
		w.otel = otel
	}
	return w, nil
}

func (w *Writer) SetMetrics(m Metrics) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.metrics = &m
}

// WriteSummary renders entries, already in report order, followed by the
// unknown-content hints when there are any. A Writer accepts one summary,
// which is also sent to the OTLP endpoint when one is configured.
func (w *Writer) WriteSummary(entries []tally.Entry, hints []tally.LabelCount) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.written {
		return fmt.Errorf("summary already written")
	}
	w.written = true

	var err error
	switch w.format {
	case "json":
		err = w.writeJSON(entries, hints)
	case "csv":
		err = w.writeCSV(entries, hints)
	default:
		err = writeText(w.buf, entries, hints)
	}
	if err != nil {
		return err
	}
	w.otel.emitSummary(w.sysInfo, entries, hints, w.metrics)
	return w.buf.Flush()
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.otel.Shutdown()
	w.otel = nil
	err := w.buf.Flush()
	if w.file != nil {
		if serr := w.file.Sync(); err == nil {
			err = serr
		}
		if cerr := w.file.Close(); err == nil {
			err = cerr
		}
		w.file = nil
	}
	return err
}

func writeText(out io.Writer, entries []tally.Entry, hints []tally.LabelCount) error {
	for _, e := range entries {
		if _, err := fmt.Fprintf(out, "%d - %s\n", e.Count, e.Record); err != nil {
			return err
		}
	}
	if len(hints) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(out, "\nUnknown content hints:"); err != nil {
		return err
	}
	for _, h := range hints {
		if _, err := fmt.Fprintf(out, "%d - %s\n", h.Count, h.Label); err != nil {
			return err
		}
	}
	return nil
}

type resultRow struct {
	Kind        detect.Kind   `json:"kind"`
	Count       int64         `json:"count"`
	Description string        `json:"description"`
	Record      detect.Record `json:"record,omitempty"`
}

type report struct {
	SchemaVersion string                 `json:"schema_version"`
	SystemInfo    *systeminfo.SystemInfo `json:"system_info,omitempty"`
	Metrics       *Metrics               `json:"metrics,omitempty"`
	Results       []resultRow            `json:"results"`
	UnknownHints  []tally.LabelCount     `json:"unknown_hints,omitempty"`
}

func newResultRow(e tally.Entry) resultRow {
	row := resultRow{Kind: e.Record.Kind(), Count: e.Count, Description: e.Record.String()}
	if row.Kind != detect.KindUnknown {
		row.Record = e.Record
	}
	return row
}

func (w *Writer) writeJSON(entries []tally.Entry, hints []tally.LabelCount) error {
	doc := report{
		SchemaVersion: SchemaVersion,
		SystemInfo:    w.sysInfo,
		Metrics:       w.metrics,
		Results:       make([]resultRow, 0, len(entries)),
		UnknownHints:  hints,
	}
	for _, e := range entries {
		doc.Results = append(doc.Results, newResultRow(e))
	}
	data, err := jsonMarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

var csvHeader = []string{
	"record_type",
	"schema_version",
	"kind",
	"count",
	"description",
	"record",
	"system_info",
	"metrics",
}

func (w *Writer) writeCSV(entries []tally.Entry, hints []tally.LabelCount) error {
	cw := csv.NewWriter(w.buf)
	rows := [][]string{csvHeader}
	if w.sysInfo != nil {
		rows = append(rows, csvRow("system_info", "", "", "", "", jsonString(w.sysInfo), ""))
	}
	for _, e := range entries {
		r := newResultRow(e)
		rows = append(rows, csvRow("result", r.Kind.String(), strconv.FormatInt(r.Count, 10), r.Description, jsonString(r.Record), "", ""))
	}
	for _, h := range hints {
		rows = append(rows, csvRow("unknown_hint", detect.KindUnknown.String(), strconv.FormatInt(h.Count, 10), h.Label, "", "", ""))
	}
	if w.metrics != nil {
		rows = append(rows, csvRow("metrics", "", "", "", "", "", jsonString(w.metrics)))
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("encode csv report: %w", err)
	}
	return nil
}

func csvRow(recordType, kind, count, description, record, sysInfo, metrics string) []string {
	return []string{recordType, SchemaVersion, kind, count, description, record, sysInfo, metrics}
}

func jsonString(value any) string {
	if value == nil {
		return ""
	}
	data, err := jsonMarshal(value)
	if err != nil {
		return ""
	}
	return string(data)
}
