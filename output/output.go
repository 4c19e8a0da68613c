package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"javaidx/config"
	"javaidx/logger"
	"javaidx/scanner"
	"javaidx/systeminfo"
)

// SchemaVersion is the version of the JSON report layout.
const SchemaVersion = "1.0"

type Metrics struct {
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	FilesFound       int    `json:"files_found"`
	FilesDecoded     int    `json:"files_decoded"`
	FilesFailed      int    `json:"files_failed"`
	FilesUnsupported int    `json:"files_unsupported"`
	FilesSkipped     int    `json:"files_skipped"`
}

// Apply copies scan counters into m.
func (m *Metrics) Apply(stats scanner.Stats) {
	m.FilesFound = stats.Found
	m.FilesDecoded = stats.Decoded
	m.FilesFailed = stats.Failed
	m.FilesUnsupported = stats.Unsupported
	m.FilesSkipped = stats.Skipped
}

// Writer renders decoded entries. The console view goes to stdout; the
// delimited table or JSON report goes to the output file when one is set,
// and JSON goes to stdout otherwise.
type Writer struct {
	cfg     *config.Config
	sysInfo *systeminfo.SystemInfo
	metrics *Metrics
	otel    *otelLogger
	stdout  io.Writer

	file *os.File
	buf  *bufio.Writer
}

func New(cfg *config.Config, sysInfo *systeminfo.SystemInfo, m *Metrics) (*Writer, error) {
	w := &Writer{
		cfg:     cfg,
		sysInfo: sysInfo,
		metrics: m,
		stdout:  os.Stdout,
	}
	otel, err := newOtelLogger(cfg)
	if err != nil {
		logger.Warnf("OTEL export disabled: %v", err)
	} else {
		w.otel = otel
	}
	if cfg.OutputFileName != "" {
		f, err := os.OpenFile(cfg.OutputFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return nil, fmt.Errorf("open output file: %w", err)
		}
		w.file = f
		w.buf = bufio.NewWriterSize(f, 256*1024)
	}
	return w, nil
}

func (w *Writer) format() string {
	if strings.EqualFold(w.cfg.OutputFormat, "json") {
		return "json"
	}
	return "csv"
}

// Write sorts entries by the configured key and renders them once.
func (w *Writer) Write(entries []*scanner.Entry, failures []scanner.Failure) error {
	SortEntries(entries, w.cfg.SortBy)
	if w.metrics != nil && w.metrics.EndTime == "" {
		w.metrics.EndTime = time.Now().Format(time.RFC3339)
	}

	for _, e := range entries {
		w.otel.Emit(recordTypeEntry, e)
	}

	if w.format() == "csv" && !w.cfg.Quiet {
		if err := WriteConsole(w.stdout, entries); err != nil {
			return fmt.Errorf("write console output: %w", err)
		}
	}

	var dest io.Writer = w.buf
	if w.buf == nil {
		if w.format() == "csv" {
			return nil
		}
		dest = w.stdout
	}

	switch w.format() {
	case "json":
		err := WriteJSON(dest, &Report{
			SchemaVersion: SchemaVersion,
			SystemInfo:    w.sysInfo,
			Records:       entries,
			Failures:      failures,
			Metrics:       w.metrics,
		})
		if err != nil {
			return fmt.Errorf("write json report: %w", err)
		}
	default:
		if err := WriteTable(dest, entries, w.cfg.DelimiterRune); err != nil {
			return fmt.Errorf("write delimited output: %w", err)
		}
	}
	if w.buf != nil {
		return w.buf.Flush()
	}
	return nil
}

// Close stamps the end time, exports the run summary and closes the output
// file.
func (w *Writer) Close() error {
	if w.metrics != nil {
		if w.metrics.EndTime == "" {
			w.metrics.EndTime = time.Now().Format(time.RFC3339)
		}
		w.otel.Emit(recordTypeMetrics, w.metrics)
	}
	w.otel.Shutdown()
	if w.file == nil {
		return nil
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return err
	}
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
