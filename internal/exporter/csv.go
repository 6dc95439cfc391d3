package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// utf8BOM helps Excel recognize UTF-8
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	writer *csv.Writer
}

// NewStreamWriter writes the optional BOM and the header row to w
func NewStreamWriter(w io.Writer, headers []string, options WriteOptions) (*StreamWriter, error) {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)
	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}
	return &StreamWriter{writer: writer}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes the stream. It does not close the underlying writer.
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	return s.writer.Error()
}

// WriteFile writes headers and records to path atomically: a temp file in
// the same directory is renamed over any previous file.
func WriteFile(path string, headers []string, records [][]string, options WriteOptions) error {
	slog.Debug("Writing CSV file",
		slog.String("file_path", path),
		slog.Int("record_count", len(records)))

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	sw, err := NewStreamWriter(tmp, headers, options)
	if err != nil {
		tmp.Close()
		return err
	}
	for i, record := range records {
		if err := sw.WriteRecord(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := sw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
