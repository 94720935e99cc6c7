package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/energy-modelling-hub/water-value-database/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file, replacing any existing file
func (w *CSVWriter) WriteCSV(path string, options WriteOptions) error {
	w.logger.Debug("Writing CSV file",
		slog.String("path", path),
		slog.Int("record_count", len(options.Records)))

	stream, err := w.createStream(path, options.Headers, options.BOMPrefix)
	if err != nil {
		return err
	}

	for i, record := range options.Records {
		if err := stream.WriteRecord(record); err != nil {
			stream.file.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return stream.Close()
}

// WriteSimpleCSV writes a CSV file with headers, records and a BOM
func (w *CSVWriter) WriteSimpleCSV(path string, headers []string, records [][]string) error {
	return w.WriteCSV(path, WriteOptions{
		Headers:   headers,
		Records:   records,
		BOMPrefix: true,
	})
}

// WriteTable writes a whole table, NULL cells as empty fields
func (w *CSVWriter) WriteTable(path string, table *domain.Table) error {
	return w.WriteSimpleCSV(path, table.Columns, table.Records())
}

// WriteSummaryTable writes a computed summary table to dir as <ID>.csv and
// returns the file path. The Total row, if any, comes last.
func (w *CSVWriter) WriteSummaryTable(dir string, table *domain.SummaryTable) (string, error) {
	if table.Failed() {
		return "", fmt.Errorf("summary table %s was not computed: %s", table.ID, table.Error)
	}
	path := filepath.Join(dir, table.FileName())
	if err := w.WriteSimpleCSV(path, table.Headers, table.Records()); err != nil {
		return "", fmt.Errorf("write %s: %w", table.ID, err)
	}
	return path, nil
}

// StreamWriter provides streaming CSV writing for row-at-a-time producers
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer with a BOM
func (w *CSVWriter) CreateStreamWriter(path string, headers []string) (*StreamWriter, error) {
	return w.createStream(path, headers, true)
}

func (w *CSVWriter) createStream(path string, headers []string, bom bool) (*StreamWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if bom {
		if _, err := file.Write(utf8BOM); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)

	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write headers: %w", err)
		}
	}

	return &StreamWriter{
		file:   file,
		writer: writer,
	}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
