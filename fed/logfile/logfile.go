// Package logfile writes session records to a CSV file, one row per event,
// flushed after every row so a power cut loses at most the row in flight.
package logfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Sink is an append-only CSV log. It implements fed.RecordSink.
type Sink struct {
	file   *os.File
	writer *csv.Writer
	path   string
	width  int
}

// FileName returns the log file name for a device and session start, e.g.
// FED007_030426_1a2b3c4d.CSV.
func FileName(deviceID int, month, day, year int, sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("FED%03d_%02d%02d%02d_%s.CSV", deviceID, month, day, year%100, short)
}

// Create opens dir/name for appending and writes the header row.
func Create(dir, name string, header []string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	s := &Sink{file: file, writer: csv.NewWriter(file), path: path, width: len(header)}
	if err := s.write(header); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}
	return s, nil
}

// Append writes one record and flushes it to the file.
func (s *Sink) Append(fields []string) error {
	if len(fields) != s.width {
		return fmt.Errorf("record has %d fields, header has %d", len(fields), s.width)
	}
	if err := s.write(fields); err != nil {
		return fmt.Errorf("writing CSV row: %w", err)
	}
	return nil
}

func (s *Sink) write(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return err
	}
	return s.file.Sync()
}

// Path returns the file path.
func (s *Sink) Path() string { return s.path }

// Close flushes and closes the file.
func (s *Sink) Close() error {
	s.writer.Flush()
	return errors.Join(s.writer.Error(), s.file.Close())
}

// Read loads a log file back as its header and rows.
func Read(path string) (header []string, rows [][]string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	header, err = reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("reading CSV header: %w", err)
	}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("reading CSV row: %w", err)
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}
