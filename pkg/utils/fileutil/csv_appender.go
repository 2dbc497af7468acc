package fileutil

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// CSVOption is a functional option for CSVAppender.
type CSVOption[T any] func(*CSVAppender[T])

// WithHeader fixes the column order. Without it the header is taken from an
// existing file or from the keys of the first record, sorted.
func WithHeader[T any](columns ...string) CSVOption[T] {
	return func(ca *CSVAppender[T]) {
		if len(columns) > 0 {
			ca.header = append([]string(nil), columns...)
		}
	}
}

type CSVAppender[T any] struct {
	file          *os.File
	bufWriter     *bufio.Writer
	csvWriter     *csv.Writer
	header        []string
	headerWritten bool
	mu            sync.Mutex
}

// NewCSVAppender opens filePath for writing rows. In appendMode an existing
// file keeps its content and its header row is reused.
func NewCSVAppender[T any](filePath string, appendMode bool, opts ...CSVOption[T]) (*CSVAppender[T], error) {
	var f *os.File
	var err error
	if appendMode {
		f, err = os.OpenFile(filePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open CSV file in append mode: %w", err)
		}
	} else {
		f, err = os.Create(filePath)
		if err != nil {
			return nil, fmt.Errorf("create CSV file: %w", err)
		}
	}
	bufWriter := bufio.NewWriter(f)
	ca := &CSVAppender[T]{
		file:      f,
		bufWriter: bufWriter,
		csvWriter: csv.NewWriter(bufWriter),
	}
	for _, opt := range opts {
		opt(ca)
	}
	if appendMode {
		existing, err := readHeader(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		if existing != nil {
			ca.header = existing
			ca.headerWritten = true
		}
	}
	return ca, nil
}

func readHeader(f *os.File) ([]string, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat CSV file: %w", err)
	}
	if info.Size() == 0 {
		return nil, nil
	}
	reader := csv.NewReader(io.NewSectionReader(f, 0, info.Size()))
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	return header, nil
}

// Header returns the columns rows are written in.
func (ca *CSVAppender[T]) Header() []string {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	return append([]string(nil), ca.header...)
}

func (ca *CSVAppender[T]) Append(record T) error {
	return ca.AppendBatch([]T{record})
}

func (ca *CSVAppender[T]) AppendBatch(records []T) error {
	ca.mu.Lock()
	defer ca.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	if !ca.headerWritten {
		if len(ca.header) == 0 {
			ca.header = ExtractCSVHeader(records[0])
		}
		if err := ca.csvWriter.Write(ca.header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		ca.headerWritten = true
	}

	for _, rec := range records {
		row, err := BuildCSVRow(ca.header, rec)
		if err != nil {
			return fmt.Errorf("failed to build CSV row: %w", err)
		}
		if err := ca.csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	ca.csvWriter.Flush()
	if err := ca.csvWriter.Error(); err != nil {
		return fmt.Errorf("csv writer flush error: %w", err)
	}
	return ca.bufWriter.Flush()
}

func (ca *CSVAppender[T]) Close() error {
	ca.mu.Lock()
	defer ca.mu.Unlock()
	ca.csvWriter.Flush()
	if err := ca.csvWriter.Error(); err != nil {
		return err
	}
	if err := ca.bufWriter.Flush(); err != nil {
		return err
	}
	return ca.file.Close()
}
