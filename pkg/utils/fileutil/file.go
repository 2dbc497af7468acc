package fileutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/json"

	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// ReadRecords loads a CSV or JSON export back into records.
func ReadRecords(filename string) ([]utils.Record, error) {
	var records []utils.Record
	err := StreamRecords(filename, func(rec utils.Record) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// StreamRecords calls fn for each record of a CSV or JSON file, stopping at
// the first error fn returns.
func StreamRecords(filename string, fn func(utils.Record) error) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return streamJSON(file, fn)
	case ".csv":
		return streamCSV(file, fn)
	default:
		return fmt.Errorf("unsupported file extension: %s", ext)
	}
}

func streamJSON(r io.Reader, fn func(utils.Record) error) error {
	decoder := json.NewDecoder(r)
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("read JSON array: %w", err)
	}
	for decoder.More() {
		var rec utils.Record
		if err := decoder.Decode(&rec); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func streamCSV(r io.Reader, fn func(utils.Record) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		rec := make(utils.Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
