package fileutil

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/oarkflow/convert"
	"github.com/oarkflow/json"

	"github.com/oarkflow/hl7analyzer/pkg/contracts"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// NewAppender returns a CSV or JSON appender for file. header fixes the CSV
// column order and is ignored for JSON. Appending to a JSON file skips
// records it already holds.
func NewAppender(file, format string, appendMode bool, header ...string) (contracts.Appender[utils.Record], error) {
	switch strings.ToLower(format) {
	case "json":
		var opts []JSONOption[utils.Record]
		if appendMode {
			opts = append(opts, WithDedup[utils.Record]())
		}
		return NewJSONAppender[utils.Record](file, appendMode, opts...)
	case "csv":
		return NewCSVAppender[utils.Record](file, appendMode, WithHeader[utils.Record](header...))
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", format)
	}
}

// ExtractCSVHeader returns the sorted keys of a record.
func ExtractCSVHeader(rec any) []string {
	if m, ok := rec.(map[string]any); ok {
		return utils.SortedKeys(m)
	}
	return []string{}
}

// BuildCSVRow renders rec in header order. Missing keys and nil values are
// written as empty cells.
func BuildCSVRow(header []string, rec any) ([]string, error) {
	row := make([]string, len(header))
	m, ok := rec.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unsupported CSV record type %T", rec)
	}
	for i, key := range header {
		val, ok := m[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case string:
			row[i] = v
		case int:
			row[i] = strconv.Itoa(v)
		case int64:
			row[i] = strconv.FormatInt(v, 10)
		case float64:
			row[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			if s, ok := convert.ToString(v); ok {
				row[i] = s
			} else {
				row[i] = fmt.Sprintf("%v", v)
			}
		}
	}
	return row, nil
}

// WriteCSV writes a header row followed by one row per record.
func WriteCSV(w io.Writer, header []string, records []utils.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, rec := range records {
		row, err := BuildCSVRow(header, rec)
		if err != nil {
			return err
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes records as an indented JSON array.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
