package parsers

import (
	"errors"
	"fmt"

	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// FileColumn is the column holding the originating file name.
const FileColumn = "Fichier"

// ErrEmptyInput reports a message without lines, or a table built from no rows.
var ErrEmptyInput = errors.New("hl7: empty input")

// TableRow is the fields of one segment line tagged with its file.
type TableRow struct {
	File   string
	Fields []string
}

// Table is a rectangular view of segment lines. Every row has exactly
// Width() fields; Columns holds "Field 1".."Field N" followed by FileColumn.
type Table struct {
	Columns []string
	Rows    []TableRow
}

// Width returns the number of positional field columns.
func (t Table) Width() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns) - 1
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Records flattens the table into records keyed by column label.
func (t Table) Records() []utils.Record {
	records := make([]utils.Record, 0, len(t.Rows))
	width := t.Width()
	for _, row := range t.Rows {
		rec := make(utils.Record, width+1)
		for i := 0; i < width; i++ {
			rec[t.Columns[i]] = row.Fields[i]
		}
		rec[FileColumn] = row.File
		records = append(records, rec)
	}
	return records
}

// ColumnLabel returns the label of the 0-based field column i.
func ColumnLabel(i int) string {
	return fmt.Sprintf("Field %d", i+1)
}

// BuildTable pads rows to the widest one and labels the columns. Input rows
// are not modified.
func BuildTable(rows []TableRow) (Table, error) {
	if len(rows) == 0 {
		return Table{}, ErrEmptyInput
	}
	maxFields := 0
	for _, row := range rows {
		if len(row.Fields) > maxFields {
			maxFields = len(row.Fields)
		}
	}
	padded := make([]TableRow, len(rows))
	for i, row := range rows {
		fields := make([]string, maxFields)
		copy(fields, row.Fields)
		padded[i] = TableRow{File: row.File, Fields: fields}
	}
	columns := make([]string, 0, maxFields+1)
	for i := 0; i < maxFields; i++ {
		columns = append(columns, ColumnLabel(i))
	}
	columns = append(columns, FileColumn)
	return Table{Columns: columns, Rows: padded}, nil
}

// TableRows tokenizes text into unpadded rows tagged with fileName.
func TableRows(text, fileName string) []TableRow {
	segments := Tokenize(text)
	rows := make([]TableRow, 0, len(segments))
	for _, seg := range segments {
		rows = append(rows, TableRow{File: fileName, Fields: seg.Fields})
	}
	return rows
}

// ParseFullTable decomposes one message into a table.
func ParseFullTable(text, fileName string) (Table, error) {
	table, err := BuildTable(TableRows(text, fileName))
	if err != nil {
		return Table{}, fmt.Errorf("full table %s: %w", fileName, err)
	}
	return table, nil
}

// ParseFullTables decomposes every document into one table. Documents with no
// lines are skipped and reported in the returned error slice, which is
// indexed like docs (nil entries for documents that produced rows).
func ParseFullTables(docs []Document) (Table, []error) {
	errs := make([]error, len(docs))
	var rows []TableRow
	for i, doc := range docs {
		docRows := TableRows(doc.Text, doc.File)
		if len(docRows) == 0 {
			errs[i] = fmt.Errorf("full table %s: %w", doc.File, ErrEmptyInput)
			continue
		}
		rows = append(rows, docRows...)
	}
	table, err := BuildTable(rows)
	if err != nil {
		return Table{}, errs
	}
	return table, errs
}

// MergeTables concatenates tables in order and re-pads every row to the
// widest table.
func MergeTables(tables ...Table) (Table, error) {
	var rows []TableRow
	for _, t := range tables {
		rows = append(rows, t.Rows...)
	}
	return BuildTable(rows)
}
