package parsers

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestParseFullTablePadsRows(t *testing.T) {
	text := "MSH|^~\\&|APP|FAC\rPID|1\rPV1"
	table, err := ParseFullTable(text, "a.hl7")
	if err != nil {
		t.Fatalf("ParseFullTable returned error: %v", err)
	}
	if table.Width() != 4 {
		t.Fatalf("expected width 4, got %d", table.Width())
	}
	wantCols := []string{"Field 1", "Field 2", "Field 3", "Field 4", "Fichier"}
	if !reflect.DeepEqual(table.Columns, wantCols) {
		t.Fatalf("unexpected columns %q", table.Columns)
	}
	for i, row := range table.Rows {
		if len(row.Fields) != 4 {
			t.Fatalf("row %d has %d fields", i, len(row.Fields))
		}
		if row.File != "a.hl7" {
			t.Fatalf("row %d file = %q", i, row.File)
		}
	}
	if !reflect.DeepEqual(table.Rows[2].Fields, []string{"PV1", "", "", ""}) {
		t.Fatalf("unexpected padding %q", table.Rows[2].Fields)
	}
}

func TestParseFullTableRoundTrip(t *testing.T) {
	lines := []string{
		"MSH|^~\\&|WISH|HOSP|||20230115093000",
		"PID|1||W123||DOE^JANE||19800101|F",
		"NTE|1",
	}
	table, err := ParseFullTable(strings.Join(lines, "\r\n"), "msg.txt")
	if err != nil {
		t.Fatalf("ParseFullTable returned error: %v", err)
	}
	for i, line := range lines {
		want := SplitFields(line)
		got := table.Rows[i].Fields
		if !reflect.DeepEqual(got[:len(want)], want) {
			t.Fatalf("row %d = %q, want prefix %q", i, got, want)
		}
		for _, pad := range got[len(want):] {
			if pad != "" {
				t.Fatalf("row %d padded with %q", i, pad)
			}
		}
	}
}

func TestParseFullTableEmptyInput(t *testing.T) {
	_, err := ParseFullTable("  \r\n ", "empty.hl7")
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := BuildTable(nil); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput from BuildTable, got %v", err)
	}
}

func TestBuildTableDoesNotModifyInput(t *testing.T) {
	rows := []TableRow{{File: "a", Fields: []string{"PID", "1"}}, {File: "a", Fields: []string{"PV1"}}}
	if _, err := BuildTable(rows); err != nil {
		t.Fatalf("BuildTable returned error: %v", err)
	}
	if len(rows[1].Fields) != 1 {
		t.Fatalf("input row was padded in place: %q", rows[1].Fields)
	}
}

func TestParseFullTablesUnifiesWidthAcrossFiles(t *testing.T) {
	docs := []Document{
		{File: "short.hl7", Text: "PID|1"},
		{File: "empty.hl7", Text: "\n"},
		{File: "long.hl7", Text: "PV1|1|I|||||||||||||||||SEJ"},
	}
	table, errs := ParseFullTables(docs)
	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !errors.Is(errs[1], ErrEmptyInput) {
		t.Fatalf("expected empty document to be reported, got %v", errs[1])
	}
	if table.Width() != 19 {
		t.Fatalf("expected width 19, got %d", table.Width())
	}
	if table.Len() != 2 || table.Rows[0].File != "short.hl7" || table.Rows[1].File != "long.hl7" {
		t.Fatalf("unexpected rows %+v", table.Rows)
	}
	for _, row := range table.Rows {
		if len(row.Fields) != table.Width() {
			t.Fatalf("row %s has %d fields", row.File, len(row.Fields))
		}
	}
}

func TestMergeTablesRepads(t *testing.T) {
	a, _ := ParseFullTable("PID|1", "a")
	b, _ := ParseFullTable("PV1|1|2|3", "b")
	merged, err := MergeTables(a, b)
	if err != nil {
		t.Fatalf("MergeTables returned error: %v", err)
	}
	if merged.Width() != 4 {
		t.Fatalf("expected width 4, got %d", merged.Width())
	}
	if !reflect.DeepEqual(merged.Rows[0].Fields, []string{"PID", "1", "", ""}) {
		t.Fatalf("unexpected first row %q", merged.Rows[0].Fields)
	}
}

func TestTableRecords(t *testing.T) {
	table, _ := ParseFullTable("PID|1||X", "f.hl7")
	records := table.Records()
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	rec := records[0]
	if rec["Field 1"] != "PID" || rec["Field 4"] != "X" || rec[FileColumn] != "f.hl7" {
		t.Fatalf("unexpected record %v", rec)
	}
	if len(rec) != 5 {
		t.Fatalf("expected 5 columns, got %d", len(rec))
	}
}
