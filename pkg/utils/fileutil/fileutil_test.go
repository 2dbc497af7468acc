package fileutil

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

func TestCSVAppenderWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "details.csv")
	app, err := NewCSVAppender[utils.Record](path, false, WithHeader[utils.Record]("ID PAT", "Sexe", "Fichier"))
	if err != nil {
		t.Fatalf("NewCSVAppender returned error: %v", err)
	}
	if err := app.AppendBatch([]utils.Record{
		{"ID PAT": "W1", "Sexe": "F", "Fichier": "a.hl7"},
		{"ID PAT": "W2", "Fichier": "b.hl7", "ignored": 1},
	}); err != nil {
		t.Fatalf("AppendBatch returned error: %v", err)
	}
	if err := app.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "ID PAT,Sexe,Fichier\nW1,F,a.hl7\nW2,,b.hl7\n"
	if string(data) != want {
		t.Fatalf("unexpected CSV:\n%s", data)
	}
}

func TestCSVAppenderAppendModeReusesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	first, err := NewCSVAppender[utils.Record](path, false)
	if err != nil {
		t.Fatalf("NewCSVAppender returned error: %v", err)
	}
	_ = first.Append(utils.Record{"b": "1", "a": "2"})
	_ = first.Close()

	second, err := NewCSVAppender[utils.Record](path, true)
	if err != nil {
		t.Fatalf("NewCSVAppender returned error: %v", err)
	}
	if !reflect.DeepEqual(second.Header(), []string{"a", "b"}) {
		t.Fatalf("expected header from file, got %v", second.Header())
	}
	_ = second.Append(utils.Record{"a": "3", "b": "4"})
	_ = second.Close()

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords returned error: %v", err)
	}
	want := []utils.Record{{"a": "2", "b": "1"}, {"a": "3", "b": "4"}}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("ReadRecords = %v, want %v", records, want)
	}
}

func TestJSONAppender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	app, err := NewJSONAppender[utils.Record](path, false)
	if err != nil {
		t.Fatalf("NewJSONAppender returned error: %v", err)
	}
	_ = app.Append(utils.Record{"ID PAT": "P1"})
	_ = app.AppendBatch([]utils.Record{{"ID PAT": "P2"}, {"ID PAT": "P3"}})
	_ = app.Close()

	records, err := ReadRecords(path)
	if err != nil {
		t.Fatalf("ReadRecords returned error: %v", err)
	}
	if len(records) != 3 || records[2]["ID PAT"] != "P3" {
		t.Fatalf("unexpected records %v", records)
	}

	app, err = NewJSONAppender[utils.Record](path, false)
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	_ = app.Close()
	if records, _ := ReadRecords(path); len(records) != 0 {
		t.Fatalf("expected truncation without append mode, got %v", records)
	}
}

func TestJSONAppenderDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.json")
	app, err := NewJSONAppender[string](path, true, WithDedup[string]())
	if err != nil {
		t.Fatalf("NewJSONAppender returned error: %v", err)
	}
	_ = app.AppendBatch([]string{"P1", "P2", "P1"})
	_ = app.Close()
	app, err = NewJSONAppender[string](path, true, WithDedup[string]())
	if err != nil {
		t.Fatalf("reopen returned error: %v", err)
	}
	_ = app.AppendBatch([]string{"P2", "P3"})
	_ = app.Close()
	data, _ := os.ReadFile(path)
	if got := strings.Count(string(data), `"P`); got != 3 {
		t.Fatalf("expected 3 distinct ids, file is:\n%s", data)
	}
}

func TestJSONAppenderRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"a": 1}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewJSONAppender[utils.Record](path, true); !errors.Is(err, ErrInvalidJSONFile) {
		t.Fatalf("expected ErrInvalidJSONFile, got %v", err)
	}
}

func TestNewAppender(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []string{"csv", "JSON"} {
		app, err := NewAppender(filepath.Join(dir, "out."+strings.ToLower(format)), format, false)
		if err != nil {
			t.Fatalf("NewAppender(%s) returned error: %v", format, err)
		}
		_ = app.Close()
	}
	if _, err := NewAppender(filepath.Join(dir, "out.xml"), "xml", false); err == nil {
		t.Fatalf("expected error for xml")
	}
}

func TestBuildCSVRow(t *testing.T) {
	row, err := BuildCSVRow([]string{"s", "i", "f", "n", "missing"}, map[string]any{"s": "x", "i": 3, "f": 1.5, "n": nil})
	if err != nil {
		t.Fatalf("BuildCSVRow returned error: %v", err)
	}
	if !reflect.DeepEqual(row, []string{"x", "3", "1.5", "", ""}) {
		t.Fatalf("unexpected row %q", row)
	}
	if _, err := BuildCSVRow([]string{"a"}, 42); err == nil {
		t.Fatalf("expected error for non-record input")
	}
}

func TestWriteCSVAndJSON(t *testing.T) {
	var buf bytes.Buffer
	records := []utils.Record{{"a": "1", "b": "x,y"}}
	if err := WriteCSV(&buf, []string{"a", "b"}, records); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}
	if buf.String() != "a,b\n1,\"x,y\"\n" {
		t.Fatalf("unexpected CSV %q", buf.String())
	}
	buf.Reset()
	if err := WriteJSON(&buf, []string{"P1"}); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"P1"`) {
		t.Fatalf("unexpected JSON %q", buf.String())
	}
}
