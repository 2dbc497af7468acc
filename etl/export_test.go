package etl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/oarkflow/hl7analyzer/pkg/config"
	"github.com/oarkflow/hl7analyzer/pkg/parsers"
	"github.com/oarkflow/hl7analyzer/pkg/utils/fileutil"
)

func TestExportWritesEveryView(t *testing.T) {
	p := newPipeline(t, "WISH")
	batch, err := p.Run(context.Background(), messages(wishA, wishB, wishC))
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	dir := t.TempDir()
	out := config.OutputConfig{
		Table:    filepath.Join(dir, "table.csv"),
		Details:  filepath.Join(dir, "details.json"),
		Patients: filepath.Join(dir, "patients.csv"),
	}
	if err := Export(context.Background(), batch, out); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	table, err := os.ReadFile(out.Table)
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	header := strings.SplitN(string(table), "\n", 2)[0]
	if !strings.HasPrefix(header, "Field 1,Field 2,") || !strings.HasSuffix(header, "Field 12,Fichier") {
		t.Fatalf("unexpected table header %q", header)
	}

	details, err := fileutil.ReadRecords(out.Details)
	if err != nil {
		t.Fatalf("read details: %v", err)
	}
	if len(details) != 3 || details[1][parsers.AttrPatientID] != "W2" {
		t.Fatalf("unexpected details %v", details)
	}

	patients, err := fileutil.ReadRecords(out.Patients)
	if err != nil {
		t.Fatalf("read patients: %v", err)
	}
	if len(patients) != 2 || patients[0][parsers.AttrPatientID] != "W1" || patients[1][parsers.AttrPatientID] != "W2" {
		t.Fatalf("unexpected patients %v", patients)
	}
}

func TestExportAppendSkipsKnownJSONRecords(t *testing.T) {
	p := newPipeline(t, "WISH")
	out := config.OutputConfig{Patients: filepath.Join(t.TempDir(), "patients.json"), Append: true}
	first, _ := p.Run(context.Background(), messages(wishA))
	if err := Export(context.Background(), first, out); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	second, _ := p.Run(context.Background(), messages(wishA, wishB))
	if err := Export(context.Background(), second, out); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	patients, err := fileutil.ReadRecords(out.Patients)
	if err != nil {
		t.Fatalf("read patients: %v", err)
	}
	if len(patients) != 2 || patients[0][parsers.AttrPatientID] != "W1" || patients[1][parsers.AttrPatientID] != "W2" {
		t.Fatalf("expected W1 and W2 once each, got %v", patients)
	}
}

func TestExportWithoutPatientIDs(t *testing.T) {
	p := newPipeline(t, "WISH")
	batch, _ := p.Run(context.Background(), messages("EVN|A01"))
	path := filepath.Join(t.TempDir(), "patients.json")
	if err := Export(context.Background(), batch, config.OutputConfig{Patients: path}); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("patients file should not be written, stat err = %v", err)
	}
}
