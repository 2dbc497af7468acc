package etl

import (
	"errors"
	"time"

	"github.com/oarkflow/hl7analyzer/pkg/parsers"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// ErrNoPatientIDs reports records that carry no patient identifier column.
var ErrNoPatientIDs = errors.New("no patient identifier column in records")

// BatchResult is the outcome of one pipeline run.
type BatchResult struct {
	ID      string          `json:"id"`
	Source  string          `json:"source"`
	Variant parsers.Variant `json:"-"`
	// Items holds one entry per input message, in input order.
	Items []ItemResult `json:"items"`
	// Records holds the extracted record of every message with status ok.
	Records  []utils.Record `json:"records"`
	Table    parsers.Table  `json:"-"`
	Duration time.Duration  `json:"duration"`
}

// Count returns how many items have status s.
func (b *BatchResult) Count(s Status) int {
	n := 0
	for _, item := range b.Items {
		if item.Status == s {
			n++
		}
	}
	return n
}

// Failures returns the items that were skipped or failed.
func (b *BatchResult) Failures() []ItemResult {
	var out []ItemResult
	for _, item := range b.Items {
		if item.Status != StatusOK {
			out = append(out, item)
		}
	}
	return out
}

// Columns returns the export column order of Records.
func (b *BatchResult) Columns() []string {
	return utils.Columns(b.Records, parsers.RecordColumns(b.Variant)...)
}

// PatientIDs returns the distinct patient identifiers of the batch.
func (b *BatchResult) PatientIDs() ([]string, error) {
	return DistinctPatientIDs(b.Records)
}

// RecordsForPatient returns the records whose patient identifier is id.
func (b *BatchResult) RecordsForPatient(id string) []utils.Record {
	return RecordsForPatient(b.Records, id)
}

// DistinctPatientIDs returns the patient identifiers of records without
// duplicates, in first-seen order. Records lacking the identifier are
// ignored; an empty identifier is kept as a value. ErrNoPatientIDs is
// returned when no record carries the identifier at all.
func DistinctPatientIDs(records []utils.Record) ([]string, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	found := false
	for _, rec := range records {
		id, ok := utils.StringValue(rec, parsers.AttrPatientID)
		if !ok {
			continue
		}
		found = true
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if !found {
		return nil, ErrNoPatientIDs
	}
	return ids, nil
}

// RecordsForPatient filters records on the patient identifier.
func RecordsForPatient(records []utils.Record, id string) []utils.Record {
	var out []utils.Record
	for _, rec := range records {
		if v, ok := utils.StringValue(rec, parsers.AttrPatientID); ok && v == id {
			out = append(out, rec)
		}
	}
	return out
}
