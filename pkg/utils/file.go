package utils

import (
	"fmt"

	"github.com/oarkflow/convert"
)

type Record = map[string]any

// CloneRecord returns a shallow copy of rec.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}

// StringValue reads key from rec as a string. Missing keys and nil values
// report false.
func StringValue(rec Record, key string) (string, bool) {
	val, ok := rec[key]
	if !ok || val == nil {
		return "", false
	}
	if s, ok := val.(string); ok {
		return s, true
	}
	if s, ok := convert.ToString(val); ok {
		return s, true
	}
	return fmt.Sprintf("%v", val), true
}

// Columns returns the keys of records in first-seen order, with preferred
// keys placed first when any record carries them.
func Columns(records []Record, preferred ...string) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, key := range preferred {
		for _, rec := range records {
			if _, ok := rec[key]; ok {
				seen[key] = struct{}{}
				cols = append(cols, key)
				break
			}
		}
	}
	for _, rec := range records {
		for _, key := range SortedKeys(rec) {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			cols = append(cols, key)
		}
	}
	return cols
}
