package utils

import "sort"

// SortedKeys returns the keys of rec in lexical order.
func SortedKeys(rec Record) []string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
