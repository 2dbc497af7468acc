package parsers

// FormatDate rewrites the leading YYYYMMDD of value as DD/MM/YYYY. Values
// shorter than 8 characters report false. No calendar check is made.
func FormatDate(value string) (string, bool) {
	r := []rune(value)
	if len(r) < 8 {
		return "", false
	}
	return string(r[6:8]) + "/" + string(r[4:6]) + "/" + string(r[0:4]), true
}

// FormatTime rewrites characters 8..12 of a YYYYMMDDHHMM value as HH:MM.
// Values shorter than 12 characters report false.
func FormatTime(value string) (string, bool) {
	r := []rune(value)
	if len(r) < 12 {
		return "", false
	}
	return string(r[8:10]) + ":" + string(r[10:12]), true
}
