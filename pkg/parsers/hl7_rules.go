package parsers

import (
	"strings"

	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// Every rule receives the full pipe split of one trimmed line, with the
// segment identifier at index 0. Rules assign with set (last segment wins)
// unless noted.
type (
	orlineRule func(r *ORLineRecord, f []string)
	wishRule   func(r *WISHRecord, f []string)
)

var orlineRules = map[string]orlineRule{
	"PID": orlinePID,
	"PV1": orlinePV1,
	"SCH": orlineSCH,
	"OBX": orlineOBX,
	"AIL": orlineAIL,
	"PV2": orlinePV2,
}

var wishRules = map[string]wishRule{
	"MSH": wishMSH,
	"PID": wishPID,
}

// extractors is the rule set of each variant. Adding a variant means adding
// an entry here.
var extractors = map[Variant]func(lines []string) Details{
	VariantORLine: extractORLine,
	VariantWISH:   extractWISH,
}

// ParseDetails extracts the structured record of v from text. Variants
// without rules yield a value with no attributes.
func ParseDetails(text string, v Variant) Details {
	extract, ok := extractors[v]
	if !ok {
		return emptyDetails{}
	}
	return extract(Lines(text))
}

// ParseDetailsString dispatches on a source name. Unknown names yield an empty
// record.
func ParseDetailsString(text, source string) utils.Record {
	v, _ := ParseVariant(source)
	return ToRecord(ParseDetails(text, v))
}

// ParseDetailsBatch extracts one record per document, tagged with the file
// name and the source name.
func ParseDetailsBatch(docs []Document, v Variant) []utils.Record {
	records := make([]utils.Record, 0, len(docs))
	for _, doc := range docs {
		rec := ToRecord(ParseDetails(doc.Text, v))
		records = append(records, TagRecord(rec, doc.File, v.String()))
	}
	return records
}

func ruleFields(line string) []string {
	return SplitFields(strings.TrimSpace(line))
}

func extractORLine(lines []string) Details {
	rec := &ORLineRecord{}
	for _, line := range lines {
		f := ruleFields(line)
		if rule, ok := orlineRules[f[0]]; ok {
			rule(rec, f)
		}
	}
	return rec
}

func extractWISH(lines []string) Details {
	rec := &WISHRecord{}
	for _, line := range lines {
		f := ruleFields(line)
		if rule, ok := wishRules[f[0]]; ok {
			rule(rec, f)
		}
	}
	return rec
}

func orlinePID(r *ORLineRecord, f []string) {
	if len(f) > 2 {
		set(&r.PatientID, f[2])
	}
}

func orlinePV1(r *ORLineRecord, f []string) {
	if len(f) > 2 {
		set(&r.Admission, f[2])
	}
	if len(f) > 18 {
		set(&r.StayID, f[18])
	}
}

func orlineSCH(r *ORLineRecord, f []string) {
	if len(f) > 1 {
		id, _, _ := strings.Cut(f[1], "^")
		set(&r.OperationID, id)
	}
	if len(f) > 11 {
		components := strings.Split(f[11], "^")
		if len(components) > 3 {
			if date, ok := FormatDate(components[3]); ok {
				set(&r.OperationDate, date)
			}
		}
	}
}

func orlineOBX(r *ORLineRecord, f []string) {
	if len(f) > 1 && f[1] == "2" && len(f) > 5 {
		set(&r.ServiceCode, f[5])
	}
}

// orlineAIL reads AIL-4. A value such as "x.ABC^^^DEF^GHI" carries the
// service code after the first '.' and the service name after "^^^".
func orlineAIL(r *ORLineRecord, f []string) {
	if len(f) <= 3 {
		return
	}
	location := f[3]
	_, after, found := strings.Cut(location, ".")
	if !found {
		set(&r.ServiceCode, location)
		set(&r.Service, "")
		return
	}
	code, rest, hasService := strings.Cut(after, "^^^")
	set(&r.ServiceCode, strings.TrimSpace(code))
	if !hasService {
		set(&r.Service, "")
		return
	}
	name, _, _ := strings.Cut(rest, "^")
	set(&r.Service, "^^^"+strings.TrimSpace(name))
}

// orlinePV2 keeps the first note only.
func orlinePV2(r *ORLineRecord, _ []string) {
	setOnce(&r.HospitalisationType, HospitalisationNote)
}

func wishMSH(r *WISHRecord, f []string) {
	if len(f) <= 6 {
		return
	}
	date, ok := FormatDate(f[6])
	if !ok {
		return
	}
	set(&r.MessageDate, date)
	hour, _ := FormatTime(f[6])
	set(&r.MessageTime, hour)
}

func wishPID(r *WISHRecord, f []string) {
	if len(f) > 3 {
		set(&r.PatientID, f[3])
	}
	if len(f) > 7 {
		if date, ok := FormatDate(f[7]); ok {
			set(&r.BirthDate, date)
		}
	}
	if len(f) > 8 {
		set(&r.Sex, f[8])
	}
}
