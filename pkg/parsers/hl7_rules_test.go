package parsers

import (
	"reflect"
	"strings"
	"testing"
)

func orlineMessage() string {
	return strings.Join([]string{
		"MSH|^~\\&|ORLINE|BLOC|||20230115093000||SIU^S12|1|P|2.5",
		segment("SCH", 12, map[int]string{1: "OP123^extra", 11: "^^^20230120083000"}),
		segment("PID", 6, map[int]string{1: "1", 2: "PAT001", 5: "DOE^JOHN"}),
		segment("PV1", 19, map[int]string{1: "1", 2: "I", 18: "SEJ42"}),
		"PV2|1",
		"PV2|2|later",
		segment("OBX", 6, map[int]string{1: "2", 5: "SRV9"}),
		segment("AIL", 4, map[int]string{1: "1", 3: "x.ABC^^^DEF^GHI"}),
	}, "\r\n")
}

func wishMessage() string {
	return strings.Join([]string{
		"MSH|^~\\&|WISH|HOSP|||20230115093000||ADT^A01|42|P|2.5",
		segment("PID", 9, map[int]string{1: "1", 3: "W123", 5: "DOE^JANE", 7: "19800101", 8: "F"}),
	}, "\r")
}

func TestParseDetailsORLine(t *testing.T) {
	details := ParseDetails(orlineMessage(), VariantORLine)
	if details.Variant() != VariantORLine {
		t.Fatalf("unexpected variant %v", details.Variant())
	}
	want := []Attribute{
		{AttrPatientID, "PAT001"},
		{AttrAdmission, "I"},
		{AttrStayID, "SEJ42"},
		{AttrOperationID, "OP123"},
		{AttrOperationDate, "20/01/2023"},
		{AttrServiceCode, "ABC"},
		{AttrService, "^^^DEF"},
		{AttrHospitalisationType, HospitalisationNote},
	}
	if got := details.Attributes(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Attributes() =\n%v\nwant\n%v", got, want)
	}
}

func TestParseDetailsWISH(t *testing.T) {
	rec := ToRecord(ParseDetails(wishMessage(), VariantWISH))
	want := map[string]any{
		AttrMessageDate: "15/01/2023",
		AttrMessageTime: "09:30",
		AttrPatientID:   "W123",
		AttrBirthDate:   "01/01/1980",
		AttrSex:         "F",
	}
	if !reflect.DeepEqual(map[string]any(rec), want) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestWISHShortTimestampClearsTime(t *testing.T) {
	rec := ToRecord(ParseDetails("MSH|^~\\&|WISH|HOSP|||20230115", VariantWISH))
	if rec[AttrMessageDate] != "15/01/2023" {
		t.Fatalf("unexpected date %v", rec[AttrMessageDate])
	}
	if v, ok := rec[AttrMessageTime]; !ok || v != "" {
		t.Fatalf("expected empty time, got %v (present=%v)", v, ok)
	}
	rec = ToRecord(ParseDetails("MSH|^~\\&|WISH|HOSP|||2023", VariantWISH))
	if _, ok := rec[AttrMessageDate]; ok {
		t.Fatalf("short timestamp should not produce a date: %v", rec)
	}
}

func TestAILRule(t *testing.T) {
	cases := []struct {
		field       string
		code, label string
	}{
		{"x.ABC^^^DEF^GHI", "ABC", "^^^DEF"},
		{"NODOT", "NODOT", ""},
		{"x. ABC ", "ABC", ""},
		{"a.b.c^^^ D ", "b.c", "^^^D"},
		{"x.^^^", "", "^^^"},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			details := ParseDetails("AIL|1||"+tc.field, VariantORLine)
			code, _ := details.Lookup(AttrServiceCode)
			label, ok := details.Lookup(AttrService)
			if code != tc.code || !ok || label != tc.label {
				t.Fatalf("AIL %q gave code=%q service=%q", tc.field, code, label)
			}
		})
	}
}

func TestSCHRule(t *testing.T) {
	details := ParseDetails("SCH|OP123^extra", VariantORLine)
	if v, _ := details.Lookup(AttrOperationID); v != "OP123" {
		t.Fatalf("ID Operation = %q", v)
	}
	if _, ok := details.Lookup(AttrOperationDate); ok {
		t.Fatalf("short SCH should not produce a date")
	}
	short := segment("SCH", 12, map[int]string{1: "OP", 11: "^^20230101"})
	if _, ok := ParseDetails(short, VariantORLine).Lookup(AttrOperationDate); ok {
		t.Fatalf("SCH-11 with fewer than four components should not produce a date")
	}
}

func TestOBXRuleRequiresValueType(t *testing.T) {
	details := ParseDetails(segment("OBX", 6, map[int]string{1: "1", 5: "SRV"}), VariantORLine)
	if _, ok := details.Lookup(AttrServiceCode); ok {
		t.Fatalf("OBX with set id other than 2 should be ignored")
	}
	details = ParseDetails("OBX|2|CE", VariantORLine)
	if _, ok := details.Lookup(AttrServiceCode); ok {
		t.Fatalf("short OBX should be ignored")
	}
}

func TestLaterSegmentsOverwrite(t *testing.T) {
	text := "PID|1|FIRST\rPID|1|SECOND\rPV2\rPV2|x"
	details := ParseDetails(text, VariantORLine)
	if v, _ := details.Lookup(AttrPatientID); v != "SECOND" {
		t.Fatalf("expected last PID to win, got %q", v)
	}
	if v, _ := details.Lookup(AttrHospitalisationType); v != HospitalisationNote {
		t.Fatalf("unexpected note %q", v)
	}
}

func TestRuleEngineIgnoresShortAndUnknownSegments(t *testing.T) {
	text := "ZZZ|1|2|3\rPID\rPV1|1\rEVN|A01"
	if attrs := ParseDetails(text, VariantORLine).Attributes(); len(attrs) != 0 {
		t.Fatalf("expected no attributes, got %v", attrs)
	}
	if attrs := ParseDetails("", VariantWISH).Attributes(); len(attrs) != 0 {
		t.Fatalf("expected no attributes for empty text, got %v", attrs)
	}
}

func TestRuleEngineTrimsLines(t *testing.T) {
	details := ParseDetails("  PID|1|PAT  \r", VariantORLine)
	if v, _ := details.Lookup(AttrPatientID); v != "PAT" {
		t.Fatalf("expected trimmed line, got %q", v)
	}
}

func TestUnknownVariantYieldsEmptyRecord(t *testing.T) {
	details := ParseDetails(orlineMessage(), VariantUnknown)
	if details.Variant() != VariantUnknown || len(details.Attributes()) != 0 {
		t.Fatalf("unexpected details %+v", details)
	}
	if rec := ParseDetailsString(orlineMessage(), "Cerner"); len(rec) != 0 {
		t.Fatalf("expected empty record for unknown source, got %v", rec)
	}
	if rec := ParseDetailsString(wishMessage(), "wish"); rec[AttrPatientID] != "W123" {
		t.Fatalf("source names should match without case, got %v", rec)
	}
}

func TestParseDetailsIsIdempotent(t *testing.T) {
	for _, v := range Variants() {
		first := ToRecord(ParseDetails(orlineMessage(), v))
		second := ToRecord(ParseDetails(orlineMessage(), v))
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("%s: parsing twice differed", v)
		}
	}
}

func TestParseDetailsBatchTagsRecords(t *testing.T) {
	docs := []Document{{File: "a.hl7", Text: wishMessage()}, {File: "b.hl7", Text: ""}}
	records := ParseDetailsBatch(docs, VariantWISH)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0][FileColumn] != "a.hl7" || records[0][SourceColumn] != "WISH" {
		t.Fatalf("unexpected tags %v", records[0])
	}
	if len(records[1]) != 2 {
		t.Fatalf("empty message should only carry tags, got %v", records[1])
	}
}

func TestRecordColumns(t *testing.T) {
	want := []string{AttrMessageDate, AttrMessageTime, AttrPatientID, AttrBirthDate, AttrSex, FileColumn, SourceColumn}
	if got := RecordColumns(VariantWISH); !reflect.DeepEqual(got, want) {
		t.Fatalf("RecordColumns(WISH) = %q", got)
	}
	if got := RecordColumns(VariantUnknown); !reflect.DeepEqual(got, []string{FileColumn, SourceColumn}) {
		t.Fatalf("RecordColumns(unknown) = %q", got)
	}
}

func TestFormatDate(t *testing.T) {
	if v, ok := FormatDate("20230115093000"); !ok || v != "15/01/2023" {
		t.Fatalf("FormatDate = %q, %v", v, ok)
	}
	if v, ok := FormatDate("99999999"); !ok || v != "99/99/9999" {
		t.Fatalf("positional reformat expected, got %q", v)
	}
	if _, ok := FormatDate("2023011"); ok {
		t.Fatalf("7 characters should not format")
	}
	if v, ok := FormatTime("20230115093000"); !ok || v != "09:30" {
		t.Fatalf("FormatTime = %q, %v", v, ok)
	}
	if _, ok := FormatTime("20230115093"); ok {
		t.Fatalf("11 characters should not format a time")
	}
}

func TestParseVariant(t *testing.T) {
	cases := map[string]Variant{"ORLine": VariantORLine, "orline": VariantORLine, " WISH ": VariantWISH, "HL7": VariantUnknown}
	for name, want := range cases {
		got, _ := ParseVariant(name)
		if got != want {
			t.Fatalf("ParseVariant(%q) = %v, want %v", name, got, want)
		}
	}
	if _, err := LookupVariant("nope"); err == nil {
		t.Fatalf("expected error for unknown variant")
	}
	if VariantUnknown.Known() || !VariantWISH.Known() {
		t.Fatalf("unexpected Known() results")
	}
}
