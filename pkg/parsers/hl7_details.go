package parsers

import (
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// Attribute names shared by the variants.
const (
	AttrPatientID           = "ID PAT"
	AttrAdmission           = "Admission Entree"
	AttrStayID              = "ID Sejour"
	AttrOperationID         = "ID Operation"
	AttrOperationDate       = "Dat Operation"
	AttrServiceCode         = "Cod Service Entree"
	AttrService             = "Service Entree"
	AttrHospitalisationType = "Type d'hospitalisation"
	AttrMessageDate         = "Date Message"
	AttrMessageTime         = "Heure Message"
	AttrBirthDate           = "Date Naissance"
	AttrSex                 = "Sexe"

	// SourceColumn is the record key holding the variant name.
	SourceColumn = "Source HL7"
)

// HospitalisationNote is the fixed note ORLine sets on the first PV2 segment.
// The hospitalisation type itself is carried by PV1-2.
const HospitalisationNote = "(Donnée correcte extraite de PV1-2)"

// Attribute is one extracted name/value pair.
type Attribute struct {
	Name  string
	Value string
}

// Details is the structured record extracted from one message.
type Details interface {
	Variant() Variant
	// Attributes returns the present attributes in schema order.
	Attributes() []Attribute
	// Lookup returns the value of the named attribute.
	Lookup(name string) (string, bool)
}

type namedValue struct {
	name  string
	value *string
}

func present(values []namedValue) []Attribute {
	attrs := make([]Attribute, 0, len(values))
	for _, v := range values {
		if v.value != nil {
			attrs = append(attrs, Attribute{Name: v.name, Value: *v.value})
		}
	}
	return attrs
}

func lookup(values []namedValue, name string) (string, bool) {
	for _, v := range values {
		if v.name == name && v.value != nil {
			return *v.value, true
		}
	}
	return "", false
}

// set assigns v, replacing any earlier value.
func set(dst **string, v string) {
	*dst = &v
}

// setOnce assigns v only when no value is present yet.
func setOnce(dst **string, v string) {
	if *dst == nil {
		*dst = &v
	}
}

// ORLineRecord holds the attributes extracted from an ORLine message.
// Nil fields were not present in the message.
type ORLineRecord struct {
	PatientID           *string
	Admission           *string
	StayID              *string
	OperationID         *string
	OperationDate       *string
	ServiceCode         *string
	Service             *string
	HospitalisationType *string
}

func (r *ORLineRecord) Variant() Variant { return VariantORLine }

func (r *ORLineRecord) values() []namedValue {
	return []namedValue{
		{AttrPatientID, r.PatientID},
		{AttrAdmission, r.Admission},
		{AttrStayID, r.StayID},
		{AttrOperationID, r.OperationID},
		{AttrOperationDate, r.OperationDate},
		{AttrServiceCode, r.ServiceCode},
		{AttrService, r.Service},
		{AttrHospitalisationType, r.HospitalisationType},
	}
}

func (r *ORLineRecord) Attributes() []Attribute { return present(r.values()) }

func (r *ORLineRecord) Lookup(name string) (string, bool) { return lookup(r.values(), name) }

// WISHRecord holds the attributes extracted from a WISH message.
type WISHRecord struct {
	MessageDate *string
	MessageTime *string
	PatientID   *string
	BirthDate   *string
	Sex         *string
}

func (r *WISHRecord) Variant() Variant { return VariantWISH }

func (r *WISHRecord) values() []namedValue {
	return []namedValue{
		{AttrMessageDate, r.MessageDate},
		{AttrMessageTime, r.MessageTime},
		{AttrPatientID, r.PatientID},
		{AttrBirthDate, r.BirthDate},
		{AttrSex, r.Sex},
	}
}

func (r *WISHRecord) Attributes() []Attribute { return present(r.values()) }

func (r *WISHRecord) Lookup(name string) (string, bool) { return lookup(r.values(), name) }

// emptyDetails is returned for variants without rules.
type emptyDetails struct{}

func (emptyDetails) Variant() Variant { return VariantUnknown }

func (emptyDetails) Attributes() []Attribute { return nil }

func (emptyDetails) Lookup(string) (string, bool) { return "", false }

// AttributeNames returns every attribute name v can produce, in schema order.
func AttributeNames(v Variant) []string {
	var values []namedValue
	switch v {
	case VariantORLine:
		values = (&ORLineRecord{}).values()
	case VariantWISH:
		values = (&WISHRecord{}).values()
	}
	names := make([]string, 0, len(values))
	for _, nv := range values {
		names = append(names, nv.name)
	}
	return names
}

// ToRecord returns the present attributes of d as a flat record.
func ToRecord(d Details) utils.Record {
	attrs := d.Attributes()
	rec := make(utils.Record, len(attrs))
	for _, a := range attrs {
		rec[a.Name] = a.Value
	}
	return rec
}

// TagRecord sets the file and source columns on rec and returns it.
func TagRecord(rec utils.Record, fileName, source string) utils.Record {
	rec[FileColumn] = fileName
	rec[SourceColumn] = source
	return rec
}

// RecordColumns returns the column order used when exporting records of v.
func RecordColumns(v Variant) []string {
	return append(AttributeNames(v), FileColumn, SourceColumn)
}
