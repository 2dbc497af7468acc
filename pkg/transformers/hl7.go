package transformers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/oarkflow/convert"

	"github.com/oarkflow/hl7analyzer/pkg/contracts"
	"github.com/oarkflow/hl7analyzer/pkg/parsers"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// HL7TransformerOptions controls how raw message records are turned into
// extracted records.
type HL7TransformerOptions struct {
	// Source names the variant whose rules apply.
	Source string
	// InputField holds the raw message text or bytes.
	InputField string
	// FileField holds the originating path; only its base name is kept.
	FileField string
	// KeepInput leaves InputField and FileField on the output record.
	KeepInput bool
}

// HL7Transformer replaces a raw message record with the record extracted by
// the source rules, tagged with file and source columns.
type HL7Transformer struct {
	variant parsers.Variant
	source  string
	opts    HL7TransformerOptions
}

// NewHL7Transformer builds a transformer with sane defaults.
func NewHL7Transformer(opts HL7TransformerOptions) *HL7Transformer {
	if opts.InputField == "" {
		opts.InputField = "raw_message"
	}
	if opts.FileField == "" {
		opts.FileField = "source_path"
	}
	t := &HL7Transformer{source: opts.Source, opts: opts}
	if v, ok := parsers.ParseVariant(opts.Source); ok {
		t.variant = v
		t.source = v.String()
	}
	return t
}

// Name returns the human friendly transformer name.
func (t *HL7Transformer) Name() string {
	return "HL7Transformer"
}

// Transform decodes the message stored in InputField and returns the
// extracted record. A record without InputField that already carries the
// source column was extracted upstream and is returned unchanged.
func (t *HL7Transformer) Transform(_ context.Context, rec utils.Record) (utils.Record, error) {
	raw, ok := rec[t.opts.InputField]
	if !ok {
		if _, extracted := rec[parsers.SourceColumn]; extracted {
			return rec, nil
		}
		return nil, fmt.Errorf("hl7 transformer: missing input field %s", t.opts.InputField)
	}
	content, err := toBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("hl7 transformer: %w", err)
	}
	var fileName string
	if path, ok := utils.StringValue(rec, t.opts.FileField); ok {
		fileName = filepath.Base(path)
	}
	doc, err := parsers.DecodeMessage(contracts.Message{FileName: fileName, Content: content})
	if err != nil {
		return nil, fmt.Errorf("hl7 transformer: %w", err)
	}
	out := parsers.TagRecord(parsers.ToRecord(parsers.ParseDetails(doc.Text, t.variant)), fileName, t.source)
	if t.opts.KeepInput {
		for k, v := range rec {
			if _, exists := out[k]; !exists {
				out[k] = v
			}
		}
	}
	return out, nil
}

func toBytes(val any) ([]byte, error) {
	switch v := val.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return nil, fmt.Errorf("input is nil")
	}
	if s, ok := convert.ToString(val); ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unsupported input type %T", val)
}

var _ contracts.Transformer = (*HL7Transformer)(nil)
