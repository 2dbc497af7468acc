package parsers

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segment is one line of an HL7 message split on the field separator.
// Fields[0] is the segment identifier.
type Segment struct {
	ID     string
	Fields []string
}

// Len returns the number of fields, segment identifier included.
func (s Segment) Len() int {
	return len(s.Fields)
}

// Field returns the field at the 0-based index i.
func (s Segment) Field(i int) (string, bool) {
	if i < 0 || i >= len(s.Fields) {
		return "", false
	}
	return s.Fields[i], true
}

// HL7Parser represents an HL7 message parser
type HL7Parser struct {
	fieldSeparator        string
	componentSeparator    string
	subcomponentSeparator string
	repetitionSeparator   string
	escapeCharacter       string
}

// NewHL7Parser creates a new HL7 parser
func NewHL7Parser() *HL7Parser {
	return &HL7Parser{
		fieldSeparator:        "|",
		componentSeparator:    "^",
		subcomponentSeparator: "&",
		repetitionSeparator:   "~",
		escapeCharacter:       "\\",
	}
}

var defaultParser = NewHL7Parser()

// Name returns the parser name
func (p *HL7Parser) Name() string {
	return "HL7"
}

// Detect checks if the data looks like an HL7 message
func (p *HL7Parser) Detect(data []byte) bool {
	text, err := DecodeText(data)
	if err != nil {
		return false
	}
	lines := Lines(text)
	if len(lines) == 0 {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(lines[0]), "MSH"+p.fieldSeparator)
}

// Parse decodes data and returns its segments as []Segment.
func (p *HL7Parser) Parse(data []byte) (any, error) {
	text, err := DecodeText(data)
	if err != nil {
		return nil, err
	}
	return p.Tokenize(text), nil
}

// Tokenize splits text into segments without trimming lines or fields.
func (p *HL7Parser) Tokenize(text string) []Segment {
	lines := Lines(text)
	segments := make([]Segment, 0, len(lines))
	for _, line := range lines {
		segments = append(segments, p.segment(line))
	}
	return segments
}

// SplitFields splits one line on the field separator.
func (p *HL7Parser) SplitFields(line string) []string {
	return strings.Split(line, p.fieldSeparator)
}

// Components splits a field on the component separator.
func (p *HL7Parser) Components(field string) []string {
	return strings.Split(field, p.componentSeparator)
}

func (p *HL7Parser) segment(line string) Segment {
	fields := p.SplitFields(line)
	return Segment{ID: fields[0], Fields: fields}
}

// Lines trims surrounding whitespace from text and splits it on line
// boundaries. \r\n counts as one boundary. Empty text yields no lines.
func Lines(text string) []string {
	text = strings.TrimFunc(text, isSpace)
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isLineBreak(r) {
			i += size
			continue
		}
		lines = append(lines, text[start:i])
		i += size
		if r == '\r' && i < len(text) && text[i] == '\n' {
			i++
		}
		start = i
	}
	return append(lines, text[start:])
}

// SplitFields splits one line on "|".
func SplitFields(line string) []string {
	return defaultParser.SplitFields(line)
}

// Tokenize splits text into segments.
func Tokenize(text string) []Segment {
	return defaultParser.Tokenize(text)
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// isSpace also treats the ASCII information separators as whitespace, which
// strips MLLP trailers such as \x1c\r.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= '\x1c' && r <= '\x1f')
}
