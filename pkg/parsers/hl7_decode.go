package parsers

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/oarkflow/hl7analyzer/pkg/contracts"
)

// ErrDecode reports that message bytes could be decoded neither as UTF-8 nor
// as Latin-1.
var ErrDecode = errors.New("hl7: unable to decode message")

// DecodeError carries the file whose content failed to decode.
type DecodeError struct {
	File string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("%v: %v", ErrDecode, e.Err)
	}
	return fmt.Sprintf("%v: %s: %v", ErrDecode, e.File, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Document is one decoded message tagged with its originating file name.
type Document struct {
	File string
	Text string
}

// DecodeText returns data as text. Valid UTF-8 is returned unchanged except
// for a leading byte order mark; anything else is read as Latin-1.
func DecodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\uFEFF"), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	return string(decoded), nil
}

// DecodeMessage decodes msg.Content into a Document.
func DecodeMessage(msg contracts.Message) (Document, error) {
	text, err := DecodeText(msg.Content)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			decodeErr.File = msg.FileName
			return Document{File: msg.FileName}, decodeErr
		}
		return Document{File: msg.FileName}, &DecodeError{File: msg.FileName, Err: err}
	}
	return Document{File: msg.FileName, Text: text}, nil
}
