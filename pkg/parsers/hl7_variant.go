package parsers

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVariant reports a source name outside the supported variants.
var ErrUnknownVariant = errors.New("hl7: unknown source variant")

// Variant identifies the source system a message comes from. Each variant has
// its own field-position rules.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantORLine
	VariantWISH
)

var variantNames = map[Variant]string{
	VariantORLine: "ORLine",
	VariantWISH:   "WISH",
}

// Variants returns the supported variants in display order.
func Variants() []Variant {
	return []Variant{VariantWISH, VariantORLine}
}

func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "unknown"
}

// Known reports whether v has extraction rules.
func (v Variant) Known() bool {
	_, ok := variantNames[v]
	return ok
}

// ParseVariant matches name against the variant names, ignoring case.
func ParseVariant(name string) (Variant, bool) {
	name = strings.TrimSpace(name)
	for v, n := range variantNames {
		if strings.EqualFold(n, name) {
			return v, true
		}
	}
	return VariantUnknown, false
}

// LookupVariant is ParseVariant returning ErrUnknownVariant on failure.
func LookupVariant(name string) (Variant, error) {
	v, ok := ParseVariant(name)
	if !ok {
		return VariantUnknown, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v, nil
}
