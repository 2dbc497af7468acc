package transformers

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/oarkflow/expr"

	"github.com/oarkflow/hl7analyzer/pkg/contracts"
	"github.com/oarkflow/hl7analyzer/pkg/utils"
)

// FilterTransformer keeps records for which a boolean expression holds.
// Record keys are also exposed as identifiers: "ID PAT" can be written
// id_pat and "Date Naissance" date_naissance.
type FilterTransformer struct {
	name      string
	condition string
}

// NewFilterTransformer creates a new filter transformer with a condition
func NewFilterTransformer(name, condition string) (*FilterTransformer, error) {
	if strings.TrimSpace(condition) == "" {
		return nil, fmt.Errorf("filter condition cannot be empty")
	}
	if _, err := expr.Parse(condition); err != nil {
		return nil, fmt.Errorf("filter parse error: %w", err)
	}
	if name == "" {
		name = "FilterTransformer"
	}
	return &FilterTransformer{
		name:      name,
		condition: condition,
	}, nil
}

func (ft *FilterTransformer) Name() string {
	return ft.name
}

// Transform returns rec when the condition is true and nil otherwise.
func (ft *FilterTransformer) Transform(_ context.Context, rec utils.Record) (utils.Record, error) {
	program, err := expr.Parse(ft.condition)
	if err != nil {
		return nil, fmt.Errorf("filter parse error: %w", err)
	}
	result, err := program.Eval(filterEnv(rec))
	if err != nil {
		return nil, fmt.Errorf("filter evaluation error: %w", err)
	}
	if keep, ok := result.(bool); ok && keep {
		return rec, nil
	}
	return nil, nil
}

func filterEnv(rec utils.Record) map[string]any {
	env := make(map[string]any, len(rec)*2)
	for k, v := range rec {
		env[k] = v
		if alias := Identifier(k); alias != k {
			env[alias] = v
		}
	}
	return env
}

// Identifier lowercases key and replaces every run of characters that cannot
// appear in an identifier with a single underscore.
func Identifier(key string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(key) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

var _ contracts.Transformer = (*FilterTransformer)(nil)
