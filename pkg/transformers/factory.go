package transformers

import (
	"fmt"
	"strings"

	"github.com/oarkflow/hl7analyzer/pkg/config"
	"github.com/oarkflow/hl7analyzer/pkg/contracts"
)

// BuildTransformers converts transformation configs into executable transformers.
func BuildTransformers(cfgs []config.TransformerConfig) ([]contracts.Transformer, error) {
	transformers := make([]contracts.Transformer, 0, len(cfgs))
	for _, tCfg := range cfgs {
		transformer, err := BuildTransformer(tCfg)
		if err != nil {
			return nil, err
		}
		transformers = append(transformers, transformer)
	}
	return transformers, nil
}

// BuildTransformer instantiates a transformer from config.
func BuildTransformer(cfg config.TransformerConfig) (contracts.Transformer, error) {
	switch strings.ToLower(cfg.Type) {
	case "hl7", "hl7_details":
		opts := HL7TransformerOptions{}
		if cfg.Options != nil {
			assignStringOption(&opts.Source, cfg.Options, "source")
			assignStringOption(&opts.InputField, cfg.Options, "input_field")
			assignStringOption(&opts.FileField, cfg.Options, "file_field")
			assignBoolOption(&opts.KeepInput, cfg.Options, "keep_input")
		}
		return NewHL7Transformer(opts), nil
	case "filter", "where":
		var condition string
		assignStringOption(&condition, cfg.Options, "condition")
		return NewFilterTransformer(cfg.Name, condition)
	default:
		return nil, fmt.Errorf("unsupported transformer type %s", cfg.Type)
	}
}

func assignStringOption(target *string, options map[string]any, key string) {
	if val, ok := options[key]; ok {
		if str, ok := val.(string); ok {
			*target = str
		}
	}
}

func assignBoolOption(target *bool, options map[string]any, key string) {
	if val, ok := options[key]; ok {
		if b, ok := val.(bool); ok {
			*target = b
		}
	}
}
