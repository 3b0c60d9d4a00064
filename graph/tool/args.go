package tool

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs decodes model-supplied arguments into a struct tagged with
// `json` names. Input is weakly typed: "5" decodes into an int and 5.0
// into an int64, which covers what models actually send.
func DecodeArgs(input map[string]interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// Schema builds a JSON Schema object for a tool input.
func Schema(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// Prop describes one schema property.
func Prop(typ, description string) map[string]interface{} {
	return map[string]interface{}{"type": typ, "description": description}
}
