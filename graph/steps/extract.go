package steps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNoStructuredOutput is wrapped by every ExtractJSON failure.
var ErrNoStructuredOutput = errors.New("no structured output")

// ExtractJSON pulls a JSON object out of model output. A ```json fence is
// preferred, then any fence, then the outermost braces. Prose around the
// object is ignored.
func ExtractJSON(text string) (map[string]interface{}, error) {
	candidates := make([]string, 0, 3)
	if block, ok := fenced(text, "```json"); ok {
		candidates = append(candidates, block)
	}
	if block, ok := fenced(text, "```"); ok {
		candidates = append(candidates, block)
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		candidates = append(candidates, text[start:end+1])
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no JSON object in output", ErrNoStructuredOutput)
	}

	var lastErr error
	for _, c := range candidates {
		obj, err := decodeObject(c)
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrNoStructuredOutput, lastErr)
}

// DecodeInto extracts a JSON object from text and decodes it into v.
func DecodeInto(text string, v interface{}) error {
	obj, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoStructuredOutput, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrNoStructuredOutput, err)
	}
	return nil
}

func fenced(text, opener string) (string, bool) {
	start := strings.Index(text, opener)
	if start < 0 {
		return "", false
	}
	body := text[start+len(opener):]
	// Skip a language tag on a bare fence.
	if opener == "```" {
		if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{[") {
			body = body[nl+1:]
		}
	}
	end := strings.Index(body, "```")
	if end < 0 {
		return strings.TrimSpace(body), true
	}
	return strings.TrimSpace(body[:end]), true
}

func decodeObject(s string) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(s))))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("JSON value is not an object")
	}
	return normalizeNumbers(obj).(map[string]interface{}), nil
}

// normalizeNumbers turns json.Number into int64 where exact and float64
// otherwise.
func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []interface{}:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	default:
		return v
	}
}

// MergeFields overlays extracted on existing. Nil, absent or blank string
// values never overwrite what is already known.
func MergeFields(existing, extracted map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(existing)+len(extracted))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range extracted {
		if blank(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// MissingFields lists the required fields of record that are absent or
// empty, in the order given.
func MissingFields(record map[string]interface{}, required []string) []string {
	var missing []string
	for _, f := range required {
		if isEmpty(record[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

func blank(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

func isEmpty(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return reflect.ValueOf(v).IsZero()
}
