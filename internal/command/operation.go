package command

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Command operation names accepted by the processor.
const (
	OpSetTrigger     = "set-trigger"
	OpRemoveTrigger  = "remove-trigger"
	OpSetListener    = "set-listener"
	OpRemoveListener = "remove-listener"
)

// Operation is one named command with its flat field mapping, as produced
// by the envelope parser. Field values are decoded JSON: strings, numbers
// (json.Number), booleans, and nested lists/maps.
type Operation struct {
	Name   string
	Fields map[string]any
}

// Str returns the named field as a string, or "" when the field is
// absent or not a string.
func (op Operation) Str(key string) string {
	s, _ := op.Fields[key].(string)
	return s
}

// Strs returns the named field as a list of strings. A single string value
// is treated as a one-element list.
func (op Operation) Strs(key string) []string {
	switch v := op.Fields[key].(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Int returns the named field as an integer, or nil when the field is
// absent. Non-integer values are an error.
func (op Operation) Int(key string) (*int64, error) {
	v, ok := op.Fields[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("field %q is not an integer: %v", key, v)
		}
		return &i, nil
	case float64:
		i := int64(n)
		if float64(i) != n {
			return nil, fmt.Errorf("field %q is not an integer: %v", key, v)
		}
		return &i, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %q is not an integer: %v", key, v)
		}
		return &i, nil
	default:
		return nil, fmt.Errorf("field %q is not an integer: %v", key, v)
	}
}

// Bool returns the named field as a boolean, with a default for absent or
// non-boolean values. String forms "true"/"false" are accepted.
func (op Operation) Bool(key string, def bool) bool {
	switch v := op.Fields[key].(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return def
		}
		return b
	default:
		return def
	}
}

// ReadCommands decodes a command envelope into its operations, preserving
// submission order. The envelope is a JSON object whose keys are operation
// names and whose values are the operation fields; repeated operation
// names are allowed.
func ReadCommands(r io.Reader) ([]Operation, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("invalid command envelope: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("invalid command envelope: expected a JSON object")
	}

	var ops []Operation
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("invalid command envelope: %w", err)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("invalid command envelope: expected an operation name")
		}

		fields := map[string]any{}
		if err := dec.Decode(&fields); err != nil {
			return nil, fmt.Errorf("invalid payload for operation %q: %w", name, err)
		}
		ops = append(ops, Operation{Name: name, Fields: fields})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("invalid command envelope: %w", err)
	}
	if len(ops) == 0 {
		return nil, fmt.Errorf("command envelope contains no operations")
	}
	return ops, nil
}
