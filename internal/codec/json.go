package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// JSONSerializer turns Documents into JSON bytes and back. The zero value
// produces compact output with HTML escaping disabled.
type JSONSerializer struct {
	// Indent, if non-empty, is used to pretty-print output with one element
	// per line, each nesting level indented by Indent.
	Indent string

	// EscapeHTML escapes <, >, and & inside strings when set.
	EscapeHTML bool
}

// Format returns "json".
func (js JSONSerializer) Format() string {
	return "json"
}

// Serialize encodes the Document as a single JSON object. Floats are always
// written with a fraction or exponent so that they decode as float64 again.
func (js JSONSerializer) Serialize(doc Document) ([]byte, error) {
	var m interface{}
	if doc != nil {
		var err error
		m, err = markFloats(map[string]interface{}(doc))
		if err != nil {
			return nil, fmt.Errorf("serialize: %w", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(js.EscapeHTML)
	if js.Indent != "" {
		enc.SetIndent("", js.Indent)
	}
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// Deserialize decodes a single JSON object into a Document. Anything other
// than exactly one object is an ErrCorrupt.
func (js JSONSerializer) Deserialize(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var m map[string]interface{}
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: deserialize: %v", ErrCorrupt, err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: deserialize: top-level value is not an object", ErrCorrupt)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: deserialize: trailing data after document", ErrCorrupt)
	}

	return Document(resolveNumbers(m).(map[string]interface{})), nil
}

// markFloats returns a copy of v with every float replaced by a json.Number
// that cannot be mistaken for an integer. v is not modified.
func markFloats(v interface{}) (interface{}, error) {
	switch typed := v.(type) {
	case map[string]interface{}:
		c := make(map[string]interface{}, len(typed))
		for k, item := range typed {
			marked, err := markFloats(item)
			if err != nil {
				return nil, err
			}
			c[k] = marked
		}
		return c, nil
	case Document:
		return markFloats(map[string]interface{}(typed))
	case []interface{}:
		c := make([]interface{}, len(typed))
		for i := range typed {
			marked, err := markFloats(typed[i])
			if err != nil {
				return nil, err
			}
			c[i] = marked
		}
		return c, nil
	case float64:
		return floatNumber(typed)
	case float32:
		return floatNumber(float64(typed))
	default:
		return v, nil
	}
}

func floatNumber(f float64) (json.Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported float value %v", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return json.Number(s), nil
}

// resolveNumbers replaces every json.Number in v with the narrowest exact Go
// number type.
func resolveNumbers(v interface{}) interface{} {
	switch typed := v.(type) {
	case map[string]interface{}:
		for k, item := range typed {
			typed[k] = resolveNumbers(item)
		}
		return typed
	case []interface{}:
		for i := range typed {
			typed[i] = resolveNumbers(typed[i])
		}
		return typed
	case json.Number:
		return resolveNumber(typed)
	default:
		return v
	}
}

func resolveNumber(n json.Number) interface{} {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
		// integral but out of int64 range; keep the exact text
		return n
	}
	f, err := n.Float64()
	if err != nil {
		return n
	}
	return f
}
