package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Field is a single key/value entry of a Document.
type Field struct {
	Key   string
	Value any
}

// Document is an ordered string-keyed mapping. Stage bodies use it because
// sort tie-breaks and project inclusion order follow declaration order, which
// a Go map cannot carry.
type Document []Field

// Doc builds a Document from alternating key/value arguments. It panics on an
// odd argument count or a non-string key; it is meant for literals.
func Doc(kv ...any) Document {
	if len(kv)%2 != 0 {
		panic("domain.Doc: odd number of arguments")
	}
	d := make(Document, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			panic(fmt.Sprintf("domain.Doc: key %v is not a string", kv[i]))
		}
		d = append(d, Field{Key: key, Value: kv[i+1]})
	}
	return d
}

// Get returns the value stored under key.
func (d Document) Get(key string) (any, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in declaration order.
func (d Document) Keys() []string {
	keys := make([]string, len(d))
	for i, f := range d {
		keys[i] = f.Key
	}
	return keys
}

// Map returns an unordered copy of the document.
func (d Document) Map() map[string]any {
	m := make(map[string]any, len(d))
	for _, f := range d {
		m[f.Key] = f.Value
	}
	return m
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for i, f := range d {
		out[i] = Field{Key: f.Key, Value: CloneValue(f.Value)}
	}
	return out
}

// MarshalJSON encodes the document as a JSON object, keeping key order.
func (d Document) MarshalJSON() ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", f.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping top-level key order. Nested
// objects decode as map[string]any.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*d = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object")
	}
	out := Document{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("document key %v is not a string", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*d = out
	return nil
}

// MarshalYAML encodes the document as an ordered YAML mapping.
func (d Document) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range d {
		var val yaml.Node
		if err := val.Encode(f.Value); err != nil {
			return nil, fmt.Errorf("encode %q: %w", f.Key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			&val,
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a YAML mapping, keeping top-level key order.
func (d *Document) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*d = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: document must be a mapping", node.Line)
	}
	out := make(Document, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		var val any
		if err := node.Content[i+1].Decode(&val); err != nil {
			return fmt.Errorf("decode %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: normalizeYAML(val)})
	}
	*d = out
	return nil
}

// normalizeYAML converts yaml.v3 decoded values into the shapes encoding/json
// produces, so the engine sees one representation regardless of source.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}

// CloneValue deep-copies maps, slices and documents; other values are
// returned as is.
func CloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = CloneValue(val)
		}
		return out
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CloneValue(val)
		}
		return out
	case Document:
		return t.Clone()
	default:
		return v
	}
}
