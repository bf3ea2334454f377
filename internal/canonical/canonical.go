// Package canonical orders the keys of nested records by a path-scoped schema so that
// identical logical content always serializes to identical bytes.
//
// Paths are dot-joined object keys starting from the root (""), e.g. "order.pricing".
// Array elements extend their parent path with "[]", e.g. "order.payments[]".
// Keys the schema does not list for a path follow the listed ones in ascending order.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Schema maps a structural path to its desired key sequence.
type Schema map[string][]string

// Object is an ordered JSON object.
type Object struct {
	keys   []string
	values map[string]any
}

func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Marshal normalizes v into a generic tree, orders it by schema and encodes it.
func Marshal(v any, schema Schema) ([]byte, error) {
	tree, err := Normalize(v)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(Canonicalize(tree, schema))
	if err != nil {
		return nil, fmt.Errorf("encode canonical tree: %w", err)
	}
	return out, nil
}

// Normalize turns any JSON-encodable value into maps, slices and leaves.
// Numbers are kept as json.Number so their textual form (e.g. "822.80") survives.
func Normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return tree, nil
}

// Canonicalize walks a generic tree and returns it with every object replaced by an *Object.
func Canonicalize(tree any, schema Schema) any {
	return walk(tree, "", schema)
}

func walk(node any, path string, schema Schema) any {
	switch n := node.(type) {
	case map[string]any:
		return orderObject(n, path, schema)
	case []any:
		out := make([]any, len(n))
		for i, el := range n {
			out[i] = walk(el, path+"[]", schema)
		}
		return out
	default:
		return n
	}
}

func orderObject(m map[string]any, path string, schema Schema) *Object {
	obj := &Object{
		keys:   make([]string, 0, len(m)),
		values: make(map[string]any, len(m)),
	}

	seen := make(map[string]bool, len(m))
	for _, k := range schema[path] {
		if _, ok := m[k]; !ok || seen[k] {
			continue
		}
		seen[k] = true
		obj.keys = append(obj.keys, k)
	}

	rest := make([]string, 0, len(m)-len(obj.keys))
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	obj.keys = append(obj.keys, rest...)

	for _, k := range obj.keys {
		obj.values[k] = walk(m[k], childPath(path, k), schema)
	}
	return obj
}

func childPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
