package starlark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
)

// tojson(value, default=None, sort_keys=False). Dict keys keep insertion
// order; sort_keys re-parses the output and sorts the top-level object.
func tojson(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 || len(args) > 3 {
		return nil, core.InvalidOperationError("tojson requires at least 1 argument (the value to serialize)")
	}
	p := newArgParser(b.Name(), args, kwargs)
	value, err := p.required("value")
	if err != nil {
		return nil, err
	}
	def, hasDefault := p.optional("default")
	sortKeys := p.optionalBool("sort_keys")

	out, err := MarshalJSON(value)
	if err == nil && sortKeys {
		out, err = sortTopLevelJSON(out)
	}
	if err != nil {
		if hasDefault {
			return def, nil
		}
		return nil, core.InvalidOperationError("Failed to convert value to JSON: %v", err)
	}
	return starlark.String(out), nil
}

// MarshalJSON encodes a Starlark value as compact JSON, keeping dict
// insertion order.
func MarshalJSON(v starlark.Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v starlark.Value) error {
	switch val := v.(type) {
	case starlark.NoneType:
		buf.WriteString("null")
	case starlark.Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case starlark.Int:
		buf.WriteString(val.String())
	case starlark.Float:
		f := float64(val)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("cannot encode non-finite float %v", val)
		}
		buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	case starlark.String:
		writeJSONString(buf, string(val))
	case *Relation:
		writeJSONString(buf, val.rel.Render())
	case *starlark.Dict:
		buf.WriteByte('{')
		for i, item := range val.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return fmt.Errorf("dict key must be a string, got %s", item[0].Type())
			}
			if i > 0 {
				buf.WriteByte(',')
			}
			writeJSONString(buf, key)
			buf.WriteByte(':')
			if err := writeJSON(buf, item[1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case starlark.Iterable:
		items, _ := elements(val)
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("cannot encode %s as JSON", v.Type())
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
}

// sortTopLevelJSON re-parses an object and sorts its keys. Nested objects
// keep their order. Non-objects are returned unchanged.
func sortTopLevelJSON(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != '{' {
		return data, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range sortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		buf.Write(obj[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// fromjson(string, default=None). Without a default a parse failure is
// returned as an error.
func fromjson(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, core.InvalidOperationError("fromjson takes 1 or 2 arguments: string and optional default")
	}
	p := newArgParser(b.Name(), args, kwargs)
	s, err := p.requiredString("value")
	if err != nil {
		return nil, err
	}
	def, hasDefault := p.optional("default")

	v, err := UnmarshalJSON([]byte(s))
	if err != nil {
		if hasDefault {
			return def, nil
		}
		return nil, core.InvalidOperationError("Failed to parse JSON: %v", err)
	}
	return v, nil
}

// UnmarshalJSON decodes a single JSON document, keeping object key order.
func UnmarshalJSON(data []byte) (starlark.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := readJSON(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing characters after JSON value")
	}
	return v, nil
}

func readJSON(dec *json.Decoder) (starlark.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			dict := starlark.NewDict(0)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := keyTok.(string)
				val, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				if err := dict.SetKey(starlark.String(key), val); err != nil {
					return nil, err
				}
			}
			_, err := dec.Token()
			return dict, err
		case '[':
			var items []starlark.Value
			for dec.More() {
				val, err := readJSON(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, val)
			}
			_, err := dec.Token()
			return starlark.NewList(items), err
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case json.Number:
		return jsonNumber(t)
	case string:
		return starlark.String(t), nil
	case bool:
		return starlark.Bool(t), nil
	case nil:
		return starlark.None, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func jsonNumber(n json.Number) (starlark.Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := n.Int64(); err == nil {
			return starlark.MakeInt64(i), nil
		}
		i, ok := new(big.Int).SetString(s, 10)
		if ok {
			return starlark.MakeBigInt(i), nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	return starlark.Float(f), nil
}

// toyaml(value, default=None, sort_keys=False). sort_keys orders only the
// top-level mapping.
func toyaml(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 || len(args) > 3 {
		return nil, core.InvalidOperationError("toyaml requires at least 1 argument (the value to serialize)")
	}
	p := newArgParser(b.Name(), args, kwargs)
	value, err := p.required("value")
	if err != nil {
		return nil, err
	}
	def, hasDefault := p.optional("default")
	sortKeys := p.optionalBool("sort_keys")

	if value == starlark.None {
		if hasDefault {
			return def, nil
		}
		return starlark.None, nil
	}

	node, err := toYAMLNode(value)
	if err != nil {
		return nil, core.InvalidOperationError("Failed to convert value to YAML: %v", err)
	}
	if sortKeys && node.Kind == yaml.MappingNode {
		sortMapping(node)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, core.InvalidOperationError("Failed to convert value to YAML: %v", err)
	}
	if err := enc.Close(); err != nil {
		return nil, core.InvalidOperationError("Failed to convert value to YAML: %v", err)
	}
	return starlark.String(buf.String()), nil
}

func scalar(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

func toYAMLNode(v starlark.Value) (*yaml.Node, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return scalar("!!null", "null"), nil
	case starlark.Bool:
		return scalar("!!bool", strconv.FormatBool(bool(val))), nil
	case starlark.Int:
		return scalar("!!int", val.String()), nil
	case starlark.Float:
		return scalar("!!float", strconv.FormatFloat(float64(val), 'g', -1, 64)), nil
	case starlark.String:
		return scalar("!!str", string(val)), nil
	case *Relation:
		return scalar("!!str", val.rel.Render()), nil
	case *starlark.Dict:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, item := range val.Items() {
			key, ok := starlark.AsString(item[0])
			if !ok {
				return nil, fmt.Errorf("mapping key must be a string, got %s", item[0].Type())
			}
			child, err := toYAMLNode(item[1])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, scalar("!!str", key), child)
		}
		return node, nil
	case starlark.Iterable:
		items, _ := elements(val)
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range items {
			child, err := toYAMLNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	}
	return nil, fmt.Errorf("cannot encode %s as YAML", v.Type())
}

func sortMapping(node *yaml.Node) {
	type pair struct{ k, v *yaml.Node }
	pairs := make([]pair, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		pairs = append(pairs, pair{node.Content[i], node.Content[i+1]})
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].k.Value < pairs[j].k.Value })
	node.Content = node.Content[:0]
	for _, p := range pairs {
		node.Content = append(node.Content, p.k, p.v)
	}
}

// fromyaml(string, default=None). Mapping order is preserved.
func fromyaml(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, core.InvalidOperationError("fromyaml takes 1 or 2 arguments: string and optional default")
	}
	p := newArgParser(b.Name(), args, kwargs)
	s, err := p.requiredString("value")
	if err != nil {
		return nil, err
	}
	def, hasDefault := p.optional("default")

	v, err := UnmarshalYAML([]byte(s))
	if err != nil {
		if hasDefault {
			return def, nil
		}
		return nil, core.InvalidOperationError("Failed to parse YAML: %v", err)
	}
	return v, nil
}

// UnmarshalYAML decodes a YAML document into Starlark values. An empty
// document is None.
func UnmarshalYAML(data []byte) (starlark.Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return starlark.None, nil
	}
	return fromYAMLNode(&doc)
}

func fromYAMLNode(n *yaml.Node) (starlark.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return starlark.None, nil
		}
		return fromYAMLNode(n.Content[0])
	case yaml.AliasNode:
		return fromYAMLNode(n.Alias)
	case yaml.MappingNode:
		dict := starlark.NewDict(len(n.Content) / 2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, err := fromYAMLNode(n.Content[i])
			if err != nil {
				return nil, err
			}
			val, err := fromYAMLNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(key, val); err != nil {
				return nil, err
			}
		}
		return dict, nil
	case yaml.SequenceNode:
		items := make([]starlark.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := fromYAMLNode(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return starlark.NewList(items), nil
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return GoToStarlark(v)
	}
}
