package config

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Layer is one level of project configuration before resolution. Absent keys
// inherit from the parent level; keys listed in Nulls were written as an
// explicit null and reset the field at this level.
type Layer[T any] struct {
	Config T
	Nulls  []string
	// Unknown lists keys that matched no config field.
	Unknown []string
}

// DecodeLayer decodes a raw mapping of `+key: value` or `key: value` pairs.
func DecodeLayer[T any](raw map[string]any) (Layer[T], error) {
	var layer Layer[T]
	values := make(map[string]any, len(raw))
	for k, v := range raw {
		key := NormalizeKey(k)
		if v == nil {
			layer.Nulls = append(layer.Nulls, key)
			continue
		}
		values[key] = v
	}
	sort.Strings(layer.Nulls)

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Squash:           true,
		WeaklyTypedInput: true,
		Metadata:         &md,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			hooksDecodeHook,
			stringListDecodeHook,
		),
		Result: &layer.Config,
	})
	if err != nil {
		return layer, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return layer, fmt.Errorf("failed to decode config: %w", err)
	}
	layer.Unknown = md.Unused
	sort.Strings(layer.Unknown)
	return layer, nil
}

// NormalizeKey strips the project-file "+" marker and maps the dashed hook
// spellings to their field names.
func NormalizeKey(key string) string {
	key = strings.TrimPrefix(key, "+")
	switch key {
	case "pre-hook":
		return "pre_hook"
	case "post-hook":
		return "post_hook"
	}
	return key
}

var (
	hooksType      = reflect.TypeOf(Hooks{})
	stringListType = reflect.TypeOf(StringList{})
)

func hooksDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != hooksType {
		return data, nil
	}
	return parseHooks(data)
}

func parseHooks(data any) (Hooks, error) {
	switch v := data.(type) {
	case string:
		return Hooks{{SQL: v, Transaction: true}}, nil
	case map[string]any:
		h, err := parseHook(v)
		if err != nil {
			return nil, err
		}
		return Hooks{h}, nil
	case []any:
		out := make(Hooks, 0, len(v))
		for _, item := range v {
			switch hv := item.(type) {
			case string:
				out = append(out, Hook{SQL: hv, Transaction: true})
			case map[string]any:
				h, err := parseHook(hv)
				if err != nil {
					return nil, err
				}
				out = append(out, h)
			default:
				return nil, fmt.Errorf("hook must be a string or a mapping, got %T", item)
			}
		}
		return out, nil
	case []string:
		out := make(Hooks, 0, len(v))
		for _, s := range v {
			out = append(out, Hook{SQL: s, Transaction: true})
		}
		return out, nil
	case Hooks:
		return v, nil
	default:
		return nil, fmt.Errorf("hooks must be a string, a mapping or a list, got %T", data)
	}
}

func parseHook(m map[string]any) (Hook, error) {
	h := Hook{Transaction: true}
	sql, ok := m["sql"].(string)
	if !ok {
		return h, fmt.Errorf("hook mapping requires a string 'sql' key")
	}
	h.SQL = sql
	if t, ok := m["transaction"]; ok {
		b, ok := t.(bool)
		if !ok {
			return h, fmt.Errorf("hook 'transaction' must be a boolean, got %T", t)
		}
		h.Transaction = b
	}
	return h, nil
}

func stringListDecodeHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != stringListType {
		return data, nil
	}
	if s, ok := data.(string); ok {
		return StringList{s}, nil
	}
	return data, nil
}

// knownKeys returns the YAML keys of every config field in T, including
// those of embedded warehouse blocks.
func knownKeys(t reflect.Type) map[string]bool {
	keys := map[string]bool{}
	var walk func(reflect.Type)
	walk = func(t reflect.Type) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			if f.Anonymous && f.Type.Kind() == reflect.Struct {
				walk(f.Type)
				continue
			}
			keys[yamlKey(f)] = true
		}
	}
	if t.Kind() == reflect.Struct {
		walk(t)
	}
	return keys
}
