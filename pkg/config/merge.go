package config

import (
	"reflect"
	"slices"
	"strings"
)

// Strategy is how a field folds a parent value into a child value. It is
// declared per field with the `merge` struct tag; untagged fields use
// StrategyCopy.
type Strategy string

// Merge strategies.
const (
	// StrategyCopy takes the parent value only when the child's is absent.
	StrategyCopy Strategy = ""
	// StrategyHooks concatenates child then parent hooks.
	StrategyHooks Strategy = "hooks"
	// StrategyComponents merges a nested struct field by field.
	StrategyComponents Strategy = "components"
	// StrategyUnion unions two maps; child entries win on collision.
	StrategyUnion Strategy = "union"
	// StrategyTags unions two string lists, keeping first occurrence order.
	StrategyTags Strategy = "tags"
	// StrategyGrants replaces parent grants unless the child key starts
	// with "+", in which case the grantees are appended to the parent's.
	StrategyGrants Strategy = "grants"
)

// DefaultTo returns child with every absent field inherited from parent.
// Neither argument is modified. Embedded structs (the warehouse blocks) are
// merged recursively with the same rules.
func DefaultTo[T any](child, parent T) T {
	out := child
	dst := reflect.ValueOf(&out).Elem()
	if dst.Kind() != reflect.Struct {
		return out
	}
	mergeStruct(dst, reflect.ValueOf(parent))
	return out
}

func mergeStruct(dst, parent reflect.Value) {
	t := dst.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		d := dst.Field(i)
		p := parent.Field(i)

		if f.Anonymous && d.Kind() == reflect.Struct {
			mergeStruct(d, p)
			continue
		}

		switch Strategy(f.Tag.Get("merge")) {
		case StrategyHooks:
			mergeHooksField(d, p)
		case StrategyComponents:
			mergeComponentsField(d, p)
		case StrategyUnion:
			mergeUnionField(d, p)
		case StrategyTags:
			mergeTagsField(d, p)
		case StrategyGrants:
			mergeGrantsField(d, p)
		default:
			if isAbsent(d) && !isAbsent(p) {
				d.Set(p)
			}
		}
	}
}

func isAbsent(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	default:
		return v.IsZero()
	}
}

func mergeHooksField(d, p reflect.Value) {
	child, _ := d.Interface().(Hooks)
	parent, _ := p.Interface().(Hooks)
	if merged := concatHooks(parent, child); merged != nil {
		d.Set(reflect.ValueOf(merged).Convert(d.Type()))
	}
}

// concatHooks returns the child hooks in their declared order followed by
// the parent hooks. Merging a list into itself returns it unchanged.
func concatHooks(parent, child Hooks) Hooks {
	if parent == nil {
		return child
	}
	if child == nil {
		return parent
	}
	if slices.Equal(parent, child) {
		return child
	}
	out := make(Hooks, 0, len(child)+len(parent))
	out = append(out, child...)
	return append(out, parent...)
}

func mergeComponentsField(d, p reflect.Value) {
	if p.IsNil() {
		return
	}
	if d.IsNil() {
		d.Set(p)
		return
	}
	merged := reflect.New(d.Type().Elem())
	merged.Elem().Set(d.Elem())
	mergeStruct(merged.Elem(), p.Elem())
	d.Set(merged)
}

func mergeUnionField(d, p reflect.Value) {
	if p.IsNil() {
		return
	}
	if d.IsNil() {
		d.Set(p)
		return
	}
	merged := reflect.MakeMapWithSize(d.Type(), p.Len()+d.Len())
	iter := p.MapRange()
	for iter.Next() {
		merged.SetMapIndex(iter.Key(), iter.Value())
	}
	iter = d.MapRange()
	for iter.Next() {
		merged.SetMapIndex(iter.Key(), iter.Value())
	}
	d.Set(merged)
}

func mergeTagsField(d, p reflect.Value) {
	if p.IsNil() {
		return
	}
	if d.IsNil() {
		d.Set(p)
		return
	}
	seen := map[string]bool{}
	merged := reflect.MakeSlice(d.Type(), 0, p.Len()+d.Len())
	for _, src := range []reflect.Value{p, d} {
		for i := 0; i < src.Len(); i++ {
			tag := src.Index(i).String()
			if seen[tag] {
				continue
			}
			seen[tag] = true
			merged = reflect.Append(merged, src.Index(i))
		}
	}
	d.Set(merged)
}

func mergeGrantsField(d, p reflect.Value) {
	child, _ := d.Interface().(map[string][]string)
	parent, _ := p.Interface().(map[string][]string)
	if merged := mergeGrants(child, parent); merged != nil {
		d.Set(reflect.ValueOf(merged))
	}
}

func mergeGrants(child, parent map[string][]string) map[string][]string {
	if parent == nil {
		return child
	}
	if child == nil {
		return parent
	}
	out := make(map[string][]string, len(child))
	for key, grantees := range child {
		if !strings.HasPrefix(key, "+") {
			if _, extended := child["+"+key]; !extended {
				out[key] = grantees
			}
			continue
		}
		privilege := strings.TrimPrefix(key, "+")
		merged := append([]string{}, grantees...)
		merged = append(merged, parent[privilege]...)
		out[privilege] = merged
	}
	return out
}

// Clear resets the fields named by their YAML keys to absent. Unknown keys
// are ignored.
func Clear[T any](cfg *T, keys []string) {
	if cfg == nil || len(keys) == 0 {
		return
	}
	v := reflect.ValueOf(cfg).Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	for _, key := range keys {
		if f, ok := fieldByKey(v, key); ok {
			f.Set(reflect.Zero(f.Type()))
		}
	}
}

func fieldByKey(v reflect.Value, key string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if found, ok := fieldByKey(v.Field(i), key); ok {
				return found, true
			}
			continue
		}
		if yamlKey(f) == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func yamlKey(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}
