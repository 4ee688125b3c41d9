package starlark

import (
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// stringSet dedups items by their printed form. The result holds the
// printed strings in first-seen order.
func stringSet(items []starlark.Value) (*starlark.Set, error) {
	set := starlark.NewSet(len(items))
	for _, item := range items {
		if err := set.Insert(starlark.String(Stringify(item))); err != nil {
			return nil, err
		}
	}
	return set, nil
}

// set(value, default=None) falls back to default when value is not
// iterable.
func setFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return nil, core.InvalidOperationError("set requires at least 1 argument")
	}
	p := newArgParser(b.Name(), args, kwargs)
	value, err := p.required("value")
	if err != nil {
		return nil, err
	}
	items, ok := elements(value)
	if !ok {
		if def, found := p.optional("default"); found {
			return def, nil
		}
		return starlark.None, nil
	}
	return stringSet(items)
}

func setStrictFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, core.InvalidOperationError("set_strict requires exactly 1 argument")
	}
	items, ok := elements(args[0])
	if !ok {
		return nil, core.InvalidOperationError("set_strict requires an iterable value")
	}
	return stringSet(items)
}

// zipShortest pairs the i-th items of every sequence, stopping at the
// shortest one.
func zipShortest(seqs [][]starlark.Value) *starlark.List {
	n := -1
	for _, s := range seqs {
		if n < 0 || len(s) < n {
			n = len(s)
		}
	}
	out := make([]starlark.Value, 0, max(n, 0))
	for i := 0; i < n; i++ {
		tuple := make(starlark.Tuple, len(seqs))
		for j, s := range seqs {
			tuple[j] = s[i]
		}
		out = append(out, tuple)
	}
	return starlark.NewList(out)
}

// zip(*iterables, default=None). The default is returned when an argument
// is not iterable; it never pads shorter inputs.
func zipFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return nil, core.InvalidOperationError("zip requires at least 1 argument")
	}
	var def starlark.Value = starlark.None
	for _, kv := range kwargs {
		if name, _ := starlark.AsString(kv[0]); name == "default" {
			def = kv[1]
		}
	}
	if def == starlark.None && len(args) > 1 {
		def = args[1]
	}

	seqs := make([][]starlark.Value, 0, len(args))
	for _, arg := range args {
		items, ok := elements(arg)
		if !ok {
			return def, nil
		}
		seqs = append(seqs, items)
	}
	return zipShortest(seqs), nil
}

func zipStrictFn(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
	if len(args) < 2 {
		return nil, core.InvalidOperationError("zip_strict requires two or more iterable arguments")
	}
	seqs := make([][]starlark.Value, 0, len(args))
	for _, arg := range args {
		items, ok := elements(arg)
		if !ok {
			return nil, core.InvalidOperationError("zip_strict requires all arguments to be iterable")
		}
		seqs = append(seqs, items)
	}
	return zipShortest(seqs), nil
}

// listDict is a dict whose values are lists of printed strings, in key
// insertion order.
type listDict struct {
	keys   []string
	values map[string][]string
}

func parseListDict(fn string, v starlark.Value) (*listDict, error) {
	dict, ok := v.(*starlark.Dict)
	if !ok {
		return nil, core.InvalidOperationError("%s: expected a dict, got %s", fn, v.Type())
	}
	out := &listDict{values: make(map[string][]string, dict.Len())}
	for _, item := range dict.Items() {
		items, ok := elements(item[1])
		if !ok {
			return nil, core.InvalidOperationError("%s: value of %s is not iterable", fn, item[0])
		}
		key := Stringify(item[0])
		list := make([]string, len(items))
		for i, x := range items {
			list[i] = Stringify(x)
		}
		out.keys = append(out.keys, key)
		out.values[key] = list
	}
	return out, nil
}

// diff_of_two_dicts(dict_a, dict_b) returns, per key of dict_a, the values
// absent from the case-insensitively matching key of dict_b. Keys with no
// remaining values are dropped.
func diffOfTwoDicts(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args)+len(kwargs) != 2 {
		return nil, core.InvalidOperationError("diff_of_two_dicts requires exactly 2 arguments")
	}
	p := newArgParser(b.Name(), args, kwargs)
	a, ok := p.optional("dict_a")
	if !ok {
		return nil, core.InvalidOperationError("diff_of_two_dicts requires a dict_a argument")
	}
	bv, ok := p.optional("dict_b")
	if !ok {
		return nil, core.InvalidOperationError("diff_of_two_dicts requires a dict_b argument")
	}
	dictA, err := parseListDict(b.Name(), a)
	if err != nil {
		return nil, err
	}
	dictB, err := parseListDict(b.Name(), bv)
	if err != nil {
		return nil, err
	}

	lowered := make(map[string]map[string]struct{}, len(dictB.keys))
	for _, k := range dictB.keys {
		vals := make(map[string]struct{}, len(dictB.values[k]))
		for _, v := range dictB.values[k] {
			vals[strings.ToLower(v)] = struct{}{}
		}
		lowered[strings.ToLower(k)] = vals
	}

	out := starlark.NewDict(len(dictA.keys))
	for _, k := range dictA.keys {
		var diff []starlark.Value
		other, found := lowered[strings.ToLower(k)]
		for _, v := range dictA.values[k] {
			if found {
				if _, dup := other[strings.ToLower(v)]; dup {
					continue
				}
			}
			diff = append(diff, starlark.String(v))
		}
		if len(diff) == 0 {
			continue
		}
		if err := out.SetKey(starlark.String(k), starlark.NewList(diff)); err != nil {
			return nil, err
		}
	}
	return out, nil
}
