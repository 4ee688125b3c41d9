package starlark

import (
	"github.com/leapstack-labs/leapforge/pkg/core"
	"go.starlark.net/starlark"
)

// argParser reads arguments that may be passed either positionally or by
// keyword. Positional arguments are consumed in order as named parameters
// are requested.
type argParser struct {
	fn     string
	pos    starlark.Tuple
	next   int
	kwargs map[string]starlark.Value
	order  []string
}

func newArgParser(fn string, args starlark.Tuple, kwargs []starlark.Tuple) *argParser {
	p := &argParser{fn: fn, pos: args, kwargs: make(map[string]starlark.Value, len(kwargs))}
	for _, kv := range kwargs {
		name, _ := starlark.AsString(kv[0])
		p.kwargs[name] = kv[1]
		p.order = append(p.order, name)
	}
	return p
}

// optional returns the keyword argument name, or the next positional
// argument when the keyword is absent.
func (p *argParser) optional(name string) (starlark.Value, bool) {
	if v, ok := p.kwargs[name]; ok {
		delete(p.kwargs, name)
		return v, true
	}
	if p.next < len(p.pos) {
		v := p.pos[p.next]
		p.next++
		return v, true
	}
	return nil, false
}

// keyword returns a keyword-only argument.
func (p *argParser) keyword(name string) (starlark.Value, bool) {
	v, ok := p.kwargs[name]
	if ok {
		delete(p.kwargs, name)
	}
	return v, ok
}

func (p *argParser) required(name string) (starlark.Value, error) {
	v, ok := p.optional(name)
	if !ok {
		return nil, core.InvalidOperationError("%s: missing required argument '%s'", p.fn, name)
	}
	return v, nil
}

func (p *argParser) requiredString(name string) (string, error) {
	v, err := p.required(name)
	if err != nil {
		return "", err
	}
	s, ok := starlark.AsString(v)
	if !ok {
		return "", core.InvalidOperationError("%s: argument '%s' must be a string, got %s", p.fn, name, v.Type())
	}
	return s, nil
}

func (p *argParser) optionalBool(name string) bool {
	v, ok := p.optional(name)
	return ok && bool(v.Truth())
}

// rest returns the positional arguments not yet consumed.
func (p *argParser) rest() starlark.Tuple {
	if p.next >= len(p.pos) {
		return nil
	}
	return p.pos[p.next:]
}

// remainingKwargs returns the keyword arguments not yet consumed, in call
// order.
func (p *argParser) remainingKwargs() []starlark.Tuple {
	var out []starlark.Tuple
	for _, name := range p.order {
		if v, ok := p.kwargs[name]; ok {
			out = append(out, starlark.Tuple{starlark.String(name), v})
		}
	}
	return out
}
