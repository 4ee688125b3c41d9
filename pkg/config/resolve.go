package config

import (
	"fmt"
	"reflect"
	"strings"
)

// Validator is implemented by configs with cross-field rules.
type Validator interface {
	Validate() error
}

// Resolver folds a project configuration tree into per-node configs.
//
// The tree is the section of a project file for one resource kind, e.g.
//
//	models:
//	  +materialized: view
//	  my_project:
//	    staging:
//	      +schema: staging
//
// Keys that are config fields (with or without "+") configure the level
// they appear in; any other key holding a mapping is a nested directory.
type Resolver[T any] struct {
	tree  map[string]any
	known map[string]bool
	base  T
}

// NewResolver creates a resolver over tree. base is applied beneath the
// tree root and is typically the target-wide defaults.
func NewResolver[T any](tree map[string]any, base T) *Resolver[T] {
	var zero T
	return &Resolver[T]{
		tree:  tree,
		known: knownKeys(reflect.TypeOf(zero)),
		base:  base,
	}
}

// Layers returns the configuration layers that apply to fqn, ordered from
// the tree root to the deepest matching directory.
func (r *Resolver[T]) Layers(fqn []string) ([]Layer[T], error) {
	var layers []Layer[T]
	level := r.tree
	path := make([]string, 0, len(fqn))
	for depth := 0; ; depth++ {
		configs := make(map[string]any)
		for k, v := range level {
			if r.isConfigKey(k, v) {
				configs[k] = v
			}
		}
		layer, err := DecodeLayer[T](configs)
		if err != nil {
			where := "project root"
			if len(path) > 0 {
				where = strings.Join(path, ".")
			}
			return nil, fmt.Errorf("%s: %w", where, err)
		}
		layers = append(layers, layer)

		if depth >= len(fqn) {
			break
		}
		next, ok := level[fqn[depth]].(map[string]any)
		if !ok || r.isConfigKey(fqn[depth], next) {
			break
		}
		path = append(path, fqn[depth])
		level = next
	}
	return layers, nil
}

func (r *Resolver[T]) isConfigKey(key string, value any) bool {
	if strings.HasPrefix(key, "+") {
		return true
	}
	if r.known[NormalizeKey(key)] {
		return true
	}
	_, isMap := value.(map[string]any)
	return !isMap
}

// Resolve returns the fully merged config for the node at fqn. inline is the
// resource-level config (from the node's own properties or config() call)
// and wins over every project level.
func (r *Resolver[T]) Resolve(fqn []string, inline map[string]any) (T, error) {
	var zero T
	layers, err := r.Layers(fqn)
	if err != nil {
		return zero, err
	}
	if inline != nil {
		layer, err := DecodeLayer[T](inline)
		if err != nil {
			return zero, fmt.Errorf("inline config: %w", err)
		}
		layers = append(layers, layer)
	}

	resolved := Fold(r.base, layers...)
	if v, ok := any(&resolved).(Validator); ok {
		if err := v.Validate(); err != nil {
			return zero, err
		}
	}
	return resolved, nil
}

// Fold applies layers over base, shallow to deep. Each layer overrides the
// accumulated result, and its explicit nulls clear inherited values.
func Fold[T any](base T, layers ...Layer[T]) T {
	acc := base
	for _, layer := range layers {
		acc = DefaultTo(layer.Config, acc)
		Clear(&acc, layer.Nulls)
	}
	return acc
}
