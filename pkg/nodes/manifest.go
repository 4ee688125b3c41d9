package nodes

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ResourceTypeKey is the discriminator key injected into serialized nodes.
const ResourceTypeKey = "resource_type"

// Marshal serializes a node to its manifest map form, including the
// resource_type discriminator.
func Marshal(n Node) (map[string]any, error) {
	var doc yaml.Node
	if err := doc.Encode(n); err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", n.ResourceType(), n.Common().UniqueID, err)
	}
	out := map[string]any{}
	if err := doc.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", n.ResourceType(), n.Common().UniqueID, err)
	}
	out[ResourceTypeKey] = string(n.ResourceType())
	return out, nil
}

// Unmarshal rebuilds a node from its manifest map form.
func Unmarshal(m map[string]any) (Node, error) {
	rt, _ := m[ResourceTypeKey].(string)

	var n Node
	switch ResourceType(rt) {
	case ResourceModel:
		n = &Model{}
	case ResourceAnalysis:
		n = &Model{Analysis: true}
	case ResourceSeed:
		n = &Seed{}
	case ResourceTest:
		n = &Test{}
	case ResourceUnitTest:
		n = &UnitTest{}
	case ResourceSource:
		n = &Source{}
	case ResourceSnapshot:
		n = &Snapshot{}
	default:
		return nil, fmt.Errorf("unknown resource_type %q", rt)
	}

	fields := make(map[string]any, len(m))
	for k, v := range m {
		if k != ResourceTypeKey {
			fields[k] = v
		}
	}

	var doc yaml.Node
	if err := doc.Encode(fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", rt, err)
	}
	if err := doc.Decode(n); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", rt, err)
	}
	return n, nil
}

// Clone returns a deep copy of n.
func Clone(n Node) (Node, error) {
	m, err := Marshal(n)
	if err != nil {
		return nil, err
	}
	return Unmarshal(m)
}
