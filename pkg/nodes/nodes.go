package nodes

import (
	"fmt"
	"sort"
)

// Nodes holds every node of a project in disjoint maps keyed by unique_id.
// Iteration is ordered by kind and then by unique_id.
//
// Nodes is not safe for concurrent mutation; callers that modify nodes from
// several goroutines must synchronize around the whole container.
type Nodes struct {
	Models    map[string]*Model
	Analyses  map[string]*Model
	Seeds     map[string]*Seed
	Tests     map[string]*Test
	UnitTests map[string]*UnitTest
	Sources   map[string]*Source
	Snapshots map[string]*Snapshot
}

// New creates an empty container.
func New() *Nodes {
	return &Nodes{
		Models:    map[string]*Model{},
		Analyses:  map[string]*Model{},
		Seeds:     map[string]*Seed{},
		Tests:     map[string]*Test{},
		UnitTests: map[string]*UnitTest{},
		Sources:   map[string]*Source{},
		Snapshots: map[string]*Snapshot{},
	}
}

// Add inserts a node. A unique_id already present under any kind is an error.
func (ns *Nodes) Add(n Node) error {
	id := n.Common().UniqueID
	if ns.Contains(id) {
		return fmt.Errorf("duplicate unique_id %q", id)
	}
	ns.put(n)
	return nil
}

func (ns *Nodes) put(n Node) {
	id := n.Common().UniqueID
	switch v := n.(type) {
	case *Model:
		if v.Analysis {
			ns.Analyses[id] = v
		} else {
			ns.Models[id] = v
		}
	case *Seed:
		ns.Seeds[id] = v
	case *Test:
		ns.Tests[id] = v
	case *UnitTest:
		ns.UnitTests[id] = v
	case *Source:
		ns.Sources[id] = v
	case *Snapshot:
		ns.Snapshots[id] = v
	}
}

// Contains reports whether a node with the given unique_id exists.
func (ns *Nodes) Contains(id string) bool {
	_, ok := ns.Get(id)
	return ok
}

// Get looks up a node of any kind.
func (ns *Nodes) Get(id string) (Node, bool) {
	if n, ok := ns.Models[id]; ok {
		return n, true
	}
	if n, ok := ns.Analyses[id]; ok {
		return n, true
	}
	if n, ok := ns.Seeds[id]; ok {
		return n, true
	}
	if n, ok := ns.Tests[id]; ok {
		return n, true
	}
	if n, ok := ns.UnitTests[id]; ok {
		return n, true
	}
	if n, ok := ns.Sources[id]; ok {
		return n, true
	}
	if n, ok := ns.Snapshots[id]; ok {
		return n, true
	}
	return nil, false
}

// Len returns the total number of nodes.
func (ns *Nodes) Len() int {
	return len(ns.Models) + len(ns.Analyses) + len(ns.Seeds) + len(ns.Tests) +
		len(ns.UnitTests) + len(ns.Sources) + len(ns.Snapshots)
}

// Values returns every node. The returned nodes are the stored pointers, so
// callers may modify them.
func (ns *Nodes) Values() []Node {
	out := make([]Node, 0, ns.Len())
	out = appendSorted(out, ns.Models)
	out = appendSorted(out, ns.Analyses)
	out = appendSorted(out, ns.Seeds)
	out = appendSorted(out, ns.Tests)
	out = appendSorted(out, ns.UnitTests)
	out = appendSorted(out, ns.Sources)
	out = appendSorted(out, ns.Snapshots)
	return out
}

func appendSorted[T Node](out []Node, m map[string]T) []Node {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

// FindByRelationName returns the first node whose relation name matches.
func (ns *Nodes) FindByRelationName(relationName string) (Node, bool) {
	for _, n := range ns.Values() {
		var name string
		if s, ok := n.(*Source); ok {
			name = s.RelationName
		} else if b := n.Base(); b != nil {
			name = b.RelationName
		}
		if name != "" && name == relationName {
			return n, true
		}
	}
	return nil, false
}

// Extend adds every node of other. Nodes in other replace nodes with the same
// unique_id.
func (ns *Nodes) Extend(other *Nodes) {
	for _, n := range other.Values() {
		ns.put(n)
	}
}

// Clone returns a deep copy of the container.
func (ns *Nodes) Clone() (*Nodes, error) {
	out := New()
	for _, n := range ns.Values() {
		c, err := Clone(n)
		if err != nil {
			return nil, err
		}
		out.put(c)
	}
	return out, nil
}

// WarnOnMicrobatch fails on the first node that selects microbatch.
func (ns *Nodes) WarnOnMicrobatch() error {
	for _, n := range ns.Values() {
		if err := n.WarnOnMicrobatch(); err != nil {
			return err
		}
	}
	return nil
}
