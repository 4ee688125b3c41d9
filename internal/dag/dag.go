// Package dag orders project nodes by their depends_on edges.
package dag

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapforge/pkg/core"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
)

// Graph is a dependency graph keyed by unique_id. An edge runs from a
// parent to each node that depends on it.
type Graph struct {
	nodes    map[string]nodes.Node
	children map[string][]string
	parents  map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]nodes.Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// Build creates the graph of the enabled nodes in ns. Depending on a
// disabled node is an error.
func Build(ns *nodes.Nodes) (*Graph, error) {
	g := NewGraph()
	for _, n := range ns.Values() {
		if n.Enabled() && n.Base() != nil {
			g.AddNode(n)
		}
	}
	for _, n := range g.Nodes() {
		for _, parent := range n.Base().DependsOn.Nodes {
			if _, ok := g.nodes[parent]; !ok {
				if ns.Contains(parent) {
					return nil, core.ConfigurationError("%s depends on disabled node %s", n.Common().UniqueID, parent)
				}
				return nil, core.ConfigurationError("%s depends on unknown node %s", n.Common().UniqueID, parent)
			}
			if err := g.AddEdge(parent, n.Common().UniqueID); err != nil {
				return nil, err
			}
		}
	}
	if path := g.Cycle(); path != nil {
		return nil, core.ConfigurationError("found a cycle: %s", strings.Join(path, " --> "))
	}
	return g, nil
}

// AddNode adds or replaces a node.
func (g *Graph) AddNode(n nodes.Node) {
	id := n.Common().UniqueID
	if _, ok := g.nodes[id]; !ok {
		g.children[id] = nil
		g.parents[id] = nil
	}
	g.nodes[id] = n
}

// AddEdge records that child depends on parent.
func (g *Graph) AddEdge(parent, child string) error {
	if _, ok := g.nodes[parent]; !ok {
		return fmt.Errorf("parent node %q does not exist", parent)
	}
	if _, ok := g.nodes[child]; !ok {
		return fmt.Errorf("child node %q does not exist", child)
	}
	if parent == child {
		return fmt.Errorf("self-loop detected: %s", parent)
	}
	if !slices.Contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !slices.Contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
	return nil
}

// Node returns a node by unique_id.
func (g *Graph) Node(id string) (nodes.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes ordered by unique_id.
func (g *Graph) Nodes() []nodes.Node {
	out := make([]nodes.Node, 0, len(g.nodes))
	for _, id := range g.ids() {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Parents returns the direct dependencies of id.
func (g *Graph) Parents(id string) []string { return sorted(g.parents[id]) }

// Children returns the direct dependents of id.
func (g *Graph) Children(id string) []string { return sorted(g.children[id]) }

func (g *Graph) ids() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Cycle returns one cycle as a path that starts and ends on the same node,
// or nil when the graph is acyclic.
func (g *Graph) Cycle() []string {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = active
		stack = append(stack, id)
		for _, child := range g.Children(id) {
			switch state[child] {
			case active:
				start := slices.Index(stack, child)
				cycle = append(slices.Clone(stack[start:]), child)
				return true
			case unvisited:
				if visit(child) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range g.ids() {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}

// TopologicalSort returns unique_ids with every dependency before its
// dependents. Ties are broken by unique_id.
func (g *Graph) TopologicalSort() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, level := range levels {
		out = append(out, level...)
	}
	return out, nil
}

// Levels groups nodes so that every node's dependencies sit in earlier
// levels. Nodes of one level can be built concurrently.
func (g *Graph) Levels() ([][]string, error) {
	if path := g.Cycle(); path != nil {
		return nil, core.ConfigurationError("found a cycle: %s", strings.Join(path, " --> "))
	}
	indegree := make(map[string]int, len(g.nodes))
	var current []string
	for _, id := range g.ids() {
		indegree[id] = len(g.parents[id])
		if indegree[id] == 0 {
			current = append(current, id)
		}
	}

	var levels [][]string
	for len(current) > 0 {
		levels = append(levels, current)
		var next []string
		for _, id := range current {
			for _, child := range g.children[id] {
				indegree[child]--
				if indegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		slices.Sort(next)
		current = next
	}
	return levels, nil
}

// Downstream returns ids and every node that transitively depends on them.
func (g *Graph) Downstream(ids ...string) []string {
	return g.closure(ids, g.children)
}

// Upstream returns ids and every node they transitively depend on.
func (g *Graph) Upstream(ids ...string) []string {
	return g.closure(ids, g.parents)
}

func (g *Graph) closure(ids []string, next map[string][]string) []string {
	seen := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, n := range next[id] {
			walk(n)
		}
	}
	for _, id := range ids {
		if _, ok := g.nodes[id]; ok {
			walk(id)
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Subgraph returns the graph induced by ids.
func (g *Graph) Subgraph(ids []string) *Graph {
	sub := NewGraph()
	for _, id := range ids {
		if n, ok := g.nodes[id]; ok {
			sub.AddNode(n)
		}
	}
	for id := range sub.nodes {
		for _, child := range g.children[id] {
			if _, ok := sub.nodes[child]; ok {
				_ = sub.AddEdge(id, child)
			}
		}
	}
	return sub
}

// Select resolves selectors against node names. "name" picks one node,
// "+name" adds its ancestors and "name+" its descendants. An empty selector
// list selects the whole graph.
func (g *Graph) Select(selectors []string) ([]string, error) {
	if len(selectors) == 0 {
		return g.ids(), nil
	}
	byName := make(map[string]string, len(g.nodes))
	for id, n := range g.nodes {
		byName[n.Common().Name] = id
	}

	picked := make(map[string]bool)
	for _, sel := range selectors {
		name := strings.TrimSuffix(strings.TrimPrefix(sel, "+"), "+")
		id, ok := byName[name]
		if !ok {
			return nil, core.InvalidOperationError("selector %q matched no enabled node", sel)
		}
		picked[id] = true
		if strings.HasPrefix(sel, "+") {
			for _, up := range g.Upstream(id) {
				picked[up] = true
			}
		}
		if strings.HasSuffix(sel, "+") {
			for _, down := range g.Downstream(id) {
				picked[down] = true
			}
		}
	}
	out := make([]string, 0, len(picked))
	for id := range picked {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func sorted(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}
