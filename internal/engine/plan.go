package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapforge/internal/state"
	"github.com/leapstack-labs/leapforge/pkg/nodes"
)

// Change classifies a node against its last successful build.
type Change string

// Plan changes.
const (
	ChangeNew            Change = "new"
	ChangeConfigChanged  Change = "changed-config"
	ChangeContentChanged Change = "changed-content"
	ChangeUnchanged      Change = "unchanged"
	// ChangeRemoved marks a node in the state store that no longer exists
	// in the project or is disabled.
	ChangeRemoved Change = "removed"
)

// PlanEntry is one node of a plan.
type PlanEntry struct {
	UniqueID     string
	Name         string
	ResourceType string
	Materialized string
	Change       Change

	checksum   string
	configHash string
}

// Plan lists the enabled nodes in build order followed by removed nodes.
type Plan struct {
	Entries []PlanEntry
}

// Counts returns the number of entries per change.
func (p *Plan) Counts() map[Change]int {
	out := make(map[Change]int)
	for _, e := range p.Entries {
		out[e.Change]++
	}
	return out
}

// Changed returns the ids of entries that are new or changed.
func (p *Plan) Changed() []string {
	var out []string
	for _, e := range p.Entries {
		if e.Change != ChangeUnchanged && e.Change != ChangeRemoved {
			out = append(out, e.UniqueID)
		}
	}
	return out
}

// Entry returns the entry for a unique id.
func (p *Plan) Entry(id string) (PlanEntry, bool) {
	for _, e := range p.Entries {
		if e.UniqueID == id {
			return e, true
		}
	}
	return PlanEntry{}, false
}

// Plan compares every enabled node with the state store. A content change
// takes precedence over a config change.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	order, err := e.graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	states, err := e.store.ListNodeStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	plan := &Plan{Entries: make([]PlanEntry, 0, len(order))}
	for _, id := range order {
		n, _ := e.graph.Node(id)
		entry, err := newPlanEntry(n)
		if err != nil {
			return nil, err
		}
		entry.Change = classify(entry, states[id])
		plan.Entries = append(plan.Entries, entry)
	}

	var removed []string
	for id := range states {
		if _, ok := e.graph.Node(id); !ok {
			removed = append(removed, id)
		}
	}
	slices.Sort(removed)
	for _, id := range removed {
		st := states[id]
		plan.Entries = append(plan.Entries, PlanEntry{
			UniqueID:     id,
			Name:         nameFromID(id),
			ResourceType: st.ResourceType,
			Materialized: st.Materialized,
			Change:       ChangeRemoved,
		})
	}
	return plan, nil
}

func newPlanEntry(n nodes.Node) (PlanEntry, error) {
	c := n.Common()
	hash, err := state.ConfigFingerprint(nodeConfig(n))
	if err != nil {
		return PlanEntry{}, fmt.Errorf("%s: %w", c.UniqueID, err)
	}
	entry := PlanEntry{
		UniqueID:     c.UniqueID,
		Name:         c.Name,
		ResourceType: string(n.ResourceType()),
		Materialized: n.Materialization(),
		configHash:   hash,
	}
	if b := n.Base(); b != nil {
		entry.checksum = b.Checksum.Checksum
	}
	return entry, nil
}

func classify(entry PlanEntry, st *state.NodeState) Change {
	switch {
	case st == nil:
		return ChangeNew
	case st.Checksum != entry.checksum:
		return ChangeContentChanged
	case st.ConfigHash != entry.configHash || st.Materialized != entry.Materialized:
		return ChangeConfigChanged
	default:
		return ChangeUnchanged
	}
}

// nodeConfig returns the resolved config a fingerprint is taken of.
func nodeConfig(n nodes.Node) any {
	switch n := n.(type) {
	case *nodes.Model:
		return n.Config
	case *nodes.Seed:
		return n.Config
	default:
		return nil
	}
}

// nameFromID returns the last dotted part of a unique id.
func nameFromID(id string) string {
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '.' {
			return id[i+1:]
		}
	}
	return id
}
