package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapforge/pkg/config"
	"github.com/leapstack-labs/leapforge/pkg/core"
)

func newModel(name string) *Model {
	m := &Model{}
	m.UniqueID = UniqueID(ResourceModel, "shop", name, "")
	m.Name = name
	m.PackageName = "shop"
	m.FQN = []string{"shop", name}
	m.Path = "models/" + name + ".sql"
	m.RawCode = "select 1"
	m.RelationName = `"db"."main"."` + name + `"`
	m.UpdateChecksum()
	return m
}

func TestNodes_AddGetContains(t *testing.T) {
	ns := New()
	require.NoError(t, ns.Add(newModel("orders")))

	seed := &Seed{}
	seed.UniqueID = "seed.shop.countries"
	require.NoError(t, ns.Add(seed))

	assert.Equal(t, 2, ns.Len())
	assert.True(t, ns.Contains("model.shop.orders"))
	assert.False(t, ns.Contains("model.shop.missing"))

	n, ok := ns.Get("seed.shop.countries")
	require.True(t, ok)
	assert.Equal(t, ResourceSeed, n.ResourceType())

	err := ns.Add(newModel("orders"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate unique_id")
}

func TestNodes_AnalysisGoesToItsOwnMap(t *testing.T) {
	ns := New()
	a := newModel("report")
	a.Analysis = true
	a.UniqueID = UniqueID(ResourceAnalysis, "shop", "report", "")
	require.NoError(t, ns.Add(a))

	assert.Len(t, ns.Analyses, 1)
	assert.Empty(t, ns.Models)
	assert.Equal(t, ResourceAnalysis, a.ResourceType())
}

func TestNodes_ValuesOrdering(t *testing.T) {
	ns := New()
	src := &Source{SourceName: "raw"}
	src.UniqueID = SourceUniqueID("shop", "raw", "events")
	require.NoError(t, ns.Add(src))
	require.NoError(t, ns.Add(newModel("b")))
	require.NoError(t, ns.Add(newModel("a")))

	var ids []string
	for _, n := range ns.Values() {
		ids = append(ids, n.Common().UniqueID)
	}
	assert.Equal(t, []string{"model.shop.a", "model.shop.b", "source.shop.raw.events"}, ids)
}

func TestNodes_FindByRelationName(t *testing.T) {
	ns := New()
	require.NoError(t, ns.Add(newModel("orders")))
	src := &Source{RelationName: `"db"."raw"."events"`}
	src.UniqueID = "source.shop.raw.events"
	require.NoError(t, ns.Add(src))

	n, ok := ns.FindByRelationName(`"db"."main"."orders"`)
	require.True(t, ok)
	assert.Equal(t, "model.shop.orders", n.Common().UniqueID)

	n, ok = ns.FindByRelationName(`"db"."raw"."events"`)
	require.True(t, ok)
	assert.Equal(t, ResourceSource, n.ResourceType())

	_, ok = ns.FindByRelationName("nope")
	assert.False(t, ok)
}

func TestNodes_ExtendOtherWins(t *testing.T) {
	left := New()
	require.NoError(t, left.Add(newModel("orders")))

	right := New()
	replacement := newModel("orders")
	replacement.Description = "replaced"
	require.NoError(t, right.Add(replacement))
	require.NoError(t, right.Add(newModel("customers")))

	left.Extend(right)
	assert.Equal(t, 2, left.Len())
	assert.Equal(t, "replaced", left.Models["model.shop.orders"].Description)
}

func TestNodes_CloneIsIndependent(t *testing.T) {
	ns := New()
	m := newModel("orders")
	m.Config.Tags = config.StringList{"nightly"}
	m.Config.Meta = map[string]any{"owner": "data"}
	require.NoError(t, ns.Add(m))

	cloned, err := ns.Clone()
	require.NoError(t, err)

	cm := cloned.Models["model.shop.orders"]
	require.NotNil(t, cm)
	assert.NotSame(t, m, cm)
	assert.Equal(t, m.Checksum, cm.Checksum)
	assert.True(t, m.HasSameConfig(cm))
	assert.True(t, m.HasSameContent(cm))

	cm.Config.Tags[0] = "hourly"
	cm.Description = "changed"
	assert.Equal(t, "nightly", m.Config.Tags[0])
	assert.Empty(t, m.Description)
}

func TestNodes_WarnOnMicrobatch(t *testing.T) {
	ns := New()
	require.NoError(t, ns.Add(newModel("a")))
	require.NoError(t, ns.WarnOnMicrobatch())

	mb := newModel("b")
	mb.Config.IncrementalStrategy = config.Ptr("MicroBatch")
	require.NoError(t, ns.Add(mb))

	test := &Test{}
	test.UniqueID = "test.shop.not_null_b_id"
	test.Config.IncrementalStrategy = config.Ptr(core.StrategyMicrobatch)
	require.NoError(t, ns.Add(test))

	err := ns.WarnOnMicrobatch()
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindUnsupportedFeature))
	// models are visited first, so the model is reported
	assert.Contains(t, err.Error(), "models/b.sql: Microbatch incremental strategy is not supported")
}

func TestManifest_ResourceTypeDiscriminator(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want ResourceType
	}{
		{"model", newModel("orders"), ResourceModel},
		{"seed", &Seed{}, ResourceSeed},
		{"test", &Test{}, ResourceTest},
		{"unit test", &UnitTest{Model: "orders"}, ResourceUnitTest},
		{"source", &Source{SourceName: "raw"}, ResourceSource},
		{"snapshot", &Snapshot{}, ResourceSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Marshal(tt.node)
			require.NoError(t, err)
			assert.Equal(t, string(tt.want), m[ResourceTypeKey])

			back, err := Unmarshal(m)
			require.NoError(t, err)
			assert.Equal(t, tt.want, back.ResourceType())
		})
	}
}

func TestManifest_UnknownResourceType(t *testing.T) {
	_, err := Unmarshal(map[string]any{ResourceTypeKey: "exposure"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource_type")
}

func TestManifest_AnalysisRoundTrip(t *testing.T) {
	a := newModel("report")
	a.Analysis = true
	back, err := Clone(a)
	require.NoError(t, err)
	bm, ok := back.(*Model)
	require.True(t, ok)
	assert.True(t, bm.Analysis)
}
