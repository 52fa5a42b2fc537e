package simulation

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aukilabs/flocktree/featureflag"
	"github.com/aukilabs/flocktree/models"
	"github.com/aukilabs/flocktree/spatial"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
)

func newTestWorld(t *testing.T, conf Config) (*World, *models.Session) {
	session := models.NewSession(1, time.Hour)
	t.Cleanup(session.Close)

	w, err := NewWorld(session, conf)
	require.NoError(t, err)
	return w, session
}

func testConfig(treeType TreeType) Config {
	conf := DefaultConfig()
	conf.TreeType = treeType
	conf.WorldSize = 2000
	conf.WorldHeight = 400
	conf.AgentCount = 100
	conf.Speed = 300
	conf.Steering = SteeringRandom
	return conf
}

func requireAgentsIndexed(t *testing.T, w *World, agents []*models.Agent) {
	for _, a := range agents {
		require.True(t, w.Bounds().Contains(a.Position()))

		leaf := w.Tree().FindLeaf(a.Position())
		require.NotNil(t, leaf)
		require.True(t, leaf.Has(a), "agent %d is not in its leaf", a.ID)
	}
}

func TestNewWorld(t *testing.T) {
	w, session := newTestWorld(t, testConfig(TreeTypeQuadtree))

	require.Equal(t, TreeTypeQuadtree, w.TreeType())
	require.Equal(t, "quadtree", w.Tree().Name())
	require.Equal(t, w.Bounds(), w.Tree().WorldBounds())
	require.Equal(t, 100, session.AgentCount())
	require.Nil(t, w.Snapshot())

	for _, a := range session.Agents() {
		h := a.Heading()
		require.Equal(t, float64(1), h.X*h.X)
		require.Equal(t, float64(1), h.Y*h.Y)
		require.Equal(t, float64(1), h.Z*h.Z)
		require.Contains(t, models.Steerings, a.Steering)
	}
	requireAgentsIndexed(t, w, session.Agents())
}

func TestNewWorldInvalidConfig(t *testing.T) {
	tests := []struct {
		scenario string
		update   func(*Config)
	}{
		{
			scenario: "unknown tree type",
			update:   func(c *Config) { c.TreeType = "kdtree" },
		},
		{
			scenario: "unknown steering",
			update:   func(c *Config) { c.Steering = "wander" },
		},
		{
			scenario: "empty world",
			update:   func(c *Config) { c.WorldSize = 0 },
		},
		{
			scenario: "negative agent count",
			update:   func(c *Config) { c.AgentCount = -1 },
		},
		{
			scenario: "negative speed",
			update:   func(c *Config) { c.Speed = -1 },
		},
		{
			scenario: "invalid leaf capacity",
			update:   func(c *Config) { c.MaxEntitiesPerLeaf = 0 },
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			conf := DefaultConfig()
			test.update(&conf)

			session := models.NewSession(1, time.Hour)
			defer session.Close()

			w, err := NewWorld(session, conf)
			require.Error(t, err)
			require.Nil(t, w)
			require.Zero(t, session.AgentCount())
		})
	}

	t.Run("nil session", func(t *testing.T) {
		_, err := NewWorld(nil, DefaultConfig())
		require.Error(t, err)
	})
}

func TestWorldStepMovesAgent(t *testing.T) {
	conf := testConfig(TreeTypeOctree)
	conf.AgentCount = 0
	conf.Speed = 10
	w, _ := newTestWorld(t, conf)

	a := w.Spawn()
	w.Tree().Remove(a)
	a.SetPosition(r3.Vector{X: 1, Y: 1, Z: 200})
	a.SetHeading(r3.Vector{X: 1, Y: -1, Z: 1})
	w.Tree().Insert(a)

	w.Step(time.Second)

	moved := a.Position().Sub(r3.Vector{X: 1, Y: 1, Z: 200})
	require.InDelta(t, 10, moved.Norm(), 1e-9)
	require.Greater(t, moved.X, float64(0))
	require.Less(t, moved.Y, float64(0))
	require.Equal(t, uint64(1), w.Stats().Steps)
	requireAgentsIndexed(t, w, []*models.Agent{a})
}

func TestWorldStepRespawnsAgent(t *testing.T) {
	conf := testConfig(TreeTypeQuadtree)
	conf.AgentCount = 0
	w, _ := newTestWorld(t, conf)

	a := w.Spawn()
	w.Tree().Remove(a)
	a.SetPosition(r3.Vector{X: 999, Y: 999, Z: 399})
	a.SetHeading(r3.Vector{X: 1, Y: 1, Z: 1})
	w.Tree().Insert(a)

	w.Step(time.Second)

	require.Equal(t, uint64(1), w.Stats().Respawns)
	requireAgentsIndexed(t, w, []*models.Agent{a})
}

func TestWorldStepKeepsTreeConsistent(t *testing.T) {
	for _, treeType := range []TreeType{TreeTypeQuadtree, TreeTypeOctree} {
		t.Run(string(treeType), func(t *testing.T) {
			w, session := newTestWorld(t, testConfig(treeType))

			for i := 0; i < 30; i++ {
				w.Step(100 * time.Millisecond)
				requireAgentsIndexed(t, w, session.Agents())
			}

			stats := w.Stats()
			require.Equal(t, uint64(30), stats.Steps)
			require.NotZero(t, stats.Relocations)
			require.Zero(t, stats.Rebuilds)
			require.Equal(t, 30*100, w.Tree().Stats().QueryCount)
		})
	}
}

func TestWorldStepWithoutTree(t *testing.T) {
	conf := testConfig(TreeTypeNone)
	conf.AgentCount = 10
	w, session := newTestWorld(t, conf)
	require.Nil(t, w.Tree())

	for i := 0; i < 10; i++ {
		w.Step(100 * time.Millisecond)
	}

	for _, a := range session.Agents() {
		require.True(t, w.Bounds().Contains(a.Position()))
	}
	require.Zero(t, w.Stats().Relocations)
}

func TestWorldRebuildEveryFrame(t *testing.T) {
	conf := testConfig(TreeTypeOctree)
	conf.FeatureFlags = featureflag.New([]string{string(featureflag.FlagRebuildEveryFrame)})
	w, session := newTestWorld(t, conf)

	w.Step(100 * time.Millisecond)
	w.Step(100 * time.Millisecond)

	require.Equal(t, uint64(2), w.Stats().Rebuilds)
	requireAgentsIndexed(t, w, session.Agents())
}

func TestWorldSnapshot(t *testing.T) {
	t.Run("published when visualizing", func(t *testing.T) {
		conf := testConfig(TreeTypeQuadtree)
		conf.FeatureFlags = featureflag.New([]string{string(featureflag.FlagVisualize)})
		w, session := newTestWorld(t, conf)

		w.Step(100 * time.Millisecond)
		first := w.Snapshot()
		require.NotNil(t, first)
		require.Equal(t, uint64(1), first.Sequence)
		require.Equal(t, session.SessionUUID, first.SessionUUID)
		require.Equal(t, TreeTypeQuadtree, first.TreeType)
		require.Len(t, first.Agents, 100)
		require.NotNil(t, first.Tree)
		require.NotEmpty(t, first.Tree.Leaves)

		w.HandleFrame(100 * time.Millisecond)
		second := w.Snapshot()
		require.Equal(t, uint64(2), second.Sequence)
		require.Equal(t, uint64(1), first.Sequence)
	})

	t.Run("without tree", func(t *testing.T) {
		conf := testConfig(TreeTypeNone)
		conf.FeatureFlags = featureflag.New([]string{string(featureflag.FlagVisualize)})
		w, _ := newTestWorld(t, conf)

		w.Step(100 * time.Millisecond)
		require.NotNil(t, w.Snapshot())
		require.Nil(t, w.Snapshot().Tree)
	})

	t.Run("not published by default", func(t *testing.T) {
		w, _ := newTestWorld(t, testConfig(TreeTypeQuadtree))
		w.Step(100 * time.Millisecond)
		require.Nil(t, w.Snapshot())
	})
}

func TestWorldClose(t *testing.T) {
	w, session := newTestWorld(t, testConfig(TreeTypeOctree))
	w.Step(100 * time.Millisecond)

	var b strings.Builder
	logs.SetInlineEncoder()
	logs.SetLogger(func(e logs.Entry) {
		fmt.Fprint(&b, e)
	})

	w.Close()

	logString := b.String()
	require.Contains(t, logString, "average query time")
	require.Contains(t, logString, "world closed")
	require.Contains(t, logString, `"steps":1`)
	t.Log(logString)

	require.Zero(t, session.AgentCount())
	require.Zero(t, w.Tree().DebugInfo().EntityCount)
}

func TestConfigBounds(t *testing.T) {
	conf := DefaultConfig()
	conf.WorldSize = 100
	conf.WorldHeight = 10

	require.Equal(t, spatial.Box{
		Min: r3.Vector{X: -50, Y: -50},
		Max: r3.Vector{X: 50, Y: 50, Z: 10},
	}, conf.Bounds())
}
