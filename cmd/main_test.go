package main

import (
	"testing"
	"time"

	"github.com/aukilabs/flocktree/featureflag"
	"github.com/aukilabs/flocktree/simulation"
	"github.com/aukilabs/flocktree/spatial"
	"github.com/stretchr/testify/require"
)

func TestWorldConfig(t *testing.T) {
	conf := config{
		TreeType:           string(simulation.TreeTypeQuadtree),
		MaxDepth:           3,
		MaxEntitiesPerLeaf: 5,
		HeightTolerance:    12.5,
		WorldSize:          2000,
		WorldHeight:        400,
		Agents:             10,
		Speed:              250.75,
		SeparationRange:    42.5,
		Steering:           simulation.SteeringRandom,
		Seed:               7,
	}

	wc := worldConfig(conf, []string{"visualize"})
	require.Equal(t, simulation.TreeTypeQuadtree, wc.TreeType)
	require.Equal(t, 3, wc.MaxDepth)
	require.Equal(t, 5, wc.MaxEntitiesPerLeaf)
	require.Equal(t, 12.5, wc.HeightTolerance)
	require.Equal(t, float64(2000), wc.WorldSize)
	require.Equal(t, float64(400), wc.WorldHeight)
	require.Equal(t, 10, wc.AgentCount)
	require.Equal(t, 250.75, wc.Speed)
	require.Equal(t, 42.5, wc.SeparationRange)
	require.Equal(t, int64(7), wc.Seed)
	require.True(t, wc.FeatureFlags.IsSet(featureflag.FlagVisualize))
	require.Equal(t, spatial.PrometheusMetrics{Tree: "quadtree"}, wc.Metrics)
}

func TestValidateConfig(t *testing.T) {
	conf := config{
		TreeType:      string(simulation.TreeTypeOctree),
		FrameDuration: time.Millisecond,
	}
	require.NoError(t, validateConfig(conf))

	invalid := conf
	invalid.TreeType = "kdtree"
	require.Error(t, validateConfig(invalid))

	invalid = conf
	invalid.FrameDuration = 0
	require.Error(t, validateConfig(invalid))

	invalid = conf
	invalid.RunDuration = -time.Second
	require.Error(t, validateConfig(invalid))
}

func TestDebugStreamEndpoint(t *testing.T) {
	require.Equal(t, "ws://localhost:18190/debug/stream", debugStreamEndpoint(":18190"))
	require.Equal(t, "ws://10.0.0.1:80/debug/stream", debugStreamEndpoint("10.0.0.1:80"))
}
